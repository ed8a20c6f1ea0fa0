package tenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrgIDContextRoundTrip(t *testing.T) {
	ctx := WithOrgID(context.Background(), "org-42")
	orgID, ok := OrgIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "org-42", orgID)
}

func TestOrgIDMissing(t *testing.T) {
	orgID, ok := OrgIDFromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, orgID)
}

func TestOrgIDEmptyValue(t *testing.T) {
	ctx := WithOrgID(context.Background(), "")
	_, ok := OrgIDFromContext(ctx)
	assert.False(t, ok)
}
