package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karibuhq/karibu-ai-platform/internal/catalog"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
)

func TestBuildSystemPromptIncludesTenantContext(t *testing.T) {
	settings := &tenancy.Settings{
		BusinessName:        "Zuri Salon",
		BusinessDescription: "A salon in Dar es Salaam.",
		Tone:                "warm and helpful",
		BookingsEnabled:     true,
		SupportName:         "Neema",
		SupportPhone:        "+255700000199",
	}
	services := []catalog.Service{
		{Name: "Haircut", Price: "TZS 15,000", Duration: "45 min", Description: "Wash and cut"},
	}

	prompt := buildSystemPrompt(settings, services)

	assert.Contains(t, prompt, "assistant for Zuri Salon")
	assert.Contains(t, prompt, "A salon in Dar es Salaam.")
	assert.Contains(t, prompt, "do not restate the business description")
	assert.Contains(t, prompt, "1-3 sentences unless the customer explicitly asks for more detail")
	assert.Contains(t, prompt, "Tone of voice: warm and helpful")
	assert.Contains(t, prompt, "- Haircut — TZS 15,000 (45 min): Wash and cut")
	assert.Contains(t, prompt, bookingInstruction)
	assert.Contains(t, prompt, "refer the customer to Neema on +255700000199")
}

func TestBuildSystemPromptGatesBookingInstruction(t *testing.T) {
	services := []catalog.Service{{Name: "Haircut", Price: "TZS 15,000", Duration: "45 min"}}

	t.Run("bookings disabled", func(t *testing.T) {
		settings := &tenancy.Settings{BusinessName: "Zuri Salon", BookingsEnabled: false}
		prompt := buildSystemPrompt(settings, services)
		assert.NotContains(t, prompt, bookingInstruction)
	})

	t.Run("no services", func(t *testing.T) {
		settings := &tenancy.Settings{BusinessName: "Zuri Salon", BookingsEnabled: true}
		prompt := buildSystemPrompt(settings, nil)
		assert.NotContains(t, prompt, bookingInstruction)
	})

	t.Run("enabled with services", func(t *testing.T) {
		settings := &tenancy.Settings{BusinessName: "Zuri Salon", BookingsEnabled: true}
		prompt := buildSystemPrompt(settings, services)
		assert.Contains(t, prompt, bookingInstruction)
	})
}

func TestBuildSystemPromptFallsBackOnEmptyName(t *testing.T) {
	prompt := buildSystemPrompt(&tenancy.Settings{}, nil)
	assert.Contains(t, prompt, "assistant for this business")
	assert.NotContains(t, prompt, "About the business")
	assert.NotContains(t, prompt, "do not restate the business description")
}
