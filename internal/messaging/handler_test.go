package messaging

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

type capturePublisher struct {
	requests []conversation.MessageRequest
	err      error
}

func (p *capturePublisher) EnqueueMessage(_ context.Context, req conversation.MessageRequest) error {
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, req)
	return nil
}

func newHandlerFixture(t *testing.T) (*Handler, *capturePublisher) {
	t.Helper()
	resolver := tenancy.NewStaticResolver([]*tenancy.Settings{
		{OrgID: "org-1", WhatsAppNumber: "+255700000100"},
	}, tenancy.Defaults{})
	publisher := &capturePublisher{}
	handler := NewHandler("", "verify-token", publisher, resolver, logging.Default(),
		metrics.NewPipelineMetrics(prometheus.NewRegistry()))
	return handler, publisher
}

func postTwilioForm(handler *Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.TwilioWebhook(rec, req)
	return rec
}

func TestTwilioWebhookEnqueues(t *testing.T) {
	handler, publisher := newHandlerFixture(t)

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("AccountSid", "AC123")
	form.Set("From", "whatsapp:+255711111111")
	form.Set("To", "whatsapp:+255700000100")
	form.Set("Body", "habari")

	rec := postTwilioForm(handler, form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response>")

	require.Len(t, publisher.requests, 1)
	got := publisher.requests[0]
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, "+255711111111", got.From)
	assert.Equal(t, "+255700000100", got.To)
	assert.Equal(t, "habari", got.Message)
	assert.Equal(t, ProviderTwilio, got.Provider)
	assert.Equal(t, "SM123", got.Metadata["twilio_message_sid"])
}

func TestTwilioWebhookRejectsMissingFields(t *testing.T) {
	handler, publisher := newHandlerFixture(t)

	form := url.Values{}
	form.Set("From", "whatsapp:+255711111111")
	form.Set("To", "whatsapp:+255700000100")

	rec := postTwilioForm(handler, form)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, publisher.requests)
}

func TestTwilioWebhookUnknownTenant(t *testing.T) {
	handler, publisher := newHandlerFixture(t)

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "whatsapp:+255711111111")
	form.Set("To", "whatsapp:+1999999999")
	form.Set("Body", "hello")

	rec := postTwilioForm(handler, form)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, publisher.requests)
}

func TestTwilioWebhookSignatureEnforced(t *testing.T) {
	resolver := tenancy.NewStaticResolver([]*tenancy.Settings{
		{OrgID: "org-1", WhatsAppNumber: "+255700000100"},
	}, tenancy.Defaults{})
	publisher := &capturePublisher{}
	handler := NewHandler("auth-token", "", publisher, resolver, logging.Default(),
		metrics.NewPipelineMetrics(prometheus.NewRegistry()))

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "whatsapp:+255711111111")
	form.Set("To", "whatsapp:+255700000100")
	form.Set("Body", "hello")

	rec := postTwilioForm(handler, form)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing signature rejected")

	// A correctly signed request passes.
	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhooks/twilio/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, req.ParseForm())
	payload := buildSignaturePayload("https://example.com/webhooks/twilio/whatsapp", req.PostForm)
	req.Body = io.NopCloser(strings.NewReader(form.Encode()))
	req.Header.Set("X-Twilio-Signature", computeTwilioSignature(payload, "auth-token"))

	rec = httptest.NewRecorder()
	handler.TwilioWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, publisher.requests, 1)
}

func TestMetaVerify(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/meta/whatsapp?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	handler.MetaVerify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet,
		"/webhooks/meta/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	handler.MetaVerify(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetaWebhookEnqueues(t *testing.T) {
	handler, publisher := newHandlerFixture(t)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"display_phone_number": "255700000100", "phone_number_id": "PN1"},
					"messages": [
						{"from": "255711111111", "id": "wamid.1", "type": "text", "text": {"body": "habari"}},
						{"from": "255711111111", "id": "wamid.2", "type": "image"}
					]
				}
			}]
		}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/meta/whatsapp", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.MetaWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.requests, 1, "non-text messages are skipped")
	got := publisher.requests[0]
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, "+255711111111", got.From)
	assert.Equal(t, ProviderMeta, got.Provider)
	assert.Equal(t, "wamid.1", got.Metadata["meta_message_id"])
}

func TestMetaWebhookBadJSONStillAcks(t *testing.T) {
	handler, publisher := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/meta/whatsapp", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	handler.MetaWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.requests)
}
