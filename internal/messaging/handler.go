package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

var webhookTracer = otel.Tracer("karibu.internal.messaging.webhook")

const twimlEmptyAck = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type conversationPublisher interface {
	EnqueueMessage(ctx context.Context, req conversation.MessageRequest) error
}

// Handler terminates provider webhooks: verify, parse, resolve the tenant,
// enqueue, ack. Replies are computed later by the worker; the webhook never
// waits on the engine.
type Handler struct {
	twilioAuthToken string
	metaVerifyToken string
	publisher       conversationPublisher
	tenants         tenancy.Resolver
	logger          *logging.Logger
	metrics         *metrics.PipelineMetrics
	clock           func() time.Time
}

// NewHandler creates a webhook handler.
func NewHandler(twilioAuthToken, metaVerifyToken string, publisher conversationPublisher, tenants tenancy.Resolver, logger *logging.Logger, m *metrics.PipelineMetrics) *Handler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if tenants == nil {
		panic("messaging: tenant resolver cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		twilioAuthToken: twilioAuthToken,
		metaVerifyToken: metaVerifyToken,
		publisher:       publisher,
		tenants:         tenants,
		logger:          logger,
		metrics:         m,
		clock:           time.Now,
	}
}

// TwilioWebhook handles POST /webhooks/twilio/whatsapp.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()
	started := h.clock()
	defer func() {
		h.metrics.ObserveWebhookLatency(ProviderTwilio, h.clock().Sub(started).Seconds())
	}()

	if h.twilioAuthToken != "" {
		if !ValidateTwilioSignature(r, h.twilioAuthToken, buildAbsoluteURL(r)) {
			h.logger.Warn("invalid twilio signature")
			span.RecordError(errors.New("invalid twilio signature"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := NormalizeE164(webhook.From)
	to := NormalizeE164(webhook.To)
	span.SetAttributes(
		attribute.String("karibu.twilio.message_sid", webhook.MessageSid),
		attribute.String("karibu.from", from),
		attribute.String("karibu.to", to),
	)

	if webhook.MessageSid == "" || from == "" || webhook.Body == "" {
		h.logger.Error("invalid twilio payload", "message_sid", webhook.MessageSid, "from", from)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	h.acceptInbound(ctx, w, inboundMessage{
		provider: ProviderTwilio,
		from:     from,
		to:       to,
		body:     webhook.Body,
		metadata: map[string]string{
			"twilio_message_sid": webhook.MessageSid,
			"twilio_account_sid": webhook.AccountSid,
		},
	}, func() {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(twimlEmptyAck))
	})
}

// MetaVerify handles GET /webhooks/meta/whatsapp, Meta's subscription
// challenge.
func (h *Handler) MetaVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.metaVerifyToken || h.metaVerifyToken == "" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

type metaWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// MetaWebhook handles POST /webhooks/meta/whatsapp. It always acks with 200
// so Meta does not disable the subscription; bad entries are logged and
// skipped.
func (h *Handler) MetaWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.meta.webhook")
	defer span.End()
	started := h.clock()
	defer func() {
		h.metrics.ObserveWebhookLatency(ProviderMeta, h.clock().Sub(started).Seconds())
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("failed to read meta webhook body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload metaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Error("failed to decode meta webhook", "error", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			to := NormalizeE164(change.Value.Metadata.DisplayPhoneNumber)
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				h.acceptInbound(ctx, nil, inboundMessage{
					provider: ProviderMeta,
					from:     NormalizeE164(msg.From),
					to:       to,
					body:     msg.Text.Body,
					metadata: map[string]string{
						"meta_message_id":      msg.ID,
						"meta_phone_number_id": change.Value.Metadata.PhoneNumberID,
					},
				}, nil)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

type inboundMessage struct {
	provider string
	from     string
	to       string
	body     string
	metadata map[string]string
}

// acceptInbound resolves the tenant and enqueues the message. ack runs only
// when everything succeeded; a nil ack (Meta) leaves the response to the
// caller.
func (h *Handler) acceptInbound(ctx context.Context, w http.ResponseWriter, in inboundMessage, ack func()) {
	settings, err := h.tenants.ResolveByNumber(ctx, in.to)
	if err != nil {
		h.logger.Error("failed to resolve tenant for inbound message", "error", err, "to", in.to)
		h.metrics.ObserveInbound(in.provider, "unknown_tenant")
		if w != nil {
			http.Error(w, "Unknown destination number", http.StatusBadRequest)
		}
		return
	}

	req := conversation.MessageRequest{
		OrgID:    settings.OrgID,
		Message:  in.body,
		From:     in.from,
		To:       in.to,
		Provider: in.provider,
		Metadata: in.metadata,
	}

	publishCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := h.publisher.EnqueueMessage(publishCtx, req); err != nil {
		h.logger.Error("failed to enqueue inbound message", "error", err, "org_id", settings.OrgID)
		h.metrics.ObserveInbound(in.provider, "enqueue_failed")
		if w != nil {
			http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("inbound message accepted", "org_id", settings.OrgID, "provider", in.provider, "from", in.from)
	if ack != nil {
		ack()
	}
}

func buildAbsoluteURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
