package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

var metaSendTracer = otel.Tracer("karibu.internal.messaging.meta_send")

const metaGraphBase = "https://graph.facebook.com/v19.0"

// MetaSender posts messages through the WhatsApp Cloud API.
type MetaSender struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	logger        *logging.Logger
}

// NewMetaSender builds a Cloud API sender.
func NewMetaSender(accessToken, phoneNumberID string, logger *logging.Logger) *MetaSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &MetaSender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		baseURL:       metaGraphBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ conversation.ReplyMessenger = (*MetaSender)(nil)

type metaTextMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             metaText `json:"text"`
}

type metaText struct {
	Body string `json:"body"`
}

// SendReply dispatches a text message, retrying transient failures.
func (s *MetaSender) SendReply(ctx context.Context, msg conversation.OutboundReply) error {
	if s.accessToken == "" || s.phoneNumberID == "" {
		return errors.New("messaging: meta credentials missing")
	}
	if msg.To == "" {
		return errors.New("messaging: to required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := metaSendTracer.Start(ctx, "messaging.meta.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("karibu.org_id", msg.OrgID),
		attribute.String("karibu.to", msg.To),
	)

	payload, err := json.Marshal(metaTextMessage{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(NormalizeE164(msg.To), "+"),
		Type:             "text",
		Text:             metaText{Body: msg.Body},
	})
	if err != nil {
		return fmt.Errorf("messaging: failed to encode meta payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if msg.Metadata != nil && len(body) > 0 {
					var parsed struct {
						Messages []struct {
							ID string `json:"id"`
						} `json:"messages"`
					}
					if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Messages) > 0 {
						msg.Metadata["provider_message_id"] = parsed.Messages[0].ID
					}
				}
				s.logger.Info("meta whatsapp message sent", "org_id", msg.OrgID, "to", msg.To)
				return nil
			}
			lastErr = fmt.Errorf("meta send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return lastErr
}
