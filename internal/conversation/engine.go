package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/karibuhq/karibu-ai-platform/internal/bookings"
	"github.com/karibuhq/karibu-ai-platform/internal/catalog"
	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// Keyword sets driving strategy selection. Change requests need both a
// change verb and a booking noun so "can I change my order" does not hijack
// the flow.
var (
	changeKeywordRe  = regexp.MustCompile(`(?i)\b(change|reschedule|modify|edit|update|badilisha|ahirisha)\b`)
	bookingNounRe    = regexp.MustCompile(`(?i)\b(booking|appointment|nafasi)\b`)
	bookingKeywordRe = regexp.MustCompile(`(?i)\b(book|booking|reserve|reservation|appointment|schedule|available)\b`)
)

const (
	llmMaxTokens   = 220
	llmTemperature = 0.7
)

// Engine is the conversation brain: one inbound message in, exactly one
// reply out. It owns no transport; the worker feeds it and dispatches what
// it returns.
type Engine struct {
	store    Store
	bookings *bookings.Service
	catalog  catalog.Reader
	tenants  tenancy.Resolver
	logger   *logging.Logger
	metrics  *metrics.PipelineMetrics
	tracer   trace.Tracer

	geminiModel string

	// newLLM builds a provider client for a tenant API key; test seam.
	newLLM func(ctx context.Context, apiKey, modelID string) (LLMClient, error)

	llmMu  sync.Mutex
	llmFor map[string]LLMClient // keyed by API key

	clock func() time.Time
	newID func() string
}

var _ Service = (*Engine)(nil)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator overrides booking reference generation.
func WithIDGenerator(f func() string) EngineOption {
	return func(e *Engine) { e.newID = f }
}

// WithLLMFactory overrides how per-tenant model clients are built.
func WithLLMFactory(f func(ctx context.Context, apiKey, modelID string) (LLMClient, error)) EngineOption {
	return func(e *Engine) { e.newLLM = f }
}

// WithGeminiModel sets the model id used for tenant clients.
func WithGeminiModel(modelID string) EngineOption {
	return func(e *Engine) { e.geminiModel = modelID }
}

// NewEngine wires the conversation engine.
func NewEngine(store Store, bookingSvc *bookings.Service, cat catalog.Reader, tenants tenancy.Resolver, logger *logging.Logger, m *metrics.PipelineMetrics, opts ...EngineOption) *Engine {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if bookingSvc == nil {
		panic("conversation: booking service cannot be nil")
	}
	if cat == nil {
		panic("conversation: catalog cannot be nil")
	}
	if tenants == nil {
		panic("conversation: tenant resolver cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	e := &Engine{
		store:       store,
		bookings:    bookingSvc,
		catalog:     cat,
		tenants:     tenants,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer("karibu.internal.conversation.engine"),
		geminiModel: defaultGeminiModel,
		llmFor:      make(map[string]LLMClient),
		clock:       time.Now,
		newID: func() string {
			return "BK-" + strings.ToUpper(uuid.NewString()[:8])
		},
	}
	e.newLLM = func(ctx context.Context, apiKey, modelID string) (LLMClient, error) {
		return NewGeminiLLMClient(ctx, apiKey, modelID)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessMessage runs the full pipeline for one inbound message: resolve the
// tenant, load state, pick a strategy, record both turns, persist, reply.
// It never returns an empty reply for a resolvable tenant.
func (e *Engine) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ProcessMessage",
		trace.WithAttributes(
			attribute.String("org.id", req.OrgID),
			attribute.String("message.provider", req.Provider),
		))
	defer span.End()

	settings, err := e.resolveTenant(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = tenancy.WithOrgID(ctx, settings.OrgID)
	logger := e.logger.WithOrg(settings.OrgID)

	state, err := e.store.GetOrCreate(ctx, settings.OrgID, req.From)
	if err != nil {
		// A reply still goes out; the customer just loses continuity.
		logger.Error("failed to load conversation state", "error", err, "phone", req.From)
		state = NewConversationState(settings.OrgID, req.From)
	}

	now := e.clock()
	state.Touch(now)
	state.AppendHistory(ChatRoleUser, req.Message)

	reply, strategy := e.selectReply(ctx, settings, state, req.Message)

	state.AppendHistory(ChatRoleAssistant, reply)
	if err := e.store.Save(ctx, state); err != nil {
		logger.Error("failed to persist conversation state", "error", err, "phone", req.From)
	}

	e.metrics.ObserveStrategy(strategy)
	span.SetAttributes(attribute.String("reply.strategy", strategy))
	logger.Info("processed inbound message",
		"phone", req.From,
		"strategy", strategy,
		"history_len", len(state.History),
	)

	return &Response{
		Message:   reply,
		Strategy:  strategy,
		Timestamp: now.UTC(),
	}, nil
}

func (e *Engine) resolveTenant(ctx context.Context, req MessageRequest) (*tenancy.Settings, error) {
	settings, err := e.tenants.ResolveByNumber(ctx, req.To)
	if err == nil {
		return settings, nil
	}
	if errors.Is(err, tenancy.ErrTenantNotFound) {
		return nil, fmt.Errorf("conversation: no tenant for number %s: %w", req.To, err)
	}
	return nil, fmt.Errorf("conversation: tenant lookup failed: %w", err)
}

// selectReply walks the strategies in their fixed order and returns the
// first that claims the message.
func (e *Engine) selectReply(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) (string, string) {
	if reply, ok := e.tryChangeRequest(ctx, settings, state, text); ok {
		return reply, StrategyChangeRequest
	}

	if state.Booking != nil || bookingKeywordRe.MatchString(text) {
		return e.handleBookingFlow(ctx, settings, state, text), StrategyBookingFlow
	}

	if reply, ok := e.tryRedirect(settings, state, text); ok {
		return reply, StrategyRedirect
	}

	if settings.BypassAI {
		if settings.BypassReply != "" {
			return settings.BypassReply, StrategyBypass
		}
		return renderMessage(msgBypassAck, e.langFor(state, text)), StrategyBypass
	}

	if settings.GeminiAPIKey == "" {
		return renderMessage(msgAIUnavailable, e.langFor(state, text)), StrategyNoAI
	}

	return e.generateAIReply(ctx, settings, state, text), StrategyAI
}

// tryChangeRequest handles "change my booking" style messages. It claims the
// message only when both keyword sets match; what it replies depends on
// whether the customer's last booking is still pending.
func (e *Engine) tryChangeRequest(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) (string, bool) {
	if !changeKeywordRe.MatchString(text) || !bookingNounRe.MatchString(text) {
		return "", false
	}
	lang := e.langFor(state, text)

	if state.LastBookingID == "" {
		return renderMessage(msgChangeNoBooking, lang), true
	}

	booking, err := e.bookings.GetByID(ctx, settings.OrgID, state.LastBookingID)
	if err != nil {
		if !errors.Is(err, bookings.ErrNotFound) {
			e.logger.Error("failed to load booking for change request", "error", err, "booking_id", state.LastBookingID)
		}
		return renderMessage(msgChangeNoBooking, lang), true
	}

	if booking.Status != bookings.StatusPending {
		return renderMessage(msgChangeNotPending, lang, booking.Status), true
	}

	state.Language = lang
	state.Booking = &BookingState{
		Step:             StepAwaitingEditChoice,
		Language:         lang,
		EditingBookingID: booking.ID,
		ServiceID:        booking.ServiceID,
		ServiceName:      booking.ServiceName,
		Price:            booking.Price,
	}
	e.snapshotServiceAvailability(ctx, settings.OrgID, booking, state.Booking)

	return renderMessage(msgEditChoice, lang, booking.CustomerName, booking.DateBooked, booking.TimeSlot), true
}

// snapshotServiceAvailability copies the booked service's current dates and
// slots into the edit flow. When the service no longer exists the booking's
// own date remains the only candidate and any time is accepted.
func (e *Engine) snapshotServiceAvailability(ctx context.Context, orgID string, booking *bookings.Booking, bs *BookingState) {
	for _, svc := range e.listServices(ctx, orgID) {
		if svc.ID == booking.ServiceID {
			bs.AvailableDates = append([]string(nil), svc.AvailableDates...)
			bs.TimeSlots = append([]string(nil), svc.TimeSlots...)
			bs.Duration = svc.Duration
			return
		}
	}
	e.logger.Warn("service missing for edit flow, falling back to booked date", "service_id", booking.ServiceID)
	bs.AvailableDates = []string{booking.DateBooked}
}

func (e *Engine) tryRedirect(settings *tenancy.Settings, state *ConversationState, text string) (string, bool) {
	if settings.SupportPhone == "" || len(settings.RedirectKeywords) == 0 {
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, kw := range settings.RedirectKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || !strings.Contains(lowered, kw) {
			continue
		}
		name := settings.SupportName
		if name == "" {
			name = settings.BusinessName
		}
		return renderMessage(msgRedirect, e.langFor(state, text), name, settings.SupportPhone), true
	}
	return "", false
}

// generateAIReply calls the tenant's model with the system prompt and full
// history. Model failures are absorbed into a fixed fallback; the pipeline
// never surfaces provider errors to the customer.
func (e *Engine) generateAIReply(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) string {
	lang := e.langFor(state, text)

	client, err := e.llmClient(ctx, settings.GeminiAPIKey)
	if err != nil {
		e.logger.Error("failed to build llm client", "error", err, "org_id", settings.OrgID)
		return renderMessage(msgAIFallback, lang)
	}

	msgs := make([]ChatMessage, 0, len(state.History))
	for _, h := range state.History {
		msgs = append(msgs, ChatMessage{Role: h.Role, Content: h.Text})
	}

	started := e.clock()
	resp, err := client.Complete(ctx, LLMRequest{
		Model:       e.geminiModel,
		System:      []string{buildSystemPrompt(settings, e.listServices(ctx, settings.OrgID))},
		Messages:    msgs,
		MaxTokens:   llmMaxTokens,
		Temperature: llmTemperature,
	})
	e.metrics.ObserveLLMLatency(e.clock().Sub(started).Seconds())
	if err != nil {
		e.logger.Error("llm completion failed", "error", err, "org_id", settings.OrgID)
		return renderMessage(msgAIFallback, lang)
	}
	if strings.TrimSpace(resp.Text) == "" {
		e.logger.Warn("llm returned empty reply", "org_id", settings.OrgID, "stop_reason", resp.StopReason)
		return renderMessage(msgAIFallback, lang)
	}
	return resp.Text
}

// llmClient returns a cached client for the tenant's API key, building one
// on first use. Tenants sharing a key share a client.
func (e *Engine) llmClient(ctx context.Context, apiKey string) (LLMClient, error) {
	e.llmMu.Lock()
	defer e.llmMu.Unlock()
	if client, ok := e.llmFor[apiKey]; ok {
		return client, nil
	}
	client, err := e.newLLM(ctx, apiKey, e.geminiModel)
	if err != nil {
		return nil, err
	}
	e.llmFor[apiKey] = client
	return client, nil
}

// langFor resolves the reply language: sticky during a booking flow,
// re-detected per message otherwise.
func (e *Engine) langFor(state *ConversationState, text string) Language {
	if state.Booking != nil && state.Booking.Language != "" {
		return state.Booking.Language
	}
	if state.Language != "" {
		return state.Language
	}
	return DetectLanguage(text)
}
