package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

const (
	// ProviderAuto prefers Twilio when its credentials exist, else Meta.
	ProviderAuto = "auto"
	// ProviderTwilio forces the Twilio sender.
	ProviderTwilio = "twilio"
	// ProviderMeta forces the WhatsApp Cloud API sender.
	ProviderMeta = "meta"
)

// TenantMessenger routes outbound replies through the provider each tenant
// is configured for. Credentials come from tenant settings, already merged
// with process-wide defaults by the resolver.
type TenantMessenger struct {
	tenants    tenancy.Resolver
	preference string
	logger     *logging.Logger

	mu      sync.Mutex
	senders map[string]conversation.ReplyMessenger // keyed by provider+credentials
}

// NewTenantMessenger creates a resolver-backed outbound messenger.
func NewTenantMessenger(tenants tenancy.Resolver, preference string, logger *logging.Logger) *TenantMessenger {
	if tenants == nil {
		panic("messaging: tenant resolver cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	preference = strings.ToLower(strings.TrimSpace(preference))
	if preference == "" {
		preference = ProviderAuto
	}
	return &TenantMessenger{
		tenants:    tenants,
		preference: preference,
		logger:     logger,
		senders:    make(map[string]conversation.ReplyMessenger),
	}
}

var _ conversation.ReplyMessenger = (*TenantMessenger)(nil)

// SendReply resolves the tenant owning the sending number and dispatches
// through its provider.
func (m *TenantMessenger) SendReply(ctx context.Context, reply conversation.OutboundReply) error {
	settings, err := m.tenants.ResolveByNumber(ctx, reply.From)
	if err != nil {
		return fmt.Errorf("messaging: failed to resolve tenant for %s: %w", reply.From, err)
	}

	sender, provider, err := m.senderFor(settings)
	if err != nil {
		return err
	}

	if err := sender.SendReply(ctx, reply); err != nil {
		return fmt.Errorf("messaging: %s dispatch failed: %w", provider, err)
	}
	return nil
}

func (m *TenantMessenger) senderFor(settings *tenancy.Settings) (conversation.ReplyMessenger, string, error) {
	hasTwilio := settings.TwilioAccountSID != "" && settings.TwilioAuthToken != ""
	hasMeta := settings.MetaAccessToken != "" && settings.MetaPhoneNumID != ""

	provider := m.preference
	if provider == ProviderAuto {
		switch {
		case hasTwilio:
			provider = ProviderTwilio
		case hasMeta:
			provider = ProviderMeta
		default:
			return nil, "", errors.New("messaging: no provider credentials configured")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch provider {
	case ProviderTwilio:
		if !hasTwilio {
			return nil, "", errors.New("messaging: twilio credentials missing for tenant")
		}
		key := ProviderTwilio + ":" + settings.TwilioAccountSID
		if s, ok := m.senders[key]; ok {
			return s, ProviderTwilio, nil
		}
		s := NewTwilioSender(settings.TwilioAccountSID, settings.TwilioAuthToken, settings.WhatsAppNumber, m.logger)
		m.senders[key] = s
		return s, ProviderTwilio, nil

	case ProviderMeta:
		if !hasMeta {
			return nil, "", errors.New("messaging: meta credentials missing for tenant")
		}
		key := ProviderMeta + ":" + settings.MetaPhoneNumID
		if s, ok := m.senders[key]; ok {
			return s, ProviderMeta, nil
		}
		s := NewMetaSender(settings.MetaAccessToken, settings.MetaPhoneNumID, m.logger)
		m.senders[key] = s
		return s, ProviderMeta, nil

	default:
		return nil, "", fmt.Errorf("messaging: unknown provider %q", provider)
	}
}
