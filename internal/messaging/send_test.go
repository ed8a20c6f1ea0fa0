package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

func TestTwilioSenderSendsWhatsAppForm(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		gotForm = map[string]string{
			"To":   r.PostFormValue("To"),
			"From": r.PostFormValue("From"),
			"Body": r.PostFormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM999","status":"queued"}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC123", "token", "+255700000100", logging.Default())
	sender.baseURL = server.URL

	metadata := map[string]string{}
	err := sender.SendReply(context.Background(), conversation.OutboundReply{
		OrgID:    "org-1",
		To:       "+255711111111",
		Body:     "Karibu!",
		Metadata: metadata,
	})
	require.NoError(t, err)

	assert.Equal(t, "whatsapp:+255711111111", gotForm["To"])
	assert.Equal(t, "whatsapp:+255700000100", gotForm["From"], "default from applied")
	assert.Equal(t, "Karibu!", gotForm["Body"])
	assert.Equal(t, "SM999", metadata["provider_message_id"])
}

func TestTwilioSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' number"}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC123", "token", "+255700000100", logging.Default())
	sender.baseURL = server.URL

	err := sender.SendReply(context.Background(), conversation.OutboundReply{
		To:   "+255711111111",
		Body: "hello",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTwilioSenderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC123", "token", "+255700000100", logging.Default())
	sender.baseURL = server.URL

	err := sender.SendReply(context.Background(), conversation.OutboundReply{
		To:   "+255711111111",
		Body: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTwilioSenderValidatesInput(t *testing.T) {
	sender := NewTwilioSender("AC123", "token", "", logging.Default())

	err := sender.SendReply(context.Background(), conversation.OutboundReply{Body: "hi"})
	assert.Error(t, err, "missing to")

	err = sender.SendReply(context.Background(), conversation.OutboundReply{To: "+255711111111"})
	assert.Error(t, err, "missing body")

	err = sender.SendReply(context.Background(), conversation.OutboundReply{To: "+255711111111", Body: "hi"})
	assert.Error(t, err, "missing from with no default")
}

func TestMetaSenderSendsCloudAPIPayload(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotPayload metaTextMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.X"}]}`))
	}))
	defer server.Close()

	sender := NewMetaSender("meta-token", "PN1", logging.Default())
	sender.baseURL = server.URL

	metadata := map[string]string{}
	err := sender.SendReply(context.Background(), conversation.OutboundReply{
		OrgID:    "org-1",
		To:       "+255711111111",
		Body:     "Karibu!",
		Metadata: metadata,
	})
	require.NoError(t, err)

	assert.Equal(t, "/PN1/messages", gotPath)
	assert.Equal(t, "Bearer meta-token", gotAuth)
	assert.Equal(t, "whatsapp", gotPayload.MessagingProduct)
	assert.Equal(t, "255711111111", gotPayload.To, "cloud api numbers have no plus")
	assert.Equal(t, "Karibu!", gotPayload.Text.Body)
	assert.Equal(t, "wamid.X", metadata["provider_message_id"])
}

func TestTenantMessengerPicksProviderByCredentials(t *testing.T) {
	twilioHits := 0
	twilioServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		twilioHits++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer twilioServer.Close()

	resolver := tenancy.NewStaticResolver([]*tenancy.Settings{
		{
			OrgID:            "org-1",
			WhatsAppNumber:   "+255700000100",
			TwilioAccountSID: "AC123",
			TwilioAuthToken:  "token",
		},
	}, tenancy.Defaults{})

	messenger := NewTenantMessenger(resolver, ProviderAuto, logging.Default())

	// Reach inside to point the cached sender at the test server.
	settings, err := resolver.ResolveByNumber(context.Background(), "+255700000100")
	require.NoError(t, err)
	sender, provider, err := messenger.senderFor(settings)
	require.NoError(t, err)
	assert.Equal(t, ProviderTwilio, provider)
	sender.(*TwilioSender).baseURL = twilioServer.URL

	err = messenger.SendReply(context.Background(), conversation.OutboundReply{
		From: "+255700000100",
		To:   "+255711111111",
		Body: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, twilioHits)
}

func TestTenantMessengerNoCredentials(t *testing.T) {
	resolver := tenancy.NewStaticResolver([]*tenancy.Settings{
		{OrgID: "org-1", WhatsAppNumber: "+255700000100"},
	}, tenancy.Defaults{})

	messenger := NewTenantMessenger(resolver, ProviderAuto, logging.Default())
	err := messenger.SendReply(context.Background(), conversation.OutboundReply{
		From: "+255700000100",
		To:   "+255711111111",
		Body: "hello",
	})
	assert.Error(t, err)
}
