package conversation

import (
	"context"
	"time"
)

// Service describes how the conversation engine should behave.
type Service interface {
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
}

// Reply strategies, in the order the engine considers them.
const (
	StrategyChangeRequest = "change_request"
	StrategyBookingFlow   = "booking_flow"
	StrategyRedirect      = "redirect"
	StrategyBypass        = "bypass"
	StrategyNoAI          = "no_ai_credentials"
	StrategyAI            = "ai"
)

// MessageRequest represents a single inbound WhatsApp message.
type MessageRequest struct {
	OrgID    string            `json:"org_id"`
	Message  string            `json:"message"`
	From     string            `json:"from"` // customer number, normalized E.164
	To       string            `json:"to"`   // tenant WhatsApp number
	Provider string            `json:"provider,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response is what the engine hands back to the worker: exactly one reply
// per inbound message.
type Response struct {
	Message   string    `json:"message"`
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplyMessenger delivers replies back to the customer over WhatsApp.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply carries the data required to push a message to the customer.
type OutboundReply struct {
	OrgID    string
	To       string
	From     string
	Body     string
	Metadata map[string]string
}
