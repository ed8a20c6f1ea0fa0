package conversation

import (
	"context"
	"fmt"

	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous processing. Webhook
// handlers call it, ack the provider, and move on.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueMessage publishes a ProcessMessage job.
func (p *Publisher) EnqueueMessage(ctx context.Context, req MessageRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(queuePayload{
		Kind:    jobTypeMessage,
		Message: req,
	})
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue message: %w", err)
	}

	p.logger.Debug("message job enqueued", "job_id", payload.ID, "from", req.From)
	return nil
}
