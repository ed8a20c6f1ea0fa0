package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

type recordingProcessor struct {
	mu       sync.Mutex
	requests []MessageRequest
	delay    time.Duration
	err      error
}

func (p *recordingProcessor) ProcessMessage(_ context.Context, req MessageRequest) (*Response, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &Response{Message: "reply to " + req.Message, Strategy: StrategyAI, Timestamp: time.Now()}, nil
}

func (p *recordingProcessor) seen() []MessageRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MessageRequest(nil), p.requests...)
}

type recordingMessenger struct {
	mu      sync.Mutex
	replies []OutboundReply
	done    chan struct{}
	want    int
}

func newRecordingMessenger(want int) *recordingMessenger {
	return &recordingMessenger{done: make(chan struct{}), want: want}
}

func (m *recordingMessenger) SendReply(_ context.Context, reply OutboundReply) error {
	m.mu.Lock()
	m.replies = append(m.replies, reply)
	if len(m.replies) == m.want {
		close(m.done)
	}
	m.mu.Unlock()
	return nil
}

func (m *recordingMessenger) sent() []OutboundReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboundReply(nil), m.replies...)
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker")
	}
}

func testMetrics() *metrics.PipelineMetrics {
	return metrics.NewPipelineMetrics(prometheus.NewRegistry())
}

func TestWorkerProcessesAndReplies(t *testing.T) {
	queue := NewMemoryQueue(16)
	processor := &recordingProcessor{}
	messenger := newRecordingMessenger(1)

	worker := NewWorker(processor, queue, messenger, logging.Default(), testMetrics(),
		WithPollerCount(1), WithLaneCount(2), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, logging.Default())
	require.NoError(t, publisher.EnqueueMessage(ctx, MessageRequest{
		OrgID:   "org-1",
		Message: "hello",
		From:    "+255711111111",
		To:      "+255700000100",
	}))

	waitFor(t, messenger.done)
	cancel()
	worker.Wait()

	replies := messenger.sent()
	require.Len(t, replies, 1)
	assert.Equal(t, "+255711111111", replies[0].To)
	assert.Equal(t, "+255700000100", replies[0].From)
	assert.Equal(t, "reply to hello", replies[0].Body)
}

func TestWorkerSerializesSamePhone(t *testing.T) {
	queue := NewMemoryQueue(16)
	processor := &recordingProcessor{delay: 20 * time.Millisecond}
	messenger := newRecordingMessenger(3)

	// Many pollers and lanes: ordering must still hold for one phone.
	worker := NewWorker(processor, queue, messenger, logging.Default(), testMetrics(),
		WithPollerCount(1), WithLaneCount(8), WithReceiveWaitSeconds(1), WithReceiveBatchSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, logging.Default())
	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, publisher.EnqueueMessage(ctx, MessageRequest{
			OrgID:   "org-1",
			Message: text,
			From:    "+255711111111",
			To:      "+255700000100",
		}))
	}

	waitFor(t, messenger.done)
	cancel()
	worker.Wait()

	var bodies []string
	for _, req := range processor.seen() {
		bodies = append(bodies, req.Message)
	}
	assert.Equal(t, []string{"first", "second", "third"}, bodies, "same phone processes in arrival order")
}

func TestWorkerAbsorbsProcessorErrors(t *testing.T) {
	queue := NewMemoryQueue(16)
	processor := &recordingProcessor{err: assert.AnError}
	messenger := newRecordingMessenger(99)

	worker := NewWorker(processor, queue, messenger, logging.Default(), testMetrics(),
		WithPollerCount(1), WithLaneCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, logging.Default())
	require.NoError(t, publisher.EnqueueMessage(ctx, MessageRequest{
		OrgID:   "org-1",
		Message: "boom",
		From:    "+255711111111",
		To:      "+255700000100",
	}))

	// Give the worker a moment to consume, then confirm no reply went out.
	time.Sleep(200 * time.Millisecond)
	cancel()
	worker.Wait()

	assert.Empty(t, messenger.sent(), "failed jobs send nothing")
	assert.Len(t, processor.seen(), 1)
}

func TestWorkerDropsUndecodableJobs(t *testing.T) {
	queue := NewMemoryQueue(16)
	processor := &recordingProcessor{}
	messenger := newRecordingMessenger(99)

	worker := NewWorker(processor, queue, messenger, logging.Default(), testMetrics(),
		WithPollerCount(1), WithLaneCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	require.NoError(t, queue.Send(ctx, "{not json"))

	time.Sleep(200 * time.Millisecond)
	cancel()
	worker.Wait()

	assert.Empty(t, processor.seen())
}

func TestWorkerDispatchDelay(t *testing.T) {
	queue := NewMemoryQueue(16)
	processor := &recordingProcessor{}
	messenger := newRecordingMessenger(1)

	worker := NewWorker(processor, queue, messenger, logging.Default(), testMetrics(),
		WithPollerCount(1), WithLaneCount(1), WithReceiveWaitSeconds(1),
		WithDispatchDelay(150*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	started := time.Now()
	publisher := NewPublisher(queue, logging.Default())
	require.NoError(t, publisher.EnqueueMessage(ctx, MessageRequest{
		OrgID:   "org-1",
		Message: "hello",
		From:    "+255711111111",
		To:      "+255700000100",
	}))

	waitFor(t, messenger.done)
	assert.GreaterOrEqual(t, time.Since(started), 150*time.Millisecond)

	cancel()
	worker.Wait()
}
