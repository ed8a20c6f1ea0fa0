package conversation

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

const (
	defaultPollerCount = 2
	defaultLaneCount   = 8
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	maxWaitSeconds     = 20
	maxBatchSize       = 10
	defaultLaneBuffer  = 64
	sendTimeout        = 5 * time.Second
	deleteTimeout      = 5 * time.Second
)

// Worker consumes message jobs from the queue and drives the engine. Jobs
// are fanned out to a fixed set of lanes, hashed by phone number, so two
// messages from the same customer are always processed in arrival order and
// never race on shared conversation state. Different customers still run
// concurrently across lanes.
type Worker struct {
	processor Service
	queue     queueClient
	messenger ReplyMessenger
	archive   *MessageArchive
	logger    *logging.Logger
	metrics   *metrics.PipelineMetrics

	cfg   workerConfig
	lanes []chan laneJob
	wg    sync.WaitGroup
}

type laneJob struct {
	payload       queuePayload
	receiptHandle string
}

type workerConfig struct {
	pollers          int
	lanes            int
	receiveWaitSecs  int
	receiveBatchSize int
	dispatchDelay    time.Duration
	archive          *MessageArchive
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithPollerCount sets the number of queue polling goroutines.
func WithPollerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.pollers = count
		}
	}
}

// WithLaneCount sets how many per-phone serial lanes process jobs.
func WithLaneCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.lanes = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait for queue receives.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages each poll may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxBatchSize {
			size = maxBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithDispatchDelay inserts a pause between computing a reply and sending
// it, making automated replies feel less instantaneous. Zero disables it.
func WithDispatchDelay(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.dispatchDelay = d
		}
	}
}

// WithArchive enables durable archival of processed turns.
func WithArchive(a *MessageArchive) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.archive = a
	}
}

// NewWorker wires a queue consumer around the engine and outbound messenger.
func NewWorker(processor Service, queue queueClient, messenger ReplyMessenger, logger *logging.Logger, m *metrics.PipelineMetrics, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if messenger == nil {
		panic("conversation: messenger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		pollers:          defaultPollerCount,
		lanes:            defaultLaneCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		messenger: messenger,
		archive:   cfg.archive,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
	}
}

// Start launches the lane processors and queue pollers. It returns
// immediately; cancel ctx to stop, then use Wait for drain.
func (w *Worker) Start(ctx context.Context) {
	w.lanes = make([]chan laneJob, w.cfg.lanes)
	for i := range w.lanes {
		lane := make(chan laneJob, defaultLaneBuffer)
		w.lanes[i] = lane
		w.wg.Add(1)
		go w.runLane(ctx, lane)
	}

	for i := 0; i < w.cfg.pollers; i++ {
		w.wg.Add(1)
		go w.poll(ctx)
	}

	w.logger.Info("conversation worker started",
		"pollers", w.cfg.pollers,
		"lanes", w.cfg.lanes,
		"dispatch_delay", w.cfg.dispatchDelay.String(),
	)
}

// Wait blocks until all pollers and lanes have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) poll(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range messages {
			payload, err := decodePayload(msg.Body)
			if err != nil {
				// Poison message: log and delete so it does not loop forever.
				w.logger.Error("dropping undecodable job", "error", err, "message_id", msg.ID)
				w.deleteMessage(msg.ReceiptHandle)
				continue
			}
			if payload.Kind != jobTypeMessage {
				w.logger.Warn("dropping job of unknown kind", "kind", string(payload.Kind), "job_id", payload.ID)
				w.deleteMessage(msg.ReceiptHandle)
				continue
			}

			job := laneJob{payload: payload, receiptHandle: msg.ReceiptHandle}
			select {
			case w.laneFor(payload.Message.From) <- job:
			case <-ctx.Done():
				return
			}
		}
	}
}

// laneFor hashes the customer phone number onto a lane. The same phone
// always lands on the same lane, which is what serializes it.
func (w *Worker) laneFor(phone string) chan laneJob {
	h := fnv.New32a()
	h.Write([]byte(phone))
	return w.lanes[int(h.Sum32())%len(w.lanes)]
}

func (w *Worker) runLane(ctx context.Context, lane chan laneJob) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-lane:
			w.handleJob(ctx, job)
		}
	}
}

func (w *Worker) handleJob(ctx context.Context, job laneJob) {
	req := job.payload.Message

	resp, err := w.processor.ProcessMessage(ctx, req)
	if err != nil {
		w.logger.Error("failed to process message",
			"error", err,
			"job_id", job.payload.ID,
			"from", req.From,
		)
		w.metrics.ObserveInbound(req.Provider, "error")
		// Unprocessable jobs (unknown tenant, bad payload) will not improve
		// on redelivery.
		w.deleteMessage(job.receiptHandle)
		return
	}
	w.metrics.ObserveInbound(req.Provider, "ok")
	w.archiveTurns(ctx, req, resp)

	if w.cfg.dispatchDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(w.cfg.dispatchDelay):
		}
	}

	w.dispatchReply(ctx, req, resp)
	w.deleteMessage(job.receiptHandle)
}

// dispatchReply pushes the engine's reply back to the customer. Send
// failures are logged and absorbed; the reply is already part of the
// conversation history and the pipeline must not crash on provider errors.
func (w *Worker) dispatchReply(ctx context.Context, req MessageRequest, resp *Response) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := w.messenger.SendReply(sendCtx, OutboundReply{
		OrgID:    req.OrgID,
		To:       req.From,
		From:     req.To,
		Body:     resp.Message,
		Metadata: req.Metadata,
	})
	if err != nil {
		w.logger.Error("failed to send reply",
			"error", err,
			"to", req.From,
			"strategy", resp.Strategy,
		)
		w.metrics.ObserveOutbound(req.Provider, "error")
		return
	}
	w.metrics.ObserveOutbound(req.Provider, "ok")
}

// archiveTurns records both sides of the exchange. Archive failures are
// logged and absorbed; archival never blocks the reply.
func (w *Worker) archiveTurns(ctx context.Context, req MessageRequest, resp *Response) {
	if w.archive == nil {
		return
	}
	in := ArchiveEntry{
		OrgID:    req.OrgID,
		Phone:    req.From,
		Role:     ChatRoleUser,
		Body:     req.Message,
		Provider: req.Provider,
	}
	if err := w.archive.Record(ctx, in); err != nil {
		w.logger.Error("failed to archive inbound turn", "error", err, "from", req.From)
	}
	out := ArchiveEntry{
		OrgID:    req.OrgID,
		Phone:    req.From,
		Role:     ChatRoleAssistant,
		Body:     resp.Message,
		Strategy: resp.Strategy,
		Provider: req.Provider,
	}
	if err := w.archive.Record(ctx, out); err != nil {
		w.logger.Error("failed to archive outbound turn", "error", err, "from", req.From)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete queue message", "error", err)
	}
}
