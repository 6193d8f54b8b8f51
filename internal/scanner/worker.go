package scanner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/idcheck/mrzscan/pkg/logger"
)

// Handler receives scan results. Handlers run on the worker's delivery
// goroutine, one at a time, in the order results were produced.
type Handler func(ScanResult)

// Stats counts frames seen by a FrameWorker.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Dropped   uint64 `json:"dropped"`
	Processed uint64 `json:"processed"`
	Results   uint64 `json:"results"`
}

// FrameWorker processes frames one at a time on a single goroutine. A frame
// submitted while the worker is busy is dropped, never queued, so the worker
// always reads the most recent frame the camera offers once it is free.
type FrameWorker struct {
	processor FrameProcessor
	handler   Handler
	log       *logger.Logger

	frames  chan Frame
	results chan ScanResult

	submitted atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	delivered atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewFrameWorker creates a worker. Call Start before submitting frames.
func NewFrameWorker(processor FrameProcessor, handler Handler, log *logger.Logger) *FrameWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &FrameWorker{
		processor: processor,
		handler:   handler,
		log:       log.WithComponent("frame_worker"),
		frames:    make(chan Frame),
		results:   make(chan ScanResult, 1),
		cancel:    func() {},
	}
}

// Start launches the processing and delivery goroutines. They run until ctx
// is cancelled or Stop is called.
func (w *FrameWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		w.cancel = cancel

		w.wg.Add(2)
		go w.process(ctx)
		go w.deliver()
	})
}

// Submit offers a frame to the worker. It returns false and counts the frame
// as dropped when the worker is busy or not running.
func (w *FrameWorker) Submit(frame Frame) bool {
	w.submitted.Add(1)
	select {
	case w.frames <- frame:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Stop cancels processing and waits for both goroutines to exit. Results
// already queued for delivery are still handed to the handler.
func (w *FrameWorker) Stop() {
	w.stopOnce.Do(func() {
		w.startOnce.Do(func() {
			// never started: make sure Start stays a no-op
			close(w.results)
		})
		w.cancel()
	})
	w.wg.Wait()
}

// Stats returns a snapshot of the worker counters.
func (w *FrameWorker) Stats() Stats {
	return Stats{
		Submitted: w.submitted.Load(),
		Dropped:   w.dropped.Load(),
		Processed: w.processed.Load(),
		Results:   w.delivered.Load(),
	}
}

func (w *FrameWorker) process(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.results)

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-w.frames:
			result, ok := w.processor.ProcessFrame(ctx, frame)
			w.processed.Add(1)
			if !ok {
				continue
			}
			select {
			case w.results <- *result:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *FrameWorker) deliver() {
	defer w.wg.Done()

	for result := range w.results {
		w.delivered.Add(1)
		w.handler(result)
	}
	w.log.Debug().
		Uint64("processed", w.processed.Load()).
		Uint64("dropped", w.dropped.Load()).
		Msg("frame worker stopped")
}
