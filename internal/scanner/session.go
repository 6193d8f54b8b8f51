package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/idcheck/mrzscan/internal/mrz"
	"github.com/idcheck/mrzscan/pkg/logger"
)

// AcceptPolicy decides which decoded MRZs end a scanning session.
type AcceptPolicy int

const (
	// AcceptFullyValid accepts only results whose check digits all match.
	AcceptFullyValid AcceptPolicy = iota
	// AcceptPartiallyValid accepts any structurally valid MRZ, whatever
	// its check digits say.
	AcceptPartiallyValid
)

// ParseAcceptPolicy parses "fully_valid" or "partially_valid".
func ParseAcceptPolicy(s string) (AcceptPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fully_valid":
		return AcceptFullyValid, nil
	case "partially_valid":
		return AcceptPartiallyValid, nil
	default:
		return AcceptFullyValid, fmt.Errorf("unknown accept policy %q", s)
	}
}

func (p AcceptPolicy) String() string {
	if p == AcceptPartiallyValid {
		return "partially_valid"
	}
	return "fully_valid"
}

// Accepts reports whether r satisfies the policy.
func (p AcceptPolicy) Accepts(r mrz.Result) bool {
	if p == AcceptPartiallyValid {
		return true
	}
	return r.AllCheckDigitsValid
}

// Session drives a FrameWorker until the first acceptable scan. The callback
// runs exactly once, with that scan, on the worker's delivery goroutine.
// After acceptance further frames are refused and the worker is stopped.
type Session struct {
	worker *FrameWorker
	policy AcceptPolicy
	onScan Handler
	log    *logger.Logger

	accepted atomic.Bool
	once     sync.Once
	done     chan struct{}
	result   ScanResult
	cancel   context.CancelFunc
}

// NewSession creates a session around processor. onScan may be nil when the
// caller only waits on Done or Wait.
func NewSession(processor FrameProcessor, policy AcceptPolicy, onScan Handler, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	s := &Session{
		policy: policy,
		onScan: onScan,
		log:    log.WithComponent("scan_session"),
		done:   make(chan struct{}),
		cancel: func() {},
	}
	s.worker = NewFrameWorker(processor, s.handle, log)
	return s
}

// Start begins processing submitted frames.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.worker.Start(ctx)
}

// Submit offers a frame. It returns false once a scan has been accepted or
// while the worker is busy.
func (s *Session) Submit(frame Frame) bool {
	if s.accepted.Load() {
		return false
	}
	return s.worker.Submit(frame)
}

// Done is closed when a scan has been accepted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until a scan is accepted or ctx ends.
func (s *Session) Wait(ctx context.Context) (ScanResult, error) {
	select {
	case <-s.done:
		return s.result, nil
	case <-ctx.Done():
		return ScanResult{}, ctx.Err()
	}
}

// Stop ends the session and waits for the worker to exit.
func (s *Session) Stop() {
	s.cancel()
	s.worker.Stop()
}

// Stats returns the underlying worker counters.
func (s *Session) Stats() Stats {
	return s.worker.Stats()
}

func (s *Session) handle(r ScanResult) {
	if !s.policy.Accepts(r.MRZ) {
		s.log.Debug().
			Uint64("frame", r.Seq).
			Stringer("format", r.MRZ.Format).
			Msg("scan rejected by accept policy")
		return
	}

	s.once.Do(func() {
		s.accepted.Store(true)
		s.result = r
		s.cancel()

		s.log.Info().
			Uint64("frame", r.Seq).
			Stringer("format", r.MRZ.Format).
			Bool("valid", r.MRZ.AllCheckDigitsValid).
			Msg("scan accepted")

		if s.onScan != nil {
			s.onScan(r)
		}
		close(s.done)
	})
}
