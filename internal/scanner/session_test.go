package scanner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idcheck/mrzscan/internal/mrz"
)

// scriptedProcessor returns the scripted validity for each frame in turn.
type scriptedProcessor struct {
	valid []bool
	calls atomic.Int32
}

func (p *scriptedProcessor) ProcessFrame(_ context.Context, f Frame) (*ScanResult, bool) {
	i := int(p.calls.Add(1)) - 1
	if i >= len(p.valid) {
		return nil, false
	}
	return &ScanResult{Seq: f.Seq, MRZ: mrz.Result{Format: mrz.TD1, AllCheckDigitsValid: p.valid[i]}}, true
}

func feed(t *testing.T, s *Session, n int) {
	t.Helper()
	for seq := uint64(1); seq <= uint64(n); seq++ {
		select {
		case <-s.Done():
			return
		default:
		}
		deadline := time.Now().Add(time.Second)
		for !s.Submit(Frame{Seq: seq}) {
			select {
			case <-s.Done():
				return
			default:
			}
			require.True(t, time.Now().Before(deadline), "frame %d never accepted", seq)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSession_FullyValidPolicy(t *testing.T) {
	proc := &scriptedProcessor{valid: []bool{false, false, true, true}}

	var calls atomic.Int32
	var accepted ScanResult
	s := NewSession(proc, AcceptFullyValid, func(r ScanResult) {
		calls.Add(1)
		accepted = r
	}, nil)
	s.Start(context.Background())
	defer s.Stop()

	feed(t, s, 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), res.Seq)
	assert.True(t, res.MRZ.AllCheckDigitsValid)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, res, accepted)
	assert.False(t, s.Submit(Frame{Seq: 99}), "no frames after acceptance")
}

func TestSession_PartiallyValidPolicy(t *testing.T) {
	proc := &scriptedProcessor{valid: []bool{false, true}}
	s := NewSession(proc, AcceptPartiallyValid, nil, nil)
	s.Start(context.Background())
	defer s.Stop()

	feed(t, s, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Seq)
	assert.False(t, res.MRZ.AllCheckDigitsValid)
}

func TestSession_WaitHonoursContext(t *testing.T) {
	s := NewSession(&scriptedProcessor{}, AcceptFullyValid, nil, nil)
	s.Start(context.Background())
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseAcceptPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    AcceptPolicy
		wantErr bool
	}{
		{"fully_valid", AcceptFullyValid, false},
		{"", AcceptFullyValid, false},
		{" Partially_Valid ", AcceptPartiallyValid, false},
		{"sometimes", AcceptFullyValid, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAcceptPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) AcceptPolicy {
	t.Helper()
	p, err := ParseAcceptPolicy(s)
	require.NoError(t, err)
	return p
}
