package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/payload"
)

type countingSink struct {
	frameCount  uint64
	inFlight    int32
	maxInFlight int32
	failAt      uint64 // frame number to fail, or no failure if absent
	totalCalls  int32
}

func (s *countingSink) Caps() node.Caps {
	n := s.frameCount
	return node.Caps{FrameCount: &n, RandomAccess: true}
}

func (s *countingSink) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	atomic.AddInt32(&s.totalCalls, 1)
	cur := atomic.AddInt32(&s.inFlight, 1)
	for {
		max := atomic.LoadInt32(&s.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&s.maxInFlight, max, cur) {
			break
		}
	}
	defer atomic.AddInt32(&s.inFlight, -1)

	if s.failAt != 0 && req.FrameNumber == s.failAt {
		return payload.Payload{}, &node.FrameOutOfRange{Requested: req.FrameNumber, Available: s.frameCount}
	}
	return payload.Of(req.FrameNumber), nil
}

func TestPullerVisitsEveryFrame(t *testing.T) {
	sink := &countingSink{frameCount: 20}
	var mu sync.Mutex
	seen := map[uint64]bool{}
	p := &Puller{Sink: sink, InFlight: 4, OnFrame: func(r FrameResult) {
		mu.Lock()
		seen[r.FrameNumber] = true
		mu.Unlock()
	}}

	if err := p.Run(context.Background(), 0, false); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(seen) != 20 {
		t.Fatalf("saw %d distinct frames, want 20", len(seen))
	}
}

func TestPullerRespectsInFlightWindow(t *testing.T) {
	sink := &countingSink{frameCount: 50}
	p := &Puller{Sink: sink, InFlight: 3}

	if err := p.Run(context.Background(), 0, false); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sink.maxInFlight > 3 {
		t.Fatalf("observed maxInFlight=%d, want <= 3", sink.maxInFlight)
	}
}

func TestPullerHaltOnErrorStopsIssuingNewFrames(t *testing.T) {
	sink := &countingSink{frameCount: 1000, failAt: 3}
	var mu sync.Mutex
	maxSeen := uint64(0)
	p := &Puller{Sink: sink, InFlight: 2, OnFrame: func(r FrameResult) {
		mu.Lock()
		if r.FrameNumber > maxSeen {
			maxSeen = r.FrameNumber
		}
		mu.Unlock()
	}}

	err := p.Run(context.Background(), 0, true)
	if err == nil {
		t.Fatal("expected an error from the failing frame")
	}
	if sink.totalCalls > 50 {
		t.Fatalf("puller issued %d pulls after a halting error, want it to stop well short of the 1000-frame source", sink.totalCalls)
	}
}
