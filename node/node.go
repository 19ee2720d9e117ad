// Package node defines the contract every processing-graph node
// implements: pull a payload for a requested frame, and advertise what
// frames it can produce.
package node

import (
	"context"
	"errors"
	"fmt"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/reactor"
)

// ErrFallbackToCPU is returned by a GPU-backed node's constructor when
// the supplied ProcessingContext has no GPU context to build against.
// Callers that know of a CPU counterpart (graph-construction helpers,
// cmd wiring) should catch it with errors.Is and construct that
// counterpart instead of propagating the failure.
var ErrFallbackToCPU = errors.New("node: no GPU context available, falling back to CPU")

// ID identifies a node within a Graph. IDs are dense and assigned at
// graph-construction time; a node never needs to know its own ID.
type ID int

// Caps describes what a node's pull can satisfy: an optional total
// frame count (nil for streaming sources with no known end) and
// whether frames may be requested out of increasing order.
type Caps struct {
	FrameCount   *uint64
	RandomAccess bool
}

// Request is what a consumer passes to Pull: which frame to produce,
// and at what priority the producing work should be scheduled.
type Request struct {
	FrameNumber uint64
	Priority    reactor.Priority
}

// Node is implemented by every unit of computation in the graph. Pull
// may suspend arbitrarily (waiting on upstream pulls, GPU fences, or
// I/O) and must be safe to call concurrently for different frame
// numbers.
type Node interface {
	Pull(ctx context.Context, req Request) (payload.Payload, error)
	Caps() Caps
}

// InputProcessingNode is the bound reference a node holds to one of its
// upstream inputs — a thin adapter so a node's own Pull can forward a
// derived Request without knowing the upstream's concrete type.
type InputProcessingNode struct {
	Upstream Node
}

func (n InputProcessingNode) Pull(ctx context.Context, req Request) (payload.Payload, error) {
	return n.Upstream.Pull(ctx, req)
}

func (n InputProcessingNode) Caps() Caps { return n.Upstream.Caps() }

// FrameOutOfRange is returned by a source's Pull when requested exceeds
// what the source can produce.
type FrameOutOfRange struct {
	Requested uint64
	Available uint64
}

func (e *FrameOutOfRange) Error() string {
	return fmt.Sprintf("frame %d requested, only %d available", e.Requested, e.Available)
}

// AsError wraps a FrameOutOfRange as the taxonomy's *recorder.Error so
// callers branching on recorder.KindOf see a consistent Kind regardless
// of which node produced the failure.
func (e *FrameOutOfRange) AsError() error {
	return recorder.Wrap(recorder.KindFrameOutOfRange, e, "frame %d requested, only %d available", e.Requested, e.Available)
}
