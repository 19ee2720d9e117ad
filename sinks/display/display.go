// Package display implements the bounded, backpressured channel a
// render thread drains to present frames — the window/swapchain/event
// loop itself is an injected Renderer, since opening a real OS window
// has no place in a headless pipeline test.
package display

import (
	"context"
	"errors"
	"sync"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
)

// channelCapacity is the bounded channel's fixed size. Sink never
// builds a channel of any other size.
const channelCapacity = 10

// ErrClosed is returned by Pull once the render thread has exited (the
// window closed, or Close was called) — the puller driving this sink
// should treat it as graceful completion, not a failure to report.
var ErrClosed = errors.New("display: render thread has exited")

// Renderer owns the window, swapchain, and GPU upload/draw calls a real
// display would need. Sink only drives Renderer's lifecycle; it knows
// nothing about windowing itself.
type Renderer interface {
	// Present uploads and draws one frame. Returning ErrWindowClosed
	// tells the render loop to stop accepting further frames.
	Present(f *frame.Frame[*buffer.HostBuffer]) error
	Close()
}

// ErrWindowClosed is the sentinel a Renderer returns from Present to
// signal the window itself was closed (as opposed to a draw failure).
var ErrWindowClosed = errors.New("display: window closed")

// Sink is the terminal node of a graph: every Pull forwards its
// upstream's frame to the render thread and returns an empty payload.
type Sink struct {
	input    node.InputProcessingNode
	context  *processingcontext.ProcessingContext
	frameCh  chan *frame.Frame[*buffer.HostBuffer]
	closed   chan struct{}
	closeMu  sync.Mutex
	closedOk bool // set once Close has run, so repeated Close calls are no-ops
	wg       sync.WaitGroup
	blocking bool
	mailbox  bool
}

// Describe is the declarative parameter schema display.New validates
// against: "mailbox" and "blocking" both default when omitted.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "input", Type: params.TypeDescriptor{Kind: params.NodeInput(), Requiredness: params.Mandatory}},
		{Name: "mailbox", Type: params.TypeDescriptor{Kind: params.Bool(), Requiredness: params.WithDefault, Default: false}},
		{Name: "blocking", Type: params.TypeDescriptor{Kind: params.Bool(), Requiredness: params.WithDefault, Default: true}},
	}
}

// New starts the render thread against renderer and returns a Sink
// ready to accept Pulls. renderer is typically a real windowing
// implementation in production and a recording fake in tests.
func New(pc *processingcontext.ProcessingContext, p *params.Parameters, renderer Renderer) (*Sink, error) {
	input, err := p.NodeInputOf("input")
	if err != nil {
		return nil, err
	}
	mailbox, err := params.Take[bool](p, "mailbox", false, false)
	if err != nil {
		return nil, err
	}
	blocking, err := params.Take[bool](p, "blocking", true, false)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		input:    input,
		context:  pc,
		frameCh:  make(chan *frame.Frame[*buffer.HostBuffer], channelCapacity),
		closed:   make(chan struct{}),
		blocking: blocking,
		mailbox:  mailbox,
	}
	s.wg.Add(1)
	go s.renderLoop(renderer)
	return s, nil
}

func (s *Sink) renderLoop(renderer Renderer) {
	defer s.wg.Done()
	defer close(s.closed)
	for {
		next, ok := <-s.frameCh
		if !ok || next == nil {
			renderer.Close()
			return
		}
		if s.mailbox {
			next = s.drainToLatest(next)
			if next == nil {
				renderer.Close()
				return
			}
		}
		if err := renderer.Present(next); err != nil {
			renderer.Close()
			return
		}
	}
}

// drainToLatest consumes any frames already queued behind first without
// blocking, returning the most recently queued one (mailbox semantics:
// the render thread always shows the newest frame, never backs up). A
// nil sentinel seen mid-drain is reported by returning nil.
func (s *Sink) drainToLatest(first *frame.Frame[*buffer.HostBuffer]) *frame.Frame[*buffer.HostBuffer] {
	latest := first
	for {
		select {
		case next, ok := <-s.frameCh:
			if !ok || next == nil {
				return nil
			}
			latest = next
		default:
			return latest
		}
	}
}

func (s *Sink) Caps() node.Caps { return s.input.Caps() }

func (s *Sink) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	upstream, err := s.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	hostFrame, err := s.context.EnsureHostFrame(upstream)
	if err != nil {
		return payload.Payload{}, err
	}

	select {
	case <-s.closed:
		return payload.Payload{}, recorder.Wrap(recorder.KindCancelled, ErrClosed, "display sink")
	default:
	}

	if s.blocking {
		select {
		case s.frameCh <- hostFrame:
			return payload.Empty(), nil
		case <-s.closed:
			return payload.Payload{}, recorder.Wrap(recorder.KindCancelled, ErrClosed, "display sink")
		case <-ctx.Done():
			return payload.Payload{}, ctx.Err()
		}
	}

	select {
	case s.frameCh <- hostFrame:
		return payload.Empty(), nil
	case <-s.closed:
		return payload.Payload{}, recorder.Wrap(recorder.KindCancelled, ErrClosed, "display sink")
	default:
		// Channel full: non-blocking mode drops the newest frame and
		// reports success, exactly as a live display tolerates frame
		// drops over backpressure.
		return payload.Empty(), nil
	}
}

// Close posts the sentinel and joins the render thread — the drop
// handshake every producer performs exactly once at shutdown.
func (s *Sink) Close() {
	s.closeMu.Lock()
	if s.closedOk {
		s.closeMu.Unlock()
		return
	}
	s.closedOk = true
	s.closeMu.Unlock()

	select {
	case s.frameCh <- nil:
	case <-s.closed:
	}
	s.wg.Wait()
}
