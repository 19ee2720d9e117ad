// Package tcpsource reads a sequence of raw, bit-packed frames from a
// TCP connection: one read_exact-sized chunk per pulled frame, in
// strict arrival order.
package tcpsource

import (
	"context"
	"io"
	"net"
	"sync"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
)

// Node streams a raw video feed off a single TCP connection. The
// connection carries no framing of its own: Pull always reads exactly
// width*height*bitDepth/8 bytes, so the peer must send frames
// back-to-back with no gaps or delimiters.
//
// Unlike the other sources, tcpsource has no random access and no known
// frame count — it only makes sense pulled in strictly increasing
// order, matching the single TCP stream it reads from.
type Node struct {
	conn      net.Conn
	mu        sync.Mutex
	width     uint64
	height    uint64
	bitDepth  uint64
	frameSize int
}

// Describe is the declarative parameter schema tcpsource.New validates
// against.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "address", Type: params.TypeDescriptor{Kind: params.String(), Requiredness: params.Mandatory}},
		{Name: "width", Type: params.TypeDescriptor{Kind: params.Int(0, 1<<32 - 1), Requiredness: params.Mandatory}},
		{Name: "height", Type: params.TypeDescriptor{Kind: params.Int(0, 1<<32 - 1), Requiredness: params.Mandatory}},
		{Name: "bit-depth", Type: params.TypeDescriptor{Kind: params.Int(8, 16), Requiredness: params.Mandatory}},
	}
}

// New dials "address" once at construction time; every subsequent Pull
// reads from the same connection.
func New(p *params.Parameters) (*Node, error) {
	address, err := params.Take[string](p, "address", "", true)
	if err != nil {
		return nil, err
	}
	width, err := params.Take[int64](p, "width", 0, true)
	if err != nil {
		return nil, err
	}
	height, err := params.Take[int64](p, "height", 0, true)
	if err != nil {
		return nil, err
	}
	bitDepth, err := params.Take[int64](p, "bit-depth", 0, true)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, recorder.Wrap(recorder.KindIO, err, "connecting to %q", address)
	}

	frameSize := int((uint64(width) * uint64(height) * uint64(bitDepth)) / 8)
	return &Node{
		conn:      conn,
		width:     uint64(width),
		height:    uint64(height),
		bitDepth:  uint64(bitDepth),
		frameSize: frameSize,
	}, nil
}

func (n *Node) Caps() node.Caps { return node.Caps{RandomAccess: false} }

func (n *Node) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	buf := buffer.NewHeapHostBuffer(n.frameSize)
	var readErr error

	n.mu.Lock()
	buf.AsMutSlice(func(dst []byte) {
		_, readErr = io.ReadFull(n.conn, dst)
	})
	n.mu.Unlock()
	if readErr != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindIO, readErr, "reading frame %d from tcp source", req.FrameNumber)
	}

	interpretation := frame.Interpretation{
		Width:                n.width,
		Height:               n.height,
		ColorInterpretation:  frame.Mono,
		SampleInterpretation: frame.UInt(uint8(n.bitDepth)),
		Compression:          frame.Uncompressed,
	}
	outFrame, ok := frame.New(buf, interpretation)
	if !ok {
		return payload.Payload{}, recorder.New(recorder.KindInternal, "tcpsource: frame buffer length does not match interpretation")
	}
	return payload.Of(&outFrame), nil
}

// Close releases the underlying TCP connection.
func (n *Node) Close() error { return n.conn.Close() }
