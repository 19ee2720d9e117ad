package display

import (
	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SurfaceRenderer is the production Renderer: it owns a hal.Surface
// created from caller-supplied platform window handles and uploads each
// frame's bytes directly into the acquired surface texture as an
// R8Unorm image, reconfiguring the surface the first time Present sees
// a frame whose dimensions differ from the current configuration.
//
// This implementation has no vertex/fragment shading stage — it treats
// the frame's bytes as already being a displayable single-channel
// image, rather than drawing a shaded full-screen triangle strip. A
// color-managed preview would add a render pipeline on top of this, out
// of scope for the node graph this package otherwise exercises.
type SurfaceRenderer struct {
	context     *gpu.Context
	surface     hal.Surface
	fence       hal.Fence
	configured  bool
	width       uint32
	height      uint32
	presentMode gputypes.PresentMode
}

// NewSurfaceRenderer wraps a hal.Surface the caller already created
// (via its own windowing toolkit's display/window handles and
// hal.Instance.CreateSurface — the gpu.Provider this package's Context
// is built from deliberately does not expose an Instance, since it
// receives rather than creates its device) and returns a Renderer ready
// to hand to display.New.
func NewSurfaceRenderer(gpuCtx *gpu.Context, surface hal.Surface, mailbox bool) (*SurfaceRenderer, error) {
	fence, err := gpuCtx.Device.CreateFence()
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "creating surface acquire fence")
	}

	presentMode := gputypes.PresentModeFifo
	if mailbox {
		presentMode = gputypes.PresentModeMailbox
	}
	return &SurfaceRenderer{context: gpuCtx, surface: surface, fence: fence, presentMode: presentMode}, nil
}

func (r *SurfaceRenderer) configure(width, height uint32) error {
	config := &hal.SurfaceConfiguration{
		Width:       width,
		Height:      height,
		Format:      gputypes.TextureFormatR8Unorm,
		Usage:       gputypes.TextureUsageCopyDst,
		PresentMode: r.presentMode,
	}
	if err := r.surface.Configure(r.context.Device, config); err != nil {
		return recorder.Wrap(recorder.KindGpuFailure, err, "configuring display surface for %dx%d", width, height)
	}
	r.width, r.height = width, height
	r.configured = true
	return nil
}

// Present uploads f's bytes into a freshly acquired surface texture and
// presents it.
func (r *SurfaceRenderer) Present(f *frame.Frame[*buffer.HostBuffer]) error {
	width := uint32(f.Interpretation.Width)
	height := uint32(f.Interpretation.Height)
	if !r.configured || width != r.width || height != r.height {
		if err := r.configure(width, height); err != nil {
			return err
		}
	}

	acquired, err := r.surface.AcquireTexture(r.fence)
	if err != nil {
		return recorder.Wrap(recorder.KindGpuFailure, err, "acquiring surface texture")
	}

	var data []byte
	f.Storage.AsSlice(func(b []byte) { data = b })

	r.context.Queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: acquired.Texture},
		data,
		&hal.ImageDataLayout{BytesPerRow: width},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	if err := r.context.Queue.Present(r.surface, acquired.Texture); err != nil {
		return recorder.Wrap(recorder.KindGpuFailure, err, "presenting surface texture")
	}
	return nil
}

// Close unconfigures and destroys the surface.
func (r *SurfaceRenderer) Close() {
	r.surface.Unconfigure(r.context.Device)
	r.surface.Destroy()
	r.context.Device.DestroyFence(r.fence)
}
