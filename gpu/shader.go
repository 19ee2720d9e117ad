package gpu

import (
	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileShader compiles WGSL source to SPIR-V and wraps it in a shader
// module on c.Device. Every compute node ships its kernel as WGSL source
// and compiles it once at construction time, not per dispatch.
func (c *Context) CompileShader(label, wgslSource string) (hal.ShaderModule, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "compiling shader %q", label)
	}

	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	module, err := c.Device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "creating shader module %q", label)
	}
	return module, nil
}
