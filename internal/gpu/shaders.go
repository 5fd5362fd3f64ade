//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

// Embedded WGSL shader sources.

//go:embed shaders/gravity.wgsl
var gravityShaderSource string

//go:embed shaders/splat.wgsl
var splatShaderSource string

//go:embed shaders/tonemap.wgsl
var tonemapShaderSource string

// Shader entry points.
const (
	entryAccelerate   = "accelerate"
	entryIntegrate    = "integrate"
	entryVertex       = "vs_main"
	entryAccumulate   = "fs_accumulate"
	entryDirect       = "fs_direct"
	entryToneMapFrag  = "fs_main"
	gravityWorkgroups = 256
)

// shaderSources lists every embedded shader by name.
func shaderSources() map[string]string {
	return map[string]string{
		"gravity": gravityShaderSource,
		"splat":   splatShaderSource,
		"tonemap": tonemapShaderSource,
	}
}

// ValidateShaders compiles every embedded shader to SPIR-V with naga and
// reports the first failure.
func ValidateShaders() error {
	for name, src := range shaderSources() {
		if src == "" {
			return fmt.Errorf("%s shader source is empty", name)
		}
		spirv, err := naga.Compile(src)
		if err != nil {
			return fmt.Errorf("compile %s shader: %w", name, err)
		}
		slogger().Debug("shader validated", "shader", name, "spirv_bytes", len(spirv))
	}
	return nil
}

// workgroupCount returns the number of 256-wide workgroups covering n bodies.
func workgroupCount(n uint32) uint32 {
	return (n + gravityWorkgroups - 1) / gravityWorkgroups
}
