//go:build !nogpu

package gpu

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

func TestShaderSourcesEmbedded(t *testing.T) {
	for name, src := range shaderSources() {
		if src == "" {
			t.Errorf("%s shader source is empty", name)
		}
	}

	entries := map[string][]string{
		"gravity": {entryAccelerate, entryIntegrate},
		"splat":   {entryVertex, entryAccumulate, entryDirect},
		"tonemap": {entryVertex, entryToneMapFrag},
	}
	sources := shaderSources()
	for name, fns := range entries {
		for _, fn := range fns {
			if !strings.Contains(sources[name], "fn "+fn+"(") {
				t.Errorf("%s shader has no entry point %q", name, fn)
			}
		}
	}
}

func TestShadersCompileToSPIRV(t *testing.T) {
	for name, src := range shaderSources() {
		t.Run(name, func(t *testing.T) {
			spirv, err := naga.Compile(src)
			if err != nil {
				msg := err.Error()
				if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
					t.Skipf("naga feature not yet implemented: %v", err)
				}
				t.Fatalf("compile %s: %v", name, err)
			}
			if len(spirv) < 4 {
				t.Fatal("SPIR-V too short")
			}
			magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
			if magic != 0x07230203 {
				t.Errorf("SPIR-V magic = %#x, want 0x07230203", magic)
			}
		})
	}
}

func TestWorkgroupCount(t *testing.T) {
	tests := []struct {
		n    uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{256, 1},
		{257, 2},
		{20000, 79},
	}
	for _, tt := range tests {
		if got := workgroupCount(tt.n); got != tt.want {
			t.Errorf("workgroupCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
