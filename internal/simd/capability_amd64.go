//go:build amd64

package simd

import "golang.org/x/sys/cpu"

func init() {
	cpuFeatures = features{
		avx2:   cpu.X86.HasAVX2 && cpu.X86.HasFMA,
		avx512: cpu.X86.HasAVX512F,
	}
	initCapabilities()
}
