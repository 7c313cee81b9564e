package simd

import (
	"os"
	"slices"
	"strings"
)

// ISA identifies the kernel family used for lane tests.
type ISA uint8

const (
	// Generic is the portable scalar path.
	Generic ISA = iota
	// NEON is ARM64 Advanced SIMD.
	NEON
	// AVX2 is x86-64 AVX2 with FMA.
	AVX2
	// AVX512 is x86-64 AVX-512F.
	AVX512
)

var isaNames = [...]string{
	Generic: "generic",
	NEON:    "neon",
	AVX2:    "avx2",
	AVX512:  "avx512",
}

func (i ISA) String() string {
	if int(i) < len(isaNames) {
		return isaNames[i]
	}
	return "unknown"
}

// ParseISA maps a name such as "avx2" to its ISA. Matching ignores case
// and surrounding whitespace.
func ParseISA(s string) (ISA, bool) {
	i := slices.Index(isaNames[:], strings.ToLower(strings.TrimSpace(s)))
	if i < 0 {
		return Generic, false
	}
	return ISA(i), true
}

// features is filled by the per-architecture init before initCapabilities runs.
type features struct {
	asimd  bool
	avx2   bool
	avx512 bool
}

var (
	cpuFeatures features
	activeISA   ISA
	hasOverride bool
)

// initCapabilities picks the kernel family. MOLGEO_SIMD wins when it names
// an ISA the CPU supports; otherwise the widest available one is used.
func initCapabilities() {
	activeISA, hasOverride = chooseISA(os.Getenv("MOLGEO_SIMD"))
	selectKernels()
}

// chooseISA applies an override name to the detected features. An unknown
// or unavailable name falls back to the best ISA and is not an override.
func chooseISA(override string) (ISA, bool) {
	if isa, ok := ParseISA(override); ok && isISAAvailable(isa) {
		return isa, true
	}
	return bestISA(), false
}

func isISAAvailable(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return cpuFeatures.asimd
	case AVX2:
		return cpuFeatures.avx2
	case AVX512:
		return cpuFeatures.avx512
	}
	return false
}

func bestISA() ISA {
	for _, isa := range []ISA{AVX512, AVX2, NEON} {
		if isISAAvailable(isa) {
			return isa
		}
	}
	return Generic
}

// ActiveISA returns the kernel family selected at init.
func ActiveISA() ISA { return activeISA }

// IsOverridden reports whether MOLGEO_SIMD selected an ISA the CPU supports.
func IsOverridden() bool { return hasOverride }

func HasASIMD() bool  { return cpuFeatures.asimd }
func HasAVX2() bool   { return cpuFeatures.avx2 }
func HasAVX512() bool { return cpuFeatures.avx512 }
