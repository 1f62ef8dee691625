// Package cpu reports the vector instruction sets available on the host.
//
// Detection runs once, on first use, and the result never changes for the
// lifetime of the process.
package cpu

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// ISA represents a SIMD instruction set architecture.
type ISA uint8

const (
	// Generic represents the pure Go kernels.
	Generic ISA = iota
	// NEON represents ARM64 ASIMD.
	NEON
	// SVE2 represents ARM64 SVE2.
	SVE2
	// AVX2 represents x86-64 AVX2 with FMA.
	AVX2
	// AVX512 represents x86-64 AVX-512 F+BW.
	AVX512
)

// EnvOverride names the environment variable that forces an ISA.
const EnvOverride = "ANNKIT_SIMD"

func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case NEON:
		return "neon"
	case SVE2:
		return "sve2"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// ParseISA parses a string into an ISA value.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "neon":
		return NEON, true
	case "sve2":
		return SVE2, true
	case "avx2":
		return AVX2, true
	case "avx512":
		return AVX512, true
	default:
		return Generic, false
	}
}

// Features holds the raw feature bits relevant to distance kernels.
type Features struct {
	ASIMD    bool
	SVE2     bool
	AVX2     bool // AVX2 and FMA
	AVX512F  bool
	AVX512BW bool
}

// Info describes the host CPU.
type Info struct {
	Arch         string
	ISA          ISA
	Overridden   bool
	Features     Features
	Brand        string
	Vendor       string
	PhysicalCore int
	LogicalCores int
}

// Accelerated reports whether a SIMD path is selected.
func (i *Info) Accelerated() bool { return i.ISA != Generic }

// Get returns the process-wide CPU description.
var Get = sync.OnceValue(detect)

func detect() *Info {
	f := platformFeatures()
	info := &Info{
		Arch:         runtime.GOARCH,
		Features:     f,
		Brand:        strings.TrimSpace(cpuid.CPU.BrandName),
		Vendor:       cpuid.CPU.VendorString,
		PhysicalCore: cpuid.CPU.PhysicalCores,
		LogicalCores: cpuid.CPU.LogicalCores,
	}
	if info.LogicalCores <= 0 {
		info.LogicalCores = runtime.NumCPU()
	}
	if info.PhysicalCore <= 0 {
		info.PhysicalCore = info.LogicalCores
	}

	if override := os.Getenv(EnvOverride); override != "" {
		if isa, ok := ParseISA(override); ok && available(f, isa) {
			info.ISA = isa
			info.Overridden = true
			return info
		}
	}
	info.ISA = selectBest(f)
	return info
}

func available(f Features, isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return f.ASIMD
	case SVE2:
		return f.SVE2
	case AVX2:
		return f.AVX2
	case AVX512:
		return f.AVX512F && f.AVX512BW
	default:
		return false
	}
}

func selectBest(f Features) ISA {
	switch runtime.GOARCH {
	case "arm64":
		// Apple cores run NEON faster than their SVE2.
		if f.SVE2 && runtime.GOOS != "darwin" {
			return SVE2
		}
		if f.ASIMD {
			return NEON
		}
	case "amd64":
		if f.AVX512F && f.AVX512BW {
			return AVX512
		}
		if f.AVX2 {
			return AVX2
		}
	}
	return Generic
}
