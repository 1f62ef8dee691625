//go:build amd64

package cpu

import (
	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

func platformFeatures() Features {
	return Features{
		AVX2:     cpu.X86.HasAVX2 && cpu.X86.HasFMA && cpuid.CPU.Has(cpuid.FMA3),
		AVX512F:  cpu.X86.HasAVX512F,
		AVX512BW: cpu.X86.HasAVX512BW,
	}
}
