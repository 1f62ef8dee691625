//go:build arm64

package cpu

import "golang.org/x/sys/cpu"

func platformFeatures() Features {
	return Features{
		ASIMD: cpu.ARM64.HasASIMD,
		SVE2:  cpu.ARM64.HasSVE2,
	}
}
