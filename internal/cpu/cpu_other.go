//go:build !amd64 && !arm64

package cpu

func platformFeatures() Features { return Features{} }
