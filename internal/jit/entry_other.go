//go:build !(amd64 && unix)

package jit

const Supported = false

func entry(code []byte) func(int64) int64 { return nil }
