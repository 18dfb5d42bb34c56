//go:build amd64 && unix

package jit

import "unsafe"

// Native code can run on this platform.
const Supported = true

// entry turns installed code into a callable Go func. Under the register
// ABI the argument arrives in RAX and the result is returned in RAX. Kernels
// only touch RAX, RCX, RDX and RSI, which the ABI treats as scratch, and use
// no stack.
func entry(code []byte) func(int64) int64 {
	fn := unsafe.Pointer(&struct{ *byte }{&code[0]})
	return *(*func(int64) int64)(unsafe.Pointer(&fn))
}
