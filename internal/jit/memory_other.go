//go:build !unix

package jit

import "github.com/pkg/errors"

type Memory struct{}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Install(code []byte) ([]byte, error) {
	return nil, errors.New("jit: executable memory is not supported on this platform")
}

func (m *Memory) Size() int { return 0 }

func (m *Memory) Close() error { return nil }
