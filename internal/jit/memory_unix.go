//go:build unix

package jit

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Memory hands out executable regions. Each region is mapped read/write,
// filled, then switched to read/execute, so no page is ever writable and
// executable at the same time. Regions stay mapped until Close.
type Memory struct {
	regions [][]byte
	size    int
}

func NewMemory() *Memory { return &Memory{} }

// Install copies code into a fresh executable region and returns it.
func (m *Memory) Install(code []byte) ([]byte, error) {
	if len(code) == 0 {
		return nil, errors.New("jit: empty code")
	}
	page := unix.Getpagesize()
	n := (len(code) + page - 1) &^ (page - 1)
	region, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "jit: mmap")
	}
	copy(region, code)
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(region)
		return nil, errors.Wrap(err, "jit: mprotect")
	}
	m.regions = append(m.regions, region)
	m.size += n
	return region[:len(code)], nil
}

// Size is the number of mapped bytes.
func (m *Memory) Size() int { return m.size }

// Close unmaps every region. Code handed out earlier must not run again.
func (m *Memory) Close() error {
	var first error
	for _, r := range m.regions {
		if err := unix.Munmap(r); err != nil && first == nil {
			first = errors.Wrap(err, "jit: munmap")
		}
	}
	m.regions, m.size = nil, 0
	return first
}
