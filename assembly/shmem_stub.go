//go:build !unix

package assembly

import "errors"

// SharedRegion is unavailable off unix; shared ethers require mmap.
type SharedRegion struct{}

func MapShared(string, int, bool) (*SharedRegion, error) {
	return nil, errors.New("assembly: shared-memory ethers require a unix platform")
}

func (r *SharedRegion) Data() []byte { return nil }
func (r *SharedRegion) Path() string { return "" }
func (r *SharedRegion) Close() error { return nil }
