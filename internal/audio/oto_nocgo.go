//go:build nocgo
// +build nocgo

package audio

import "fmt"

// NewOto is unavailable without cgo.
func NewOto() (Device, error) {
	return nil, fmt.Errorf("%w: oto not available in nocgo build", ErrDevice)
}
