// Package blockdev describes the fixed-size sector storage the volume reader and
// the container parser read from, and provides a disk-image backed implementation.
package blockdev

import "errors"

// BlockSize is the size of one storage block in bytes.
// The exFAT sector size of every volume read through this package has to match it.
const BlockSize = 512

// Block is the unit of every storage read.
type Block [BlockSize]byte

// These errors may occur while reading blocks.
var (
	ErrReadBlock  = errors.New("could not read the block")
	ErrOutOfRange = errors.New("block address is outside of the device")
)

// Device reads blocks by absolute sector address.
// A read either fills dst completely or fails; dst is undefined after a failure.
//
// Generated mock using mockgen:
//
//	mockgen -source=device.go -destination=mock_device.go -package blockdev
type Device interface {
	ReadBlock(addr uint32, dst *Block) error
}
