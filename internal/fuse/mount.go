//go:build !linux
// +build !linux

package fuse

import (
	"fmt"
	"log/slog"
)

func Mount(logger *slog.Logger, mountpoint string, entries []WavEntry) error {
	return fmt.Errorf("FUSE mount is only supported on Linux")
}
