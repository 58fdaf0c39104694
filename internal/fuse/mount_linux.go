//go:build linux
// +build linux

// Copyright (c) 2025 The fsbrepack authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package fuse

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

// Mount serves the entries at mountpoint and blocks until the mount is
// released by a termination signal.
func Mount(logger *slog.Logger, mountpoint string, entries []WavEntry) error {
	created, err := PrepareMountpoint(mountpoint)
	if err != nil {
		return err
	}
	if created {
		defer os.Remove(mountpoint)
	}

	c, err := fuse.Mount(mountpoint)
	if err != nil {
		return err
	}
	defer c.Close()

	bankFS := newBankFS(mountpoint, entries)

	serveErr := make(chan error, 1)
	go func() {
		srv := fusefs.New(c, nil)
		serveErr <- srv.Serve(bankFS)
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-waitForUmount(logger, mountpoint):
		return err
	}
}

func waitForUmount(logger *slog.Logger, mountpoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

		logger.Info("waiting for termination signal")

		const maxUnmountRetries = 3

		attempts := 0
		for sig := range sigc {
			logger.Info("signal received", "signal", sig.String())

			if err := fuse.Unmount(mountpoint); err == nil {
				logger.Info("unmounted", "mountpoint", mountpoint)
				done <- nil
				return
			} else {
				attempts++
				if attempts >= maxUnmountRetries {
					done <- fmt.Errorf("unable to unmount %s after %d attempts: %w", mountpoint, attempts, err)
					return
				}
				logger.Warn("unmount failed, waiting for another signal",
					"err", err, "remaining", maxUnmountRetries-attempts)
			}
		}
	}()

	return done
}

// PrepareMountpoint ensures the given path is a valid, empty directory
// suitable for mounting. It creates the directory if it doesn't exist
// and reports whether it did.
func PrepareMountpoint(mountpoint string) (bool, error) {
	finfo, err := os.Stat(mountpoint)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(mountpoint, 0755); err != nil {
			return false, fmt.Errorf("failed to create mountpoint %s: %w", mountpoint, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat mountpoint %s: %w", mountpoint, err)
	}

	if !finfo.IsDir() {
		return false, fmt.Errorf("mountpoint %s is not a directory", mountpoint)
	}

	empty, err := isDirEmpty(mountpoint)
	if err != nil {
		return false, fmt.Errorf("failed to check if mountpoint %s is empty: %w", mountpoint, err)
	}
	if !empty {
		return false, fmt.Errorf("mountpoint %s is not empty", mountpoint)
	}
	return false, nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if _, err := f.Readdir(1); err != nil {
		if err == io.EOF {
			return true, nil
		}
		return false, err
	}
	return false, nil
}
