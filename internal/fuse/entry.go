// Package fuse exposes the samples of one bank as a read-only directory
// of WAV files. Nothing is written to disk: each file is the WAV header
// plus the decoded payload, stitched together at read time.
package fuse

import "io"

// WavEntry is one sample presented as a virtual WAV file. Header is the
// ready-made RIFF header; Open returns a fresh payload reader whose
// stream is exactly PayloadSize bytes.
type WavEntry struct {
	Name        string
	Header      []byte
	PayloadSize int64
	Open        func() (io.ReadCloser, error)
}

// Size is the virtual file size in bytes.
func (e WavEntry) Size() int64 {
	return int64(len(e.Header)) + e.PayloadSize
}
