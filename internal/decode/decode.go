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

// Package decode defines the decode-collaborator capability the rest of
// the tool consumes: opening a bank (embedded in a host file or
// standalone) for metadata and raw sample access. The built-in engine
// handles raw PCM banks and canonical WAV files; compressed kinds need
// an injected engine.
package decode

import (
	"errors"
	"io"
	"sync"

	"fsbrepack/internal/fsb"
)

// ErrUnsupported reports a sample whose encoding the engine cannot
// decode. It is a per-item failure, aggregated by callers, never fatal
// to a batch.
var ErrUnsupported = errors.New("unsupported sample encoding")

// ErrUndeterminable reports a sample whose payload range the header
// table does not pin down, typically a corrupt or truncated entry. Like
// ErrUnsupported it is a per-item failure.
var ErrUndeterminable = errors.New("payload range undeterminable")

// SubSound describes one decodable stream of an opened bank.
type SubSound struct {
	Index      int
	Name       string
	Kind       fsb.EncodingKind
	Channels   int
	Bits       int
	SampleRate int
	Looping    bool

	LoopStartMs int64
	LoopEndMs   int64

	// PCMLength is the decoded payload length in bytes as reported by
	// the engine. The exporter writes exactly this many bytes unless the
	// reader ends early.
	PCMLength int64

	// Float marks 32-bit IEEE float payloads.
	Float bool
}

// Bank is an open handle over one container. Handles are cheap and
// short-lived: open, read what is needed, close. They are not safe for
// concurrent use; Serialize provides the cross-goroutine guard.
type Bank interface {
	// NumSubSounds returns the number of streams. A bank that reports
	// zero still serves one implicit stream at index 0.
	NumSubSounds() int
	SubSound(index int) (*SubSound, error)
	// Reader returns a pull-based reader over the decoded payload of the
	// stream at index.
	Reader(index int) (io.ReadCloser, error)
	Close() error
}

// Engine opens banks. offset is the byte position of the bank inside
// the file at path; a standalone bank or audio file uses offset 0.
type Engine interface {
	Open(path string, offset int64) (Bank, error)
}

// Serialize wraps an engine so that every call into it, from any
// goroutine and through any handle it returns, holds one shared lock.
// The underlying engine is not assumed to be re-entrant.
func Serialize(e Engine) Engine {
	return &serialEngine{e: e}
}

type serialEngine struct {
	mu sync.Mutex
	e  Engine
}

func (s *serialEngine) Open(path string, offset int64) (Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.e.Open(path, offset)
	if err != nil {
		return nil, err
	}
	return &serialBank{mu: &s.mu, b: b}, nil
}

type serialBank struct {
	mu *sync.Mutex
	b  Bank
}

func (s *serialBank) NumSubSounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.NumSubSounds()
}

func (s *serialBank) SubSound(index int) (*SubSound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.SubSound(index)
}

func (s *serialBank) Reader(index int) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.b.Reader(index)
	if err != nil {
		return nil, err
	}
	return &serialReader{mu: s.mu, r: r}, nil
}

func (s *serialBank) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Close()
}

type serialReader struct {
	mu *sync.Mutex
	r  io.ReadCloser
}

func (s *serialReader) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Read(p)
}

func (s *serialReader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Close()
}
