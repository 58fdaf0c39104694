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
package decode

import (
	"fmt"
	"io"
	"os"

	"fsbrepack/internal/fsb"
	"fsbrepack/internal/wav"
)

// NewPCMEngine returns the built-in engine. It serves raw PCM and float
// banks straight from their payload bytes and opens canonical WAV files
// as single-stream banks. Compressed kinds yield ErrUnsupported at read
// time.
func NewPCMEngine() Engine {
	return pcmEngine{}
}

type pcmEngine struct{}

func (pcmEngine) Open(path string, offset int64) (Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	avail := st.Size() - offset
	if avail < 0 {
		f.Close()
		return nil, fmt.Errorf("offset %d beyond end of %s", offset, path)
	}

	hdr, samples, bankErr := fsb.ParseBank(f, offset, avail)
	if bankErr == nil {
		return &pcmBank{f: f, offset: offset, hdr: hdr, samples: samples}, nil
	}

	if offset == 0 {
		if b, err := openWAVBank(f, path); err == nil {
			return b, nil
		}
	}

	f.Close()
	return nil, fmt.Errorf("open %s: %w", path, bankErr)
}

type pcmBank struct {
	f       *os.File
	offset  int64
	hdr     *fsb.Header
	samples []fsb.SampleHeader
}

func (b *pcmBank) NumSubSounds() int {
	return len(b.samples)
}

func (b *pcmBank) Close() error {
	return b.f.Close()
}

// implicitSample serves banks that report zero sub-sounds: the whole
// data section is exposed as one stream at index 0 with default format
// fields.
func (b *pcmBank) implicitSample() fsb.SampleHeader {
	return fsb.SampleHeader{
		Index:      0,
		Name:       "subsound0",
		Kind:       fsb.EncodingPCM16,
		Channels:   1,
		Bits:       16,
		SampleRate: 44100,
		DataOffset: b.hdr.DataStart(),
		DataLength: int64(b.hdr.DataSize),
	}
}

func (b *pcmBank) sample(index int) (fsb.SampleHeader, error) {
	if len(b.samples) == 0 && index == 0 {
		return b.implicitSample(), nil
	}
	if index < 0 || index >= len(b.samples) {
		return fsb.SampleHeader{}, fmt.Errorf("sub-sound index %d out of range (bank has %d)", index, len(b.samples))
	}
	return b.samples[index], nil
}

func (b *pcmBank) SubSound(index int) (*SubSound, error) {
	s, err := b.sample(index)
	if err != nil {
		return nil, err
	}

	sub := &SubSound{
		Index:       s.Index,
		Name:        s.Name,
		Kind:        s.Kind,
		Channels:    s.Channels,
		Bits:        s.Bits,
		SampleRate:  s.SampleRate,
		Looping:     s.Looping,
		LoopStartMs: s.LoopStartMs,
		LoopEndMs:   s.LoopEndMs,
		Float:       s.Kind == fsb.EncodingFloat,
	}
	if s.Kind.BitsPerSample() != 0 {
		// Raw kinds decode to their payload bytes unchanged.
		sub.PCMLength = s.DataLength
	}
	return sub, nil
}

func (b *pcmBank) Reader(index int) (io.ReadCloser, error) {
	s, err := b.sample(index)
	if err != nil {
		return nil, err
	}
	if s.Kind.BitsPerSample() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, s.Kind)
	}
	if s.Undeterminable() {
		return nil, fmt.Errorf("sub-sound %d: %w", index, ErrUndeterminable)
	}
	return io.NopCloser(io.NewSectionReader(b.f, b.offset+s.DataOffset, s.DataLength)), nil
}

func openWAVBank(f *os.File, path string) (Bank, error) {
	info, err := wav.ReadInfo(f)
	if err != nil {
		return nil, err
	}
	if info.Format.FormatTag != wav.FormatPCM && info.Format.FormatTag != wav.FormatFloat {
		return nil, fmt.Errorf("%w: wav format tag %d", ErrUnsupported, info.Format.FormatTag)
	}
	return &wavBank{f: f, path: path, info: info}, nil
}

type wavBank struct {
	f    *os.File
	path string
	info *wav.Info
}

func (b *wavBank) NumSubSounds() int { return 1 }

func (b *wavBank) Close() error { return b.f.Close() }

func (b *wavBank) SubSound(index int) (*SubSound, error) {
	if index != 0 {
		return nil, fmt.Errorf("sub-sound index %d out of range (wav has 1)", index)
	}
	kind := fsb.EncodingPCM16
	switch {
	case b.info.Format.FormatTag == wav.FormatFloat:
		kind = fsb.EncodingFloat
	case b.info.Format.Bits == 8:
		kind = fsb.EncodingPCM8
	case b.info.Format.Bits == 24:
		kind = fsb.EncodingPCM24
	case b.info.Format.Bits == 32:
		kind = fsb.EncodingPCM32
	}
	return &SubSound{
		Index:      0,
		Name:       b.path,
		Kind:       kind,
		Channels:   int(b.info.Format.Channels),
		Bits:       int(b.info.Format.Bits),
		SampleRate: int(b.info.Format.SampleRate),
		PCMLength:  int64(b.info.DataLen),
		Float:      b.info.Format.FormatTag == wav.FormatFloat,
	}, nil
}

func (b *wavBank) Reader(index int) (io.ReadCloser, error) {
	if index != 0 {
		return nil, fmt.Errorf("sub-sound index %d out of range (wav has 1)", index)
	}
	return io.NopCloser(io.NewSectionReader(b.f, b.info.DataOffset, int64(b.info.DataLen))), nil
}
