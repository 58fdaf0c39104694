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

// Package fsb decodes the FSB sound-bank container format: a fixed
// primary header, a sample-header table in one of two geometries, and a
// payload data section holding one encoded stream per sample.
package fsb

import (
	"fmt"
)

// Signature identifies the start of a bank inside a host file.
var Signature = []byte("FSB4")

const (
	// HeaderSize is the fixed size of the primary header.
	HeaderSize = 0x40

	SampleEntrySizeV1 = 64
	SampleEntrySizeV2 = 80

	// Byte offset of the (dataOffset, dataLength) pair inside an entry.
	dataPairOffsetV1 = 52
	dataPairOffsetV2 = 68
)

// Mode flag bits of a sample entry.
const (
	ModePCM8   uint32 = 0x1
	ModePCM16  uint32 = 0x2
	ModePCM24  uint32 = 0x4
	ModePCM32  uint32 = 0x8
	ModeFloat  uint32 = 0x10
	ModeADPCM  uint32 = 0x20
	ModeMP2    uint32 = 0x40
	ModeMP3    uint32 = 0x80
	ModeVorbis uint32 = 0x100
	ModeXMA    uint32 = 0x200
	ModeLoop   uint32 = 0x8000
)

// EncodingKind names one sample encoding family.
type EncodingKind string

const (
	EncodingPCM8    EncodingKind = "pcm8"
	EncodingPCM16   EncodingKind = "pcm16"
	EncodingPCM24   EncodingKind = "pcm24"
	EncodingPCM32   EncodingKind = "pcm32"
	EncodingFloat   EncodingKind = "float"
	EncodingADPCM   EncodingKind = "adpcm"
	EncodingMP2     EncodingKind = "mp2"
	EncodingMP3     EncodingKind = "mp3"
	EncodingVorbis  EncodingKind = "vorbis"
	EncodingXMA     EncodingKind = "xma"
	EncodingUnknown EncodingKind = "unknown"
)

var modeKinds = []struct {
	bit  uint32
	kind EncodingKind
}{
	{ModePCM8, EncodingPCM8},
	{ModePCM16, EncodingPCM16},
	{ModePCM24, EncodingPCM24},
	{ModePCM32, EncodingPCM32},
	{ModeFloat, EncodingFloat},
	{ModeADPCM, EncodingADPCM},
	{ModeMP2, EncodingMP2},
	{ModeMP3, EncodingMP3},
	{ModeVorbis, EncodingVorbis},
	{ModeXMA, EncodingXMA},
}

// KindFromMode maps a mode flag word to its encoding kind.
func KindFromMode(mode uint32) EncodingKind {
	for _, mk := range modeKinds {
		if mode&mk.bit != 0 {
			return mk.kind
		}
	}
	return EncodingUnknown
}

// ModeFromKind is the inverse of KindFromMode.
func ModeFromKind(kind EncodingKind) uint32 {
	for _, mk := range modeKinds {
		if mk.kind == kind {
			return mk.bit
		}
	}
	return 0
}

// ParseKind returns the encoding kind named by s, as accepted on the
// command line and in the manifest.
func ParseKind(s string) (EncodingKind, error) {
	for _, mk := range modeKinds {
		if string(mk.kind) == s {
			return mk.kind, nil
		}
	}
	return EncodingUnknown, fmt.Errorf("unknown encoding kind %q", s)
}

// VariableRate reports whether the kind's output size responds to the
// encoder quality setting. Fixed-rate kinds get exactly one build.
func (k EncodingKind) VariableRate() bool {
	switch k {
	case EncodingMP2, EncodingMP3, EncodingVorbis:
		return true
	}
	return false
}

// BitsPerSample returns the decoded sample width for raw kinds, or 0 for
// compressed kinds whose width only the decoder knows.
func (k EncodingKind) BitsPerSample() int {
	switch k {
	case EncodingPCM8:
		return 8
	case EncodingPCM16:
		return 16
	case EncodingPCM24:
		return 24
	case EncodingPCM32, EncodingFloat:
		return 32
	}
	return 0
}

// Header is the decoded primary header of a bank.
type Header struct {
	Version           uint32
	NumSamples        int32
	SampleHeadersSize uint32
	DataSize          uint32
	SubVersion        uint32
}

// TotalSize is the byte length of the whole bank as declared by the
// header: primary header, sample-header table, payload data.
func (h *Header) TotalSize() int64 {
	return HeaderSize + int64(h.SampleHeadersSize) + int64(h.DataSize)
}

// DataStart is the offset of the payload data section relative to the
// bank start.
func (h *Header) DataStart() int64 {
	return HeaderSize + int64(h.SampleHeadersSize)
}

// EntrySize returns the sample-header entry width selected by the
// header-table sub-version.
func (h *Header) EntrySize() int {
	if h.SubVersion == subVersionV2 {
		return SampleEntrySizeV2
	}
	return SampleEntrySizeV1
}

const (
	subVersionV1 = 1
	subVersionV2 = 2
)

// SampleHeader describes one sample stream inside a bank. DataOffset is
// relative to the bank start, not the host file. A sample whose declared
// range did not fit the available bytes carries DataOffset == 0 and
// DataLength == 0 and is reported as undeterminable rather than an error.
type SampleHeader struct {
	Index      int
	Name       string
	Kind       EncodingKind
	Channels   int
	Bits       int
	SampleRate int
	Looping    bool

	LengthMs    int64
	LoopStartMs int64
	LoopEndMs   int64

	// Absolute range of the encoded payload inside the bank.
	DataOffset int64
	DataLength int64
}

// Undeterminable reports whether the parser zeroed this sample's range
// because it failed the bounds check.
func (s *SampleHeader) Undeterminable() bool {
	return s.DataOffset == 0 && s.DataLength == 0
}

func samplesToMs(samples uint32, rate int32) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(samples) * 1000 / int64(rate)
}
