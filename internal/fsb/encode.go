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
package fsb

import "encoding/binary"

// EncodeTo writes the primary header into buf, which must hold at least
// HeaderSize bytes. Reserved bytes are zeroed.
func (h *Header) EncodeTo(buf []byte) {
	for i := 0; i < HeaderSize; i++ {
		buf[i] = 0
	}
	copy(buf[0:4], Signature)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.NumSamples))
	binary.LittleEndian.PutUint32(buf[12:16], h.SampleHeadersSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.DataSize)
	binary.LittleEndian.PutUint32(buf[20:24], h.SubVersion)
}

// SampleEntry carries the raw fields of one sample-header table entry,
// with the payload range expressed relative to the data section as it is
// on disk.
type SampleEntry struct {
	Name          string
	LengthSamples uint32
	LoopStart     uint32
	LoopEnd       uint32
	Mode          uint32
	SampleRate    int32
	Channels      uint16
	Bits          uint16
	DataOffset    uint32
	DataLength    uint32
}

// EncodeSampleEntry writes e into buf using the geometry selected by
// subVersion. buf must hold a full entry.
func EncodeSampleEntry(buf []byte, subVersion uint32, e SampleEntry) {
	entrySize := SampleEntrySizeV1
	if subVersion == subVersionV2 {
		entrySize = SampleEntrySizeV2
	}
	for i := 0; i < entrySize; i++ {
		buf[i] = 0
	}

	binary.LittleEndian.PutUint16(buf[0:2], uint16(entrySize))
	copy(buf[2:32], e.Name)
	binary.LittleEndian.PutUint32(buf[32:36], e.LengthSamples)
	binary.LittleEndian.PutUint32(buf[36:40], e.LoopStart)
	binary.LittleEndian.PutUint32(buf[40:44], e.LoopEnd)
	binary.LittleEndian.PutUint32(buf[44:48], e.Mode)
	binary.LittleEndian.PutUint32(buf[48:52], uint32(e.SampleRate))

	if subVersion == subVersionV2 {
		binary.LittleEndian.PutUint16(buf[58:60], e.Channels)
		binary.LittleEndian.PutUint16(buf[60:62], e.Bits)
		binary.LittleEndian.PutUint32(buf[dataPairOffsetV2:dataPairOffsetV2+4], e.DataOffset)
		binary.LittleEndian.PutUint32(buf[dataPairOffsetV2+4:dataPairOffsetV2+8], e.DataLength)
	} else {
		binary.LittleEndian.PutUint16(buf[60:62], e.Channels)
		binary.LittleEndian.PutUint16(buf[62:64], e.Bits)
		binary.LittleEndian.PutUint32(buf[dataPairOffsetV1:dataPairOffsetV1+4], e.DataOffset)
		binary.LittleEndian.PutUint32(buf[dataPairOffsetV1+4:dataPairOffsetV1+8], e.DataLength)
	}
}
