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

// Package report persists scan results as a small XML document, so a
// later extract run can replay a scan without touching the host again.
package report

import (
	"encoding/xml"
	"io"
	"os"
	"runtime"
	"time"
)

const Version = "1.0"

// Header opens a report: who produced it and which host it covers.
type Header struct {
	XMLName xml.Name `xml:"bankscan"`
	Version string   `xml:"version,attr,omitempty"`
	Creator Creator  `xml:"creator"`
	Source  Source   `xml:"source"`
}

// Creator records the producing tool and environment.
type Creator struct {
	Package   string `xml:"package"`
	Version   string `xml:"version"`
	Host      string `xml:"host"`
	Arch      string `xml:"arch"`
	StartTime string `xml:"start_time"`
}

// Source identifies the scanned host file.
type Source struct {
	HostFilename string `xml:"host_filename"`
	HostSize     int64  `xml:"host_size"`
}

// Bank is one discovered bank and its enumerated samples.
type Bank struct {
	XMLName xml.Name `xml:"bank"`
	Offset  int64    `xml:"offset,attr"`
	Size    int64    `xml:"size,attr"`
	Samples []Sample `xml:"sample"`
}

// Sample mirrors the parsed sample-header fields needed to re-extract.
type Sample struct {
	Index      int    `xml:"index,attr"`
	Name       string `xml:"name,attr"`
	Encoding   string `xml:"encoding,attr"`
	Channels   int    `xml:"channels,attr"`
	Bits       int    `xml:"bits,attr"`
	SampleRate int    `xml:"rate,attr"`
	DataOffset int64  `xml:"offset,attr"`
	DataLength int64  `xml:"len,attr"`
}

// NewCreator fills creator fields from the running environment.
func NewCreator(pkg, version string) Creator {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Creator{
		Package:   pkg,
		Version:   version,
		Host:      host,
		Arch:      runtime.GOARCH,
		StartTime: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// Writer streams a report element by element.
type Writer struct {
	w   io.Writer
	enc *xml.Encoder
}

func NewWriter(w io.Writer) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Writer{w: w, enc: enc}
}

// WriteHeader emits the XML declaration and the opening root element
// with creator and source children.
func (w *Writer) WriteHeader(hdr Header) error {
	_, _ = w.w.Write([]byte(xml.Header))

	start := xml.StartElement{
		Name: xml.Name{Local: "bankscan"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "version"}, Value: Version},
		},
	}
	if err := w.enc.EncodeToken(start); err != nil {
		return err
	}
	creatorStart := xml.StartElement{Name: xml.Name{Local: "creator"}}
	if err := w.enc.EncodeElement(hdr.Creator, creatorStart); err != nil {
		return err
	}
	sourceStart := xml.StartElement{Name: xml.Name{Local: "source"}}
	return w.enc.EncodeElement(hdr.Source, sourceStart)
}

func (w *Writer) WriteBank(b Bank) error {
	return w.enc.Encode(b)
}

// Close writes the closing root tag and flushes the encoder.
func (w *Writer) Close() error {
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "bankscan"}}); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Read decodes a full report: header fields and every bank element.
func Read(r io.Reader) (*Header, []Bank, error) {
	dec := xml.NewDecoder(r)

	hdr := &Header{}
	var banks []Bank
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "creator":
			if err := dec.DecodeElement(&hdr.Creator, &start); err != nil {
				return nil, nil, err
			}
		case "source":
			if err := dec.DecodeElement(&hdr.Source, &start); err != nil {
				return nil, nil, err
			}
		case "bank":
			var b Bank
			if err := dec.DecodeElement(&b, &start); err != nil {
				return nil, nil, err
			}
			banks = append(banks, b)
		}
	}
	return hdr, banks, nil
}
