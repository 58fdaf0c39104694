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
package workspace

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ManifestName is the manifest's file name inside a workspace.
const ManifestName = "manifest.toml"

// Manifest is the full, ordered definition of a bank's contents needed
// to rebuild it. It is created once per rebuild session and mutated only
// to record the target encoding and point replaced entries at their new
// source files.
type Manifest struct {
	BuildFormat string  `toml:"build_format"`
	SubSounds   []Entry `toml:"sub_sounds"`
}

// Entry describes one sub-sound of the manifest.
type Entry struct {
	Index            int    `toml:"index"`
	Name             string `toml:"name"`
	OriginalFileName string `toml:"original_file_name"`
	Looping          bool   `toml:"looping"`
	LoopStartMs      int64  `toml:"loop_start_ms"`
	LoopEndMs        int64  `toml:"loop_end_ms"`
}

// Entry returns the manifest entry at index, or an error naming the
// valid range.
func (m *Manifest) Entry(index int) (*Entry, error) {
	for i := range m.SubSounds {
		if m.SubSounds[i].Index == index {
			return &m.SubSounds[i], nil
		}
	}
	return nil, fmt.Errorf("manifest has no sub-sound %d (%d entries)", index, len(m.SubSounds))
}

// Save persists the manifest as TOML.
func (m *Manifest) Save(path string) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest back from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
