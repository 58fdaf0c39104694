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

// Package encoder wraps the external bank-building CLI. The tool's only
// contract with it: format name, optional quality flag, output path and
// build-list path in; exit code and output file existence out.
package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"fsbrepack/internal/fsb"
)

// ErrEncodeFailed marks a build attempt that exited non-zero or
// produced no output file.
var ErrEncodeFailed = errors.New("encoder build failed")

// DefaultBinary is the encoder CLI looked up on PATH when no override
// is given.
const DefaultBinary = "fsbankcl"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client drives one encoder binary.
type Client struct {
	binary string
	exec   Executor
}

// New constructs an encoder client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	c := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one build invocation.
type Request struct {
	BuildListPath string
	OutputPath    string
	Format        fsb.EncodingKind
	// Quality is passed only for variable-rate formats.
	Quality int
}

// Build runs the encoder once and returns the output file's size. The
// call suspends until process exit; output streams are drained
// concurrently so a chatty encoder cannot deadlock on full pipes. A
// non-zero exit or a missing output file is always ErrEncodeFailed.
func (c *Client) Build(ctx context.Context, req Request, onOutput func(string)) (int64, error) {
	if req.BuildListPath == "" || req.OutputPath == "" {
		return 0, errors.New("build list and output path required")
	}

	args := []string{
		"-o", req.OutputPath,
		"-format", string(req.Format),
	}
	if req.Format.VariableRate() {
		args = append(args, "-quality", strconv.Itoa(req.Quality))
	}
	args = append(args, req.BuildListPath)

	if err := c.exec.Run(ctx, c.binary, args, onOutput); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	st, err := os.Stat(req.OutputPath)
	if err != nil {
		return 0, fmt.Errorf("%w: no output file: %v", ErrEncodeFailed, err)
	}
	return st.Size(), nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var wg sync.WaitGroup
	drain := func(r *bufio.Scanner) {
		defer wg.Done()
		for r.Scan() {
			if onOutput != nil {
				onOutput(r.Text())
			}
		}
	}
	wg.Add(2)
	go drain(bufio.NewScanner(stdout))
	go drain(bufio.NewScanner(stderr))
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", binary, err)
	}
	return nil
}
