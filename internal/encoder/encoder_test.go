package encoder_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/encoder"
	"fsbrepack/internal/fsb"
)

type fakeExecutor struct {
	gotBinary string
	gotArgs   []string
	produce   []byte
	fail      bool
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	f.gotBinary = binary
	f.gotArgs = args
	if onOutput != nil {
		onOutput("building...")
	}
	if f.fail {
		return errors.New("exit status 1")
	}
	// Output path follows the -o flag.
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-o" {
			return os.WriteFile(args[i+1], f.produce, 0o644)
		}
	}
	return errors.New("no -o flag")
}

func buildRequest(t *testing.T) encoder.Request {
	t.Helper()
	dir := t.TempDir()
	list := filepath.Join(dir, "buildlist.txt")
	require.NoError(t, os.WriteFile(list, []byte("/tmp/a.wav\n"), 0o644))
	return encoder.Request{
		BuildListPath: list,
		OutputPath:    filepath.Join(dir, "out.fsb"),
		Format:        fsb.EncodingMP3,
		Quality:       60,
	}
}

func TestBuildPassesQualityForVariableRate(t *testing.T) {
	exec := &fakeExecutor{produce: make([]byte, 321)}
	c, err := encoder.New("", encoder.WithExecutor(exec))
	require.NoError(t, err)

	var lines []string
	size, err := c.Build(context.Background(), buildRequest(t), func(s string) { lines = append(lines, s) })
	require.NoError(t, err)
	require.EqualValues(t, 321, size)

	require.Equal(t, encoder.DefaultBinary, exec.gotBinary)
	require.Contains(t, exec.gotArgs, "-quality")
	require.Contains(t, exec.gotArgs, "60")
	require.Contains(t, exec.gotArgs, "-format")
	require.Contains(t, exec.gotArgs, "mp3")
	require.Equal(t, []string{"building..."}, lines)
}

func TestBuildOmitsQualityForFixedRate(t *testing.T) {
	exec := &fakeExecutor{produce: make([]byte, 10)}
	c, err := encoder.New("myenc", encoder.WithExecutor(exec))
	require.NoError(t, err)

	req := buildRequest(t)
	req.Format = fsb.EncodingPCM16

	_, err = c.Build(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, "myenc", exec.gotBinary)
	require.NotContains(t, exec.gotArgs, "-quality")
}

func TestBuildNonZeroExitIsEncodeFailure(t *testing.T) {
	c, err := encoder.New("", encoder.WithExecutor(&fakeExecutor{fail: true}))
	require.NoError(t, err)

	_, err = c.Build(context.Background(), buildRequest(t), nil)
	require.ErrorIs(t, err, encoder.ErrEncodeFailed)
}

func TestBuildMissingOutputIsEncodeFailure(t *testing.T) {
	// Executor "succeeds" without writing the output file.
	exec := &fakeExecutor{}
	c, err := encoder.New("", encoder.WithExecutor(exec))
	require.NoError(t, err)

	req := buildRequest(t)
	req.Format = fsb.EncodingPCM16
	exec.produce = nil

	// Make the fake skip writing by pointing -o at a directory that does
	// not exist.
	req.OutputPath = filepath.Join(req.OutputPath, "nested", "out.fsb")
	_, err = c.Build(context.Background(), req, nil)
	require.ErrorIs(t, err, encoder.ErrEncodeFailed)
}
