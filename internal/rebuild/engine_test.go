package rebuild_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/encoder"
	"fsbrepack/internal/fsb"
	"fsbrepack/internal/rebuild"
)

// oracleExecutor fakes the encoder binary: output size is a function of
// the requested quality, so the search behaviour can be checked exactly.
type oracleExecutor struct {
	sizeFor   func(quality int) int64
	failOver  int // when non-zero, qualities above this return a non-zero exit
	builds    int
	qualities []int
}

func (o *oracleExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	o.builds++

	quality := 0
	out := ""
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "-quality":
			q, err := strconv.Atoi(args[i+1])
			if err != nil {
				return err
			}
			quality = q
		case "-o":
			out = args[i+1]
		}
	}
	o.qualities = append(o.qualities, quality)

	if o.failOver > 0 && quality > o.failOver {
		return errors.New("exit status 1")
	}
	return os.WriteFile(out, make([]byte, o.sizeFor(quality)), 0o644)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, exec encoder.Executor) (*rebuild.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	list := filepath.Join(dir, "buildlist.txt")
	require.NoError(t, os.WriteFile(list, []byte(filepath.Join(dir, "000.wav")+"\n"), 0o644))

	c, err := encoder.New("", encoder.WithExecutor(exec))
	require.NoError(t, err)

	return &rebuild.Engine{
		Encoder: c,
		Logger:  testLogger(),
		TempDir: dir,
	}, list
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestFixedRatePadsToExactTarget(t *testing.T) {
	exec := &oracleExecutor{sizeFor: func(int) int64 { return 700 }}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingPCM16}, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, exec.builds)
	require.EqualValues(t, 1000, fileSize(t, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	for _, b := range data[700:] {
		require.Zero(t, b)
	}
}

func TestFixedRateExactFitNeedsNoPadding(t *testing.T) {
	exec := &oracleExecutor{sizeFor: func(int) int64 { return 1000 }}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	var statuses []rebuild.Status
	eng.OnStatus = func(s rebuild.Status) { statuses = append(statuses, s) }

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingPCM16}, 1000)
	require.NoError(t, err)
	require.EqualValues(t, 1000, fileSize(t, out))
	require.NotContains(t, statuses, rebuild.StatusPadding)
	require.Equal(t, rebuild.StatusDone, statuses[len(statuses)-1])
}

func TestFixedRateOversizeRejectedByDefault(t *testing.T) {
	exec := &oracleExecutor{sizeFor: func(int) int64 { return 1200 }}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingPCM16}, 1000)
	require.ErrorIs(t, err, rebuild.ErrOversizeRejected)

	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestFixedRateOversizeAcceptedWhenConfirmed(t *testing.T) {
	exec := &oracleExecutor{sizeFor: func(int) int64 { return 1200 }}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	var gotActual, gotTarget int64
	eng.ConfirmOversize = func(actual, target int64) bool {
		gotActual, gotTarget = actual, target
		return true
	}

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingPCM16}, 1000)
	require.NoError(t, err)
	require.EqualValues(t, 1200, gotActual)
	require.EqualValues(t, 1000, gotTarget)
	require.EqualValues(t, 1200, fileSize(t, out))
}

func TestRunsWithoutLogger(t *testing.T) {
	exec := &oracleExecutor{sizeFor: func(int) int64 { return 700 }}
	eng, list := newEngine(t, exec)
	eng.Logger = nil
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingPCM16}, 1000)
	require.NoError(t, err)
	require.EqualValues(t, 1000, fileSize(t, out))
}

func TestSearchHonoursQualityCeiling(t *testing.T) {
	// Everything fits, but the caller capped quality at 40.
	exec := &oracleExecutor{sizeFor: func(q int) int64 { return 1000 + int64(q)*10 }}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(context.Background(), list, out,
		rebuild.Options{Format: fsb.EncodingMP3, Quality: 40}, 5000)
	require.NoError(t, err)

	for _, q := range exec.qualities {
		require.LessOrEqual(t, q, 40)
	}
	require.Equal(t, 40, exec.qualities[len(exec.qualities)-1])
	require.EqualValues(t, 5000, fileSize(t, out))
}

func TestSearchFindsHighestFittingQuality(t *testing.T) {
	// Monotonic oracle: size grows 10 bytes per quality step. Target
	// 1730 admits qualities up to 73.
	exec := &oracleExecutor{sizeFor: func(q int) int64 { return 1000 + int64(q)*10 }}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingMP3}, 1730)
	require.NoError(t, err)

	// Binary search over 0..100 plus one final real build.
	require.LessOrEqual(t, exec.builds, 8)
	require.Equal(t, 73, exec.qualities[len(exec.qualities)-1])
	require.EqualValues(t, 1730, fileSize(t, out))
}

func TestSearchLeavesNoProbeFiles(t *testing.T) {
	exec := &oracleExecutor{sizeFor: func(q int) int64 { return 1000 + int64(q)*10 }}
	eng, list := newEngine(t, exec)
	dir := filepath.Dir(list)
	out := filepath.Join(dir, "out.fsb")

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingMP3}, 1500)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"buildlist.txt", "out.fsb"}, names)
}

func TestSearchUnsatisfiable(t *testing.T) {
	exec := &oracleExecutor{sizeFor: func(q int) int64 { return 5000 + int64(q) }}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingVorbis}, 1000)
	require.ErrorIs(t, err, rebuild.ErrUnsatisfiable)

	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestSearchTreatsProbeFailureAsTooBig(t *testing.T) {
	// Qualities over 60 make the encoder exit non-zero; the search must
	// keep going instead of aborting, landing on the best of 0..60.
	exec := &oracleExecutor{
		sizeFor:  func(q int) int64 { return 1000 + int64(q)*10 },
		failOver: 60,
	}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(context.Background(), list, out, rebuild.Options{Format: fsb.EncodingMP3}, 1800)
	require.NoError(t, err)
	require.Equal(t, 60, exec.qualities[len(exec.qualities)-1])
	require.EqualValues(t, 1800, fileSize(t, out))
}

func TestSearchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	exec := &oracleExecutor{sizeFor: func(q int) int64 {
		cancel() // cancel mid-search
		return 1000 + int64(q)*10
	}}
	eng, list := newEngine(t, exec)
	out := filepath.Join(filepath.Dir(list), "out.fsb")

	err := eng.Rebuild(ctx, list, out, rebuild.Options{Format: fsb.EncodingMP3}, 1500)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, exec.builds, 3)
}

func TestRejectsNonPositiveTarget(t *testing.T) {
	eng, list := newEngine(t, &oracleExecutor{sizeFor: func(int) int64 { return 1 }})

	err := eng.Rebuild(context.Background(), list, filepath.Join(filepath.Dir(list), "out.fsb"),
		rebuild.Options{Format: fsb.EncodingPCM16}, 0)
	require.Error(t, err)
}
