package workspace_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/decode"
	"fsbrepack/internal/fsb"
	"fsbrepack/internal/scan"
	"fsbrepack/internal/testsupport"
	"fsbrepack/internal/wav"
	"fsbrepack/internal/workspace"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func prepareWorkspace(t *testing.T, samples ...testsupport.BankSample) *workspace.Workspace {
	t.Helper()

	dir := t.TempDir()
	bank := testsupport.BuildBank(t, 1, samples...)
	host := testsupport.WriteHost(t, dir, "game.big", int64(1024+len(bank)+512), map[int64][]byte{1024: bank})

	ws, err := workspace.Prepare(
		context.Background(), discard(), decode.NewPCMEngine(),
		scan.ContainerRecord{HostPath: host, Offset: 1024},
		filepath.Join(dir, "work"),
	)
	require.NoError(t, err)
	t.Cleanup(ws.Cleanup)

	require.EqualValues(t, len(bank), ws.OriginalSize)
	return ws
}

func TestPrepareBuildsFullBuildSet(t *testing.T) {
	samples := []testsupport.BankSample{
		testsupport.PCM16Sample("intro", 100),
		testsupport.PCM16Sample("body", 400),
		testsupport.PCM16Sample("outro", 50),
	}
	ws := prepareWorkspace(t, samples...)

	// The isolated bank copy exists and reparses.
	f, err := os.Open(ws.BankPath)
	require.NoError(t, err)
	defer f.Close()
	st, err := f.Stat()
	require.NoError(t, err)
	_, parsed, err := fsb.ParseBank(f, 0, st.Size())
	require.NoError(t, err)
	require.Len(t, parsed, 3)

	// Build list: one absolute path per sample, index order, all present.
	data, err := os.ReadFile(ws.BuildListPath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		require.True(t, filepath.IsAbs(line))
		require.Contains(t, line, samples[i].Name)
		_, err := os.Stat(line)
		require.NoError(t, err)
	}

	// Manifest mirrors the bank.
	m, err := workspace.LoadManifest(ws.ManifestPath())
	require.NoError(t, err)
	require.Equal(t, "pcm16", m.BuildFormat)
	require.Len(t, m.SubSounds, 3)
	for i, e := range m.SubSounds {
		require.Equal(t, i, e.Index)
		require.Equal(t, samples[i].Name, e.Name)
		require.Equal(t, filepath.Join(fmt.Sprintf("%03d", i), samples[i].Name+".wav"), e.OriginalFileName)
	}
}

func TestSubstituteOverwritesTargetOnly(t *testing.T) {
	ws := prepareWorkspace(t,
		testsupport.PCM16Sample("keep", 200),
		testsupport.PCM16Sample("swap", 200),
	)

	m := ws.Manifest()
	keepPath := filepath.Join(ws.Root, m.SubSounds[0].OriginalFileName)
	swapPath := filepath.Join(ws.Root, m.SubSounds[1].OriginalFileName)

	keepBefore, err := os.ReadFile(keepPath)
	require.NoError(t, err)

	// Replacement: a plain WAV file with a recognizable payload.
	repl := filepath.Join(t.TempDir(), "new.wav")
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 0xAB
	}
	f, err := os.Create(repl)
	require.NoError(t, err)
	w, err := wav.NewWriter(f, wav.Format{FormatTag: wav.FormatPCM, Channels: 1, SampleRate: 44100, Bits: 16}, uint32(len(payload)))
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	require.NoError(t, ws.Substitute(decode.NewPCMEngine(), 1, repl, fsb.EncodingMP3))

	keepAfter, err := os.ReadFile(keepPath)
	require.NoError(t, err)
	require.Equal(t, keepBefore, keepAfter)

	swapped, err := os.Open(swapPath)
	require.NoError(t, err)
	defer swapped.Close()
	info, err := wav.ReadInfo(swapped)
	require.NoError(t, err)
	require.EqualValues(t, len(payload), info.DataLen)

	// The manifest now records the chosen target encoding.
	m, err = workspace.LoadManifest(ws.ManifestPath())
	require.NoError(t, err)
	require.Equal(t, "mp3", m.BuildFormat)

	_, err = m.Entry(1)
	require.NoError(t, err)
	_, err = m.Entry(7)
	require.Error(t, err)
}

func TestSubstituteRepeatedTargets(t *testing.T) {
	ws := prepareWorkspace(t,
		testsupport.PCM16Sample("first", 150),
		testsupport.PCM16Sample("keep", 150),
		testsupport.PCM16Sample("third", 150),
	)
	m := ws.Manifest()

	writeRepl := func(n int) string {
		path := filepath.Join(t.TempDir(), "new.wav")
		f, err := os.Create(path)
		require.NoError(t, err)
		w, err := wav.NewWriter(f, wav.Format{FormatTag: wav.FormatPCM, Channels: 1, SampleRate: 44100, Bits: 16}, uint32(n))
		require.NoError(t, err)
		_, err = w.Write(make([]byte, n))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, f.Close())
		return path
	}

	// Two targets before a single rebuild, each its own call.
	engine := decode.NewPCMEngine()
	require.NoError(t, ws.Substitute(engine, 0, writeRepl(500), fsb.EncodingPCM16))
	require.NoError(t, ws.Substitute(engine, 2, writeRepl(700), fsb.EncodingPCM16))

	sizeOf := func(rel string) int64 {
		info, err := os.Stat(filepath.Join(ws.Root, rel))
		require.NoError(t, err)
		return info.Size()
	}
	require.EqualValues(t, 500+wav.HeaderSize, sizeOf(m.SubSounds[0].OriginalFileName))
	require.EqualValues(t, 700+wav.HeaderSize, sizeOf(m.SubSounds[2].OriginalFileName))
	require.EqualValues(t, 300+wav.HeaderSize, sizeOf(m.SubSounds[1].OriginalFileName))
}

func TestCleanupRemovesEverything(t *testing.T) {
	ws := prepareWorkspace(t, testsupport.PCM16Sample("only", 10))
	root := ws.Root

	_, err := os.Stat(root)
	require.NoError(t, err)

	ws.Cleanup()

	_, err = os.Stat(root)
	require.True(t, os.IsNotExist(err))

	// Second call is harmless.
	ws.Cleanup()
}

func TestPrepareExportFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	vorbis := testsupport.BankSample{
		Name:       "music",
		Mode:       fsb.ModeVorbis,
		SampleRate: 44100,
		Channels:   2,
		Payload:    []byte{1, 2, 3, 4},
	}
	bank := testsupport.BuildBank(t, 1, testsupport.PCM16Sample("voice", 20), vorbis)
	host := testsupport.WriteHost(t, dir, "h.big", int64(len(bank)+256), map[int64][]byte{0: bank})

	_, err := workspace.Prepare(context.Background(), discard(), decode.NewPCMEngine(),
		scan.ContainerRecord{HostPath: host, Offset: 0}, filepath.Join(dir, "work"))
	require.ErrorIs(t, err, decode.ErrUnsupported)

	// The failed session unwound its half-built directory.
	entries, err := os.ReadDir(filepath.Join(dir, "work"))
	if err == nil {
		require.Empty(t, entries)
	}
}

func TestPrepareCancelled(t *testing.T) {
	dir := t.TempDir()
	bank := testsupport.BuildBank(t, 1, testsupport.PCM16Sample("a", 10))
	host := testsupport.WriteHost(t, dir, "h.big", int64(len(bank)+256), map[int64][]byte{0: bank})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := workspace.Prepare(ctx, discard(), decode.NewPCMEngine(),
		scan.ContainerRecord{HostPath: host, Offset: 0}, filepath.Join(dir, "work"))
	require.ErrorIs(t, err, context.Canceled)

	// The cancelled session left no workspace behind.
	entries, err := os.ReadDir(filepath.Join(dir, "work"))
	if err == nil {
		require.Empty(t, entries)
	}
}
