package decode_test

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/decode"
	"fsbrepack/internal/fsb"
	"fsbrepack/internal/testsupport"
	"fsbrepack/internal/wav"
)

func TestPCMEngine_EmbeddedBank(t *testing.T) {
	dir := t.TempDir()

	samples := []testsupport.BankSample{
		testsupport.PCM16Sample("intro", 300),
		testsupport.PCM16Sample("body", 700),
	}
	bank := testsupport.BuildBank(t, 1, samples...)
	host := testsupport.WriteHost(t, dir, "host.big", 4096, map[int64][]byte{512: bank})

	b, err := decode.NewPCMEngine().Open(host, 512)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, 2, b.NumSubSounds())

	for i, want := range samples {
		sub, err := b.SubSound(i)
		require.NoError(t, err)
		require.Equal(t, want.Name, sub.Name)
		require.Equal(t, fsb.EncodingPCM16, sub.Kind)
		require.EqualValues(t, len(want.Payload), sub.PCMLength)

		r, err := b.Reader(i)
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		require.Equal(t, want.Payload, got)
	}

	_, err = b.SubSound(5)
	require.Error(t, err)
}

func TestPCMEngine_CompressedIsUnsupported(t *testing.T) {
	dir := t.TempDir()

	s := testsupport.PCM16Sample("music", 100)
	s.Mode = fsb.ModeMP3
	bank := testsupport.BuildBank(t, 2, s)
	path := filepath.Join(dir, "bank.fsb")
	require.NoError(t, os.WriteFile(path, bank, 0o644))

	b, err := decode.NewPCMEngine().Open(path, 0)
	require.NoError(t, err)
	defer b.Close()

	sub, err := b.SubSound(0)
	require.NoError(t, err)
	require.Equal(t, fsb.EncodingMP3, sub.Kind)
	require.Zero(t, sub.PCMLength)

	_, err = b.Reader(0)
	require.ErrorIs(t, err, decode.ErrUnsupported)
}

func TestPCMEngine_WAVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.wav")

	payload := make([]byte, 640)
	for i := range payload {
		payload[i] = byte(i)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := wav.NewWriter(f, wav.Format{FormatTag: wav.FormatPCM, Channels: 2, SampleRate: 22050, Bits: 16}, uint32(len(payload)))
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	b, err := decode.NewPCMEngine().Open(path, 0)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, 1, b.NumSubSounds())
	sub, err := b.SubSound(0)
	require.NoError(t, err)
	require.Equal(t, 2, sub.Channels)
	require.Equal(t, 22050, sub.SampleRate)
	require.EqualValues(t, len(payload), sub.PCMLength)

	r, err := b.Reader(0)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestPCMEngine_ImplicitSubSound(t *testing.T) {
	dir := t.TempDir()

	// Zero declared samples, but a non-empty data section.
	bank := testsupport.BuildBank(t, 1)
	bank[16] = 64 // dataSize
	bank = append(bank, make([]byte, 64)...)

	path := filepath.Join(dir, "implicit.fsb")
	require.NoError(t, os.WriteFile(path, bank, 0o644))

	b, err := decode.NewPCMEngine().Open(path, 0)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, 0, b.NumSubSounds())

	sub, err := b.SubSound(0)
	require.NoError(t, err)
	require.EqualValues(t, 64, sub.PCMLength)

	r, err := b.Reader(0)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, got, 64)
}

func TestSerializeGuardsConcurrentReads(t *testing.T) {
	dir := t.TempDir()

	bank := testsupport.BuildBank(t, 1,
		testsupport.PCM16Sample("a", 4096),
		testsupport.PCM16Sample("b", 4096),
	)
	path := filepath.Join(dir, "bank.fsb")
	require.NoError(t, os.WriteFile(path, bank, 0o644))

	engine := decode.Serialize(decode.NewPCMEngine())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			b, err := engine.Open(path, 0)
			require.NoError(t, err)
			defer b.Close()

			r, err := b.Reader(g % 2)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.Len(t, got, 8192)
		}(g)
	}
	wg.Wait()
}
