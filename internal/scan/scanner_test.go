package scan_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/scan"
	"fsbrepack/internal/testsupport"
)

func TestScan_FindsAllBanks(t *testing.T) {
	dir := t.TempDir()

	bankA := testsupport.BuildBank(t, 1, testsupport.PCM16Sample("a", 200))
	bankB := testsupport.BuildBank(t, 2, testsupport.PCM16Sample("b", 600), testsupport.PCM16Sample("c", 100))

	host := testsupport.WriteHost(t, dir, "archive.dat", 256*1024, map[int64][]byte{
		100:    bankA,
		70000:  bankB,
		200000: bankA,
	})

	f, err := os.Open(host)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	sc := scan.Scanner{ChunkSize: 32 * 1024}
	records, err := sc.Scan(context.Background(), host, f, info.Size())
	require.NoError(t, err)

	require.Len(t, records, 3)
	require.EqualValues(t, 100, records[0].Offset)
	require.EqualValues(t, 70000, records[1].Offset)
	require.EqualValues(t, 200000, records[2].Offset)
	require.Equal(t, host, records[0].HostPath)
}

func TestScan_SignatureStraddlesChunkBoundary(t *testing.T) {
	dir := t.TempDir()

	bank := testsupport.BuildBank(t, 1, testsupport.PCM16Sample("edge", 500))
	chunk := 16 * 1024

	// Start the bank two bytes before a chunk boundary so the signature
	// is split across reads.
	off := int64(chunk - 2)
	host := testsupport.WriteHost(t, dir, "edge.dat", int64(chunk*4), map[int64][]byte{off: bank})

	f, err := os.Open(host)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	sc := scan.Scanner{ChunkSize: chunk}
	records, err := sc.Scan(context.Background(), host, f, info.Size())
	require.NoError(t, err)

	require.Len(t, records, 1)
	require.Equal(t, off, records[0].Offset)
}

func TestScan_NoBanksIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	host := testsupport.WriteHost(t, dir, "plain.dat", 10000, nil)

	f, err := os.Open(host)
	require.NoError(t, err)
	defer f.Close()

	var sc scan.Scanner
	records, err := sc.Scan(context.Background(), host, f, 10000)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestScan_FileShorterThanHeaderIsSkipped(t *testing.T) {
	var sc scan.Scanner
	records, err := sc.Scan(context.Background(), "tiny", bytes.NewReader([]byte("FSB4")), 4)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestScan_RejectsBogusCandidates(t *testing.T) {
	dir := t.TempDir()

	// A lone signature with junk after it must not produce a record.
	host := testsupport.WriteHost(t, dir, "bogus.dat", 4096, nil)
	data, err := os.ReadFile(host)
	require.NoError(t, err)
	copy(data[1000:], "FSB4")
	data[1008] = 0xFF // sample count goes negative
	data[1009] = 0xFF
	data[1010] = 0xFF
	data[1011] = 0xFF
	require.NoError(t, os.WriteFile(host, data, 0o644))

	f, err := os.Open(host)
	require.NoError(t, err)
	defer f.Close()

	var sc scan.Scanner
	records, err := sc.Scan(context.Background(), host, f, int64(len(data)))
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestScan_FileEqualToBufferDoesNotLoop(t *testing.T) {
	dir := t.TempDir()

	bank := testsupport.BuildBank(t, 1, testsupport.PCM16Sample("x", 50))
	size := int64(8 * 1024)
	host := testsupport.WriteHost(t, dir, "exact.dat", size, map[int64][]byte{64: bank})

	f, err := os.Open(host)
	require.NoError(t, err)
	defer f.Close()

	sc := scan.Scanner{ChunkSize: int(size)}
	records, err := sc.Scan(context.Background(), host, f, size)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestScan_Cancellation(t *testing.T) {
	dir := t.TempDir()
	host := testsupport.WriteHost(t, dir, "big.dat", 512*1024, nil)

	f, err := os.Open(host)
	require.NoError(t, err)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sc scan.Scanner
	_, err = sc.Scan(ctx, host, f, 512*1024)
	require.ErrorIs(t, err, context.Canceled)
}

func TestScanFiles_AggregatesPerFileFailures(t *testing.T) {
	dir := t.TempDir()

	bank := testsupport.BuildBank(t, 2, testsupport.PCM16Sample("only", 100))
	good := testsupport.WriteHost(t, dir, "good.dat", 32*1024, map[int64][]byte{4096: bank})
	missing := dir + "/does-not-exist.dat"

	results := scan.ScanFiles(context.Background(), []string{good, missing}, scan.Options{WithSamples: true})
	require.Len(t, results, 2)

	require.False(t, results[0].Failed())
	require.Len(t, results[0].Banks, 1)
	require.EqualValues(t, 4096, results[0].Banks[0].Record.Offset)
	require.Equal(t, int64(len(bank)), results[0].Banks[0].TotalSize)
	require.Len(t, results[0].Banks[0].Samples, 1)
	require.Equal(t, "only", results[0].Banks[0].Samples[0].Name)

	require.True(t, results[1].Failed())
	require.True(t, errors.Is(results[1].Err, os.ErrNotExist))
}

func TestScanProgressIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	host := testsupport.WriteHost(t, dir, "prog.dat", 200*1024, nil)

	f, err := os.Open(host)
	require.NoError(t, err)
	defer f.Close()

	var seen []int64
	sc := scan.Scanner{
		ChunkSize:  32 * 1024,
		OnProgress: func(p int64) { seen = append(seen, p) },
	}
	_, err = sc.Scan(context.Background(), host, f, 200*1024)
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		require.Greater(t, seen[i], seen[i-1])
	}
	require.EqualValues(t, 200*1024, seen[len(seen)-1])
}
