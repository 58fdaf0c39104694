package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/report"
)

func TestReportRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := report.NewWriter(&buf)
	require.NoError(t, w.WriteHeader(report.Header{
		Creator: report.NewCreator("fsbrepack", "test"),
		Source:  report.Source{HostFilename: "/data/archive.big", HostSize: 123456},
	}))
	require.NoError(t, w.WriteBank(report.Bank{
		Offset: 4096,
		Size:   2048,
		Samples: []report.Sample{
			{Index: 0, Name: "intro", Encoding: "pcm16", Channels: 2, Bits: 16, SampleRate: 44100, DataOffset: 128, DataLength: 1000},
			{Index: 1, Name: "outro", Encoding: "mp3", SampleRate: 44100, DataOffset: 1128, DataLength: 900},
		},
	}))
	require.NoError(t, w.WriteBank(report.Bank{Offset: 90000, Size: 64}))
	require.NoError(t, w.Close())

	hdr, banks, err := report.Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.Equal(t, "/data/archive.big", hdr.Source.HostFilename)
	require.EqualValues(t, 123456, hdr.Source.HostSize)
	require.Equal(t, "fsbrepack", hdr.Creator.Package)

	require.Len(t, banks, 2)
	require.EqualValues(t, 4096, banks[0].Offset)
	require.Len(t, banks[0].Samples, 2)
	require.Equal(t, "intro", banks[0].Samples[0].Name)
	require.Equal(t, "mp3", banks[0].Samples[1].Encoding)
	require.Empty(t, banks[1].Samples)
}
