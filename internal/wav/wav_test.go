package wav_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/wav"
)

func TestWriteReadRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x12, 0x34}, 500)
	format := wav.Format{
		FormatTag:  wav.FormatPCM,
		Channels:   2,
		SampleRate: 48000,
		Bits:       16,
	}

	var buf bytes.Buffer
	w, err := wav.NewWriter(&buf, format, uint32(len(payload)))
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, wav.HeaderSize+len(payload), buf.Len())

	info, err := wav.ReadInfo(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, format, info.Format)
	require.EqualValues(t, len(payload), info.DataLen)
	require.EqualValues(t, wav.HeaderSize, info.DataOffset)

	require.Equal(t, payload, buf.Bytes()[info.DataOffset:int(info.DataOffset)+int(info.DataLen)])
}

func TestWriterShortPayload(t *testing.T) {
	var buf bytes.Buffer
	w, err := wav.NewWriter(&buf, wav.Format{FormatTag: wav.FormatPCM, Channels: 1, SampleRate: 44100, Bits: 16}, 100)
	require.NoError(t, err)

	_, err = w.Write(make([]byte, 40))
	require.NoError(t, err)

	err = w.Close()
	require.Error(t, err)
	require.EqualValues(t, 40, w.Written())
}

func TestFormatDerivedFields(t *testing.T) {
	f := wav.Format{FormatTag: wav.FormatFloat, Channels: 2, SampleRate: 44100, Bits: 32}
	require.EqualValues(t, 8, f.BlockAlign())
	require.EqualValues(t, 352800, f.ByteRate())
}

func TestReadInfoRejectsJunk(t *testing.T) {
	_, err := wav.ReadInfo(bytes.NewReader([]byte("OggS....not a wave file....")))
	require.Error(t, err)
}
