package engine

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripsSet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := EncodeRecord(&buf, Command{Kind: CommandSet, Key: "k", Value: "v"})
	require.NoError(t, err)

	stream := NewRecordStream(&buf, 0)

	cmd, start, end, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, CommandSet, cmd.Kind)
	require.Equal(t, "k", cmd.Key)
	require.Equal(t, "v", cmd.Value)
	require.Equal(t, uint64(0), start)
	require.Greater(t, end, start)
}

func TestEncodeDecodeRoundTripsRemove(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := EncodeRecord(&buf, Command{Kind: CommandRemove, Key: "k"})
	require.NoError(t, err)

	stream := NewRecordStream(&buf, 0)

	cmd, _, _, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, CommandRemove, cmd.Kind)
	require.Equal(t, "k", cmd.Key)
}

func TestRecordStreamExhaustsWithEOF(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := EncodeRecord(&buf, Command{Kind: CommandSet, Key: "k", Value: "v"})
	require.NoError(t, err)

	stream := NewRecordStream(&buf, 0)

	_, _, _, err = stream.Next()
	require.NoError(t, err)

	_, _, _, err = stream.Next()
	require.True(t, errors.Is(err, io.EOF))
}

func TestRecordStreamReadsMultipleConsecutiveRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := EncodeRecord(&buf, Command{Kind: CommandSet, Key: "a", Value: "1"})
	require.NoError(t, err)

	_, err = EncodeRecord(&buf, Command{Kind: CommandSet, Key: "b", Value: "2"})
	require.NoError(t, err)

	stream := NewRecordStream(&buf, 0)

	first, _, _, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, "a", first.Key)

	second, _, _, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, "b", second.Key)

	_, _, _, err = stream.Next()
	require.True(t, errors.Is(err, io.EOF))
}

func TestCorruptedRecordFailsChecksumVerification(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := EncodeRecord(&buf, Command{Kind: CommandSet, Key: "k", Value: "value"})
	require.NoError(t, err)

	corrupted := buf.Bytes()

	idx := bytes.Index(corrupted, []byte("value"))
	require.GreaterOrEqual(t, idx, 0)

	corrupted[idx] = 'w' // flip one payload byte without breaking JSON syntax

	stream := NewRecordStream(bytes.NewReader(corrupted), 0)

	_, _, _, err = stream.Next()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLogCorrupt))
}
