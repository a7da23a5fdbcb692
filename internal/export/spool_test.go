package export

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpoolStaysInMemoryUnderThreshold(t *testing.T) {
	s := NewSpool(1024)
	defer s.Close()

	_, err := s.Write([]byte("small payload"))
	require.NoError(t, err)
	require.False(t, s.Spilled())
	require.Equal(t, int64(len("small payload")), s.Size())

	r, err := s.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "small payload", string(data))
}

func TestSpoolSpillsToDiskOverThreshold(t *testing.T) {
	s := NewSpool(16)
	defer s.Close()

	payload := bytes.Repeat([]byte("abcdefgh"), 10)
	half := len(payload) / 2

	_, err := s.Write(payload[:half])
	require.NoError(t, err)
	_, err = s.Write(payload[half:])
	require.NoError(t, err)

	require.True(t, s.Spilled())
	require.Equal(t, int64(len(payload)), s.Size())

	r, err := s.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestSpoolDefaultThreshold(t *testing.T) {
	s := NewSpool(0)
	defer s.Close()

	_, err := s.Write(bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	require.False(t, s.Spilled())
}

func TestSpoolCloseRemovesTempFile(t *testing.T) {
	s := NewSpool(1)
	_, err := s.Write([]byte("forces a spill"))
	require.NoError(t, err)
	require.True(t, s.Spilled())

	name := s.file.Name()
	require.NoError(t, s.Close())
	require.NoFileExists(t, name)
}
