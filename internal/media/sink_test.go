package media

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct {
	*bytes.Buffer
	closed bool
}

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func TestFileSink(t *testing.T) {
	video := &nopCloser{Buffer: &bytes.Buffer{}}
	s := NewFileSink(video, nil)

	f := newFrame(tiny)
	f.Data[0] = 0xAA
	require.NoError(t, s.WriteVideo(f))
	require.NoError(t, s.WriteVideo(f))
	assert.Equal(t, 2*tiny.Size(), video.Len())
	assert.Equal(t, byte(0xAA), video.Bytes()[tiny.Size()])

	// Audio is discarded without a writer.
	require.NoError(t, s.WriteAudio(&AudioChunk{Data: []byte{1, 2}}))

	other := newFrame(Geometry{Width: 2, Height: 2, Format: NV21})
	assert.Error(t, s.WriteVideo(other))

	require.NoError(t, s.Close())
	assert.True(t, video.closed)
	require.NoError(t, s.WriteVideo(f))
}

func TestCreateFileSink(t *testing.T) {
	dir := t.TempDir()

	audioPath := filepath.Join(dir, "audio.pcm")
	s, err := CreateFileSink("", audioPath)
	require.NoError(t, err)
	require.NoError(t, s.WriteAudio(&AudioChunk{Data: []byte{1, 2, 3, 4}}))
	require.NoError(t, s.WriteVideo(newFrame(tiny)))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(audioPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = CreateFileSink(filepath.Join(dir, "missing", "video.yuv"), "")
	assert.Error(t, err)
}

func TestTee(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{fail: true}
	sink := Tee(b, a)

	f := newFrame(tiny)
	f.Seq = 3
	assert.Error(t, sink.WriteVideo(f))
	assert.Error(t, sink.WriteAudio(&AudioChunk{Seq: 1}))
	// A failing sink does not starve the others.
	assert.Equal(t, 1, a.videoCount())
	assert.Equal(t, 1, a.audioCount())

	assert.Equal(t, Discard, Tee())
	assert.Equal(t, Sink(a), Tee(a))
}
