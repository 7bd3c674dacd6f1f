package clipstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes a 16-bit stereo PCM file with frames samples per channel.
func writeTestWAV(t *testing.T, path string, sampleRate, frames int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	data := make([]int, frames*2)
	for i := range data {
		data[i] = (i % 200) * 100
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestStore_LoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "goal.wav"), 44100, 44100/2)

	store := New(beep.SampleRate(44100))
	require.NoError(t, store.Load("goal", filepath.Join(dir, "goal.wav")))

	clip, err := store.Resolve("goal")
	require.NoError(t, err)
	assert.Equal(t, "goal", clip.ID)
	assert.Equal(t, 44100/2, clip.Len())
	assert.Equal(t, 500*time.Millisecond, clip.Duration())
	assert.Equal(t, []string{"goal"}, store.IDs())
}

func TestStore_ResamplesToDeviceRate(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "crowd.wav"), 22050, 22050)

	store := New(beep.SampleRate(44100))
	require.NoError(t, store.Load("crowd", filepath.Join(dir, "crowd.wav")))

	clip, err := store.Resolve("crowd")
	require.NoError(t, err)
	assert.Equal(t, beep.SampleRate(44100), clip.Format.SampleRate)
	assert.InDelta(t, float64(time.Second), float64(clip.Duration()), float64(10*time.Millisecond))
}

func TestStore_StreamerStartsAtZero(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "goal.wav"), 44100, 1000)

	store := New(beep.SampleRate(44100))
	require.NoError(t, store.Load("goal", filepath.Join(dir, "goal.wav")))
	clip, err := store.Resolve("goal")
	require.NoError(t, err)

	first := clip.Streamer()
	samples := make([][2]float64, 600)
	n, ok := first.Stream(samples)
	assert.Equal(t, 600, n)
	assert.True(t, ok)
	assert.Equal(t, 600, first.Position())

	second := clip.Streamer()
	assert.Equal(t, 0, second.Position())
	assert.Equal(t, 1000, second.Len())
}

func TestStore_LoadAllContainsFailures(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "goal.wav"), 44100, 100)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("not audio"), 0o600))

	store := New(beep.SampleRate(44100))
	failed := store.LoadAll(dir, map[string]string{
		"goal":    "goal.wav",
		"broken":  "broken.wav",
		"missing": "missing.wav",
	})

	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"goal"}, store.IDs())

	_, err := store.Resolve("broken")
	assert.True(t, errors.Is(err, ErrClipUnavailable))

	_, err = store.Resolve("missing")
	assert.True(t, errors.Is(err, ErrClipUnavailable))

	_, err = store.Resolve("never-configured")
	assert.True(t, errors.Is(err, ErrClipNotFound))
}

func TestStore_Close(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "goal.wav"), 44100, 100)

	store := New(beep.SampleRate(44100))
	require.NoError(t, store.Load("goal", filepath.Join(dir, "goal.wav")))
	store.Close()

	assert.Empty(t, store.IDs())
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.wav")
	writeTestWAV(t, path, 48000, 48000*2)

	info, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 16, info.BitDepth)
	assert.InDelta(t, float64(2*time.Second), float64(info.Duration), float64(10*time.Millisecond))

	bad := filepath.Join(dir, "bad.wav")
	require.NoError(t, os.WriteFile(bad, []byte("RIFFnope"), 0o600))
	_, err = Probe(bad)
	assert.True(t, errors.Is(err, ErrNotWAV))
}
