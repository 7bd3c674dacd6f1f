// Package clipstore loads audio clips into memory at startup and hands out
// read-only references to them.
package clipstore

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrClipNotFound    = errors.New("clip not found")
	ErrClipUnavailable = errors.New("clip failed to load")
)

// resampleQuality is the beep resampler quality used when a file's sample
// rate differs from the output device.
const resampleQuality = 4

// Clip is an immutable decoded audio resource.
type Clip struct {
	ID     string
	Path   string
	Format beep.Format

	buffer *beep.Buffer
}

// Duration returns the playable length of the clip.
func (c *Clip) Duration() time.Duration {
	return c.Format.SampleRate.D(c.buffer.Len())
}

// Len returns the number of samples in the clip.
func (c *Clip) Len() int {
	return c.buffer.Len()
}

// Streamer returns a fresh streamer positioned at the start of the clip.
// Each call yields an independent handle over the shared sample data.
func (c *Clip) Streamer() beep.StreamSeeker {
	return c.buffer.Streamer(0, c.buffer.Len())
}

// Store holds every clip loaded at startup.
type Store struct {
	mu         sync.RWMutex
	sampleRate beep.SampleRate
	clips      map[string]*Clip
	failed     map[string]error
}

// New creates an empty store that resamples clips to sampleRate.
func New(sampleRate beep.SampleRate) *Store {
	return &Store{
		sampleRate: sampleRate,
		clips:      make(map[string]*Clip),
		failed:     make(map[string]error),
	}
}

// LoadAll loads every clip in files (id -> file name relative to dir).
// Failures are recorded and logged once; the remaining clips still load.
// Returns the number of clips that failed.
func (s *Store) LoadAll(dir string, files map[string]string) int {
	ids := make([]string, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	failed := 0
	for _, id := range ids {
		path := files[id]
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := s.Load(id, path); err != nil {
			failed++
			zlog.Error().Msgf("clipstore: failed to load clip: id=%s path=%s err=%v", id, path, err)
			continue
		}
		clip, _ := s.Resolve(id)
		zlog.Info().Msgf("clipstore: loaded clip: id=%s path=%s duration=%v", id, path, clip.Duration())
	}
	return failed
}

// Load decodes the WAV file at path and registers it under id.
func (s *Store) Load(id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		s.markFailed(id, err)
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	clip, err := Decode(id, f, s.sampleRate)
	if err != nil {
		s.markFailed(id, err)
		return err
	}
	clip.Path = path

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[id] = clip
	delete(s.failed, id)
	return nil
}

// Decode reads a whole WAV stream into memory, resampled to sampleRate.
func Decode(id string, r io.Reader, sampleRate beep.SampleRate) (*Clip, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode clip %s", id)
	}
	defer streamer.Close()

	var source beep.Streamer = streamer
	if format.SampleRate != sampleRate {
		source = beep.Resample(resampleQuality, format.SampleRate, sampleRate, streamer)
		format.SampleRate = sampleRate
	}

	clip := FromStreamer(id, format, source)
	if err := streamer.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read clip %s", id)
	}
	if clip.Len() == 0 {
		return nil, errors.Newf("clip %s has no samples", id)
	}
	return clip, nil
}

// FromStreamer drains s into memory and wraps it as a clip.
func FromStreamer(id string, format beep.Format, s beep.Streamer) *Clip {
	buffer := beep.NewBuffer(format)
	buffer.Append(s)
	return &Clip{
		ID:     id,
		Format: format,
		buffer: buffer,
	}
}

func (s *Store) markFailed(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = err
}

// Resolve returns the clip registered under id.
func (s *Store) Resolve(id string) (*Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if clip, ok := s.clips[id]; ok {
		return clip, nil
	}
	if err, ok := s.failed[id]; ok {
		return nil, errors.Mark(errors.Wrapf(err, "clip %s", id), ErrClipUnavailable)
	}
	return nil, errors.Wrapf(ErrClipNotFound, "clip %s", id)
}

// IDs returns the ids of loaded clips in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.clips))
	for id := range s.clips {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close drops every clip. Only call at process shutdown.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = make(map[string]*Clip)
	s.failed = make(map[string]error)
}
