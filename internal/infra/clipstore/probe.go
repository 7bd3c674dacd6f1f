package clipstore

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned by Probe for files without a valid RIFF/WAVE header.
var ErrNotWAV = errors.New("not a valid WAV file")

// ProbeInfo describes a WAV file without decoding its samples.
type ProbeInfo struct {
	Path       string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Probe reads the header of the WAV file at path.
func Probe(path string) (ProbeInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProbeInfo{}, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return ProbeInfo{}, errors.Wrapf(ErrNotWAV, "%s", path)
	}

	duration, err := dec.Duration()
	if err != nil {
		return ProbeInfo{}, errors.Wrapf(err, "failed to read duration of %s", path)
	}

	return ProbeInfo{
		Path:       path,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   duration,
	}, nil
}
