package listen

import (
	"context"
	"fmt"
	"io"
	log "log/slog"

	"voxloop/pkg/audioconv"
	"voxloop/pkg/stt"
)

// ReplaySource feeds prerecorded files to the Listener, one per Capture, and
// returns io.EOF once they are used up. Output is 16 kHz mono.
type ReplaySource struct {
	paths []string
	next  int
	opt   audioconv.Options
}

func NewReplaySource(paths []string, maxSeconds int) *ReplaySource {
	r := &ReplaySource{paths: paths}
	if maxSeconds > 0 {
		r.opt.MaxSamples = maxSeconds * audioconv.SampleRate
	}
	return r
}

func (r *ReplaySource) Capture(ctx context.Context) ([]float32, error) {
	if r.next >= len(r.paths) {
		return nil, io.EOF
	}
	path := r.paths[r.next]
	r.next++

	log.Debug("Replaying", "file", path)

	pcm, err := audioconv.DecodeFile(ctx, path, r.opt)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("replay %s: %w", path, stt.ErrNoSpeech)
	}
	return pcm, nil
}
