package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"

	"voxloop/pkg/stt"
)

// ErrSilence is returned when the capture window closes without any voice.
// It matches stt.ErrNoSpeech.
var ErrSilence = fmt.Errorf("capture window closed: %w", stt.ErrNoSpeech)

type RecorderOptions struct {
	SampleRate int
	SilenceRMS float64       // frames above this RMS count as voice
	Silence    time.Duration // trailing silence that ends an utterance
	MaxLength  time.Duration
}

// Recorder captures single utterances from the default input device.
type Recorder struct {
	opts RecorderOptions
}

func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.SilenceRMS <= 0 {
		opts.SilenceRMS = 0.015
	}
	if opts.Silence <= 0 {
		opts.Silence = 600 * time.Millisecond
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = 10 * time.Second
	}
	return &Recorder{opts: opts}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Capture blocks until one utterance has been recorded. The result is mono
// float32 PCM at the configured sample rate.
func (r *Recorder) Capture(ctx context.Context) ([]float32, error) {
	frameSize := r.opts.SampleRate / 50 // 20ms

	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.opts.SampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	seg := newSegmenter(r.opts, frameSize)
	maxFrames := int(r.opts.MaxLength.Seconds() * float64(r.opts.SampleRate) / float64(frameSize))

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		if seg.push(buf) {
			break
		}
	}

	return seg.result()
}

// segmenter implements the RMS voice-activity rule: collect frames from the
// first voiced frame until enough consecutive quiet frames follow.
type segmenter struct {
	threshold   float64
	quietFrames int

	speaking bool
	quiet    int
	out      []float32
}

func newSegmenter(opts RecorderOptions, frameSize int) *segmenter {
	frameDur := time.Duration(frameSize) * time.Second / time.Duration(opts.SampleRate)
	quiet := int(opts.Silence / frameDur)
	if quiet < 1 {
		quiet = 1
	}
	return &segmenter{
		threshold:   opts.SilenceRMS,
		quietFrames: quiet,
		out:         make([]float32, 0, opts.SampleRate*3),
	}
}

// push reports true once the utterance is complete.
func (s *segmenter) push(frame []float32) bool {
	if frameRMS(frame) > s.threshold {
		s.speaking = true
		s.quiet = 0
		s.out = append(s.out, frame...)
		return false
	}

	if !s.speaking {
		return false
	}

	s.quiet++
	if s.quiet >= s.quietFrames {
		return true
	}
	s.out = append(s.out, frame...)
	return false
}

func (s *segmenter) result() ([]float32, error) {
	if !s.speaking {
		return nil, ErrSilence
	}
	return s.out, nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
