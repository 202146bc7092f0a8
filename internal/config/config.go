package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv names the environment variable holding the OpenAI secret.
const APIKeyEnv = "OPENAI_API_KEY"

var ErrMissingAPIKey = errors.New(APIKeyEnv + " not set")

type Config struct {
	LogLevel      string         `yaml:"log_level"`
	Proxy         string         `yaml:"proxy"`
	BusURL        string         `yaml:"bus_url"`
	History       string         `yaml:"history"`
	ControlSocket string         `yaml:"control_socket"`
	OpenAI        OpenAIConfig   `yaml:"openai"`
	STT           STTConfig      `yaml:"stt"`
	TTS           TTSConfig      `yaml:"tts"`
	Listen        ListenConfig   `yaml:"listen"`
	Actions       ActionsConfig  `yaml:"actions"`
	Audio         AudioConfig    `yaml:"audio"`
	Timeouts      TimeoutsConfig `yaml:"timeouts"`
}

type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	ChatModel string `yaml:"chat_model"`
	TTSModel  string `yaml:"tts_model"`
	Voice     string `yaml:"voice"`
	STTModel  string `yaml:"stt_model"`
}

type STTConfig struct {
	Backend      string `yaml:"backend"` // "openai" or "whisper"
	WhisperModel string `yaml:"whisper_model"`
	Language     string `yaml:"language"`
	Threads      int    `yaml:"threads"`
}

type TTSConfig struct {
	Backend     string `yaml:"backend"` // "openai" or "espeak"
	Format      string `yaml:"format"`  // "mp3" or "wav"
	EspeakVoice string `yaml:"espeak_voice"`
	TempDir     string `yaml:"temp_dir"`
}

type ListenConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	SilenceRMS float64 `yaml:"silence_rms"`
	SilenceMS  int     `yaml:"silence_ms"`
	MaxSeconds int     `yaml:"max_seconds"`
	Cue        string  `yaml:"cue"`
	Notify     bool    `yaml:"notify"`
}

type ActionsConfig struct {
	SearchURL   string   `yaml:"search_url"`
	OpenCommand string   `yaml:"open_command"`
	Allow       []string `yaml:"allow"`
}

type AudioConfig struct {
	Duck       bool     `yaml:"duck"`
	DuckFactor float64  `yaml:"duck_factor"`
	DuckMin    int      `yaml:"duck_min"`
	DuckFade   Duration `yaml:"duck_fade"`
	SelfNames  []string `yaml:"self_names"`
}

type TimeoutsConfig struct {
	STT  Duration `yaml:"stt"`
	Chat Duration `yaml:"chat"`
	TTS  Duration `yaml:"tts"`
}

// Duration reads "30s"-style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

func Default() *Config {
	return &Config{
		LogLevel:      "info",
		ControlSocket: "/tmp/voxloop.sock",
		OpenAI: OpenAIConfig{
			ChatModel: "gpt-3.5-turbo",
			TTSModel:  "tts-1",
			Voice:     "nova",
			STTModel:  "whisper-1",
		},
		STT: STTConfig{
			Backend:  "openai",
			Language: "en",
		},
		TTS: TTSConfig{
			Backend:     "openai",
			Format:      "mp3",
			EspeakVoice: "en",
		},
		Listen: ListenConfig{
			SampleRate: 16000,
			SilenceRMS: 0.015,
			SilenceMS:  600,
			MaxSeconds: 10,
		},
		Actions: ActionsConfig{
			SearchURL: "https://www.google.com/search?q=",
		},
		Audio: AudioConfig{
			DuckFactor: 0.3,
			DuckMin:    10,
			DuckFade:   Duration(300 * time.Millisecond),
			SelfNames:  []string{"voxloop"},
		},
		Timeouts: TimeoutsConfig{
			STT:  Duration(60 * time.Second),
			Chat: Duration(30 * time.Second),
			TTS:  Duration(30 * time.Second),
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.STT.WhisperModel = expandTilde(cfg.STT.WhisperModel)
	cfg.History = expandTilde(cfg.History)
	cfg.Listen.Cue = expandTilde(cfg.Listen.Cue)

	return cfg, nil
}

// LoadAPIKey loads envFile (if present) into the process environment and
// returns the OpenAI key.
func LoadAPIKey(envFile string) (string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.STT.Backend {
	case "openai":
	case "whisper":
		if c.STT.WhisperModel == "" {
			return fmt.Errorf("stt.whisper_model must be set for the whisper backend")
		}
	default:
		return fmt.Errorf("stt.backend must be \"openai\" or \"whisper\", got %q", c.STT.Backend)
	}

	switch c.TTS.Backend {
	case "openai", "espeak":
	default:
		return fmt.Errorf("tts.backend must be \"openai\" or \"espeak\", got %q", c.TTS.Backend)
	}

	switch c.TTS.Format {
	case "mp3", "wav":
	default:
		return fmt.Errorf("tts.format must be mp3 or wav, got %q", c.TTS.Format)
	}

	if c.Listen.SampleRate <= 0 {
		return fmt.Errorf("listen.sample_rate must be > 0")
	}
	if c.Listen.SilenceMS <= 0 {
		return fmt.Errorf("listen.silence_ms must be > 0")
	}
	if c.Listen.MaxSeconds <= 0 {
		return fmt.Errorf("listen.max_seconds must be > 0")
	}

	if c.Actions.SearchURL == "" {
		return fmt.Errorf("actions.search_url must not be empty")
	}

	if c.Audio.DuckFactor < 0 || c.Audio.DuckFactor > 1 {
		return fmt.Errorf("audio.duck_factor must be within [0, 1], got %v", c.Audio.DuckFactor)
	}

	for name, d := range map[string]Duration{
		"timeouts.stt":  c.Timeouts.STT,
		"timeouts.chat": c.Timeouts.Chat,
		"timeouts.tts":  c.Timeouts.TTS,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}

	return nil
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
