package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	goopenai "github.com/sashabaranov/go-openai"
	cli "github.com/spf13/pflag"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"voxloop/internal/action"
	"voxloop/internal/assistant"
	"voxloop/internal/audio"
	"voxloop/internal/bus"
	"voxloop/internal/config"
	"voxloop/internal/history"
	"voxloop/internal/ipc"
	"voxloop/internal/listen"
	"voxloop/internal/nlu"
	"voxloop/internal/notify"
	"voxloop/internal/proxy"
	"voxloop/internal/tts"
	"voxloop/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

var errStopRequested = errors.New("stop requested over control socket")

func setupLogging(level string) {
	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[level],
	})))
}

func main() {
	os.Exit(run())
}

func run() int {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "", "YAML config file")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address")
	busURL := cli.StringP("bus", "b", "", "Websocket url for turn events")
	historyPath := cli.String("history", "", "Sqlite history journal path")
	inputs := cli.StringSliceP("input", "i", nil, "Replay audio files instead of the microphone")
	cli.Parse()

	setupLogging(*logLevel)

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		return 1
	}

	flags := cli.CommandLine
	if flags.Changed("log") {
		cfg.LogLevel = *logLevel
	}
	if flags.Changed("proxy") {
		cfg.Proxy = *proxyAddr
	}
	if flags.Changed("bus") {
		cfg.BusURL = *busURL
	}
	if flags.Changed("history") {
		cfg.History = *historyPath
	}

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		return 1
	}
	setupLogging(cfg.LogLevel)

	log.Info("Booting up")

	apiKey, err := config.LoadAPIKey(*envFile)
	if err != nil {
		log.Error("Failed to load API key", "err", err)
		return 1
	}

	log.Debug("Loaded API Key")

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		return 1
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	chatClient := newChatClient(apiKey, cfg, httpClient)
	audioClient := newAudioClient(apiKey, cfg, httpClient)

	player := audio.NewPlayer()
	defer player.Close()

	speaker, err := newSpeaker(cfg, audioClient, player)
	if err != nil {
		log.Error("Failed to init speech output", "backend", cfg.TTS.Backend, "err", err)
		return 1
	}

	transcriber, err := newTranscriber(cfg, audioClient)
	if err != nil {
		log.Error("Failed to init recognizer", "backend", cfg.STT.Backend, "err", err)
		return 1
	}
	defer transcriber.Close()

	listenOpts := []listen.Option{listen.WithTimeout(cfg.Timeouts.STT.D())}
	if cfg.Listen.Cue != "" || cfg.Listen.Notify {
		listenOpts = append(listenOpts, listen.WithCue(notify.New(player, cfg.Listen.Cue, cfg.Listen.Notify)))
	}

	var source listen.Source
	if len(*inputs) > 0 {
		source = listen.NewReplaySource(*inputs, cfg.Listen.MaxSeconds)
		log.Info("Replaying input files", "count", len(*inputs))
	} else {
		rec := audio.NewRecorder(audio.RecorderOptions{
			SampleRate: cfg.Listen.SampleRate,
			SilenceRMS: cfg.Listen.SilenceRMS,
			Silence:    msDuration(cfg.Listen.SilenceMS),
			MaxLength:  secDuration(cfg.Listen.MaxSeconds),
		})
		if err := rec.Init(); err != nil {
			log.Error("Failed to init audio", "err", err)
			return 1
		}
		defer rec.Close()
		source = rec
		listenOpts = append(listenOpts, listen.WithSampleRate(cfg.Listen.SampleRate))
	}

	log.Debug("Loaded audio input")

	listener := listen.NewListener(speaker, source, transcriber, listenOpts...)
	parser := nlu.NewParser(chatClient, cfg.OpenAI.ChatModel, cfg.Timeouts.Chat.D())
	executor := action.NewExecutor(speaker, action.NewLauncher(cfg.Actions.OpenCommand),
		action.WithSearchURL(cfg.Actions.SearchURL),
		action.WithAllow(cfg.Actions.Allow),
	)

	var opts []assistant.Option
	if cfg.BusURL != "" {
		b, err := bus.Dial(ctx, cfg.BusURL)
		if err != nil {
			log.Warn("Running without event bus", "url", cfg.BusURL, "err", err)
		} else {
			defer b.Close()
			opts = append(opts, assistant.WithPublisher(b))
		}
	}
	if cfg.History != "" {
		db, err := history.Open(cfg.History)
		if err != nil {
			log.Warn("Running without history", "path", cfg.History, "err", err)
		} else {
			defer db.Close()
			opts = append(opts, assistant.WithJournal(db))
		}
	}

	srv, err := ipc.StartServer(cfg.ControlSocket, func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case ipc.CmdStop:
			log.Info("Stop requested")
			stop(errStopRequested)
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	})
	if err != nil {
		log.Warn("Control socket unavailable", "path", cfg.ControlSocket, "err", err)
	} else {
		defer srv.Close()
	}

	log.Info("Boot up - successful")

	a := assistant.New(speaker, listener, parser, executor, opts...)
	if err := a.Run(ctx); err != nil {
		log.Error("Assistant failed", "err", err)
		return 1
	}
	return 0
}

func newChatClient(apiKey string, cfg *config.Config, hc *http.Client) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(hc),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	return openai.NewClient(opts...)
}

func newAudioClient(apiKey string, cfg *config.Config, hc *http.Client) *goopenai.Client {
	c := goopenai.DefaultConfig(apiKey)
	if cfg.OpenAI.BaseURL != "" {
		c.BaseURL = cfg.OpenAI.BaseURL
	}
	c.HTTPClient = hc
	return goopenai.NewClientWithConfig(c)
}

func newSpeaker(cfg *config.Config, client *goopenai.Client, player *audio.Player) (assistant.Speaker, error) {
	if cfg.TTS.Backend == "espeak" {
		e, err := tts.NewEspeak(cfg.TTS.EspeakVoice)
		if err != nil {
			return nil, err
		}
		return e, nil
	}

	backend := tts.NewRemote(client, cfg.OpenAI.TTSModel, cfg.OpenAI.Voice, cfg.TTS.Format)
	opts := []tts.Option{
		tts.WithTempDir(cfg.TTS.TempDir),
		tts.WithTimeout(cfg.Timeouts.TTS.D()),
	}
	if cfg.Audio.Duck {
		opts = append(opts, tts.WithDucker(audio.NewDucker(
			cfg.Audio.SelfNames, cfg.Audio.DuckFactor, cfg.Audio.DuckMin, cfg.Audio.DuckFade.D())))
	}
	return tts.NewSynthesizer(backend, player, opts...), nil
}

func newTranscriber(cfg *config.Config, client *goopenai.Client) (stt.Transcriber, error) {
	if cfg.STT.Backend == "whisper" {
		w, err := stt.NewWhisper(cfg.STT.WhisperModel, stt.Options{
			Language: cfg.STT.Language,
			Threads:  cfg.STT.Threads,
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return stt.NewRemote(client, cfg.OpenAI.STTModel, cfg.STT.Language, cfg.TTS.TempDir), nil
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func secDuration(s int) time.Duration { return time.Duration(s) * time.Second }
