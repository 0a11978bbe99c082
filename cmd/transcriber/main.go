package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"whisper-web/config"
	"whisper-web/internal/application"
	"whisper-web/internal/domain"
	"whisper-web/internal/infra/audio"
	"whisper-web/internal/infra/console"
	"whisper-web/internal/infra/decoder"
	"whisper-web/internal/infra/openai"
	"whisper-web/internal/infra/pushover"
	"whisper-web/internal/infra/web"
	"whisper-web/internal/infra/worker"
	"whisper-web/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "transcribe the configured source once and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("loading .env", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, *once, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("transcriber error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, once bool, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	source, err := createAudioSource(cfg, logger)
	if err != nil {
		return err
	}
	if err := source.Start(ctx); err != nil {
		return fmt.Errorf("starting %s source: %w", source.Name(), err)
	}
	defer source.Stop()

	dec := createDecoder(cfg.Decoder, logger)

	w, closeWorker, err := createWorker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWorker()

	notifier := createNotifier(cfg.Pushover, logger)

	if once {
		view := console.NewView(os.Stdout)
		transcriber := application.NewTranscriber(source, dec, w, view, notifier, m, logger)
		return runOnce(ctx, transcriber)
	}

	if !cfg.HTTP.Enabled {
		return errors.New("nothing to serve: enable http or use -once")
	}

	state := web.NewState()
	transcriber := application.NewTranscriber(source, dec, w, state, notifier, m, logger)

	opts := web.Options{
		Addr:           cfg.HTTP.Addr,
		AuthToken:      cfg.HTTP.AuthToken,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	if upload, ok := source.(*audio.UploadSource); ok {
		opts.Selector = upload
	}
	server := web.NewServer(opts, transcriber, state, m, logger)

	logger.Info("starting whisper web",
		"source", cfg.Source.Kind,
		"worker", cfg.Worker.Kind,
		"addr", cfg.HTTP.Addr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return transcriber.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	return g.Wait()
}

// runOnce submits a single transcription and waits for its terminal status.
func runOnce(ctx context.Context, transcriber *application.Transcriber) error {
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()

	relayDone := make(chan error, 1)
	go func() { relayDone <- transcriber.Run(relayCtx) }()

	if _, err := transcriber.Submit(ctx); err != nil {
		return err
	}

	idle := make(chan error, 1)
	go func() { idle <- transcriber.WaitIdle(ctx) }()

	select {
	case err := <-idle:
		return err
	case err := <-relayDone:
		return fmt.Errorf("relay stopped before completion: %w", err)
	}
}

func createAudioSource(cfg *config.Config, logger *slog.Logger) (application.AudioSource, error) {
	switch cfg.Source.Kind {
	case "file":
		return audio.NewFilePicker(cfg.Source.Files...), nil
	case "dir":
		return audio.NewDirSource(cfg.Source.Dir), nil
	case "url":
		return audio.NewURLSource(cfg.Source.URL, cfg.FetchTimeout(), logger), nil
	case "upload":
		return audio.NewUploadSource(), nil
	case "microphone":
		return audio.NewMicrophoneSource(domain.TargetSampleRate, cfg.RecordDuration(), logger), nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source.Kind)
	}
}

func createDecoder(cfg config.DecoderConfig, logger *slog.Logger) *decoder.Decoder {
	var converter decoder.Converter
	if cfg.FFmpegPath != "" {
		ff := decoder.NewFFmpeg(cfg.FFmpegPath, domain.TargetSampleRate)
		if ff.Available() {
			converter = ff
		} else {
			logger.Warn("ffmpeg not found, only wav and mp3 input will decode", "path", cfg.FFmpegPath)
		}
	}
	return decoder.New(domain.TargetSampleRate, converter, logger)
}

func createWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (application.Worker, func(), error) {
	switch cfg.Worker.Kind {
	case "local":
		engine := openai.NewWhisperEngine(openai.Options{
			APIKey:  cfg.Worker.APIKey,
			BaseURL: cfg.Worker.BaseURL,
			Model:   cfg.Worker.EngineModel,
			Timeout: cfg.WorkerTimeout(),
		})
		local := worker.NewLocal(engine, logger)
		local.Start()
		return local, local.Stop, nil
	case "websocket":
		remote := worker.NewRemote(cfg.Worker.Endpoint, logger)
		if err := remote.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return remote, func() {
			if err := remote.Close(); err != nil {
				logger.Warn("closing worker connection", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown worker kind %q", cfg.Worker.Kind)
	}
}

func createNotifier(cfg config.PushoverConfig, logger *slog.Logger) application.Notifier {
	if cfg.Enabled {
		return pushover.NewClient(cfg.Token, cfg.UserKey)
	}
	return &application.LogNotifier{Logger: logger}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
