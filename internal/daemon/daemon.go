// Package daemon wires the session workflow to its adapters: the HTTP
// API and the unix control socket.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bkomar/voice-to-text-transcriber/internal/audio"
	"github.com/bkomar/voice-to-text-transcriber/internal/bus"
	"github.com/bkomar/voice-to-text-transcriber/internal/config"
	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
	"github.com/bkomar/voice-to-text-transcriber/internal/metrics"
	"github.com/bkomar/voice-to-text-transcriber/internal/model"
	"github.com/bkomar/voice-to-text-transcriber/internal/notify"
	"github.com/bkomar/voice-to-text-transcriber/internal/server"
	"github.com/bkomar/voice-to-text-transcriber/internal/session"
	"github.com/bkomar/voice-to-text-transcriber/internal/store"
)

type Daemon struct {
	ctx    context.Context
	cancel context.CancelFunc

	configMgr *config.Manager
	sessions  *session.Manager
	httpSrv   *server.Server
}

// New builds the full component graph from configuration.
func New() (*Daemon, error) {
	configMgr, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg := configMgr.GetConfig()

	logging.Init(cfg.ToLoggingConfig())

	ctx, cancel := context.WithCancel(context.Background())

	converter, err := audio.NewConverter(cfg.Storage.RecordingsDir)
	if err != nil {
		cancel()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	recorder := audio.NewRecorder(cfg.ToCaptureConfig())
	recorder.SetBytesCallback(func(n int) { m.AudioBytesRead.Add(float64(n)) })

	factory := model.DefaultFactory(cfg.Transcription.Provider, cfg.APIKeyOrEnv(), cfg.Transcription.Threads)
	models := model.NewRegistry(factory, m)

	transcripts := store.Open(cfg.Storage.TranscriptsFile, m)

	sessions := session.New(ctx, session.Options{
		Recorder:  recorder,
		Converter: converter,
		Registry:  models,
		Store:     transcripts,
		Notifier:  notify.ForType(cfg.Notifications.Type, cfg.Notifications.Enabled),
		Metrics:   m,
		Language:  cfg.Transcription.Language,
	})

	var gatherer prometheus.Gatherer
	if cfg.Server.Metrics {
		gatherer = registry
	}
	httpSrv := server.New(cfg.Server.Listen, sessions, m, gatherer)

	return &Daemon{
		ctx:       ctx,
		cancel:    cancel,
		configMgr: configMgr,
		sessions:  sessions,
		httpSrv:   httpSrv,
	}, nil
}

// Run starts the adapters and blocks until shutdown.
func (d *Daemon) Run() error {
	logger := logging.WithComponent("daemon")

	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if err := d.configMgr.StartWatching(d.ctx); err != nil {
		logger.Warn().Err(err).Msg("config watching disabled")
	}
	defer d.configMgr.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		d.cancel()
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	d.loadDefaultModel()
	d.httpSrv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = d.httpSrv.Stop(shutdownCtx)
	}()

	logger.Info().Msg("daemon started, listening on control socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				logger.Info().Msg("shutdown requested")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

// loadDefaultModel starts loading the configured model at startup. A
// load failure is reported but does not prevent the daemon from
// serving; transcription stays unavailable until a model loads.
func (d *Daemon) loadDefaultModel() {
	name := d.configMgr.GetConfig().Transcription.Model
	done := d.sessions.SwitchModel(d.ctx, name)
	go func() {
		if err := <-done; err != nil {
			logging.WithComponent("daemon").Error().Err(err).Str("model", name).Msg("default model load failed")
		}
	}()
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()
	logger := logging.WithComponent("daemon")

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}

	switch line[0] {
	case bus.CmdToggle:
		d.toggle(c)
	case bus.CmdStatus:
		d.status(c)
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		logger.Warn().Str("command", string(line[0])).Msg("unknown command")
		fmt.Fprintf(c, "ERR unknown=%q\n", line[0])
	}
}

func (d *Daemon) toggle(c net.Conn) {
	if !d.sessions.IsRecording() {
		if err := d.sessions.RecordStart(); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK recording\n")
		return
	}

	rec, err := d.sessions.RecordStop()
	if err != nil {
		if errors.Is(err, audio.ErrNotRecording) {
			fmt.Fprint(c, "OK idle\n")
			return
		}
		fmt.Fprintf(c, "ERR %v\n", err)
		return
	}
	fmt.Fprintf(c, "OK saved=%s\n", rec.ID)
}

func (d *Daemon) status(c net.Conn) {
	state := "idle"
	if d.sessions.IsRecording() {
		state = "recording"
	}
	modelName, ok := d.sessions.ActiveModel()
	if !ok {
		modelName = "none"
	}
	fmt.Fprintf(c, "STATUS status=%s model=%s\n", state, modelName)
}
