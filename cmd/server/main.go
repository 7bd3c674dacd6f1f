// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/faiface/beep"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/goalhorn/internal/api/connect"
	"github.com/osa030/goalhorn/internal/api/ws"
	"github.com/osa030/goalhorn/internal/app/dispatch"
	"github.com/osa030/goalhorn/internal/app/executor"
	"github.com/osa030/goalhorn/internal/app/notification"
	"github.com/osa030/goalhorn/internal/app/playback"
	"github.com/osa030/goalhorn/internal/infra/audio/speaker"
	"github.com/osa030/goalhorn/internal/infra/clipstore"
	"github.com/osa030/goalhorn/internal/infra/config"
	"github.com/osa030/goalhorn/internal/infra/logger"
)

var (
	app        = kingpin.New("goalhorn-server", "goalhorn soundboard server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-actions command
	listActionsCmd = app.Command("list-actions", "List available actions and exit")

	// list-clips command
	listClipsCmd = app.Command("list-clips", "Probe the configured clip files and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listActionsCmd.FullCommand() {
		printActions(os.Stdout)
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == listClipsCmd.FullCommand() {
		printClips(os.Stdout, cfg)
		return
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	sampleRate := beep.SampleRate(cfg.Audio.SampleRate)

	// Clip files are keyed by file name so slots can share a clip
	store := clipstore.New(sampleRate)
	defer store.Close()
	files := make(map[string]string, len(cfg.Slots))
	for _, slot := range cfg.Slots {
		files[slot.File] = slot.File
	}
	if failed := store.LoadAll(cfg.Audio.ClipDir, files); failed > 0 {
		zlog.Warn().Msgf("%d clip(s) failed to load, their slots will stay silent", failed)
	}

	device, err := speaker.OpenDevice(speaker.DeviceConfig{
		SampleRate: sampleRate,
		Buffer:     cfg.Audio.BufferDuration(),
		MinGainDB:  cfg.Audio.MinGainDB,
		MaxGainDB:  cfg.Audio.MaxGainDB,
		Disabled:   cfg.Audio.Disabled,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer device.Close()

	pool := executor.New(executor.Config{
		Workers:   cfg.Executor.Workers,
		QueueSize: cfg.Executor.QueueSize,
	})
	sched := executor.NewScheduler()

	board, err := playback.NewBoard(boardConfig(cfg, store), device, pool, sched)
	if err != nil {
		pool.Close()
		return fmt.Errorf("failed to create board: %w", err)
	}
	go logEvents(board.Events())

	notifier := notification.NewManager()

	dispatcher, err := dispatch.New(&dispatch.Env{
		Board:    board,
		Lanes:    pool,
		Sched:    sched,
		Notifier: notifier,
	}, cfg.Commands)
	if err != nil {
		pool.Close()
		board.Close()
		notifier.Close()
		return fmt.Errorf("invalid command config: %w", err)
	}

	wsServer := ws.NewServer(dispatcher, notifier, cfg.Server.OriginPatterns)
	adminService := apiconnect.NewAdminService(dispatcher, board, notifier)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.CommandPath, wsServer.CommandHandler())
	mux.Handle(cfg.Server.ClientPath, wsServer.ClientHandler())

	adminAuthInterceptor := apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)
	adminPath, adminHandler := apiconnect.NewAdminServiceHandler(
		adminService,
		connect.WithInterceptors(adminAuthInterceptor),
	)
	mux.Handle(adminPath, adminHandler)

	if cfg.Server.StaticDir != "" {
		zlog.Info().Msgf("Serving static files: dir=%s", cfg.Server.StaticDir)
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s commands=%d slots=%d", serverAddr, len(cfg.Commands), len(cfg.Slots))
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	// Stop intake first so no command lands on a closing board
	wsServer.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	sched.Close()
	board.ForceStopAll()
	pool.Close()
	board.Close()
	notifier.Close()

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// boardConfig resolves each configured slot to its loaded clip. A slot
// whose clip failed to load keeps a nil clip and stays silent.
func boardConfig(cfg *config.Config, store *clipstore.Store) playback.BoardConfig {
	bc := playback.BoardConfig{
		Slots:          make(map[string]playback.SlotSpec, len(cfg.Slots)),
		ContinuousSlot: cfg.ContinuousSlot,
		Ramp: playback.RampConfig{
			Steps:        cfg.Fade.Steps,
			StepDuration: cfg.Fade.StepDuration(),
			HeadroomDB:   cfg.Audio.HeadroomDB,
		},
	}
	for _, name := range cfg.SlotNames() {
		slot := cfg.Slots[name]
		clip, err := store.Resolve(slot.File)
		if err != nil {
			zlog.Warn().Msgf("Slot %s unusable: %v", name, err)
		}
		bc.Slots[name] = playback.SlotSpec{Clip: clip, Loop: slot.Loop}
	}
	return bc
}

// logEvents logs slot events until the board closes.
func logEvents(events <-chan playback.Event) {
	for ev := range events {
		switch ev.Type {
		case playback.EventFadeCompleted, playback.EventEnded, playback.EventStopped:
			zlog.Info().Msgf("playback: %s: slot=%s state=%s", ev.Type, ev.Slot, ev.State)
		default:
			zlog.Debug().Msgf("playback: %s: slot=%s state=%s", ev.Type, ev.Slot, ev.State)
		}
	}
}

// printActions prints available actions.
func printActions(w io.Writer) {
	registry := dispatch.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available Actions:")
	for _, name := range names {
		a := registry[name]()
		fmt.Fprintf(w, "  %-12s - %s\n", a.Name(), a.Description())
	}
}

// printClips probes every configured clip file.
func printClips(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configured Clips:")
	for _, name := range cfg.SlotNames() {
		slot := cfg.Slots[name]
		path := slot.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Audio.ClipDir, path)
		}

		info, err := clipstore.Probe(path)
		if err != nil {
			fmt.Fprintf(w, "  %-16s %s: ERROR %v\n", name, path, err)
			continue
		}
		fmt.Fprintf(w, "  %-16s %s: %d Hz, %d ch, %d bit, %v (loop=%v)\n",
			name, path, info.SampleRate, info.Channels, info.BitDepth, info.Duration.Round(time.Millisecond), slot.Loop)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
