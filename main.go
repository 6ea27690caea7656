package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"p9e.in/reasonsform/config"
	"p9e.in/reasonsform/handlers"
	"p9e.in/reasonsform/middleware"
	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/claims"
	"p9e.in/reasonsform/pkg/filestore"
	"p9e.in/reasonsform/pkg/jobs"
	"p9e.in/reasonsform/pkg/logger"
	"p9e.in/reasonsform/pkg/notify"
	"p9e.in/reasonsform/pkg/throttle"
	"p9e.in/reasonsform/pkg/workflow"
	"p9e.in/reasonsform/routes"
)

var (
	Version   = "dev"
	BuildTime = ""
)

const notifyWorkers = 4

func main() {
	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	l, err := logger.New(logger.Options{Level: settings.LogLevel, File: settings.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(l)
	defer logger.Sync()

	if err := run(settings); err != nil {
		logger.Fatal("❌ %v", err)
	}
}

func run(settings *config.Settings) error {
	ctx := context.Background()

	db, err := config.Connect(settings)
	if err != nil {
		return err
	}
	logger.Info("✅ Database connected and migrated")

	if err := config.SeedAdmin(db, settings.AdminUsername, settings.AdminPassword); err != nil {
		logger.Warn("⚠️  Admin seeding failed: %v", err)
	}

	backend, closeBackend, err := newBackend(ctx, settings)
	if err != nil {
		return err
	}
	defer closeBackend()

	store, err := filestore.NewStore(backend, settings.EncryptionKey, settings.UploadDirMax, settings.MaxFileBytes)
	if err != nil {
		return err
	}

	table, err := workflow.Policy(settings.WorkflowPolicy)
	if err != nil {
		return err
	}
	logger.Info("Workflow policy: %s", settings.WorkflowPolicy)

	notifier, closeNotifier, err := newNotifier(settings)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc := claims.New(db, store, workflow.NewEngine(table), notifier)

	scheduler, err := jobs.NewManager()
	if err != nil {
		return err
	}
	if err := scheduler.Register(jobs.NewSummaryJob(svc, notifier, settings.SummaryCron)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	middleware.Configure(settings.JWTSecret, settings.TrustedProxyHdr)
	// Each category holds at most MaxFilesPerCategory files; allow room for
	// the form fields on top.
	maxUpload := settings.MaxFileBytes*int64(2*models.MaxFilesPerCategory) + 1<<20
	h := handlers.New(svc, db, throttle.NewDefault(), maxUpload)

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           middleware.CORS(routes.RegisterRoutes(h, settings.RequestTimeout)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting at port %s (version %s)", settings.Port, Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️  Graceful shutdown incomplete: %v", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newBackend picks GCS when USE_GCS is set and the local upload directory
// otherwise.
func newBackend(ctx context.Context, s *config.Settings) (filestore.Backend, func(), error) {
	if s.UseGCS {
		b, client, err := filestore.NewGCSBackend(ctx, s.GCSBucket, s.GCSPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		logger.Info("✅ Attachments stored in gs://%s/%s", s.GCSBucket, s.GCSPrefix)
		return b, func() { _ = client.Close() }, nil
	}

	b, err := filestore.NewLocalBackend(s.UploadDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare upload dir: %w", err)
	}
	logger.Info("✅ Attachments stored in %s", b.Root())
	return b, func() {}, nil
}

// newNotifier sends through Telegram when a bot token and chat are
// configured and discards messages otherwise.
func newNotifier(s *config.Settings) (notify.Notifier, func(), error) {
	if s.TelegramToken == "" || s.TelegramChatID == "" {
		logger.Info("⚠️  Telegram not configured, notifications disabled")
		return notify.Noop{}, func() {}, nil
	}
	d, err := notify.NewDispatcher(notify.NewTelegram(s.TelegramToken, s.TelegramChatID), notifyWorkers, s.NotifyTimeout)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { d.Close(s.NotifyTimeout) }, nil
}
