// Command worker runs the avatar-creation pipeline: it applies schema
// migrations, recovers unfinished jobs, starts the worker pool, and serves
// the websocket progress endpoint plus a minimal job intake endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/velora-app/avatar-pipeline/internal/config"
	"github.com/velora-app/avatar-pipeline/internal/domain"
	"github.com/velora-app/avatar-pipeline/internal/events"
	"github.com/velora-app/avatar-pipeline/internal/notify"
	"github.com/velora-app/avatar-pipeline/internal/platform/heygen"
	"github.com/velora-app/avatar-pipeline/internal/platform/logger"
	"github.com/velora-app/avatar-pipeline/internal/platform/postgres"
	"github.com/velora-app/avatar-pipeline/internal/service"
	"github.com/velora-app/avatar-pipeline/internal/task"
	"github.com/velora-app/avatar-pipeline/internal/tempfile"
	"github.com/velora-app/avatar-pipeline/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := applyMigrations(db, log); err != nil {
		return err
	}

	hub := notify.NewHub(log)
	defer hub.Close()

	files, err := tempfile.NewManager(cfg.Pipeline.TempDir, log)
	if err != nil {
		return fmt.Errorf("create tempfile manager: %w", err)
	}

	provider, err := heygen.NewClient(heygen.Options{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Provider.RequestTimeout},
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("create provider client: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db)
	avatarStore := postgres.NewPostgresAvatarStore(db)

	runner := task.NewTaskRunner(taskStore, task.TaskRunnerConfig{
		WorkerCount:            cfg.Pipeline.WorkerCount,
		QueueSize:              cfg.Pipeline.QueueSize,
		TaskTimeout:            cfg.Pipeline.JobTimeout,
		StuckTaskAge:           cfg.Pipeline.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Pipeline.StuckTaskCheckInterval,
	}, log)

	factory, err := task.NewAvatarCreationTaskFactory(
		provider,
		avatarStore,
		hub,
		files,
		cfg.Pipeline.TrainingDelay,
		log,
	)
	if err != nil {
		return fmt.Errorf("create task factory: %w", err)
	}
	runner.RegisterFactory(task.TaskTypeAvatarCreation, factory)

	handler := task.NewTaskFactoryEventHandler(runner, log)
	handler.RegisterFactory(task.TaskTypeAvatarCreation, factory)

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(handler)

	avatarService, err := service.NewAvatarService(files, emitter, log)
	if err != nil {
		return fmt.Errorf("create avatar service: %w", err)
	}

	if err := runner.Start(); err != nil {
		return fmt.Errorf("start task runner: %w", err)
	}
	defer runner.Stop()

	server := newHTTPServer(cfg.Server.Port, hub, avatarService, log)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	return nil
}

// openDatabase opens the connection pool and verifies connectivity.
func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// applyMigrations brings the schema up to date from the embedded migrations.
func applyMigrations(db *sql.DB, log *slog.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("schema migrations applied")
	return nil
}

// newHTTPServer wires the websocket progress endpoint and the job intake
// endpoint onto one listener.
func newHTTPServer(port int, hub *notify.Hub, svc service.AvatarService, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/avatars", makeCreateAvatarHandler(svc, log))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// makeCreateAvatarHandler accepts a multipart avatar creation request and
// hands it to the service. Acceptance is asynchronous: a 202 means the job
// was durably queued, and progress arrives over the websocket.
func makeCreateAvatarHandler(svc service.AvatarService, log *slog.Logger) http.HandlerFunc {
	const maxImageSize = 20 << 20 // 20 MiB

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(maxImageSize); err != nil {
			http.Error(w, "invalid multipart request", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "image file is required", http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()

		req := service.CreateAvatarRequest{
			Image:     file,
			MimeType:  header.Header.Get("Content-Type"),
			Name:      r.FormValue("name"),
			AgeGroup:  domain.AgeGroup(r.FormValue("age_group")),
			Gender:    domain.Gender(r.FormValue("gender")),
			UserID:    r.FormValue("user_id"),
			Ethnicity: r.FormValue("ethnicity"),
		}

		if err := svc.RequestAvatarCreation(r.Context(), req); err != nil {
			if errors.Is(err, service.ErrInvalidRequest) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error("failed to accept avatar creation request", "error", err)
			http.Error(w, "failed to accept request", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
