package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobwatch-engine/internal/classify"
	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/httpapi"
	"jobwatch-engine/internal/notify"
	"jobwatch-engine/internal/poll"
	"jobwatch-engine/internal/scheduler"
	"jobwatch-engine/internal/scrape/util"
	"jobwatch-engine/internal/scrape/workday"
	"jobwatch-engine/internal/secrets"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("[config] .env ignored: %v", err)
	}

	// Engine data dir: use env if provided, else local folder.
	dataDir := os.Getenv("JOBWATCH_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	userCfgPath, err := config.EnsureUserConfig(dataDir, os.Getenv("JOBWATCH_CONFIG"))
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}
	cfg, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	if err := config.ApplyEnv(&cfg, os.Getenv); err != nil {
		log.Fatalf("config env: %v", err)
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !vr.OK() {
		log.Fatal(vr.Err())
	}
	cfg.App.DataDir = dataDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openSeenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("seen store: %v", err)
	}
	defer store.Close()

	employers, err := buildEmployers(cfg)
	if err != nil {
		log.Fatal(err)
	}
	rules, err := classify.New(cfg.Filters.RoleKeywords, cfg.Filters.LocationsAllow, cfg.Filters.FreshMarker)
	if err != nil {
		log.Fatalf("filters: %v", err)
	}

	client := workday.New(workday.Options{
		PageSize:  cfg.Fetch.PageSize,
		MaxPages:  cfg.Fetch.MaxPages,
		Timeout:   cfg.FetchTimeout(),
		UserAgent: cfg.Fetch.UserAgent,
		Retry:     retryPolicy(cfg),
		Limiter:   util.NewHostLimiter(cfg.Fetch.RequestsPerSec, 1),
	})

	notifier, closeNotifiers := buildNotifier(cfg)
	defer closeNotifiers()
	if err := notify.SelfTest(ctx, notifier); err != nil {
		// Scanning continues; matches are still recorded.
		log.Printf("[notify] %v; continuing without confirmed alerting", err)
	}

	hub := events.NewHub()
	coord, err := poll.New(poll.Options{
		Employers:    employers,
		Fetcher:      client,
		Rules:        rules,
		Store:        store,
		Notifier:     notifier,
		NamespaceIDs: cfg.Seen.NamespaceByEmployer,
		OnEvent:      hub.Publish,
	})
	if err != nil {
		log.Fatal(err)
	}

	sched := scheduler.New("poll", cfg.Interval(), func(ctx context.Context) error {
		_, err := coord.RunCycle(ctx)
		if errors.Is(err, poll.ErrCycleRunning) {
			return nil
		}
		return err
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatal(err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		BaseCtx:         ctx,
		Hub:             hub,
		Runner:          coord,
		Cfg:             cfg,
		UserCfgPath:     userCfgPath,
		SetSMTPPassword: secrets.SetSMTPPassword,
		SMTPAccount:     secrets.SMTPKeyringAccount(cfg),
	})

	// Bind to a predictable local port.
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("engine listening on http://%s (config=%s seen=%s employers=%d every=%s)",
		addr, userCfgPath, cfg.Seen.Backend, len(employers), cfg.Interval())

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[http] serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sched.Stop()
}
