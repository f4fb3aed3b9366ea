package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"kintai/internal/db"
	"kintai/internal/device"
	"kintai/internal/domain/anomaly"
	"kintai/internal/domain/capture"
	"kintai/internal/domain/employee"
	"kintai/internal/domain/intake"
	"kintai/internal/domain/punch"
	"kintai/internal/domain/reconcile"
	"kintai/internal/domain/summary"
	"kintai/internal/platform/cardhash"
	"kintai/internal/platform/config"
	"kintai/internal/platform/jobs"
	"kintai/internal/platform/metrics"
	"kintai/internal/transport/http/handlers/attendance"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	if cfg.Environment == "production" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("time zone load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	hasher, err := cardhash.New(cfg.CardHashSecret)
	if err != nil {
		log.Fatalf("card hash setup failed: %v", err)
	}

	employeeStore := employee.NewPGStore(pool)
	punchStore := punch.NewPGStore(pool)
	captureStore := capture.NewPGStore(pool)
	summaryStore := summary.NewPGStore(pool)

	collector := metrics.New()
	resolver := employee.NewResolver(hasher, employeeStore)
	rules := summary.RulesFromConfig(cfg, loc, parseHolidays(cfg.HolidayDates))
	builder := summary.NewBuilder(punchStore, employeeStore, summaryStore, rules)
	punchSvc := punch.NewService(punchStore, loc, cfg.MaxOutsideCycles, builder)

	detector := anomaly.NewDetector(anomaly.Config{
		DuplicateWindow:  cfg.DuplicateWindow,
		Loc:              loc,
		ImplausibleStart: cfg.ImplausibleStart,
		ImplausibleEnd:   cfg.ImplausibleEnd,
		ShiftCeiling:     cfg.ShiftCeiling,
		RapidCount:       cfg.RapidAlternationCount,
		RapidWindow:      cfg.RapidAlternationWindow,
		TravelEnabled:    cfg.TravelRuleEnabled,
		MaxTravelKmh:     cfg.MaxTravelKmh,
	}, nil, parseLocations(cfg.DeviceLocations), nil)

	queue := capture.NewQueue(captureStore, cfg.QueueMaxEntries, cfg.QueueMaxAge, cfg.DuplicateWindow, collector)

	pipeline := intake.NewService(intake.Params{
		Resolver:         resolver,
		Punches:          punchStore,
		Detector:         detector,
		Queue:            queue,
		Refresher:        builder,
		Collector:        collector,
		Loc:              loc,
		MaxOutsideCycles: cfg.MaxOutsideCycles,
	})

	engine := reconcile.NewEngine(queue, pipeline, collector)

	background := jobs.New(pool, cfg, engine, builder, queue, loc)
	background.Start(ctx)
	pipeline.SetRecoveryHook(background.TriggerReconcile)

	coordinator := device.NewCoordinator(pipeline, cfg.ScanTimeout, cfg.DeviceMaxRetries)
	for _, id := range splitList(cfg.ReaderIDs) {
		coordinator.Register(device.NewSimReader(id))
	}
	coordinator.Start(ctx)
	defer coordinator.Stop()

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	router.Route("/api/v1", func(r chi.Router) {
		h := &attendance.Handler{
			Punches:   punchSvc,
			Builder:   builder,
			Summaries: summaryStore,
			Queue:     queue,
			Collector: collector,
			Loc:       loc,
		}
		h.RegisterRoutes(r)
	})

	addr := ":8080"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("kintai engine listening", "addr", addr, "timeZone", cfg.TimeZone)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseHolidays(raw string) map[string]bool {
	holidays := map[string]bool{}
	for _, part := range splitList(raw) {
		if _, err := time.Parse("2006-01-02", part); err != nil {
			slog.Warn("holiday date ignored", "value", part)
			continue
		}
		holidays[part] = true
	}
	return holidays
}

// parseLocations reads "gate-1=35.6812:139.7671" pairs.
func parseLocations(raw string) map[string]anomaly.Location {
	locations := map[string]anomaly.Location{}
	for _, part := range splitList(raw) {
		id, coords, ok := strings.Cut(part, "=")
		if !ok {
			slog.Warn("device location ignored", "value", part)
			continue
		}
		latRaw, lonRaw, ok := strings.Cut(coords, ":")
		if !ok {
			slog.Warn("device location ignored", "value", part)
			continue
		}
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
		if latErr != nil || lonErr != nil {
			slog.Warn("device location ignored", "value", part)
			continue
		}
		locations[id] = anomaly.Location{Lat: lat, Lon: lon}
	}
	return locations
}
