// Package app wires the issue pipeline together and runs the long-lived
// process: sqlite store, oracle client, router, SLA sweep scheduler.
package app

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"civicpulse/internal/config"
	"civicpulse/internal/dedup"
	"civicpulse/internal/escalation"
	"civicpulse/internal/eta"
	"civicpulse/internal/notify"
	"civicpulse/internal/oracle"
	"civicpulse/internal/pipeline"
	"civicpulse/internal/routing"
	"civicpulse/internal/storage/sqlite"
)

// App is the assembled service. Intake surfaces (API handlers, importers)
// embed it and drive Pipeline directly.
type App struct {
	Config   config.Config
	DB       *sql.DB
	Store    *sqlite.Store
	Pipeline *pipeline.Pipeline
	Sweeper  *escalation.Sweeper
}

// New builds the full dependency graph from configuration.
func New(cfg config.Config) (*App, error) {
	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("Database initialized at %s", cfg.DBPath)

	store := sqlite.NewStore(db)
	if err := store.SeedDepartments(sqlite.DefaultDepartments()); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.MkdirAll(cfg.MediaDir, 0755); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating media dir %s: %w", cfg.MediaDir, err)
	}
	log.Printf("Media dir: %s", cfg.MediaDir)

	retry := oracle.DefaultRetryPolicy()
	retry.MaxRetries = cfg.OracleMaxRetries
	retry.AttemptTimeout = time.Duration(cfg.OracleTimeoutSeconds) * time.Second
	client := oracle.NewClient(cfg.AnthropicAPIKey, cfg.OracleModel, cfg.OracleMaxPerMinute, retry)

	router := routing.NewRouter(store, cfg.DefaultWard, cfg.CityCenterLat, cfg.CityCenterLon)
	detector := dedup.NewDetector(client, dedup.DirLoader{Base: cfg.MediaDir}, dedup.Config{
		TextThreshold:      cfg.DedupTextThreshold,
		RadiusMeters:       cfg.DedupRadiusMeters,
		ImageThreshold:     cfg.DedupImageThreshold,
		MaxImageCandidates: cfg.DedupImageCandidates,
	})
	estimator := eta.NewEstimator(store)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SlackBotToken != "" && cfg.SlackChannelID != "" {
		notifier = notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannelID)
		log.Printf("Slack notifications enabled channel=%s", cfg.SlackChannelID)
	}

	intake := pipeline.New(store, client, router, detector, estimator, notifier,
		time.Duration(cfg.DedupWindowHours)*time.Hour)

	return &App{
		Config:   cfg,
		DB:       db,
		Store:    store,
		Pipeline: intake,
		Sweeper:  escalation.NewSweeper(store),
	}, nil
}

func Main() {
	cfg := config.LoadConfig()
	log.Printf(
		"Config loaded. SweepSchedule=%s OracleMaxPerMinute=%d OracleMaxRetries=%d DedupRadius=%.0fm DedupWindow=%dh DefaultWard=%s",
		cfg.SweepSchedule,
		cfg.OracleMaxPerMinute,
		cfg.OracleMaxRetries,
		cfg.DedupRadiusMeters,
		cfg.DedupWindowHours,
		cfg.DefaultWard,
	)

	a, err := New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.DB.Close()

	escalation.StartSweepScheduler(cfg.SweepSchedule, a.Sweeper)

	log.Println("Starting CivicPulse pipeline...")
	select {}
}
