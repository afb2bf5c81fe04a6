package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/guilherme-santos/calsync/calendar"
	"github.com/guilherme-santos/calsync/calendar/google"
	"github.com/guilherme-santos/calsync/calendar/outlook"
	"github.com/guilherme-santos/calsync/internal"
	"github.com/guilherme-santos/calsync/internal/config"
	"github.com/guilherme-santos/calsync/internal/logger"
	"github.com/guilherme-santos/calsync/internal/metrics"
	"github.com/guilherme-santos/calsync/internal/storage"
	"github.com/guilherme-santos/calsync/internal/syncer"
)

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	storage  *storage.Storage
	registry *prometheus.Registry
	runner   *syncer.Runner
}

func newApp(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.SetupDefault(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	return &app{
		cfg:      cfg,
		logger:   log,
		storage:  st,
		registry: registry,
		runner: &syncer.Runner{
			Storage: st,
			Mux:     newMux(),
			Config: syncer.Config{
				Clients:       cfg.Clients(),
				Location:      cfg.Location(),
				ProgressEvery: cfg.Sync.ProgressEvery,
				DayBatch:      cfg.Sync.DayBatch,
				RateLimit:     cfg.Sync.RateLimit,
				Logger:        log,
				Metrics:       collector,
			},
			CalendarID: cfg.Sync.CalendarID,
			PastDays:   cfg.Sync.PastDays,
			FutureDays: cfg.Sync.FutureDays,
		},
	}, nil
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("Unable to close database", slog.Any("error", err))
	}
}

func newMux() *calendar.Mux {
	mux := calendar.NewMux()
	mux.Register(internal.PlatformGoogle, google.Factory)
	mux.Register(internal.PlatformAzure, outlook.Factory)
	return mux
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		w := flag.CommandLine.Output()
		fmt.Fprintf(w, "Usage of %s %s:\n", os.Args[0], fs.Name())
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
	}
	return fs
}

// window converts the inclusive days [from, to] to local times.
func window(from, to internal.Date, loc *time.Location) (min, max time.Time, err error) {
	if from.IsZero() && to.IsZero() {
		return time.Time{}, time.Time{}, nil
	}
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("-from and -to must be given together")
	}
	min = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	max = time.Date(to.Year(), to.Month(), to.Day()+1, 0, 0, 0, 0, loc)
	if !max.After(min) {
		return time.Time{}, time.Time{}, fmt.Errorf("-from cannot be after -to")
	}
	return min, max, nil
}

type Int64s []int64

func (i *Int64s) String() string {
	s := make([]string, len(*i))
	for n, v := range *i {
		s[n] = strconv.FormatInt(v, 10)
	}
	return strings.Join(s, ", ")
}

func (i *Int64s) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", v)
		}
		*i = append(*i, id)
	}
	return nil
}
