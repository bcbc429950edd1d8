// Package main is the entry point for tscore-admin, the administrative CLI
// for the time-series storage engine.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Open a Connection against a local sqlitebt backend at the -db path
//   - Issue idempotent table + column-family creation for all four stores
//   - Print a one-line summary (db path, table prefix, metric and event
//     counts) and exit
//
// This binary performs no data-plane operations (insert/get/delete); those
// are exercised through the storage package directly by whatever process
// embeds it. tscore-admin only stands up the schema a fresh deployment
// needs before the data plane can run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fieldmesh/tscore/internal/backend"
	"github.com/fieldmesh/tscore/internal/backend/sqlitebt"
	"github.com/fieldmesh/tscore/internal/config"
	"github.com/fieldmesh/tscore/internal/metricdef"
	"github.com/fieldmesh/tscore/internal/storage"
)

func main() {
	configPath := flag.String("config", "/etc/tscore/config.yaml", "path to tscore config file")
	dbPath := flag.String("db", "tscore.db", "path to the local sqlite-backed store")
	flag.Parse()

	if err := run(*configPath, *dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "tscore-admin:", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string) error {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	cfg := mgr.Get(ctx)

	store, err := sqlitebt.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer store.Close()

	metrics := make([]metricdef.Metric, 0, len(cfg.Metrics))
	for _, m := range cfg.Metrics {
		metrics = append(metrics, metricdef.Metric{Name: m.Name, ID: m.ID, DeletePossible: m.DeletePossible})
	}
	events := make([]metricdef.Event, 0, len(cfg.Events))
	for _, e := range cfg.Events {
		events = append(events, metricdef.Event{Name: e.Name})
	}

	conn, err := storage.New(func() (backend.Backend, error) { return store, nil }, storage.Options{
		TablePrefix: cfg.Connection.TablePrefix,
		PoolSize:    cfg.Connection.PoolSize,
		ReadOnly:    cfg.Connection.ReadOnly,
		Staging:     cfg.Connection.Staging,
		Metrics:     metrics,
		Events:      events,
	})
	if err != nil {
		return fmt.Errorf("build connection: %w", err)
	}

	if err := conn.CreateTables(ctx); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	fmt.Printf("tscore-admin: schema ready at %s (prefix %q, %d metrics, %d events)\n",
		dbPath, cfg.Connection.TablePrefix, len(metrics), len(events))
	return nil
}
