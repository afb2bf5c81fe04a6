package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/golang-migrate/migrate/v4"

	"github.com/guilherme-santos/calsync/internal/storage"
)

var MigrateCommand = _migrateCommand{
	Name:        "migrate",
	Description: "Apply the database migrations",
}

type _migrateCommand struct {
	Name        string
	Description string
}

func (s _migrateCommand) Run(ctx context.Context, app *app, args []string) error {
	var down bool

	fs := newFlagSet(s.Name)
	fs.BoolVar(&down, "down", false, "roll back the last migration instead")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if !down {
		if err := storage.RunMigrations(app.cfg.DatabaseURL); err != nil {
			return err
		}
		fmt.Fprintln(flag.CommandLine.Output(), "Database is up to date")
		return nil
	}

	m, err := storage.NewMigrator(app.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	fmt.Fprintf(flag.CommandLine.Output(), "Database at version %d (dirty: %t)\n", version, dirty)
	return nil
}
