package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/guilherme-santos/calsync/internal"
)

var ErrSyncing = errors.New("an error occurred while syncing, check the logs")

var SyncCommand = _syncCommand{
	Name:        "sync",
	Description: "Sync the events of the accounts",
}

type _syncCommand struct {
	Name        string
	Description string
}

func (s _syncCommand) Run(ctx context.Context, app *app, args []string) error {
	var (
		accountIDs Int64s
		from, to   internal.Date
	)

	fs := newFlagSet(s.Name)
	fs.Var(&accountIDs, "account", "account id to be synced, all accounts when omitted")
	fs.Var(&from, "from", "first day to sync (e.g. 2023-06-01), defaults to the configured window")
	fs.Var(&to, "to", "last day to sync, inclusive")

	if err := fs.Parse(args); err != nil {
		return err
	}
	min, max, err := window(from, to, app.cfg.Location())
	if err != nil {
		return err
	}
	if len(accountIDs) == 0 {
		accountIDs, err = app.storage.AccountIDs(ctx)
		if err != nil {
			return fmt.Errorf("listing accounts: %w", err)
		}
	}

	w := flag.CommandLine.Output()
	var failed bool
	for _, id := range accountIDs {
		res, err := app.runner.Sync(ctx, id, min, max)
		if res != nil {
			fmt.Fprintf(w, "Account %d: %d event(s) synced, %d cancelled, %d error(s)\n", id, res.Processed, res.Cancelled, res.Errors)
		}
		if err != nil {
			fmt.Fprintf(w, "Account %d: %v\n", id, err)
			failed = true
		}
	}
	if failed {
		return ErrSyncing
	}
	return nil
}
