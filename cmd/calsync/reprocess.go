package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
)

var ReprocessCommand = _reprocessCommand{
	Name:        "reprocess",
	Description: "Rebuild the events of the last sync from the stored payloads",
}

type _reprocessCommand struct {
	Name        string
	Description string
}

func (s _reprocessCommand) Run(ctx context.Context, app *app, args []string) error {
	var accountIDs Int64s

	fs := newFlagSet(s.Name)
	fs.Var(&accountIDs, "account", "account id to be reprocessed")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(accountIDs) == 0 {
		return errors.New("-account is required")
	}

	w := flag.CommandLine.Output()
	var failed bool
	for _, id := range accountIDs {
		res, err := app.runner.Reprocess(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "Account %d: %v\n", id, err)
			failed = true
			continue
		}
		fmt.Fprintf(w, "Account %d: %d event(s) reprocessed, %d error(s)\n", id, res.Processed, res.Errors)
	}
	if failed {
		return ErrSyncing
	}
	return nil
}
