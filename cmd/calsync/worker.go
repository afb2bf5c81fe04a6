package main

import (
	"context"
	"flag"
	"fmt"
)

var WorkerCommand = _workerCommand{
	Name:        "worker",
	Description: "Sync every account periodically",
}

type _workerCommand struct {
	Name        string
	Description string
}

func (s _workerCommand) Run(ctx context.Context, app *app, args []string) error {
	var now bool

	fs := newFlagSet(s.Name)
	fs.BoolVar(&now, "now", false, "sync every account once before waiting for the schedule")

	if err := fs.Parse(args); err != nil {
		return err
	}

	sched := newScheduler(app)
	if now {
		if err := sched.RunOnce(ctx); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	fmt.Fprintln(flag.CommandLine.Output(), "Waiting for the running sync to finish...")
	<-sched.Stop().Done()
	return nil
}
