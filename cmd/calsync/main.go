package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

type command interface {
	Run(_ context.Context, _ *app, args []string) error
}

var commands = []struct {
	Name        string
	Description string
	command
}{
	{SyncCommand.Name, SyncCommand.Description, SyncCommand},
	{ReprocessCommand.Name, ReprocessCommand.Description, ReprocessCommand},
	{AddAccountCommand.Name, AddAccountCommand.Description, AddAccountCommand},
	{MigrateCommand.Name, MigrateCommand.Description, MigrateCommand},
	{ServeCommand.Name, ServeCommand.Description, ServeCommand},
	{WorkerCommand.Name, WorkerCommand.Description, WorkerCommand},
}

var cfg struct {
	ConfigFile string
	EnvFile    string
}

func init() {
	flag.StringVar(&cfg.ConfigFile, "config", "", "YAML config file, environment variables take precedence")
	flag.StringVar(&cfg.EnvFile, "env", ".env", "file with environment variables to load")
	flag.Usage = usage
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage of %s [options] <command> [command options]:\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.Name, c.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	flag.PrintDefaults()
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Unable to load env file:", err)
		os.Exit(1)
	}

	name := flag.Arg(0)
	var cmd command
	for _, c := range commands {
		if c.Name == name {
			cmd = c.command
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(2)
	}

	app, err := newApp(cfg.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Unable to start:", err)
		os.Exit(1)
	}
	err = cmd.Run(ctx, app, flag.Args()[1:])
	app.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		os.Exit(1)
	}
}
