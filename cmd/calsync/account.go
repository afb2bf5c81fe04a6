package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/guilherme-santos/calsync/internal"
)

var AddAccountCommand = _addAccountCommand{
	Name:        "add-account",
	Description: "Store an account and the OAuth tokens granted to it",
}

type _addAccountCommand struct {
	Name        string
	Description string
}

func (s _addAccountCommand) Run(ctx context.Context, app *app, args []string) error {
	var (
		acc   internal.Account
		creds internal.Credentials
	)

	fs := newFlagSet(s.Name)
	fs.Func("provider", "provider of the account (google or azure)", func(v string) error {
		acc.Platform = internal.Platform(v)
		return nil
	})
	fs.StringVar(&acc.Email, "email", "", "e-mail of the account")
	fs.StringVar(&creds.AccessToken, "access-token", "", "OAuth access token")
	fs.StringVar(&creds.RefreshToken, "refresh-token", "", "OAuth refresh token")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var known bool
	for _, p := range newMux().Platforms() {
		known = known || p == acc.Platform
	}
	switch {
	case !known:
		return fmt.Errorf("unknown provider %q", acc.Platform)
	case acc.Email == "":
		return errors.New("-email is required")
	case creds.AccessToken == "" || creds.RefreshToken == "":
		return errors.New("-access-token and -refresh-token are required")
	}
	acc.Credentials = &creds

	id, err := app.storage.AddAccount(ctx, &acc)
	if err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	fmt.Fprintf(flag.CommandLine.Output(), "Account %q saved for %q with id %d\n", acc.Email, acc.Platform, id)
	return nil
}
