package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/HerbHall/heartbeat/internal/auth"
	"github.com/HerbHall/heartbeat/internal/monitor"
	"github.com/HerbHall/heartbeat/internal/version"
)

type validateCommand struct {
	global *globalOptions
}

// Execute lists every definition the sources yield and whether a factory
// would register it.
func (c *validateCommand) Execute([]string) error {
	cfg, logger, err := loadConfig(c.global.Config)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	source, db, _, err := openDefinitions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	defs, err := source.Load(ctx)
	if err != nil {
		return err
	}

	factories := monitor.DefaultFactories(nil, nil)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tINTERVAL\tSTATUS")
	registered := 0
	for _, def := range defs {
		status := "registered"
		if f, ok := monitor.Select(factories, def); !ok {
			status = "skipped: no factory"
		} else if _, err := f.Create(def); err != nil {
			status = "invalid: " + err.Error()
		} else {
			registered++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Key(), def.CheckType(), def.Interval, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d definitions would be registered\n", registered, len(defs))
	return nil
}

type tokenCommand struct {
	global *globalOptions

	Subject string        `long:"subject" required:"true" description:"token subject, usually the operator or automation name"`
	TTL     time.Duration `long:"ttl" description:"token lifetime (default: auth.token_ttl)"`
}

func (c *tokenCommand) Execute([]string) error {
	cfg, logger, err := loadConfig(c.global.Config)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Auth.Enabled() {
		return errors.New("auth.jwt_secret is not set")
	}
	tokens := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	token, err := tokens.Issue(c.Subject, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type versionCommand struct{}

func (versionCommand) Execute([]string) error {
	fmt.Println(version.Info())
	return nil
}
