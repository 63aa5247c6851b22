// Command heartbeat runs interval-gated health monitors and exposes their
// state over HTTP and as an up/down gauge.
package main

import (
	"errors"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Config string `short:"c" long:"config" description:"path to heartbeat.yaml (default: search ., ./configs, /etc/heartbeat)"`
}

func main() {
	var opts globalOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "heartbeat runs health monitors in bounded batches and reports their up/down state."

	commands := []struct {
		name, short string
		data        any
	}{
		{"serve", "Run the monitor engine and HTTP API", &serveCommand{global: &opts}},
		{"validate", "Load definitions and report which would be registered", &validateCommand{global: &opts}},
		{"token", "Mint a bearer token for the write API", &tokenCommand{global: &opts}},
		{"version", "Print build information", &versionCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, "", c.data); err != nil {
			fmt.Fprintf(os.Stderr, "register command %s: %v\n", c.name, err)
			os.Exit(2)
		}
	}

	if _, err := parser.ParseArgs(withDefaultCommand(os.Args[1:])); err != nil {
		// The parser has already printed err.
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

var commandNames = map[string]bool{"serve": true, "validate": true, "token": true, "version": true, "help": true}

// withDefaultCommand runs serve when no command is named.
func withDefaultCommand(args []string) []string {
	for _, a := range args {
		if a == "-h" || a == "--help" || commandNames[a] {
			return args
		}
	}
	return append([]string{"serve"}, args...)
}
