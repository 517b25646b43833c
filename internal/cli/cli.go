// Package cli implements the docstore command line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docstore/pkg/docstore"
)

const globalHelp = `docstore - single-file JSON document store

Usage: docstore <command> [flags]

Commands:
  get                    Print the current value
  set <json>             Replace the value
  update <json>          Merge into the value (RFC 7386 merge patch)
  watch                  Stream the value until interrupted
  shell                  Interactive session
  help                   Show this help

Flags:
  -f, --file <path>      Store file (overrides ` + ConfigFileName + `)`

// IO bundles the streams a command talks to.
type IO struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.Out, a...)
}

// Errorf writes a formatted error line to stderr.
func (o *IO) Errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.ErrOut, "error: "+format+"\n", a...)
}

// Run dispatches to a subcommand. Returns the process exit code.
func Run(ctx context.Context, o *IO, args []string) int {
	if len(args) < 2 || args[1] == "help" || args[1] == "--help" || args[1] == "-h" {
		o.Println(globalHelp)

		return 0
	}

	workDir, err := os.Getwd()
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	cfg, err := LoadConfig(workDir)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	cmd, rest := args[1], args[2:]

	switch cmd {
	case "get":
		return cmdGet(ctx, o, cfg, rest)
	case "set":
		return cmdSet(ctx, o, cfg, rest)
	case "update":
		return cmdUpdate(ctx, o, cfg, rest)
	case "watch":
		return cmdWatch(ctx, o, cfg, rest)
	case "shell":
		return cmdShell(ctx, o, cfg, rest)
	default:
		o.Errorf("unknown command %q", cmd)
		o.Println(globalHelp)

		return 1
	}
}

// parseFileFlag parses the shared flags of every subcommand and applies the
// --file override to cfg.
func parseFileFlag(o *IO, name string, cfg *Config, args []string) ([]string, error) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(o.ErrOut)

	file := flagSet.StringP("file", "f", "", "store file")

	err := flagSet.Parse(args)
	if err != nil {
		return nil, err
	}

	if *file != "" {
		cfg.Path = *file
	}

	return flagSet.Args(), nil
}

// openStore opens the JSON store the CLI commands share.
func openStore(cfg Config) (*docstore.Store[json.RawMessage], error) {
	return docstore.Open(docstore.Options[json.RawMessage]{
		Path: cfg.Path,
		Serializer: docstore.JSONSerializer[json.RawMessage]{
			Default: json.RawMessage("null"),
			Indent:  cfg.Indent,
		},
	})
}
