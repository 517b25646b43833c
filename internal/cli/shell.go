package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/docstore/pkg/docstore"
)

const shellHelp = `Commands:
  get                Print the current value
  set <json>         Replace the value
  update <json>      Merge into the value (RFC 7386 merge patch)
  help               Show this help
  exit               Leave the shell`

// cmdShell runs an interactive session against one open store, so
// consecutive commands share the store's cache and message loop.
func cmdShell(ctx context.Context, o *IO, cfg Config, args []string) int {
	_, err := parseFileFlag(o, "shell", &cfg, args)
	if err != nil {
		return 1
	}

	store, err := openStore(cfg)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	defer func() { _ = store.Close() }()

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string

		for _, cmd := range []string{"get", "set ", "update ", "help", "exit"} {
			if strings.HasPrefix(cmd, strings.ToLower(prefix)) {
				out = append(out, cmd)
			}
		}

		return out
	})

	o.Println("docstore shell -", cfg.Path)
	o.Println("Type 'help' for available commands.")

	for {
		if ctx.Err() != nil {
			return 0
		}

		input, promptErr := line.Prompt("docstore> ")
		if promptErr != nil {
			if errors.Is(promptErr, liner.ErrPromptAborted) || errors.Is(promptErr, io.EOF) {
				return 0
			}

			o.Errorf("%v", promptErr)

			return 1
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if done := shellDispatch(ctx, o, store, input); done {
			return 0
		}
	}
}

func shellDispatch(ctx context.Context, o *IO, store *docstore.Store[json.RawMessage], input string) bool {
	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		o.Println(shellHelp)
	case "get":
		v, err := store.Get(ctx)
		if err != nil {
			o.Errorf("%v", err)

			return false
		}

		o.Println(string(v))
	case "set":
		if rest == "" || !json.Valid(json.RawMessage(rest)) {
			o.Errorf("set needs a valid JSON value")

			return false
		}

		v, err := store.Update(ctx, func(json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(rest), nil
		})
		if err != nil {
			o.Errorf("%v", err)

			return false
		}

		o.Println(string(v))
	case "update":
		if rest == "" || !json.Valid(json.RawMessage(rest)) {
			o.Errorf("update needs a valid JSON value")

			return false
		}

		v, err := store.Update(ctx, mergeTransform(json.RawMessage(rest)))
		if err != nil {
			o.Errorf("%v", err)

			return false
		}

		o.Println(string(v))
	default:
		o.Errorf("unknown command %q (try 'help')", cmd)
	}

	return false
}
