package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/revise/internal/classify"
	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/events"
	"github.com/hpungsan/revise/internal/ops"
	"github.com/hpungsan/revise/internal/tracker"
	"github.com/hpungsan/revise/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(store db.Backend, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "revise",
		Usage:   "Prompt version history",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(store, cfg),
			historyCmd(store, cfg),
			showCmd(store),
			checkpointCmd(store, cfg),
			promoteCmd(store),
			branchCmd(store),
			exportCmd(store, cfg),
			importCmd(store, cfg),
			searchCmd(store),
			statsCmd(store),
			classifyCmd(),
			clearCmd(store),
			serveCmd(store, cfg),
			watchCmd(store, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// saveCmd creates the save command.
func saveCmd(store db.Backend, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Append a prompt version (reads the prompt from stdin or arguments)",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Required: true, Usage: "Session id"},
			&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Platform label"},
			&cli.StringFlag{Name: "response", Aliases: []string{"r"}, Usage: "Captured response"},
			&cli.StringFlag{Name: "change-type", Usage: "Classification (computed when omitted)"},
			&cli.BoolFlag{Name: "checkpoint", Usage: "Mark the version as a checkpoint"},
		},
		Action: func(c *cli.Context) error {
			text, err := promptText(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.AppendVersion(c.Context, store, ops.AppendInput{
				SessionID:    c.String("session"),
				Prompt:       text,
				Response:     optionalFlag(c, "response"),
				Platform:     cfg.Platform(c.String("platform")),
				IsCheckpoint: c.Bool("checkpoint"),
				ChangeType:   classify.ChangeType(c.String("change-type")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(store db.Backend, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List sessions, or one session's versions newest first",
		ArgsUsage: "[session-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Max results (default from config)"},
		},
		Action: func(c *cli.Context) error {
			sessionID, err := optionalArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			output, err := ops.GetHistory(c.Context, store, ops.HistoryInput{
				SessionID: sessionID,
				Limit:     cfg.Limit(c.Int("limit")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(store db.Backend) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one version",
		ArgsUsage: "<version-id>",
		Action: func(c *cli.Context) error {
			id, err := requiredArg(c, "version-id")
			if err != nil {
				return outputError(err)
			}
			v, err := ops.GetVersion(c.Context, store, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, v)
		},
	}
}

// checkpointCmd creates the checkpoint command.
func checkpointCmd(store db.Backend, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "checkpoint",
		Usage:     "Store a new checkpoint version (reads the prompt from stdin or arguments)",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Required: true, Usage: "Session id"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Checkpoint name"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Checkpoint description"},
			&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Platform label"},
			&cli.StringFlag{Name: "response", Aliases: []string{"r"}, Usage: "Captured response"},
		},
		Action: func(c *cli.Context) error {
			text, err := promptText(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.CreateCheckpoint(c.Context, store, ops.CheckpointInput{
				SessionID:   c.String("session"),
				Prompt:      text,
				Response:    optionalFlag(c, "response"),
				Platform:    cfg.Platform(c.String("platform")),
				Name:        c.String("name"),
				Description: c.String("description"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// promoteCmd creates the promote command.
func promoteCmd(store db.Backend) *cli.Command {
	return &cli.Command{
		Name:      "promote",
		Usage:     "Mark an existing version as a named checkpoint",
		ArgsUsage: "<version-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Checkpoint name"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Checkpoint description"},
		},
		Action: func(c *cli.Context) error {
			id, err := requiredArg(c, "version-id")
			if err != nil {
				return outputError(err)
			}
			output, err := ops.PromoteToCheckpoint(c.Context, store, ops.PromoteInput{
				VersionID:   id,
				Name:        c.String("name"),
				Description: c.String("description"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// branchCmd creates the branch command.
func branchCmd(store db.Backend) *cli.Command {
	return &cli.Command{
		Name:      "branch",
		Usage:     "Fork a new session from a version",
		ArgsUsage: "<version-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "seed", Usage: "Seed text for the new session (defaults to the version's prompt)"},
		},
		Action: func(c *cli.Context) error {
			id, err := requiredArg(c, "version-id")
			if err != nil {
				return outputError(err)
			}
			output, err := ops.CreateBranch(c.Context, store, ops.BranchInput{
				VersionID: id,
				SeedText:  c.String("seed"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(store db.Backend, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export history to a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file path (default: ~/.revise/exports/<name>-<timestamp>.json)"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Export only this session"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, store, cfg, ops.ExportInput{
				Path:      c.String("path"),
				SessionID: c.String("session"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(store db.Backend, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Merge an export file into the store",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			path, err := requiredArg(c, "path")
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Import(c.Context, store, cfg, ops.ImportInput{Path: path})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(store db.Backend) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find versions containing text",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Search only this session"},
			&cli.BoolFlag{Name: "responses", Usage: "Also search responses"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 100, Usage: "Max results"},
		},
		Action: func(c *cli.Context) error {
			query, err := joinedArgs(c, "query")
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Search(c.Context, store, ops.SearchInput{
				Query:            query,
				SessionID:        c.String("session"),
				IncludeResponses: c.Bool("responses"),
				Limit:            c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(store db.Backend) *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show store or session statistics",
		ArgsUsage: "[session-id]",
		Action: func(c *cli.Context) error {
			sessionID, err := optionalArg(c, "session-id")
			if err != nil {
				return outputError(err)
			}
			var output any
			if sessionID != "" {
				output, err = ops.SessionStats(c.Context, store, sessionID)
			} else {
				output, err = ops.Stats(c.Context, store)
			}
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// classifyCmd creates the classify command. It needs no store.
func classifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify a change between two prompts",
		ArgsUsage: "[new-prompt]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Previous prompt (empty for a new prompt)"},
		},
		Action: func(c *cli.Context) error {
			text, err := promptText(c)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, classify.Analyze(c.String("from"), text))
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(store db.Backend) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove all sessions and versions",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm removal"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("clear removes all history; pass --yes to confirm"))
			}
			output, err := ops.Clear(c.Context, store)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(store db.Backend, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP message channel, event stream and history pages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log tracker decisions"},
		},
		Action: func(c *cli.Context) error {
			if addr := c.String("addr"); addr != "" {
				cfg.HTTPAddr = addr
			}

			logger := log.Default()
			bus := events.NewBus(events.DefaultBuffer, logger)
			srv, closeFn, err := web.NewServer(web.Deps{
				Store:    store,
				Config:   cfg,
				Bus:      bus,
				Trackers: tracker.NewRegistry(store, bus, logger, c.Bool("verbose")),
				Logger:   logger,
				Version:  Version,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer closeFn()

			if err := web.Run(srv); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// watchCmd creates the watch command. Each stdin line is one snapshot of
// the prompt being edited; empty lines are ignored and a line starting
// with "> " is submitted.
func watchCmd(store db.Backend, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Track prompt snapshots read line by line from stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Resume this session (new session when omitted)"},
			&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Platform label"},
			&cli.StringFlag{Name: "url", Usage: "Page URL used to detect the platform"},
			&cli.DurationFlag{Name: "interval", Usage: "Checkpoint interval (default from settings)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log tracker decisions to stderr"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			t, err := tracker.New(store, tracker.Options{
				Platform:           cfg.Platform(c.String("platform")),
				URL:                c.String("url"),
				SessionID:          c.String("session"),
				CheckpointInterval: c.Duration("interval"),
				Logger:             log.New(c.App.ErrWriter, "", log.LstdFlags),
				Verbose:            c.Bool("verbose"),
			})
			if err != nil {
				return outputError(err)
			}

			loopCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				_ = t.RunAutoCheckpoints(loopCtx)
			}()

			return watchLines(ctx, c, t)
		},
	}
}

// watchLines feeds each stdin line to the tracker and prints its result.
func watchLines(ctx context.Context, c *cli.Context, t *tracker.Tracker) error {
	scanner := bufio.NewScanner(c.App.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var (
			res *tracker.Result
			err error
		)
		if submitted, ok := strings.CutPrefix(line, "> "); ok {
			res, err = t.Submit(ctx, submitted)
		} else {
			res, err = t.ObserveText(ctx, line)
		}
		if err != nil {
			return outputError(err)
		}
		if err := outputJSON(c, res); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return outputError(errors.NewInternal(err))
	}
	return nil
}

// Helper functions

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var rErr *errors.ReviseError
	if stderrors.As(err, &rErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// Flags are only parsed before the first positional argument, so anything
// flag-like after it would otherwise be dropped or read as text.
func flagsMustPrecede(name string) error {
	return errors.NewInvalidRequest(fmt.Sprintf("flags must precede <%s>", name))
}

// optionalArg returns the single positional argument, or "" when none
// was given.
func optionalArg(c *cli.Context, name string) (string, error) {
	if c.NArg() > 1 {
		return "", flagsMustPrecede(name)
	}
	return c.Args().First(), nil
}

// requiredArg returns the single positional argument.
func requiredArg(c *cli.Context, name string) (string, error) {
	if c.NArg() == 0 {
		return "", errors.NewInvalidRequest(name + " is required")
	}
	return optionalArg(c, name)
}

// joinedArgs joins the positional arguments with spaces. A flag-like
// word after the first one is an error.
func joinedArgs(c *cli.Context, name string) (string, error) {
	args := c.Args().Slice()
	for _, a := range args[min(1, len(args)):] {
		if len(a) > 1 && strings.HasPrefix(a, "-") {
			return "", flagsMustPrecede(name)
		}
	}
	return strings.Join(args, " "), nil
}

// promptText returns the command's arguments joined by spaces, or stdin
// when no arguments are given and stdin is piped.
func promptText(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return joinedArgs(c, "prompt")
	}
	if !stdinHasData(c.App.Reader) {
		return "", errors.NewInvalidRequest("prompt must be given as arguments or piped via stdin")
	}
	text, err := readAll(c.App.Reader)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if text == "" {
		return "", errors.NewInvalidRequest("prompt must not be empty")
	}
	return text, nil
}

// optionalFlag returns a pointer to a string flag's value when it was set.
func optionalFlag(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

// stdinHasData returns true if r has piped data. Readers other than
// files always count as piped.
func stdinHasData(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readAll reads all content from r.
func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
