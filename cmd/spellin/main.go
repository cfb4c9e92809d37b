// Command spellin spells text with the NATO phonetic alphabet and keeps a
// persistent list of favourite phrases.
//
// Usage:
//
//	spellin [-config path] spell [-format f] [-vertical] [-extended] TEXT…
//	spellin [-config path] fav list [-content]
//	spellin [-config path] fav get KEY
//	spellin [-config path] fav add [-name NAME] TEXT…
//	spellin [-config path] fav rm KEY
//	spellin [-config path] fav exists TEXT…
//	spellin [-config path] fav clear -yes
//	spellin [-config path] fav spell [-format f] KEY
//	spellin [-config path] serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/spellin/internal/app"
	"github.com/MrWong99/spellin/internal/config"
	"github.com/MrWong99/spellin/internal/observe"
	"github.com/MrWong99/spellin/internal/render"
	"github.com/MrWong99/spellin/internal/spell"
)

// version is overridden at build time with -ldflags "-X main.version=…".
var version = "dev"

const usage = `usage: spellin [-config path] <command> [args]

commands:
  spell [-format text|ansi|markdown|json] [-vertical] [-extended] TEXT…
  fav list [-content]
  fav get KEY
  fav add [-name NAME] TEXT…
  fav rm KEY
  fav exists TEXT…
  fav clear -yes
  fav spell [-format …] KEY
  serve
`

// errUsage marks command line mistakes; run exits with status 2 for them.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries what every command needs.
type cli struct {
	cfg        *config.Config
	configPath string
	level      *slog.LevelVar
	stdout     io.Writer
	stderr     io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("spellin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", defaultConfigPath(), "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "spellin: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(stderr, &level))

	c := &cli{cfg: cfg, configPath: *configPath, level: &level, stdout: stdout, stderr: stderr}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "spell":
		err = c.spell(rest)
	case "fav", "favourites":
		err = c.fav(rest)
	case "serve":
		err = c.serve()
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "spellin: %v\n\n%s", err, usage)
		return 2
	default:
		fmt.Fprintf(stderr, "spellin: %v\n", err)
		return 1
	}
}

// defaultConfigPath is $SPELLIN_CONFIG, or spellin.yaml in the working
// directory.
func defaultConfigPath() string {
	if p := os.Getenv("SPELLIN_CONFIG"); p != "" {
		return p
	}
	return "spellin.yaml"
}

// ── spell ─────────────────────────────────────────────────────────────────────

func (c *cli) spell(args []string) error {
	fs := c.flagSet("spell")
	format := fs.String("format", "text", "output format: text, ansi, markdown or json")
	vertical := fs.Bool("vertical", false, "one word per line")
	extended := fs.Bool("extended", c.cfg.Spell.ExtendedNumbers, "read digits with their maritime code words")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: spell needs text", errUsage)
	}

	display := c.cfg.Display
	if *vertical {
		display.Orientation = config.OrientationVertical
	}
	var opts []spell.Option
	if *extended {
		opts = append(opts, spell.WithExtendedNumbers())
	}
	return c.print(strings.Join(fs.Args(), " "), spell.New(opts...), display, *format)
}

// print spells text and writes it to stdout in format.
func (c *cli) print(text string, engine *spell.Engine, display config.DisplayConfig, format string) error {
	tokens := engine.Spell(text)

	var style render.Style
	switch format {
	case "text":
		style = render.StylePlain
	case "ansi":
		style = render.StyleANSI
	case "markdown":
		style = render.StyleMarkdown
	case "json":
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Text   string        `json:"text"`
			Words  []string      `json:"words"`
			Tokens []spell.Token `json:"tokens"`
		}{text, spell.Words(tokens), tokens})
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, format)
	}
	return render.Write(c.stdout, tokens, render.FromConfig(display, style))
}

// ── fav ───────────────────────────────────────────────────────────────────────

func (c *cli) fav(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: fav needs a subcommand", errUsage)
	}
	sub, args := args[0], args[1:]

	ctx := context.Background()
	a, err := app.New(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(ctx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()
	store := a.Store()

	switch sub {
	case "list", "ls":
		fs := c.flagSet("fav list")
		content := fs.Bool("content", false, "print the stored text next to each key")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if !*content {
			keys, err := store.List(ctx)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(c.stdout, k)
			}
			return nil
		}
		entries, err := store.ListWithContent(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(c.stdout, "%s\t%s\n", e.Key, e.Text)
		}
		return nil

	case "get":
		key, err := oneArg(args, "fav get needs a key")
		if err != nil {
			return err
		}
		text, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no favourite %q", key)
		}
		fmt.Fprintln(c.stdout, text)
		return nil

	case "add":
		fs := c.flagSet("fav add")
		name := fs.String("name", "", "store under this key instead of the normalised text")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if fs.NArg() == 0 {
			return fmt.Errorf("%w: fav add needs text", errUsage)
		}
		key, err := store.Add(ctx, strings.Join(fs.Args(), " "), *name)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, key)
		return nil

	case "rm", "delete":
		key, err := oneArg(args, "fav rm needs a key")
		if err != nil {
			return err
		}
		return store.Delete(ctx, key)

	case "exists":
		if len(args) == 0 {
			return fmt.Errorf("%w: fav exists needs text", errUsage)
		}
		ok, err := store.Exists(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, ok)
		return nil

	case "clear":
		fs := c.flagSet("fav clear")
		yes := fs.Bool("yes", false, "confirm removal of every favourite")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if !*yes {
			fmt.Fprintln(c.stderr, "nothing removed; pass -yes to confirm")
			return nil
		}
		return store.ClearAll(ctx, true)

	case "spell":
		fs := c.flagSet("fav spell")
		format := fs.String("format", "text", "output format: text, ansi, markdown or json")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		key, err := oneArg(fs.Args(), "fav spell needs a key")
		if err != nil {
			return err
		}
		text, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no favourite %q", key)
		}
		var opts []spell.Option
		if c.cfg.Spell.ExtendedNumbers {
			opts = append(opts, spell.WithExtendedNumbers())
		}
		return c.print(text, spell.New(opts...), c.cfg.Display, *format)

	default:
		return fmt.Errorf("%w: unknown fav subcommand %q", errUsage, sub)
	}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func (c *cli) serve() error {
	cfg := c.cfg
	slog.Info("spellin starting",
		"version", version,
		"config", c.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{app.WithLogLevel(c.level)}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	if cfg.Server.Metrics {
		tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := tel.Shutdown(context.Background()); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
		opts = append(opts, app.WithMetricsHandler(tel.Handler))
	}

	// Hot reload needs a file to watch.
	if _, err := os.Stat(c.configPath); err == nil {
		opts = append(opts, app.WithConfigPath(c.configPath))
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(c.stdout, cfg)

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialise application: %w", err)
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║         spellin — startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	summaryRow(w, "Listen addr", cfg.Server.ListenAddr)
	summaryRow(w, "TLS", enabled(cfg.Server.TLS != nil))
	summaryRow(w, "Metrics", enabled(cfg.Server.Metrics))
	summaryRow(w, "Storage", string(cfg.Storage.Backend))
	summaryRow(w, "Store ID", cfg.Storage.StoreID)
	summaryRow(w, "Encryption", enabled(cfg.Storage.EncryptionKey != ""))
	summaryRow(w, "Numbers", map[bool]string{false: "plain", true: "extended"}[cfg.Spell.ExtendedNumbers])
	summaryRow(w, "Orientation", string(cfg.Display.Orientation))
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func summaryRow(w io.Writer, label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", label, value)
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "(disabled)"
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// oneArg returns the single positional argument or a usage error with msg.
func oneArg(args []string, msg string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: %s", errUsage, msg)
	}
	return args[0], nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
