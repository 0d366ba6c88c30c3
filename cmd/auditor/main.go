package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	cliadapter "github.com/kirillkom/invoice-auditor/internal/adapters/cli"
	"github.com/kirillkom/invoice-auditor/internal/bootstrap"
	"github.com/kirillkom/invoice-auditor/internal/config"
	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/intake/localfiles"
	"github.com/kirillkom/invoice-auditor/internal/observability/logging"
)

const serviceName = "auditor-cli"

var version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitPartial = 3
)

type options struct {
	JSON         bool
	History      bool
	ClearHistory bool
	Export       string
	Watch        bool
	RetryFailed  bool
	Version      bool
	Help         bool
	Paths        []string
}

func parseFlags(args []string, stderr io.Writer) (options, *pflag.FlagSet, error) {
	var opts options
	fs := pflag.NewFlagSet("auditor", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.JSON, "json", false, "print results as JSON")
	fs.BoolVar(&opts.History, "history", false, "show past verdicts")
	fs.BoolVar(&opts.ClearHistory, "clear-history", false, "delete all past verdicts")
	fs.StringVar(&opts.Export, "export", "", "write past verdicts to an .xlsx file")
	fs.BoolVar(&opts.Watch, "watch", false, "stream analysis events from NATS until interrupted")
	fs.BoolVar(&opts.RetryFailed, "retry-failed", false, "retry failed files once after the batch settles")
	fs.BoolVarP(&opts.Version, "version", "v", false, "print version and exit")
	fs.BoolVarP(&opts.Help, "help", "h", false, "show this help")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: auditor [flags] [invoice.pdf | dir]...\n\nAudits PDF invoices for completeness.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	opts.Paths = fs.Args()
	return opts, fs, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	switch {
	case opts.Help:
		fs.Usage()
		return exitOK
	case opts.Version:
		fmt.Fprintf(stdout, "auditor %s\n", version)
		return exitOK
	case !opts.History && !opts.ClearHistory && opts.Export == "" && !opts.Watch && len(opts.Paths) == 0:
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}
	logger := logging.New(stderr, serviceName, cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{ServiceName: serviceName, Logger: logger})
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return exitFailure
	}
	defer app.Close()

	if opts.ClearHistory {
		app.Session.ClearHistory(ctx)
		fmt.Fprintln(stdout, "History cleared.")
	}

	code := exitOK
	if len(opts.Paths) > 0 {
		code = analyze(ctx, app, opts, stdout, stderr)
	}

	if opts.History {
		if err := printHistory(app.Session.History(), opts.JSON, stdout); err != nil {
			fmt.Fprintf(stderr, "history: %v\n", err)
			return exitFailure
		}
	}
	if opts.Export != "" {
		if err := exportHistory(opts.Export, app.Session.History()); err != nil {
			fmt.Fprintf(stderr, "export: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "History exported to %s\n", opts.Export)
	}
	if opts.Watch {
		if err := watch(ctx, app, opts.JSON, stdout); err != nil {
			fmt.Fprintf(stderr, "watch: %v\n", err)
			return exitFailure
		}
	}
	return code
}

func analyze(ctx context.Context, app *bootstrap.App, opts options, stdout, stderr io.Writer) int {
	files, err := localfiles.Load(ctx, opts.Paths)
	if err != nil {
		fmt.Fprintf(stderr, "load: %v\n", err)
		return exitFailure
	}

	snapshot, err := app.Session.AnalyzeFiles(ctx, files, domain.AnalyzeOptions{RetryFailed: opts.RetryFailed})
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return exitUsage
		}
		return exitFailure
	}

	if opts.JSON {
		if err := writeJSON(stdout, snapshot); err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return exitFailure
		}
	} else {
		fmt.Fprintln(stdout, cliadapter.RenderSnapshot(snapshot))
	}

	if snapshot.Failed > 0 {
		return exitPartial
	}
	return exitOK
}

func printHistory(entries []domain.HistoryEntry, asJSON bool, stdout io.Writer) error {
	if asJSON {
		if entries == nil {
			entries = []domain.HistoryEntry{}
		}
		return writeJSON(stdout, entries)
	}
	_, err := fmt.Fprintln(stdout, cliadapter.RenderHistory(entries))
	return err
}

func exportHistory(path string, entries []domain.HistoryEntry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return xlsx.WriteHistory(f, entries)
}

func watch(ctx context.Context, app *bootstrap.App, asJSON bool, stdout io.Writer) error {
	if app.Events == nil {
		return errors.New("NATS_URL is not set")
	}
	return app.Events.SubscribeAnalysisEvents(ctx, func(_ context.Context, event domain.AnalysisEvent) error {
		if asJSON {
			return writeJSON(stdout, event)
		}
		_, err := fmt.Fprintln(stdout, cliadapter.RenderEvent(event))
		return err
	})
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
