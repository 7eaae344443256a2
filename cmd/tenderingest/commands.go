package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/FuJacob/mapletenders-sub000/internal/config"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
	"github.com/FuJacob/mapletenders-sub000/internal/ingest"
	"github.com/FuJacob/mapletenders-sub000/internal/source"
	"github.com/FuJacob/mapletenders-sub000/internal/store/postgres"
)

type refreshOpts struct {
	NoSync bool `long:"no-sync" description:"skip the search sync after importing"`
}

type importOpts struct {
	NoSync bool `long:"no-sync" description:"skip the search sync after importing"`
	Args   struct {
		Source string `positional-arg-name:"source" required:"yes"`
	} `positional-args:"yes"`
}

type sampleOpts struct {
	Limit int `short:"n" long:"limit" default:"5" description:"number of tenders to print"`
	Args  struct {
		Source string `positional-arg-name:"source" required:"yes"`
	} `positional-args:"yes"`
}

// parseArgs parses args into opts. done is true when the command should exit
// with code, either because help was printed or parsing failed.
func parseArgs(name string, opts any, args []string) (done bool, code int) {
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = "tenderingest " + name
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return true, exitSuccess
			}
		}
		return true, exitInvalidConfig
	}
	return false, exitSuccess
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runRefresh(args []string) int {
	var opts refreshOpts
	if done, code := parseArgs("refresh", &opts, args); done {
		return code
	}

	return withApp(func(ctx context.Context, a *app) int {
		result, err := a.coordinator.Refresh(ctx)
		if err != nil {
			log.Printf("tenderingest: refresh failed: %v", err)
			return exitRuntimeError
		}
		return finishRefresh(ctx, a, result, opts.NoSync)
	})
}

func runImport(args []string) int {
	var opts importOpts
	if done, code := parseArgs("import", &opts, args); done {
		return code
	}

	return withApp(func(ctx context.Context, a *app) int {
		result, err := a.coordinator.ImportSource(ctx, domain.SourceKind(opts.Args.Source))
		if err != nil {
			log.Printf("tenderingest: import failed: %v", err)
			return exitRuntimeError
		}
		return finishRefresh(ctx, a, result, opts.NoSync)
	})
}

// withApp loads config, opens the database and runs fn with a wired app.
func withApp(fn func(ctx context.Context, a *app) int) int {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Printf("tenderingest: %v", err)
		return exitRuntimeError
	}
	defer db.Close()

	a, err := buildApp(cfg, db, nil)
	if err != nil {
		log.Printf("tenderingest: %v", err)
		return exitInvalidConfig
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, a)
}

// finishRefresh prints the result and runs the search sync inline, since no
// background worker exists outside serve.
func finishRefresh(ctx context.Context, a *app, result domain.RefreshResult, noSync bool) int {
	printRefreshResult(os.Stdout, result)

	if result.Status == domain.RefreshSkipped {
		return exitSuccess
	}

	if !noSync && result.ImportedCount > 0 {
		req := domain.SyncRequest{RunID: result.RunID, Reason: "refresh", RequestedAt: time.Now().UTC()}
		if err := a.syncClient.Sync(ctx, req); err != nil {
			log.Printf("tenderingest: search sync failed: %v", err)
		}
	}

	if len(result.Failed()) == len(result.Outcomes) && len(result.Outcomes) > 0 {
		return exitRuntimeError
	}
	return exitSuccess
}

func printRefreshResult(w io.Writer, result domain.RefreshResult) {
	if result.Status == domain.RefreshSkipped {
		fmt.Fprintf(w, "refresh skipped (%s): %s\n", result.SkipReason, result.Message)
		return
	}

	fmt.Fprintf(w, "refresh %s: imported=%d expired_removed=%d\n", result.RunID, result.ImportedCount, result.ExpiredRemoved)
	for _, o := range result.Outcomes {
		switch {
		case o.Skipped:
			fmt.Fprintf(w, "  %-16s skipped (circuit open)\n", o.Source)
		case o.Err != nil:
			fmt.Fprintf(w, "  %-16s failed: %v\n", o.Source, o.Err)
		default:
			line := fmt.Sprintf("  %-16s fetched=%d imported=%d rejected=%d stale_removed=%d (%s)",
				o.Source, o.Fetched, o.Imported, o.Rejected, o.StaleRemoved, o.Duration.Round(time.Millisecond))
			if o.Degraded {
				line += " degraded"
			}
			fmt.Fprintln(w, line)
		}
	}
}

// runSample fetches one source and prints canonical tenders. It needs no
// database.
func runSample(args []string) int {
	var opts sampleOpts
	if done, code := parseArgs("sample", &opts, args); done {
		return code
	}
	if opts.Limit <= 0 {
		fmt.Fprintln(os.Stderr, "limit must be positive")
		return exitInvalidConfig
	}

	cfg := config.Load()
	if err := config.ValidateOffline(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	catalogue, err := loadCatalogue(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}
	registry, err := source.NewRegistry(catalogue, source.SettingsFromConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	kind := domain.SourceKind(opts.Args.Source)
	adapter, ok := registry.Get(kind)
	if !ok {
		fmt.Fprintf(os.Stderr, "source %q is not enabled (enabled: %s)\n", kind, joinKinds(registry))
		return exitInvalidConfig
	}

	ctx, cancel := signalContext()
	defer cancel()

	imp := ingest.NewImporter(adapter, nil, nil)
	tenders, rejects, err := imp.Sample(ctx, opts.Limit)
	if err != nil {
		log.Printf("tenderingest: sample %s failed: %v", kind, err)
		return exitRuntimeError
	}
	for _, r := range rejects {
		log.Printf("tenderingest: sample %s: rejected record: %v", kind, r)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tenders); err != nil {
		log.Printf("tenderingest: encode sample: %v", err)
		return exitRuntimeError
	}
	return exitSuccess
}

func runMigrate() int {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Printf("tenderingest: %v", err)
		return exitRuntimeError
	}
	defer db.Close()

	ver, dirty, err := postgres.Migrate(db)
	if err != nil {
		log.Printf("tenderingest: migration failed: %v", err)
		return exitRuntimeError
	}
	fmt.Printf("migrations applied (version=%d, dirty=%t)\n", ver, dirty)
	return exitSuccess
}
