// Package cli implements the command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/rusty-ferris-club/recon/internal/index"
	"github.com/rusty-ferris-club/recon/internal/out"
	"github.com/rusty-ferris-club/recon/internal/ui"
	"github.com/rusty-ferris-club/recon/internal/workflow"
)

var (
	configPath string
	rootDir    string
	query      string
	dbFile     string
	deleteDB   bool
	update     bool
	allFiles   bool
	inMemory   bool
	noProgress bool
	asXargs    bool
	asJSON     bool
	asCSV      bool
	noStyle    bool
	failSome   bool
	failNone   bool
	verbose    bool

	// exitCode carries the --fail-some/--fail-none verdict out of RunE.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:           "recon",
	Short:         "SQL over files with security processing and tests",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	addFlags(rootCmd.Flags())
}

func addFlags(flags *pflag.FlagSet) {
	flags.SortFlags = false
	flags.StringVarP(&configPath, "config", "c", "", "Point to a configuration")
	flags.StringVarP(&rootDir, "root", "r", "", "Target folder to scan")
	flags.StringVarP(&query, "query", "q", "", "Query with SQL")
	flags.StringVarP(&dbFile, "file", "f", index.DefaultDBFile, "Use a specific DB file (file or :memory: for in memory)")
	flags.BoolVarP(&deleteDB, "delete", "d", false, "Clear data: delete existing cache database before running")
	flags.BoolVarP(&update, "update", "u", false, "Always walk files and update DB before query. Leave off to run query on existing "+index.DefaultDBFile+".")
	flags.BoolVarP(&allFiles, "all", "a", false, "Walk all files (dont consider .gitignore)")
	flags.BoolVarP(&inMemory, "inmem", "m", false, "Don't cache index to disk, run in-memory only")
	flags.BoolVar(&noProgress, "no-progress", false, "Don't display progress bars")
	flags.BoolVar(&asXargs, "xargs", false, "Output as xargs formatted list")
	flags.BoolVar(&asJSON, "json", false, "Output as JSON")
	flags.BoolVar(&asCSV, "csv", false, "Output as CSV")
	flags.BoolVar(&noStyle, "no-style", false, "Output as a table with no styles")
	flags.BoolVar(&failSome, "fail-some", false, "Exit code failure if *some* files are found")
	flags.BoolVar(&failNone, "fail-none", false, "Exit code failure if *no* files are found")
	flags.BoolVar(&verbose, "verbose", false, "Show logs")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	// A .env next to the working directory may carry DATABASE_URL.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return exitCode
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logger *log.Logger
	if verbose {
		logger = log.New(os.Stderr, "recon: ", 0)
	}

	opts := workflow.Options{
		Root:       rootDir,
		ConfigPath: configPath,
		DBFile:     dbFile,
		DBURL:      os.Getenv("DATABASE_URL"),
		Delete:     deleteDB,
		Update:     update,
		All:        allFiles,
		InMemory:   inMemory,
		Query:      query,
		Log:        logger,
	}

	var spinner *ui.Spinner
	var progress *ui.Progress
	if !noProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		spinner = ui.NewSpinner("Processing...")
		spinner.Start()
		opts.OnWalked = func(count int) {
			spinner.SetMessage(fmt.Sprintf("%d files", count))
		}
		opts.OnEnrichStart = func(total int) {
			spinner.Stop()
			progress = ui.NewProgress("Computing fields", total)
		}
		opts.OnEnriched = func(done int) {
			progress.Update(done)
		}
		defer func() {
			spinner.Stop()
			if progress != nil {
				progress.Done()
			}
		}()
	}

	start := time.Now()
	vt, err := workflow.Run(ctx, opts)
	if spinner != nil {
		spinner.Stop()
	}
	if progress != nil {
		progress.Done()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			exitCode = 1
			fmt.Fprintln(os.Stderr, "interrupted")
			return nil
		}
		return err
	}

	withSummary := false
	var output string
	switch {
	case asCSV:
		output, err = out.ToCSV(vt)
	case asJSON:
		output, err = out.ToJSON(vt)
	case asXargs:
		output = out.ToXargs(vt)
	default:
		withSummary = true
		styled := !noStyle && isatty.IsTerminal(os.Stdout.Fd())
		width := 0
		if styled {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = w
			}
		}
		output = out.ToTable(vt, styled, width)
	}
	if err != nil {
		return err
	}
	fmt.Print(output)

	if withSummary {
		fmt.Fprintf(os.Stderr, "%d of %d files in %v\n", len(vt.Rows), vt.TotalRows, time.Since(start))
	}

	if (failSome && len(vt.Rows) > 0) || (failNone && len(vt.Rows) == 0) {
		exitCode = 1
	}
	return nil
}
