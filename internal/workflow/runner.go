// Package workflow drives a recon run: walk and insert base rows, select
// candidates, enrich them in parallel, then serve the user's query.
package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"runtime"
	"sync"

	"github.com/rusty-ferris-club/recon/internal/config"
	"github.com/rusty-ferris-club/recon/internal/fsmeta"
	"github.com/rusty-ferris-club/recon/internal/index"
	"github.com/rusty-ferris-club/recon/internal/scan"
	"github.com/rusty-ferris-club/recon/internal/walker"
)

const (
	entryBuffer = 1024
	batchSize   = 256
	maxWorkers  = 64
)

// Options holds the configuration for one run.
type Options struct {
	Root       string // -r; overrides the config's source.root
	ConfigPath string // -c
	DBFile     string // -f; file path or :memory:
	DBURL      string // DATABASE_URL; wins over DBFile
	Delete     bool   // -d: drop the store before walking
	Update     bool   // -u: always walk and enrich before querying
	All        bool   // -a: ignore the ignore files
	InMemory   bool   // -m: in-memory store, implies update semantics
	Query      string // -q; overrides the config's source.query
	Workers    int    // enrichment parallelism; 0 means hardware threads

	Log *log.Logger // verbose logging; nil discards

	// Progress hooks, all optional.
	OnWalked      func(count int)
	OnEnrichStart func(total int)
	OnEnriched    func(done int)
}

func (o *Options) logger() *log.Logger {
	if o.Log != nil {
		return o.Log
	}
	return log.New(io.Discard, "", 0)
}

func (o *Options) location() string {
	if o.InMemory {
		return index.MemoryDB
	}
	if o.DBURL != "" {
		return o.DBURL
	}
	if o.DBFile != "" {
		return o.DBFile
	}
	return index.DefaultDBFile
}

// Run executes the staged pipeline and returns the final query's result set.
func Run(ctx context.Context, opts Options) (*index.ValuesTable, error) {
	logger := opts.logger()

	cfg := &config.Config{}
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	source := &cfg.Source

	root := opts.Root
	if root == "" {
		root = source.RootOr(".")
	}

	location := opts.location()
	if opts.Delete {
		logger.Printf("removing existing db")
		if err := index.Remove(location); err != nil {
			return nil, err
		}
	}
	existed := index.Exists(location)

	store, err := index.Open(location)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	logger.Printf("db: %s", location)

	// The classifier and plan compile user input (ignore files, regexes,
	// YARA); failures are fatal before any filesystem work starts.
	classifier, err := fsmeta.NewClassifier(source.GetDefaultFields())
	if err != nil {
		return nil, err
	}
	plan, err := scan.BuildPlan(source.GetComputedFields())
	if err != nil {
		return nil, err
	}

	firstRun := !existed || store.InMemory()
	update := firstRun || opts.Update || opts.InMemory
	if !update {
		hasRows, err := store.HasRows()
		if err != nil {
			return nil, err
		}
		// An existing but empty store is indistinguishable from a first
		// run; fall through to the walk.
		update = !hasRows
	}

	if update {
		if firstRun {
			logger.Printf("updating data. first run.")
		}
		if _, err := store.EnsureFieldsHash(fieldsHash(source.GetComputedFields())); err != nil {
			return nil, err
		}
		if err := walkAndStore(ctx, root, store, classifier, &opts); err != nil {
			return nil, err
		}
		if err := enrich(ctx, store, source.SelectionQuery(), plan, &opts); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := opts.Query
	if query == "" {
		query = source.Query
	}
	if query == "" {
		query = config.DefaultQuery
	}
	return store.QueryTable(query)
}

// fieldsHash fingerprints the computed-fields configuration. When it changes
// between runs, previously computed rows are re-enriched.
func fieldsHash(cf *config.ComputedFields) string {
	b, _ := json.Marshal(cf)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// walkAndStore is stage 1: stream entries from the walker into batched base
// row upserts. The walker is the single producer; all writes happen on this
// goroutine, keeping the store writer serialized.
func walkAndStore(ctx context.Context, root string, store *index.Database, classifier *fsmeta.Classifier, opts *Options) error {
	logger := opts.logger()

	entries := make(chan walker.Entry, entryBuffer)
	walkErr := make(chan error, 1)
	go func() {
		defer close(entries)
		walkErr <- walker.Walk(ctx, root, walker.Options{All: opts.All}, func(e walker.Entry) error {
			select {
			case entries <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	count := 0
	batch := make([]*index.FileRow, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.UpsertBatch(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for e := range entries {
		if e.Err != nil {
			logger.Printf("walk: %s: %v", e.Path, e.Err)
			continue
		}
		row, err := fsmeta.FromEntry(e.Path, e.Info)
		if err != nil {
			logger.Printf("walk: %s: %v", e.Path, err)
			continue
		}
		classifier.Apply(row)
		batch = append(batch, row)
		count++
		if opts.OnWalked != nil {
			opts.OnWalked(count)
		}
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	err := <-walkErr
	if err != nil && ctx.Err() != nil {
		// Interrupted walks are handled by the caller; base rows written so
		// far are durable.
		return nil
	}
	logger.Printf("walked %d entries", count)
	return err
}

// enrich is stages 2 and 3: run the selection query, then fan candidates out
// to a worker pool. Each worker owns one file end-to-end; completed rows
// funnel back to this goroutine, which is the only store writer.
func enrich(ctx context.Context, store *index.Database, selection string, plan *scan.Plan, opts *Options) error {
	if !plan.NeedsEnrichment() {
		return nil
	}
	logger := opts.logger()

	candidates, err := store.SelectCandidates(selection)
	if err != nil {
		return err
	}
	pending := make([]*index.FileRow, 0, len(candidates))
	for _, row := range candidates {
		if !row.Computed {
			pending = append(pending, row)
		}
	}
	if opts.OnEnrichStart != nil {
		opts.OnEnrichStart(len(pending))
	}
	if len(pending) == 0 {
		return nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	jobs := make(chan *index.FileRow)
	results := make(chan *index.FileRow)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				if err := plan.Enrich(row); err != nil {
					// Scoped to one file: content fields stay null and the
					// row is still marked computed below.
					logger.Printf("%v", err)
				}
				results <- row
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, row := range pending {
			select {
			case jobs <- row:
			case <-ctx.Done():
				// Stop feeding; in-flight files drain normally.
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for row := range results {
		if err := store.ApplyEnrichment(row); err != nil {
			return err
		}
		done++
		if opts.OnEnriched != nil {
			opts.OnEnriched(done)
		}
	}
	logger.Printf("enriched %d of %d candidates", done, len(pending))
	return nil
}
