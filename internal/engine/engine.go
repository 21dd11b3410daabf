package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/csvload"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/exec"
	"github.com/dreamware/cyq/internal/parser/lexer"
	"github.com/dreamware/cyq/internal/parser/parser"
	"github.com/dreamware/cyq/internal/planner"
	"github.com/dreamware/cyq/internal/storage"
)

// Database is one open database directory: the catalog, its storage
// manager, and the shared worker pool. Construct with Open, release with
// Close; every handle is passed down explicitly, never held in a global.
type Database struct {
	dir   string
	cfg   Config
	cat   *catalog.Catalog
	store *storage.Manager
	pool  *WorkerPool
	log   *zap.Logger
}

// Open loads (or initializes) the database at dir.
func Open(dir string, opts ...Option) (*Database, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cyqerr.Wrap(err, cyqerr.KindIO, "creating database directory")
	}

	cat := catalog.New()
	catalogPath := filepath.Join(dir, "catalog.json")
	if data, err := cfg.FS.ReadFile(catalogPath); err == nil {
		restored, derr := catalog.Deserialize(data)
		if derr != nil {
			return nil, derr
		}
		cat = restored
	}

	store, err := storage.Open(dir, cat,
		storage.WithNodeGroupSize(cfg.NodeGroupSize),
		storage.WithFileSystem(cfg.FS),
		storage.WithCacheSize(cfg.CacheSize),
	)
	if err != nil {
		return nil, err
	}

	db := &Database{
		dir:   dir,
		cfg:   cfg,
		cat:   cat,
		store: store,
		pool:  NewWorkerPool(cfg.WorkerCount),
		log:   cfg.Logger,
	}
	db.log.Info("database open", zap.String("dir", dir), zap.Int("workers", cfg.WorkerCount))
	return db, nil
}

// Close persists the catalog, stops the pool, and releases storage.
func (db *Database) Close() error {
	db.pool.Stop()
	if err := db.saveCatalog(); err != nil {
		db.store.Close()
		return err
	}
	return db.store.Close()
}

// Catalog exposes the schema catalog (admin tooling reads it directly).
func (db *Database) Catalog() *catalog.Catalog { return db.cat }

func (db *Database) saveCatalog() error {
	data, err := db.cat.Serialize()
	if err != nil {
		return err
	}
	return db.cfg.FS.WriteFile(filepath.Join(db.dir, "catalog.json"), data)
}

// Connect opens a client connection. Connections are cheap; each carries
// its own warning context and query counter.
func (db *Database) Connect() *Connection {
	return &Connection{db: db, warn: csvload.NewWarningContext(db.cfg.MaxWarnings)}
}

// Connection is the embedded query surface: Query parses, binds, plans,
// and executes one statement, returning a materialized Result.
type Connection struct {
	db      *Database
	warn    *csvload.WarningContext
	queryID atomic.Uint64
}

// Query runs text under a background context.
func (c *Connection) Query(text string) (*Result, error) {
	return c.QueryContext(context.Background(), text)
}

// QueryContext runs text; cancelling ctx interrupts the pipeline between
// batches.
func (c *Connection) QueryContext(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	qid := fmt.Sprintf("q%d", c.queryID.Add(1))
	log := c.db.log.With(zap.String("queryID", qid))

	stmt, err := parser.New(lexer.New(text)).ParseStatement()
	if err != nil {
		log.Debug("parse failed", zap.Error(err))
		return nil, err
	}
	bound, err := binder.New(c.db.cat).Bind(stmt)
	if err != nil {
		log.Debug("bind failed", zap.Error(err))
		return nil, err
	}
	plan, err := planner.New(c.db.cat, c.db.store.PlannerStats()).Plan(bound)
	if err != nil {
		return nil, err
	}

	env := exec.Env{
		Cat:      c.db.cat,
		Store:    c.db.store,
		Loader:   c.db.store,
		CSV:      c.csvSource(bound, qid),
		Warnings: warningsAdapter{c.warn},
	}
	op, err := exec.Build(plan, env)
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: op.Schema()}
	ectx := exec.NewExecContext(ctx, nil)
	var runErr error
	c.db.pool.Run(func() {
		runErr = drain(ectx, op, res)
	})
	if runErr != nil {
		log.Debug("execution failed", zap.Error(runErr))
		return nil, runErr
	}
	res.Elapsed = time.Since(start)
	for _, w := range c.warn.Snapshot() {
		if w.QueryID == qid {
			res.Warnings = append(res.Warnings, exec.WarningRow{
				QueryID: w.QueryID, Message: w.Message, FilePath: w.FilePath,
				LineNumber: w.LineNumber, Skipped: w.Skipped,
			})
		}
	}
	log.Debug("query done",
		zap.Int("tuples", res.NumTuples()),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// csvSource builds the per-query CSV source, dialed in from the bound
// COPY options when the statement is a copy.
func (c *Connection) csvSource(bound *binder.BoundStatement, qid string) exec.CSVSource {
	src := csvload.NewSource(c.db.cfg.FS, cast.DefaultOptions())
	src.Warn = c.warn
	src.QueryID = qid
	if bound.DDL != nil && bound.DDL.CopyFrom != nil {
		opts := bound.DDL.CopyFrom.Options
		src.Opts = cast.FromCopyOptions(opts)
		if v, ok := opts["IGNORE_ERRORS"]; ok && equalsTrue(v) {
			src.IgnoreErrors = true
		}
	}
	return csvSourceAdapter{src}
}

// csvSourceAdapter narrows csvload.Source to the execution layer's
// CSVSource contract.
type csvSourceAdapter struct{ src *csvload.Source }

func (a csvSourceAdapter) OpenCSV(path string, withHeaders bool) (exec.CSVReader, error) {
	return a.src.OpenGlob(path, withHeaders)
}

// warningsAdapter exposes the connection's warning context to
// SHOW_WARNINGS.
type warningsAdapter struct{ warn *csvload.WarningContext }

func (a warningsAdapter) Warnings() []exec.WarningRow {
	ws := a.warn.Snapshot()
	out := make([]exec.WarningRow, len(ws))
	for i, w := range ws {
		out[i] = exec.WarningRow{
			QueryID: w.QueryID, Message: w.Message, FilePath: w.FilePath,
			LineNumber: w.LineNumber, Skipped: w.Skipped,
		}
	}
	return out
}

func equalsTrue(v string) bool {
	return v == "true" || v == "TRUE" || v == "True" || v == "1"
}
