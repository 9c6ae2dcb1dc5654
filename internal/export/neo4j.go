// Package export loads a call graph into external graph stores.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/config"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 1000

// ErrNoPassword is returned when the Neo4j password is not configured.
var ErrNoPassword = errors.New("neo4j password is required")

// Runner executes one Cypher statement.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// Neo4jRunner runs statements against a Neo4j database.
type Neo4jRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

// Dial connects to Neo4j and verifies the connection.
func Dial(ctx context.Context, cfg config.Neo4jConfig) (*Neo4jRunner, error) {
	if cfg.Password == "" {
		return nil, ErrNoPassword
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URI, err)
	}
	return &Neo4jRunner{driver: driver, database: cfg.Database}, nil
}

// Run implements Runner.
func (r *Neo4jRunner) Run(ctx context.Context, cypher string, params map[string]any) error {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if r.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(r.database))
	}
	_, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	return err
}

// Close releases the driver.
func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

const (
	indexFunctionKey  = "CREATE INDEX callscope_function_key IF NOT EXISTS FOR (n:Function) ON (n.key)"
	indexFunctionName = "CREATE INDEX callscope_function_name IF NOT EXISTS FOR (n:Function) ON (n.qualified_name)"

	cleanCalls     = "MATCH (:Function)-[r:CALLS]->(:Function) DELETE r"
	cleanFunctions = "MATCH (n:Function) DETACH DELETE n"
	cleanPatterns  = "MATCH (n:Pattern) DETACH DELETE n"

	mergeFunctions = `UNWIND $batch AS row
MERGE (n:Function {key: row.key})
SET n.qualified_name = row.qualified_name, n.name = row.name, n.file = row.file,
    n.line = row.line, n.run_id = row.run_id`

	mergeCalls = `UNWIND $batch AS row
MATCH (caller:Function {key: row.caller}), (callee:Function {key: row.callee})
MERGE (caller)-[r:CALLS {kind: row.kind}]->(callee)
SET r.count = row.count, r.provenance = row.provenance`

	mergePatterns = `UNWIND $batch AS row
MERGE (p:Pattern {key: row.key})
SET p.kind = row.kind, p.defining_type = row.defining_type, p.method = row.method
WITH p, row
UNWIND row.implementations AS impl
MATCH (f:Function {key: impl})
MERGE (f)-[:IMPLEMENTS]->(p)`
)

// Stats counts what an export wrote.
type Stats struct {
	Functions  int `json:"functions"`
	Edges      int `json:"edges"`
	Patterns   int `json:"patterns"`
	Statements int `json:"statements"`
}

// Exporter writes graph results through a Runner.
type Exporter struct {
	run       Runner
	batchSize int
	clean     bool
	logger    *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithBatchSize sets the rows per statement.
func WithBatchSize(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithClean removes previously exported data before loading.
func WithClean(clean bool) Option {
	return func(e *Exporter) {
		e.clean = clean
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an exporter.
func New(run Runner, opts ...Option) *Exporter {
	e := &Exporter{
		run:       run,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export loads the functions, call edges and patterns of res.
func (e *Exporter) Export(ctx context.Context, res *graph.Result) (Stats, error) {
	var st Stats
	exec := func(cypher string, params map[string]any) error {
		st.Statements++
		return e.run.Run(ctx, cypher, params)
	}

	for _, q := range []string{indexFunctionKey, indexFunctionName} {
		if err := exec(q, nil); err != nil {
			return st, fmt.Errorf("creating index: %w", err)
		}
	}
	if e.clean {
		e.logger.Info("cleaning existing call graph")
		for _, q := range []string{cleanCalls, cleanPatterns, cleanFunctions} {
			if err := exec(q, nil); err != nil {
				return st, fmt.Errorf("cleaning graph: %w", err)
			}
		}
	}

	functions := FunctionRows(res)
	e.logger.Info("loading functions", slog.Int("count", len(functions)))
	for _, batch := range Batches(functions, e.batchSize) {
		if err := exec(mergeFunctions, map[string]any{"batch": batch}); err != nil {
			return st, fmt.Errorf("loading functions: %w", err)
		}
		st.Functions += len(batch)
	}

	edges := EdgeRows(res)
	e.logger.Info("loading call edges", slog.Int("count", len(edges)))
	for _, batch := range Batches(edges, e.batchSize) {
		if err := exec(mergeCalls, map[string]any{"batch": batch}); err != nil {
			return st, fmt.Errorf("loading call edges: %w", err)
		}
		st.Edges += len(batch)
	}

	patterns := PatternRows(res)
	for _, batch := range Batches(patterns, e.batchSize) {
		if err := exec(mergePatterns, map[string]any{"batch": batch}); err != nil {
			return st, fmt.Errorf("loading patterns: %w", err)
		}
		st.Patterns += len(batch)
	}
	return st, nil
}
