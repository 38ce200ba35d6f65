// Package bindings registers graphqlite's host-facing SQL functions — `cypher(query_text[,
// params_json])` and `regexp(pattern, string)` (spec §6) — on the `modernc.org/sqlite` driver, and
// owns the per-connection executor.Executor lifecycle (spec §5). Grounded on the teacher's
// pkg/bolt/server.go (accept-loop-owns-session-state shape, adapted here to
// connection-open-owns-executor-state) and pkg/mcp/server.go (tool registration against a shared
// dispatcher, adapted to modernc.org/sqlite's RegisterScalarFunction extension mechanism).
package bindings

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"

	"github.com/graphqlite/graphqlite/pkg/config"
	"github.com/graphqlite/graphqlite/pkg/cypher/internal/posixregex"
	"github.com/graphqlite/graphqlite/pkg/errs"
	"github.com/graphqlite/graphqlite/pkg/executor"
	"github.com/graphqlite/graphqlite/pkg/schema"
	"github.com/graphqlite/graphqlite/pkg/transform"
)

// Bindings owns one database's registered host functions and connection registry. Only one
// Bindings may be Activate()d per process: modernc.org/sqlite's RegisterScalarFunction is a
// process-global driver registration, not per-*sql.DB, so a second concurrent embedding in the same
// process is out of scope (spec's "embedded library," not "multi-tenant server").
type Bindings struct {
	db           *sql.DB
	cfg          config.Config
	schemaPrefix string
	log          *logrus.Entry

	mu      sync.Mutex
	byConn  map[string]*executor.Executor // keyed by a uuid stamped at connection-open time
	shared  *executor.Executor            // used by the cypher() UDF itself (see note on Activate)
}

// New builds a Bindings over an already-open, already-schema-initialized database. db should be
// pinned to a single connection (e.g. sql.DB.SetMaxOpenConns(1) for a file-backed database, since
// ":memory:" databases are already one-per-connection): the cypher() UDF runs against New's shared
// executor directly over db rather than a dedicated *sql.Conn, so a multi-connection pool would
// split a single logical graph across several physically distinct SQLite connections.
func New(db *sql.DB, cfg config.Config, schemaPrefix string) *Bindings {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logrus.WithField("component", "bindings").WithError(err).Warn("could not enable foreign key enforcement")
	}
	return &Bindings{
		db:           db,
		cfg:          cfg,
		schemaPrefix: schemaPrefix,
		log:          logrus.WithField("component", "bindings"),
		byConn:       make(map[string]*executor.Executor),
		shared:       executor.New(db, cfg, schemaPrefix),
	}
}

// Open checks out a host connection and returns its own Executor plus a release func to call from
// the host's connection-close hook (spec §5's per-connection executor/cache lifecycle). Most
// embedders driving Cypher directly through Go (rather than through the cypher() SQL function)
// should use this instead of New's shared executor, since each connection gets its own CSR snapshot
// and query-result cache.
func (b *Bindings) Open(ctx context.Context) (*sql.Conn, *executor.Executor, func(), error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, nil, nil, errs.Wrap(errs.Resource, err, "open connection")
	}
	// SQLite only honors ON DELETE CASCADE when a connection has foreign key enforcement turned
	// on; it defaults to off per-connection (spec §3.1's typed property tables rely on cascade to
	// avoid orphaned rows on DETACH DELETE/node delete).
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, nil, nil, errs.Wrap(errs.Resource, err, "enable foreign key enforcement")
	}
	id := uuid.NewString()
	exec := executor.New(conn, b.cfg, b.schemaPrefix)

	b.mu.Lock()
	b.byConn[id] = exec
	b.mu.Unlock()

	release := func() {
		b.mu.Lock()
		delete(b.byConn, id)
		b.mu.Unlock()
		exec.Close()
		conn.Close()
	}
	return conn, exec, release, nil
}

// Activate registers this Bindings as the one the cypher()/regexp() SQL functions dispatch through,
// and registers those functions with the driver on first call. The cypher() UDF runs against the
// shared executor built in New rather than checking out a fresh connection: a SQL function body
// executes nested inside the host statement already holding a connection out of the pool, and
// recursively checking out another connection from inside that callback risks deadlocking a
// size-bounded pool (spec §5 flags this as the host's responsibility to avoid), so it reuses the one
// bound directly to *sql.DB instead.
func (b *Bindings) Activate() error {
	activeMu.Lock()
	active = b
	activeMu.Unlock()

	var regErr error
	registerOnce.Do(func() {
		regErr = registerFunctions()
	})
	return regErr
}

var (
	registerOnce sync.Once
	activeMu     sync.RWMutex
	active       *Bindings
)

func registerFunctions() error {
	// modernc.org/sqlite's registration is fixed-arity; `cypher(query_text)` and
	// `cypher(query_text, params_json)` are registered as two distinct arities rather than one
	// variadic function (spec §6).
	if err := sqlite.RegisterScalarFunction("cypher", 1, cypherFunc1); err != nil {
		return errs.Wrap(errs.Resource, err, "register cypher/1")
	}
	if err := sqlite.RegisterScalarFunction("cypher", 2, cypherFunc2); err != nil {
		return errs.Wrap(errs.Resource, err, "register cypher/2")
	}
	if err := sqlite.RegisterScalarFunction("regexp", 2, regexpFunc); err != nil {
		return errs.Wrap(errs.Resource, err, "register regexp/2")
	}
	return nil
}

func cypherFunc1(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return runCypher(args[0], nil)
}

func cypherFunc2(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return runCypher(args[0], args[1])
}

func runCypher(queryArg, paramsArg driver.Value) (driver.Value, error) {
	activeMu.RLock()
	b := active
	activeMu.RUnlock()
	if b == nil {
		return nil, errs.New(errs.Resource, "cypher(): no graphqlite database activated in this process")
	}
	if queryArg == nil {
		return nil, nil
	}
	query, ok := queryArg.(string)
	if !ok {
		return nil, errs.New(errs.Execute, "cypher(): query_text argument must be text")
	}

	var params map[string]any
	if paramsArg != nil {
		raw, ok := paramsArg.(string)
		if !ok {
			return nil, errs.New(errs.Execute, "cypher(): params_json argument must be text")
		}
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, errs.Wrap(errs.Execute, err, "cypher(): parse params_json")
		}
	}

	result, err := b.shared.Execute(context.Background(), query, params)
	if err != nil {
		return nil, err
	}
	if result.Kind == transform.ResultWriteOnly {
		return result.StatusString(), nil
	}
	data, err := result.JSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func regexpFunc(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	pattern, ok := args[0].(string)
	if !ok {
		return nil, errs.New(errs.Execute, "regexp(): pattern argument must be text")
	}
	subject, ok := args[1].(string)
	if !ok {
		return nil, errs.New(errs.Execute, "regexp(): string argument must be text")
	}
	matched, err := posixregex.Match(pattern, subject)
	if err != nil {
		return nil, errs.Wrap(errs.Execute, err, "regexp(): compile pattern %q", pattern)
	}
	if matched {
		return int64(1), nil
	}
	return int64(0), nil
}

// EnsureSchema creates the graph schema on db if it does not already exist, the same idempotent
// on-first-connection check spec §3.1 documents.
func EnsureSchema(ctx context.Context, db *sql.DB, schemaPrefix string) error {
	exists, err := schema.Exists(ctx, db, schemaPrefix)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return schema.InitGraph(ctx, db, schemaPrefix)
}
