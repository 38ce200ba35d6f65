// Command graphqlite is a smoke-test CLI for the embedding library, not a server: graphqlite is
// designed to be linked into a host process via pkg/bindings, so this binary only opens a database
// file, ensures its schema, and runs one Cypher statement — enough to confirm a build links and a
// query round-trips end to end. Grounded on the teacher's cmd/nornicdb/main.go command tree, trimmed
// to drop serve/import/shell/decay: a standalone server and an interactive REPL are explicit
// Non-goals of an embedded graph engine.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphqlite/graphqlite/pkg/bindings"
	"github.com/graphqlite/graphqlite/pkg/config"
	"github.com/graphqlite/graphqlite/pkg/transform"

	"database/sql"

	_ "modernc.org/sqlite"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphqlite",
		Short: "graphqlite - an openCypher graph engine embedded in a SQLite row store",
		Long: `graphqlite compiles a subset of openCypher down to SQL over a typed
entity-attribute-value schema stored in an ordinary SQLite database.

It is meant to be imported as a library (see pkg/bindings); this binary
exists to smoke-test a build and demonstrate the embedding shape.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphqlite v%s (%s)\n", version, commit)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new graphqlite database file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}
	rootCmd.AddCommand(initCmd)

	queryCmd := &cobra.Command{
		Use:   "query [database] [cypher]",
		Short: "Run one Cypher statement against a database file and print the result",
		Args:  cobra.ExactArgs(2),
		RunE:  runQuery,
	}
	rootCmd.AddCommand(queryCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDatabase(path string) (*sql.DB, *bindings.Bindings, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	// graphqlite's executor assumes a single live connection per schema instance (spec §5); a
	// file-backed SQLite handle defaults to a pool, so this pins it to one.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := bindings.EnsureSchema(ctx, db, ""); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initializing schema: %w", err)
	}

	b := bindings.New(db, config.Default(), "")
	if err := b.Activate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("registering cypher()/regexp(): %w", err)
	}
	return db, b, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	fmt.Printf("📂 Initializing graphqlite database at %s\n", path)

	db, _, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("✅ Database initialized successfully")
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	path, cypher := args[0], args[1]

	db, b, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	_, exec, release, err := b.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}
	defer release()

	result, err := exec.Execute(ctx, cypher, nil)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}

	if result.Kind == transform.ResultWriteOnly {
		fmt.Println(result.StatusString())
		return nil
	}

	data, err := result.JSON()
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
