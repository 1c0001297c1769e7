// Package cli implements the kindredctl commands: offline inspection and
// maintenance of a companion's SQLite database.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/store"
)

const defaultDBPath = "data/kindred.db"

type options struct {
	dbPath  string
	format  string
	persona string
}

// NewRootCmd builds the command tree. Each call returns an independent tree,
// so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "kindredctl",
		Short:         "Inspect and maintain a kindred companion database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "json" && opts.format != "text" {
				return fmt.Errorf("unknown format %q (valid options: json, text)", opts.format)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.dbPath, "db", "d", "", "Database path (default: $KINDRED_DB, $SQLITE_PATH or "+defaultDBPath+")")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "Output format: json or text")
	root.PersistentFlags().StringVar(&opts.persona, "persona", "", "Persona name used when a heart document has to be created (default: $PERSONA_NAME or TeenAI)")

	root.AddCommand(
		newStateCmd(opts),
		newStageCmd(opts),
		newHistoryCmd(opts),
		newHeartsCmd(opts),
		newRecallCmd(opts),
		newChurnCmd(opts),
		newEventsCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the CLI and reports errors on stderr.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (o *options) path() string {
	if o.dbPath != "" {
		return o.dbPath
	}
	if env := os.Getenv("KINDRED_DB"); env != "" {
		return env
	}
	if env := os.Getenv("SQLITE_PATH"); env != "" {
		return env
	}
	return defaultDBPath
}

func (o *options) personaName() string {
	if o.persona != "" {
		return o.persona
	}
	if env := os.Getenv("PERSONA_NAME"); env != "" {
		return env
	}
	return "TeenAI"
}

// openStore refuses to create a database that does not exist yet; every
// command inspects an existing companion.
func (o *options) openStore() (*store.SQLiteStore, error) {
	p := o.path()
	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return store.NewSQLiteStore(p)
}

// load reads one snapshot; a missing key leaves v at its zero value.
func load(ctx context.Context, s *store.SQLiteStore, key string, v any) error {
	if err := s.Load(ctx, key, v); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load %s: %w", key, err)
	}
	return nil
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x63746c))
}

func (o *options) logger() *zap.Logger {
	return zap.NewNop()
}

// render writes v as indented JSON, or calls text for the text format.
func (o *options) render(w io.Writer, v any, text func(io.Writer)) error {
	if o.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
