package cli

import (
	"log/slog"

	"github.com/roach88/audd/internal/store"
)

// openStore opens the SQLite store at the configured path.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Config.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}
