package store

import (
	"fmt"
	"io"

	"github.com/soyeahso/cordbridge/internal/config"
	"github.com/soyeahso/cordbridge/internal/logging"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenCredentials builds the credential store selected by cfg. The returned
// closer releases the database, if any.
func OpenCredentials(cfg config.StoreConfig, paths config.Paths, log *logging.Logger) (Credentials, io.Closer, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(""), nopCloser{}, nil
	case "", "sqlite":
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	db, err := Open(paths.Database(), log)
	if err != nil {
		return nil, nil, err
	}
	var sealer *Sealer
	if cfg.Sealed() {
		if sealer, err = LoadOrCreateSealer(paths.Identity()); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return NewCredentialStore(db, sealer), db, nil
}
