package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CredentialStatus describes the stored record without revealing it.
type CredentialStatus struct {
	Set       bool      `json:"set"`
	Sealed    bool      `json:"sealed"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// CredentialStore keeps exactly one credential in the credentials table.
// Saving replaces whatever was there.
type CredentialStore struct {
	db     *DB
	sealer *Sealer
}

// NewCredentialStore returns a store over db. A nil sealer stores the
// credential in plaintext.
func NewCredentialStore(db *DB, sealer *Sealer) *CredentialStore {
	return &CredentialStore{db: db, sealer: sealer}
}

// Load returns the stored credential, or "" when none is stored.
func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	var value string
	var sealed bool
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT credential, sealed FROM credentials WHERE id = 1`,
	).Scan(&value, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading credential: %w", err)
	}

	if !sealed {
		return value, nil
	}
	if s.sealer == nil {
		return "", errors.New("credential is sealed but no identity is configured")
	}
	return s.sealer.Open(value)
}

// Save upserts credential. A blank credential clears the record.
func (s *CredentialStore) Save(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return s.Clear(ctx)
	}

	value, sealed := credential, false
	if s.sealer != nil {
		var err error
		if value, err = s.sealer.Seal(credential); err != nil {
			return err
		}
		sealed = true
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO credentials (id, credential, sealed, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   credential = excluded.credential,
		   sealed = excluded.sealed,
		   updated_at = excluded.updated_at`,
		value, sealed, time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	s.db.log.Debug().Bool("sealed", sealed).Msg("credential saved")
	return nil
}

// Clear removes the stored credential.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	s.db.log.Debug().Msg("credential cleared")
	return nil
}

// Status reports whether a credential is stored.
func (s *CredentialStore) Status(ctx context.Context) (CredentialStatus, error) {
	var st CredentialStatus
	var updatedAt string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT sealed, updated_at FROM credentials WHERE id = 1`,
	).Scan(&st.Sealed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading credential status: %w", err)
	}
	st.Set = true
	st.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return st, nil
}

// Credentials is implemented by both stores.
type Credentials interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
	Status(ctx context.Context) (CredentialStatus, error)
}

var (
	_ Credentials = (*CredentialStore)(nil)
	_ Credentials = (*MemoryStore)(nil)
)
