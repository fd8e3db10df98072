// Package repository provides the durable session.Store backed by Bun over
// SQLite: the three credential slots survive process restarts the way the
// browser original survived page reloads.
package repository

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// CredentialRecord is one persisted slot.
type CredentialRecord struct {
	bun.BaseModel `bun:"table:session_credentials,alias:cred"`

	Slot  string `bun:"slot,pk" json:"slot"`
	Value string `bun:"value,notnull" json:"value"`
}

// Store implements session.Store over a Bun database.
type Store struct {
	db *bun.DB
}

var _ session.Store = (*Store)(nil)

// Open creates a SQLite-backed store at dsn (e.g. file:session.db or
// file::memory:?cache=shared) and ensures the credentials table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open session database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	return NewStore(ctx, db)
}

// NewStore wraps an existing Bun database and ensures the credentials table
// exists.
func NewStore(ctx context.Context, db *bun.DB) (*Store, error) {
	if db == nil {
		return nil, goerrors.New("bun db is required", goerrors.CategoryBadInput)
	}

	if _, err := db.NewCreateTable().
		Model((*CredentialRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create credentials table")
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle so callers can close it.
func (s *Store) DB() *bun.DB {
	return s.db
}

// SaveTokens writes the three slots in one transaction.
func (s *Store) SaveTokens(ctx context.Context, tokens *session.TokenPair) error {
	if tokens == nil {
		return nil
	}

	serialized, err := session.EncodeUserRecord(tokens.User)
	if err != nil {
		return err
	}

	records := []CredentialRecord{
		{Slot: session.SlotAccessToken, Value: tokens.AccessToken},
		{Slot: session.SlotRefreshToken, Value: tokens.RefreshToken},
		{Slot: session.SlotUser, Value: serialized},
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, record := range records {
			if _, err := tx.NewInsert().
				Model(&record).
				On("CONFLICT (slot) DO UPDATE").
				Set("value = EXCLUDED.value").
				Exec(ctx); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist credential slot")
			}
		}
		return nil
	})
}

// AccessToken implements session.Store.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.load(ctx, session.SlotAccessToken)
}

// RefreshToken implements session.Store.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.load(ctx, session.SlotRefreshToken)
}

// User implements session.Store. A corrupt snapshot reads as absent.
func (s *Store) User(ctx context.Context) (*session.User, error) {
	raw, err := s.load(ctx, session.SlotUser)
	if err != nil {
		return nil, err
	}
	return session.DecodeUserRecord(raw)
}

// Clear removes all three slots in one transaction, so readers never
// observe a partial clear.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*CredentialRecord)(nil)).
			Where("slot IN (?, ?, ?)", session.SlotAccessToken, session.SlotRefreshToken, session.SlotUser).
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear credentials")
		}
		return nil
	})
}

func (s *Store) load(ctx context.Context, slot string) (string, error) {
	record := &CredentialRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("slot = ?", slot).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load credential slot")
	}
	return record.Value, nil
}
