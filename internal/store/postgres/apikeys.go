// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
)

type apiKeyStore struct {
	db *sqlx.DB
}

type apiKeyRow struct {
	ID         int64          `db:"id"`
	Active     bool           `db:"active"`
	Name       sql.NullString `db:"name"`
	Key        string         `db:"key"`
	PermJury   bool           `db:"perm_jury"`
	PermReader bool           `db:"perm_reader"`
	PermMaster bool           `db:"perm_master"`
}

func (r *apiKeyRow) toModel() *model.APIKey {
	k := &model.APIKey{
		ID:         r.ID,
		Active:     r.Active,
		Key:        r.Key,
		PermJury:   r.PermJury,
		PermReader: r.PermReader,
		PermMaster: r.PermMaster,
	}
	if r.Name.Valid {
		k.Name = &r.Name.String
	}
	return k
}

const apiKeyColumns = `id, active, name, key, perm_jury, perm_reader, perm_master`

func (s *apiKeyStore) Create(ctx context.Context, k *model.APIKey) error {
	var row apiKeyRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO apikeys (active, name, key, perm_jury, perm_reader, perm_master)
		VALUES (true, $1, $2, $3, $4, $5)
		RETURNING `+apiKeyColumns,
		k.Name, k.Key, k.PermJury, k.PermReader, k.PermMaster)
	if err != nil {
		return fmt.Errorf("postgres: create api key: %w", err)
	}
	*k = *row.toModel()
	return nil
}

func (s *apiKeyStore) Lookup(ctx context.Context, key string) (*model.APIKey, error) {
	var row apiKeyRow
	err := s.db.GetContext(ctx, &row, `SELECT `+apiKeyColumns+` FROM apikeys WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: lookup api key: %w", err)
	}
	return row.toModel(), nil
}
