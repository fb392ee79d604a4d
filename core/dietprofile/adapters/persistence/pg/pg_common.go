// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pg stores dietary profiles in Postgres through bob.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dietprofile/core/dietprofile/domain"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stephenafamo/bob"
)

// DefaultTable is created by the bundled migrations.
const DefaultTable = "dietary_profiles"

var profileColumns = []any{
	"id",
	"athlete_id",
	"intolerant_food_ids",
	"preferred_food_ids",
	"diet_type_id",
	"version_number",
	"created_at",
	"updated_at",
}

type (
	// ProfileRow is the persistence entity shape used by storage adapters.
	ProfileRow struct {
		ID                uuid.UUID     `db:"id"`
		AthleteID         int64         `db:"athlete_id"`
		IntolerantFoodIDs pq.Int64Array `db:"intolerant_food_ids"`
		PreferredFoodIDs  pq.Int64Array `db:"preferred_food_ids"`
		DietTypeID        sql.NullInt64 `db:"diet_type_id"`
		Version           sql.NullInt64 `db:"version_number"`
		CreatedAt         time.Time     `db:"created_at"`
		UpdatedAt         time.Time     `db:"updated_at"`
	}
)

// toProfile converts a ProfileRow to a domain DietaryProfile.
func toProfile(row ProfileRow) domain.DietaryProfile {
	p := domain.DietaryProfile{
		ID:                row.ID,
		AthleteID:         row.AthleteID,
		IntolerantFoodIDs: ids(row.IntolerantFoodIDs),
		PreferredFoodIDs:  ids(row.PreferredFoodIDs),
		Version:           row.Version.Int64,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.DietTypeID.Valid {
		v := row.DietTypeID.Int64
		p.DietTypeID = &v
	}
	return p
}

func ids(arr pq.Int64Array) []int64 {
	if arr == nil {
		return []int64{}
	}
	return []int64(arr)
}

func toArray(ids []int64) pq.Int64Array {
	if ids == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(ids)
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// wrapProfileError centralizes mapping of DB errors to domain errors.
func wrapProfileError(err error) error {
	if err == nil {
		return nil
	}

	// sql.ErrNoRows is expected in many flows (not found / precondition failed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProfileNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return domain.ErrDuplicateProfile
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.InvalidTextRepresentation:
			return fmt.Errorf("%w: %s", domain.ErrInvalidData, pgErr.Message)
		}
	}

	return err
}

// inTxQueryStmt rebinds a QueryStmt to a transaction.
func inTxQueryStmt[Arg any, T any, Ts ~[]T](
	ctx context.Context,
	stmt bob.QueryStmt[Arg, T, Ts],
	tx bob.Tx,
) bob.QueryStmt[Arg, T, Ts] {
	txStmt := stmt
	txStmt.Stmt = bob.InTx(ctx, stmt.Stmt, tx)
	return txStmt
}
