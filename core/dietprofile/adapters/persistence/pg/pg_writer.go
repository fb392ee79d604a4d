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

package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/db"

	"github.com/gofrs/uuid/v5"
	"github.com/lib/pq"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"
)

var _ domain.ProfileWriteStore = (*PostgresProfileWriter)(nil)

type (
	PostgresProfileWriter struct {
		table     string
		txm       db.TxManager
		txTimeout time.Duration

		createStmt bob.QueryStmt[createProfileArgs, ProfileRow, []ProfileRow]
		updateStmt bob.QueryStmt[updateProfileArgs, ProfileRow, []ProfileRow]
		deleteStmt bob.QueryStmt[deleteProfileArgs, uuid.UUID, []uuid.UUID]
	}

	createProfileArgs struct {
		ID                uuid.UUID     `db:"id"`
		AthleteID         int64         `db:"athlete_id"`
		IntolerantFoodIDs pq.Int64Array `db:"intolerant_food_ids"`
		PreferredFoodIDs  pq.Int64Array `db:"preferred_food_ids"`
		DietTypeID        sql.NullInt64 `db:"diet_type_id"`
	}

	updateProfileArgs struct {
		ID                uuid.UUID     `db:"id"`
		IntolerantFoodIDs pq.Int64Array `db:"intolerant_food_ids"`
		PreferredFoodIDs  pq.Int64Array `db:"preferred_food_ids"`
		DietTypeID        sql.NullInt64 `db:"diet_type_id"`
		Version           int64         `db:"version_number"`
	}

	deleteProfileArgs struct {
		ID uuid.UUID `db:"id"`
	}
)

// DefaultTxTimeout bounds a write transaction, row lock waits included.
const DefaultTxTimeout = 5 * time.Second

// NewPostgresProfileWriter creates a writer with prepared statements bound to
// the primary. Every write runs inside WithTx.
func NewPostgresProfileWriter(ctx context.Context, pool db.ConnectionPool, table string) (*PostgresProfileWriter, error) {
	primary, ok := pool.Writer().(bob.DB)
	if !ok {
		return nil, fmt.Errorf("writer is %T, want bob.DB", pool.Writer())
	}

	w := &PostgresProfileWriter{
		table:     table,
		txm:       pool,
		txTimeout: DefaultTxTimeout,
	}

	insertQuery := psql.Insert(
		im.Into(table, "id", "athlete_id", "intolerant_food_ids", "preferred_food_ids", "diet_type_id"),
		im.Values(
			bob.Named("id"),
			bob.Named("athlete_id"),
			bob.Named("intolerant_food_ids"),
			bob.Named("preferred_food_ids"),
			bob.Named("diet_type_id"),
		),
		im.Returning(profileColumns...),
	)

	createStmt, err := bob.PrepareQuery[createProfileArgs](ctx, primary, insertQuery, scan.StructMapper[ProfileRow]())
	if err != nil {
		return nil, fmt.Errorf("prepare create dietary profile: %w", err)
	}
	w.createStmt = createStmt

	// The row is already locked by GetProfileForUpdate; the version guard
	// catches callers that skipped it.
	updateQuery := psql.Update(
		um.Table(table),
		um.SetCol("intolerant_food_ids").To(bob.Named("intolerant_food_ids")),
		um.SetCol("preferred_food_ids").To(bob.Named("preferred_food_ids")),
		um.SetCol("diet_type_id").To(bob.Named("diet_type_id")),
		um.SetCol("version_number").To(psql.Raw("version_number + 1")),
		um.SetCol("updated_at").To(psql.Raw("CURRENT_TIMESTAMP")),
		um.Where(psql.Quote("id").EQ(bob.Named("id"))),
		um.Where(psql.Quote("version_number").EQ(bob.Named("version_number"))),
		um.Returning(profileColumns...),
	)

	updateStmt, err := bob.PrepareQuery[updateProfileArgs](ctx, primary, updateQuery, scan.StructMapper[ProfileRow]())
	if err != nil {
		return nil, fmt.Errorf("prepare update dietary profile: %w", err)
	}
	w.updateStmt = updateStmt

	deleteQuery := psql.Delete(
		dm.From(table),
		dm.Where(psql.Quote("id").EQ(bob.Named("id"))),
		dm.Returning("id"),
	)

	deleteStmt, err := bob.PrepareQuery[deleteProfileArgs](ctx, primary, deleteQuery, scan.SingleColumnMapper[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("prepare delete dietary profile: %w", err)
	}
	w.deleteStmt = deleteStmt

	return w, nil
}

// WithTx implements ProfileWriteStore transaction support.
func (w *PostgresProfileWriter) WithTx(
	ctx context.Context,
	fn func(ctx context.Context, tx domain.ProfileWriteTx) error,
) error {
	return w.txm.WithTimeoutTx(ctx, w.txTimeout, func(ctx context.Context, q db.Querier) error {
		tx, ok := q.(bob.Tx)
		if !ok {
			return fmt.Errorf("querier is not a transaction")
		}

		return fn(ctx, &profileWriterTx{
			parent: w,
			tx:     tx,
		})
	})
}

// profileWriterTx is a transaction-scoped writer that reuses prepared statements.
type profileWriterTx struct {
	parent *PostgresProfileWriter
	tx     bob.Tx
}

var _ domain.ProfileWriteTx = (*profileWriterTx)(nil)

func (t *profileWriterTx) GetProfileForUpdate(ctx context.Context, athleteID int64) (*domain.DietaryProfile, error) {
	raw := fmt.Sprintf(`
		SELECT id, athlete_id, intolerant_food_ids, preferred_food_ids, diet_type_id,
		       version_number, created_at, updated_at
		FROM %s
		WHERE athlete_id = $1
		FOR UPDATE
	`, t.parent.table)

	row, err := bob.One(ctx, t.tx, psql.RawQuery(raw, athleteID), scan.StructMapper[ProfileRow]())
	if err != nil {
		return nil, wrapProfileError(err)
	}
	p := toProfile(row)
	return &p, nil
}

func (t *profileWriterTx) CreateProfile(ctx context.Context, p *domain.DietaryProfile) (*domain.DietaryProfile, error) {
	stmt := inTxQueryStmt(ctx, t.parent.createStmt, t.tx)

	row, err := stmt.One(ctx, createProfileArgs{
		ID:                p.ID,
		AthleteID:         p.AthleteID,
		IntolerantFoodIDs: toArray(p.IntolerantFoodIDs),
		PreferredFoodIDs:  toArray(p.PreferredFoodIDs),
		DietTypeID:        toNullInt64(p.DietTypeID),
	})
	if err != nil {
		return nil, wrapProfileError(err)
	}
	created := toProfile(row)
	return &created, nil
}

func (t *profileWriterTx) UpdateProfile(ctx context.Context, p *domain.DietaryProfile) (*domain.DietaryProfile, error) {
	stmt := inTxQueryStmt(ctx, t.parent.updateStmt, t.tx)

	row, err := stmt.One(ctx, updateProfileArgs{
		ID:                p.ID,
		IntolerantFoodIDs: toArray(p.IntolerantFoodIDs),
		PreferredFoodIDs:  toArray(p.PreferredFoodIDs),
		DietTypeID:        toNullInt64(p.DietTypeID),
		Version:           p.Version,
	})
	if err != nil {
		return nil, wrapProfileError(err)
	}
	updated := toProfile(row)
	return &updated, nil
}

func (t *profileWriterTx) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	stmt := inTxQueryStmt(ctx, t.parent.deleteStmt, t.tx)

	if _, err := stmt.One(ctx, deleteProfileArgs{ID: id}); err != nil {
		return wrapProfileError(err)
	}
	return nil
}
