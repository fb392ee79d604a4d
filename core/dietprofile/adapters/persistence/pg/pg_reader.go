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
	"errors"
	"log/slog"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/db"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

var _ domain.ProfileReadStore = (*PostgresProfileReader)(nil)

type PostgresProfileReader struct {
	table string
	pool  db.ReaderConnectionManager // calls Reader() at runtime
}

// NewPostgresProfileReader creates a reader that picks a replica per query.
// Reads are not prepared so replica selection stays dynamic.
func NewPostgresProfileReader(pool db.ReaderConnectionManager, table string) *PostgresProfileReader {
	return &PostgresProfileReader{
		table: table,
		pool:  pool,
	}
}

func (r *PostgresProfileReader) GetProfileByAthleteID(ctx context.Context, athleteID int64) (*domain.DietaryProfile, error) {
	query := psql.Select(
		sm.Columns(profileColumns...),
		sm.From(r.table),
		sm.Where(psql.Quote("athlete_id").EQ(psql.Arg(athleteID))),
	)

	row, err := bob.One(ctx, r.pool.Reader(), query, scan.StructMapper[ProfileRow]())
	if err != nil {
		err = wrapProfileError(err)
		if !errors.Is(err, domain.ErrProfileNotFound) {
			slog.ErrorContext(ctx, "GetProfileByAthleteID query error", slog.Int64("athlete_id", athleteID), slog.Any("err", err))
		}
		return nil, err
	}
	p := toProfile(row)
	return &p, nil
}
