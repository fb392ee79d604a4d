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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"dietprofile/modules/db"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"
)

var _ db.ConnectionPool = (*PostgresConnectionPool)(nil)

// ErrNoMigrations is returned by MigrateUp when the pool was
// built without a migrations filesystem.
var ErrNoMigrations = errors.New("postgres: no migrations configured")

type PostgresConnectionPool struct {
	writer bob.DB

	readers []bob.DB
	next    atomic.Uint64

	writeConfig PoolConfig
	migrations  fs.FS
}

func (p *PostgresConnectionPool) HealthCheck(ctx context.Context) error {
	_, err := p.writer.ExecContext(ctx, "SELECT 1")
	return err
}

// MigrateUp implements db.ConnectionPool.
func (p *PostgresConnectionPool) MigrateUp(ctx context.Context) error {
	m, err := p.migrator()
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "applying database migrations", slog.String("database", p.writeConfig.Database))
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}

func (p *PostgresConnectionPool) migrator() (*dbmate.DB, error) {
	if p.migrations == nil {
		return nil, ErrNoMigrations
	}
	m := dbmate.New(p.writeConfig.URL())
	m.FS = p.migrations
	m.MigrationsDir = []string{"."}
	m.AutoDumpSchema = false
	m.Log = slogWriter{}
	return m, nil
}

// Reader round-robins over the replicas and falls back to the writer when
// none are configured.
func (p *PostgresConnectionPool) Reader() db.Querier {
	if len(p.readers) == 0 {
		return p.writer
	}
	n := p.next.Add(1)
	return p.readers[n%uint64(len(p.readers))]
}

func (p *PostgresConnectionPool) WithTimeoutTx(ctx context.Context, timeout time.Duration, fn db.TxFn) error {
	if timeout <= 0 {
		return p.WithTx(ctx, fn)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.WithTx(ctx, fn)
}

// WithTx implements db.ConnectionPool.
//
// READ COMMITTED is enough for the profile flows: every check-then-act
// reads its row with FOR UPDATE and the athlete_id unique index catches
// concurrent inserts.
func (p *PostgresConnectionPool) WithTx(ctx context.Context, fn db.TxFn) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return p.writer.RunInTx(ctx, opts, func(ctx context.Context, exec bob.Executor) error {
		return fn(ctx, exec)
	})
}

// Shutdown closes the writer and every replica, reporting all failures.
func (p *PostgresConnectionPool) Shutdown(_ context.Context) error {
	if p == nil {
		return nil
	}
	errs := []error{p.writer.Close()}
	for _, reader := range p.readers {
		errs = append(errs, reader.Close())
	}
	return errors.Join(errs...)
}

func (p *PostgresConnectionPool) Writer() db.Querier {
	return p.writer
}

func New(
	ctx context.Context,
	config *PostgresConfig,
	opts PostgresOptions,
) (*PostgresConnectionPool, error) {
	writer, err := open(ctx, &config.WriteConfig, opts.WriterOptions...)
	if err != nil {
		return nil, err
	}

	var readers []bob.DB
	for _, r := range config.ReadConfigs {
		reader, err := open(ctx, &r, opts.ReaderOptions...)
		if err != nil {
			_ = writer.Close()
			for _, opened := range readers {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("postgres: replica %s: %w", r.Host, err)
		}
		readers = append(readers, reader)
	}

	return &PostgresConnectionPool{
		writer:      writer,
		readers:     readers,
		writeConfig: config.WriteConfig,
		migrations:  opts.Migrations,
	}, nil
}

// open builds a pgx pool for cfg and exposes it through database/sql so bob
// can drive it.
func open(ctx context.Context, cfg *PoolConfig, opts ...PgxConfigOption) (bob.DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return bob.DB{}, fmt.Errorf("postgres: parse config for %s: %w", cfg.Host, err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(poolConfig)
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return bob.DB{}, fmt.Errorf("postgres: connect %s: %w", cfg.Host, err)
	}
	return bob.NewDB(stdlib.OpenDBFromPool(pool)), nil
}

// slogWriter forwards dbmate progress output to slog.
type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	slog.Info("dbmate", slog.String("output", string(p)))
	return len(p), nil
}
