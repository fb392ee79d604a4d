package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

// lookupLog records resolver calls across all fake resolvers, in order.
type lookupLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *lookupLog) add(kind ReferenceKind, id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf("%s:%d", kind, id))
}

func (l *lookupLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

// fakeResolver knows a set of ids; failures override specific ids.
type fakeResolver struct {
	kind     ReferenceKind
	known    map[int64]bool
	failures map[int64]error
	log      *lookupLog
}

func newFakeResolver(kind ReferenceKind, log *lookupLog, ids ...int64) *fakeResolver {
	r := &fakeResolver{kind: kind, known: map[int64]bool{}, failures: map[int64]error{}, log: log}
	for _, id := range ids {
		r.known[id] = true
	}
	return r
}

func (r *fakeResolver) Resolve(_ context.Context, id int64) (*RemoteEntity, error) {
	r.log.add(r.kind, id)
	if err, ok := r.failures[id]; ok {
		return nil, err
	}
	if !r.known[id] {
		return nil, ErrReferenceNotFound
	}
	return &RemoteEntity{Kind: r.kind, ID: id, Payload: []byte(`{"id":` + fmt.Sprint(id) + `}`)}, nil
}

// memoryStore implements the read and write ports over a map. Each WithTx
// works on a copy and commits it only when fn succeeds.
type memoryStore struct {
	mu   sync.Mutex
	rows map[int64]DietaryProfile

	// createErr is returned from CreateProfile when set, after the existence check.
	createErr error
	// failWith makes every operation fail with this error.
	failWith error

	reads int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[int64]DietaryProfile{}}
}

func (m *memoryStore) GetProfileByAthleteID(_ context.Context, athleteID int64) (*DietaryProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.rows[athleteID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return clone(&p), nil
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ProfileWriteTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	work := make(map[int64]DietaryProfile, len(m.rows))
	for k, v := range m.rows {
		work[k] = v
	}
	tx := &memoryTx{store: m, rows: work}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.rows = work
	return nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memoryTx struct {
	store *memoryStore
	rows  map[int64]DietaryProfile
}

func (tx *memoryTx) GetProfileForUpdate(_ context.Context, athleteID int64) (*DietaryProfile, error) {
	p, ok := tx.rows[athleteID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return clone(&p), nil
}

func (tx *memoryTx) CreateProfile(_ context.Context, p *DietaryProfile) (*DietaryProfile, error) {
	if tx.store.createErr != nil {
		return nil, tx.store.createErr
	}
	if _, ok := tx.rows[p.AthleteID]; ok {
		return nil, ErrDuplicateProfile
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	row := *clone(p)
	row.Version = 1
	row.CreatedAt, row.UpdatedAt = now, now
	tx.rows[p.AthleteID] = row
	return clone(&row), nil
}

func (tx *memoryTx) UpdateProfile(_ context.Context, p *DietaryProfile) (*DietaryProfile, error) {
	current, ok := tx.rows[p.AthleteID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	row := *clone(p)
	row.Version = current.Version + 1
	row.UpdatedAt = current.UpdatedAt.Add(time.Second)
	tx.rows[p.AthleteID] = row
	return clone(&row), nil
}

func (tx *memoryTx) DeleteProfile(_ context.Context, id uuid.UUID) error {
	for athleteID, row := range tx.rows {
		if row.ID == id {
			delete(tx.rows, athleteID)
			return nil
		}
	}
	return ErrProfileNotFound
}

func clone(p *DietaryProfile) *DietaryProfile {
	c := *p
	c.IntolerantFoodIDs = slices.Clone(p.IntolerantFoodIDs)
	c.PreferredFoodIDs = slices.Clone(p.PreferredFoodIDs)
	c.DietTypeID = cloneID(p.DietTypeID)
	return &c
}

type fakeHealth struct{ err error }

func (h fakeHealth) HealthCheck(context.Context) error { return h.err }

type countingLock struct {
	mu       sync.Mutex
	athletes []int64
}

func (l *countingLock) Exclusive(ctx context.Context, athleteID int64, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.athletes = append(l.athletes, athleteID)
	return fn(ctx)
}

type mapCache struct {
	entries     map[int64]DietaryProfile
	invalidated []int64
	getErr      error
}

func (c *mapCache) Get(_ context.Context, athleteID int64) (*DietaryProfile, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.entries[athleteID]
	if !ok {
		return nil, nil
	}
	return clone(&p), nil
}

func (c *mapCache) Put(_ context.Context, p *DietaryProfile) error {
	c.entries[p.AthleteID] = *clone(p)
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, athleteID int64) error {
	delete(c.entries, athleteID)
	c.invalidated = append(c.invalidated, athleteID)
	return nil
}

// fixture wires an Application over fakes: athletes {42, 7}, foods 1..10,
// diet types {3}.
type fixture struct {
	log       *lookupLog
	athletes  *fakeResolver
	foods     *fakeResolver
	dietTypes *fakeResolver
	store     *memoryStore
	app       *Application
}

func newFixture(opts ...Option) *fixture {
	log := &lookupLog{}
	f := &fixture{
		log:       log,
		athletes:  newFakeResolver(KindAthlete, log, 42, 7),
		foods:     newFakeResolver(KindFood, log, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
		dietTypes: newFakeResolver(KindDietType, log, 3),
		store:     newMemoryStore(),
	}
	f.app = NewApp(f.store, f.store, fakeHealth{}, References{
		Athletes:  f.athletes,
		Foods:     f.foods,
		DietTypes: f.dietTypes,
	}, opts...)
	return f
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")
