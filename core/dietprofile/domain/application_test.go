package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

func wantBusiness(t *testing.T, err error, category Category, message string) {
	t.Helper()
	be, ok := AsBusinessError(err)
	if !ok {
		t.Fatalf("error: want BusinessError got=%v", err)
	}
	if be.Category != category {
		t.Fatalf("category: want=%s got=%s", category, be.Category)
	}
	if be.Message != message {
		t.Fatalf("message: want=%q got=%q", message, be.Message)
	}
}

func TestCreateProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p, err := f.app.CreateProfile(ctx, 42, ProfileDraft{
		IntolerantFoodIDs: []int64{1, 2},
		PreferredFoodIDs:  []int64{5},
		DietTypeID:        ptr(int64(3)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.AthleteID != 42 || p.ID.IsNil() {
		t.Fatalf("created: want athlete=42 with id got=%+v", p)
	}
	if !slices.Equal(p.IntolerantFoodIDs, []int64{1, 2}) || !slices.Equal(p.PreferredFoodIDs, []int64{5}) {
		t.Fatalf("lists: got intolerant=%v preferred=%v", p.IntolerantFoodIDs, p.PreferredFoodIDs)
	}
	if p.DietTypeID == nil || *p.DietTypeID != 3 {
		t.Fatalf("diet type: want=3 got=%v", p.DietTypeID)
	}

	got, err := f.app.GetProfile(ctx, 42)
	if err != nil {
		t.Fatalf("get after create: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("get after create: want id=%s got=%s", p.ID, got.ID)
	}
}

func TestCreateProfileLookupOrder(t *testing.T) {
	f := newFixture()

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{
		IntolerantFoodIDs: []int64{1, 2},
		PreferredFoodIDs:  []int64{5, 6},
		DietTypeID:        ptr(int64(3)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	want := []string{"athlete:42", "diet type:3", "food:1", "food:2", "food:5", "food:6"}
	if got := f.log.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("lookups: want=%v got=%v", want, got)
	}
}

func TestCreateProfileWithoutListsStoresEmptyLists(t *testing.T) {
	f := newFixture()

	p, err := f.app.CreateProfile(context.Background(), 7, ProfileDraft{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.IntolerantFoodIDs == nil || len(p.IntolerantFoodIDs) != 0 || len(p.PreferredFoodIDs) != 0 {
		t.Fatalf("lists: want empty got intolerant=%v preferred=%v", p.IntolerantFoodIDs, p.PreferredFoodIDs)
	}
	if p.DietTypeID != nil {
		t.Fatalf("diet type: want=nil got=%v", *p.DietTypeID)
	}
	if got := f.log.snapshot(); !slices.Equal(got, []string{"athlete:7"}) {
		t.Fatalf("lookups: want only the athlete got=%v", got)
	}
}

func TestCreateProfileUnknownAthlete(t *testing.T) {
	f := newFixture()

	_, err := f.app.CreateProfile(context.Background(), 99, ProfileDraft{IntolerantFoodIDs: []int64{1}})
	wantBusiness(t, err, CategoryNotFound, "no athlete found with id 99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(ErrNotFound): want=true")
	}
	if got := f.log.snapshot(); !slices.Equal(got, []string{"athlete:99"}) {
		t.Fatalf("lookups after failed athlete: want none got=%v", got)
	}
	if f.store.count() != 0 {
		t.Fatalf("stored: want=0 got=%d", f.store.count())
	}
}

func TestCreateProfileUnknownDietType(t *testing.T) {
	f := newFixture()

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{
		IntolerantFoodIDs: []int64{1},
		DietTypeID:        ptr(int64(8)),
	})
	wantBusiness(t, err, CategoryNotFound, "no diet type found with id 8")
	if got := f.log.snapshot(); !slices.Equal(got, []string{"athlete:42", "diet type:8"}) {
		t.Fatalf("lookups: got=%v", got)
	}
}

func TestCreateProfileMissingIntolerantFood(t *testing.T) {
	f := newFixture()
	delete(f.foods.known, 2)

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{
		IntolerantFoodIDs: []int64{1, 2, 3},
		PreferredFoodIDs:  []int64{4},
	})
	wantBusiness(t, err, CategoryPreconditionFailed, "no intolerant food found with id 2")
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("errors.Is(ErrPreconditionFailed): want=true")
	}

	for _, call := range f.log.snapshot() {
		if call == "food:3" || call == "food:4" {
			t.Fatalf("lookup after first failure: %s", call)
		}
	}
	if f.store.count() != 0 {
		t.Fatalf("stored: want=0 got=%d", f.store.count())
	}
}

func TestCreateProfileMissingPreferredFood(t *testing.T) {
	f := newFixture()
	delete(f.foods.known, 5)

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{
		IntolerantFoodIDs: []int64{1},
		PreferredFoodIDs:  []int64{4, 5, 6},
	})
	wantBusiness(t, err, CategoryNotFound, "no preferred food found with id 5")
	if f.store.count() != 0 {
		t.Fatalf("stored: want=0 got=%d", f.store.count())
	}
}

func TestFirstInvalidPositionIsReported(t *testing.T) {
	for _, tc := range []struct {
		list    []int64
		missing []int64
		want    int64
	}{
		{list: []int64{11, 1, 2}, missing: []int64{11}, want: 11},
		{list: []int64{1, 12, 13}, missing: []int64{12, 13}, want: 12},
		{list: []int64{1, 2, 14}, missing: []int64{14}, want: 14},
		{list: []int64{15, 16}, missing: []int64{16, 15}, want: 15},
	} {
		t.Run(fmt.Sprint(tc.list), func(t *testing.T) {
			for _, kind := range []string{"intolerant", "preferred"} {
				f := newFixture()
				for _, id := range tc.missing {
					delete(f.foods.known, id)
				}
				draft := ProfileDraft{}
				category := CategoryPreconditionFailed
				if kind == "intolerant" {
					draft.IntolerantFoodIDs = tc.list
				} else {
					draft.PreferredFoodIDs = tc.list
					category = CategoryNotFound
				}

				_, err := f.app.CreateProfile(context.Background(), 42, draft)
				wantBusiness(t, err, category, fmt.Sprintf("no %s food found with id %d", kind, tc.want))
			}
		})
	}
}

func TestCreateProfileDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := f.app.CreateProfile(ctx, 42, ProfileDraft{IntolerantFoodIDs: []int64{1}})
	wantBusiness(t, err, CategoryPreconditionFailed, "a dietary profile already exists for athlete 42")
	if f.store.count() != 1 {
		t.Fatalf("stored: want=1 got=%d", f.store.count())
	}
}

func TestCreateProfileUniqueViolationMapsToDuplicate(t *testing.T) {
	// Another replica inserted between our existence check and our insert.
	f := newFixture()
	f.store.createErr = fmt.Errorf("insert: %w", ErrDuplicateProfile)

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{})
	wantBusiness(t, err, CategoryPreconditionFailed, "a dietary profile already exists for athlete 42")
}

func TestCreateProfileAthleteTimeout(t *testing.T) {
	f := newFixture()
	f.athletes.failures[42] = fmt.Errorf("athlete lookup: %w", ErrTimeout)

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{IntolerantFoodIDs: []int64{1}})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error: want timeout got=%v", err)
	}
	if _, ok := AsBusinessError(err); ok {
		t.Fatalf("timeout must not be reported as a business error: %v", err)
	}
	if got := f.log.snapshot(); len(got) != 1 {
		t.Fatalf("lookups after timeout: want=1 got=%v", got)
	}
}

func TestCreateProfileDietTypeTransportError(t *testing.T) {
	f := newFixture()
	f.dietTypes.failures[3] = fmt.Errorf("catalog: %w", ErrTransport)

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{DietTypeID: ptr(int64(3))})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error: want transport got=%v", err)
	}
}

func TestCreateProfileFoodTimeoutCountsAsFailingID(t *testing.T) {
	f := newFixture()
	f.foods.failures[2] = ErrTimeout

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{IntolerantFoodIDs: []int64{1, 2, 3}})
	wantBusiness(t, err, CategoryPreconditionFailed, "no intolerant food found with id 2")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("cause: want timeout in chain got=%v", err)
	}
}

func TestCreateProfileRejectsInvalidIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for name, call := range map[string]func() error{
		"athlete":   func() error { _, err := f.app.CreateProfile(ctx, 0, ProfileDraft{}); return err },
		"food":      func() error { _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{PreferredFoodIDs: []int64{-1}}); return err },
		"diet type": func() error { _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{DietTypeID: ptr(int64(0))}); return err },
	} {
		if err := call(); !errors.Is(err, ErrInvalidData) {
			t.Fatalf("%s: want=%v got=%v", name, ErrInvalidData, err)
		}
	}
	if got := f.log.snapshot(); len(got) != 0 {
		t.Fatalf("lookups for invalid input: want none got=%v", got)
	}
}

func TestCreateProfileUnexpectedStoreError(t *testing.T) {
	f := newFixture()
	f.store.failWith = errBoom

	_, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{})
	if !errors.Is(err, ErrUnhandled) {
		t.Fatalf("error: want=%v got=%v", ErrUnhandled, err)
	}
}

func TestCreateProfileUsesAthleteLock(t *testing.T) {
	lock := &countingLock{}
	f := newFixture(WithAthleteLock(lock))

	if _, err := f.app.CreateProfile(context.Background(), 42, ProfileDraft{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !slices.Equal(lock.athletes, []int64{42}) {
		t.Fatalf("locked athletes: want=[42] got=%v", lock.athletes)
	}
}

func TestUpdateProfileMergesPresentFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.app.CreateProfile(ctx, 42, ProfileDraft{
		IntolerantFoodIDs: []int64{1, 2},
		PreferredFoodIDs:  []int64{5},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := f.app.UpdateProfile(ctx, 42, ProfilePatch{DietTypeSet: true, DietTypeID: ptr(int64(3))})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !slices.Equal(updated.IntolerantFoodIDs, []int64{1, 2}) || !slices.Equal(updated.PreferredFoodIDs, []int64{5}) {
		t.Fatalf("lists changed: intolerant=%v preferred=%v", updated.IntolerantFoodIDs, updated.PreferredFoodIDs)
	}
	if updated.DietTypeID == nil || *updated.DietTypeID != 3 {
		t.Fatalf("diet type: want=3 got=%v", updated.DietTypeID)
	}
	if updated.ID != created.ID || updated.AthleteID != 42 {
		t.Fatalf("identity changed: %+v", updated)
	}
	if updated.Version != created.Version+1 {
		t.Fatalf("version: want=%d got=%d", created.Version+1, updated.Version)
	}

	cleared, err := f.app.UpdateProfile(ctx, 42, ProfilePatch{
		PreferredFoodIDs: ptr([]int64{}),
		DietTypeSet:      true,
	})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.DietTypeID != nil || len(cleared.PreferredFoodIDs) != 0 {
		t.Fatalf("clear: want no diet type and no preferred got=%+v", cleared)
	}
}

func TestUpdateProfileDoesNotRecheckAthlete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	delete(f.athletes.known, 42)
	f.log.calls = nil

	if _, err := f.app.UpdateProfile(ctx, 42, ProfilePatch{IntolerantFoodIDs: ptr([]int64{4})}); err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, call := range f.log.snapshot() {
		if strings.HasPrefix(call, "athlete:") {
			t.Fatalf("athlete looked up on update: %v", f.log.snapshot())
		}
	}
}

func TestUpdateProfileNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.app.UpdateProfile(context.Background(), 42, ProfilePatch{IntolerantFoodIDs: ptr([]int64{1})})
	wantBusiness(t, err, CategoryNotFound, "no dietary profile found for athlete 42")
}

func TestUpdateProfileValidatesBeforeStore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{PreferredFoodIDs: []int64{1}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	delete(f.foods.known, 9)

	_, err := f.app.UpdateProfile(ctx, 42, ProfilePatch{PreferredFoodIDs: ptr([]int64{2, 9})})
	wantBusiness(t, err, CategoryNotFound, "no preferred food found with id 9")

	got, _ := f.app.GetProfile(ctx, 42)
	if !slices.Equal(got.PreferredFoodIDs, []int64{1}) {
		t.Fatalf("partial write: preferred=%v", got.PreferredFoodIDs)
	}
}

func TestGetProfileIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{IntolerantFoodIDs: []int64{3}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := f.app.GetProfile(ctx, 42)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := f.app.GetProfile(ctx, 42)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if first.ID != second.ID || first.Version != second.Version ||
		!slices.Equal(first.IntolerantFoodIDs, second.IntolerantFoodIDs) {
		t.Fatalf("reads differ: %+v vs %+v", first, second)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.app.GetProfile(context.Background(), 42)
	wantBusiness(t, err, CategoryNotFound, "no dietary profile found for athlete 42")
}

func TestDeleteProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	err := f.app.DeleteProfile(ctx, 42)
	wantBusiness(t, err, CategoryNotFound, "no dietary profile found for athlete 42")

	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.app.DeleteProfile(ctx, 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.app.GetProfile(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: want not found got=%v", err)
	}

	// the athlete can start over
	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{}); err != nil {
		t.Fatalf("create after delete: %v", err)
	}
}

func TestProfileCacheReadThroughAndInvalidation(t *testing.T) {
	cache := &mapCache{entries: map[int64]DietaryProfile{}}
	f := newFixture(WithProfileCache(cache))
	ctx := context.Background()

	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{IntolerantFoodIDs: []int64{1}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.app.GetProfile(ctx, 42); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := f.app.GetProfile(ctx, 42); err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.store.reads != 1 {
		t.Fatalf("store reads: want=1 got=%d", f.store.reads)
	}

	if _, err := f.app.UpdateProfile(ctx, 42, ProfilePatch{IntolerantFoodIDs: ptr([]int64{2})}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, cached := cache.entries[42]; cached {
		t.Fatalf("cache entry survived update")
	}
	got, err := f.app.GetProfile(ctx, 42)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if !slices.Equal(got.IntolerantFoodIDs, []int64{2}) {
		t.Fatalf("stale read after update: %v", got.IntolerantFoodIDs)
	}
}

func TestProfileCacheFailureFallsBackToStore(t *testing.T) {
	cache := &mapCache{entries: map[int64]DietaryProfile{}, getErr: errBoom}
	f := newFixture(WithProfileCache(cache))
	ctx := context.Background()

	if _, err := f.app.CreateProfile(ctx, 42, ProfileDraft{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.app.GetProfile(ctx, 42); err != nil {
		t.Fatalf("get with broken cache: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	if err := f.app.HealthCheck(context.Background()); err != nil {
		t.Fatalf("healthy: %v", err)
	}

	down := NewApp(f.store, f.store, fakeHealth{err: errBoom}, References{})
	if err := down.HealthCheck(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("unhealthy: want=%v got=%v", errBoom, err)
	}
}
