package db

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryKV) AtomicGet(_ context.Context, key string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *memoryKV) AtomicSet(_ context.Context, key string, value any) (any, error) {
	bs, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.data[key]
	m.data[key] = bs
	if !ok {
		return nil, nil
	}
	return prev, nil
}

func (m *memoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type entry struct {
	AthleteID int64   `json:"athleteId"`
	Foods     []int64 `json:"foods"`
}

func TestJSONKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewJSONKV[entry](&memoryKV{data: map[string][]byte{}})

	got, err := kv.Get(ctx, "athlete:1")
	if err != nil || got != nil {
		t.Fatalf("get missing: want=nil,nil got=%v,%v", got, err)
	}

	prev, err := kv.Set(ctx, "athlete:1", entry{AthleteID: 1, Foods: []int64{3, 4}})
	if err != nil || prev != nil {
		t.Fatalf("first set: want=nil,nil got=%v,%v", prev, err)
	}

	prev, err = kv.Set(ctx, "athlete:1", entry{AthleteID: 1})
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	if prev == nil || len(prev.Foods) != 2 {
		t.Fatalf("previous value: want foods=[3 4] got=%v", prev)
	}

	if err := kv.Delete(ctx, "athlete:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := kv.Get(ctx, "athlete:1"); got != nil {
		t.Fatalf("get after delete: want=nil got=%v", got)
	}
}

func TestJSONKVRejectsNonBytes(t *testing.T) {
	kv := NewJSONKV[entry](stringKV{})
	if _, err := kv.Get(context.Background(), "k"); err == nil {
		t.Fatalf("want error for non-[]byte value")
	}
}

type stringKV struct{}

func (stringKV) AtomicGet(context.Context, string) (any, error)      { return "oops", nil }
func (stringKV) AtomicSet(context.Context, string, any) (any, error) { return nil, nil }
func (stringKV) Delete(context.Context, ...string) error             { return nil }
