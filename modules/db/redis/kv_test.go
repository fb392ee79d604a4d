package redis

import (
	"strings"
	"testing"
	"time"
)

type athleteTag int64

func (a athleteTag) String() string { return "athlete" }

func TestEncodeValue(t *testing.T) {
	for name, tc := range map[string]struct {
		in   any
		want string
	}{
		"string":   {in: "v:1", want: "v:1"},
		"bytes":    {in: []byte(`{"a":1}`), want: `{"a":1}`},
		"stringer": {in: athleteTag(1), want: "athlete"},
		"json":     {in: map[string]int64{"athleteId": 42}, want: `{"athleteId":42}`},
	} {
		got, err := encodeValue(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("%s: want=%q got=%q err=%v", name, tc.want, got, err)
		}
	}
	if _, err := encodeValue(nil); err == nil {
		t.Fatalf("nil: want error")
	}
}

func TestKeyPrefix(t *testing.T) {
	kv := NewRedisKV(nil, WithKeyPrefix(" dietprofile:profile "))
	if got := kv.key("athlete:42"); got != "dietprofile:profile:athlete:42" {
		t.Fatalf("key: got=%s", got)
	}
	if got := NewRedisKV(nil).key("athlete:42"); !strings.HasPrefix(got, "athlete") {
		t.Fatalf("no prefix: got=%s", got)
	}
}

func TestVersionKeySharesHashTag(t *testing.T) {
	kv := NewRedisKV(nil, WithKeyPrefix("dietprofile:profile"))
	if got := kv.versionKey("{athlete:42}"); got != "dietprofile:profile:{athlete:42}:version" {
		t.Fatalf("version key: got=%s", got)
	}
}

func TestTTLArg(t *testing.T) {
	if got := NewRedisKV(nil).ttlArg(); got != "" {
		t.Fatalf("no ttl: want empty got=%q", got)
	}
	if got := NewRedisKV(nil, WithDefaultTTL(30*time.Second)).ttlArg(); got != "30000" {
		t.Fatalf("30s: want=30000 got=%q", got)
	}
	if got := NewRedisKV(nil, WithDefaultTTL(time.Microsecond)).ttlArg(); got != "1" {
		t.Fatalf("sub-millisecond: want=1 got=%q", got)
	}
}

func TestClientSideCacheOption(t *testing.T) {
	if NewRedisKV(nil).clientCache {
		t.Fatalf("client cache: want off by default")
	}
	if !NewRedisKV(nil, WithClientSideCache()).clientCache {
		t.Fatalf("client cache: want on")
	}
}
