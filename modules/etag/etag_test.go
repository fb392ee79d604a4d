package etag

import "testing"

type versioned int64

func (v versioned) V() int64 { return int64(v) }

func TestHeaderRoundTrip(t *testing.T) {
	h := Header(versioned(3))
	if h != `"v:3"` {
		t.Fatalf("header: want=%q got=%q", `"v:3"`, h)
	}
	v, err := ParseETag(h)
	if err != nil || v != 3 {
		t.Fatalf("parse: want=3 got=%d err=%v", v, err)
	}
}

func TestParseETagRejectsForeignTags(t *testing.T) {
	for _, tag := range []string{"", `"abc"`, `"v:x"`} {
		if _, err := ParseETag(tag); err == nil {
			t.Fatalf("parse %q: want error", tag)
		}
	}
}

func TestMatchesNoneOf(t *testing.T) {
	obj := versioned(2)
	for header, want := range map[string]bool{
		"":                 false,
		"*":                true,
		`"v:2"`:            true,
		`W/"v:2"`:          true,
		`"v:1", "v:2"`:     true,
		`"v:1"`:            false,
		`"garbage", "v:4"`: false,
	} {
		if got := MatchesNoneOf(header, obj); got != want {
			t.Fatalf("header %q: want=%v got=%v", header, want, got)
		}
	}
}
