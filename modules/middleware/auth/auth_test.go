package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func guarded(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	mw, err := Bearer(cfg)
	if err != nil {
		t.Fatalf("bearer: %v", err)
	}
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, _ := Subject(r.Context())
		w.Header().Set("X-Subject", sub)
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestBearer(t *testing.T) {
	h := guarded(t, Config{Secret: secret, Issuer: "users", Leeway: time.Second})
	valid := jwt.RegisteredClaims{
		Subject:   "42",
		Issuer:    "users",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	foreign := valid
	foreign.Issuer = "elsewhere"
	endless := valid
	endless.ExpiresAt = nil

	for name, tc := range map[string]struct {
		header string
		want   int
	}{
		"valid":        {header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), valid), want: http.StatusNoContent},
		"missing":      {header: "", want: http.StatusUnauthorized},
		"not bearer":   {header: "Basic abc", want: http.StatusUnauthorized},
		"expired":      {header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), expired), want: http.StatusUnauthorized},
		"wrong key":    {header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), valid), want: http.StatusUnauthorized},
		"wrong alg":    {header: "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(secret), valid), want: http.StatusUnauthorized},
		"wrong issuer": {header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), foreign), want: http.StatusUnauthorized},
		"no expiry":    {header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), endless), want: http.StatusUnauthorized},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/dietary-profiles/42", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status: want=%d got=%d", tc.want, rec.Code)
			}
			if tc.want == http.StatusNoContent && rec.Header().Get("X-Subject") != "42" {
				t.Fatalf("subject: want=42 got=%q", rec.Header().Get("X-Subject"))
			}
		})
	}
}

func TestBearerDisabled(t *testing.T) {
	h := guarded(t, Config{Disabled: true})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: want=%d got=%d", http.StatusNoContent, rec.Code)
	}
}

func TestBearerRequiresSecret(t *testing.T) {
	if _, err := Bearer(Config{}); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("error: want=%v got=%v", ErrMissingSecret, err)
	}
}
