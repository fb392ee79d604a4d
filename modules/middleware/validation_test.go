package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dietprofile/modules/oapi"
)

func validated(t *testing.T) http.Handler {
	t.Helper()
	spec, err := LoadSpec(oapi.FS, oapi.DietaryProfileSpec)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	return OpenAPIValidation(spec)(next)
}

func TestOpenAPIValidation(t *testing.T) {
	h := validated(t)

	for name, tc := range map[string]struct {
		method string
		path   string
		body   string
		status int
		param  string
	}{
		"valid create":      {http.MethodPost, "/v1/dietary-profiles/42", `{"intolerantFoodIds":[1,2],"dietTypeId":null}`, http.StatusTeapot, ""},
		"valid get":         {http.MethodGet, "/v1/dietary-profiles/42", "", http.StatusTeapot, ""},
		"non numeric id":    {http.MethodGet, "/v1/dietary-profiles/abc", "", http.StatusBadRequest, "athleteId"},
		"zero id":           {http.MethodDelete, "/v1/dietary-profiles/0", "", http.StatusBadRequest, "athleteId"},
		"non positive food": {http.MethodPost, "/v1/dietary-profiles/42", `{"intolerantFoodIds":[0]}`, http.StatusUnprocessableEntity, "intolerantFoodIds"},
		"unknown member":    {http.MethodPut, "/v1/dietary-profiles/42", `{"favouriteFood":1}`, http.StatusUnprocessableEntity, ""},
		"wrong member type": {http.MethodPut, "/v1/dietary-profiles/42", `{"preferredFoodIds":"1,2"}`, http.StatusUnprocessableEntity, "preferredFoodIds"},
	} {
		t.Run(name, func(t *testing.T) {
			var req *http.Request
			if tc.body == "" {
				req = httptest.NewRequest(tc.method, tc.path, nil)
			} else {
				req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d body=%s", tc.status, rec.Code, rec.Body)
			}
			if tc.status == http.StatusTeapot {
				return
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("content type: want=application/problem+json got=%s", ct)
			}
			if tc.param != "" && !strings.Contains(rec.Body.String(), `"`+tc.param+`"`) {
				t.Fatalf("invalid param %s not reported: %s", tc.param, rec.Body)
			}
			var doc map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
				t.Fatalf("problem body: %v", err)
			}
			if doc["status"] != float64(tc.status) {
				t.Fatalf("problem status: want=%d got=%v", tc.status, doc["status"])
			}
		})
	}
}

func TestLoadSpecMissingFile(t *testing.T) {
	if _, err := LoadSpec(oapi.FS, "missing.yaml"); err == nil {
		t.Fatalf("want error for a missing document")
	}
}
