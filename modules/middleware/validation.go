// Copyright 2025 Nguyen Nhat Nguyen
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

package middleware

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"dietprofile/modules/middleware/problem"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"
)

// LoadSpec reads an OpenAPI document from specFS and validates it.
func LoadSpec(specFS fs.FS, path string) (*openapi3.T, error) {
	data, err := fs.ReadFile(specFS, path)
	if err != nil {
		return nil, fmt.Errorf("openapi: read %s: %w", path, err)
	}
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load %s: %w", path, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("openapi: invalid %s: %w", path, err)
	}
	return doc, nil
}

// OpenAPIValidation checks requests against spec before any handler decodes
// them. Bad parameters answer 400 and bad bodies 422, each offending member
// listed under invalidParams. Security is left to the auth middleware.
func OpenAPIValidation(spec *openapi3.T) func(http.Handler) http.Handler {
	return nethttpmiddleware.OapiRequestValidatorWithOptions(spec, &nethttpmiddleware.Options{
		Options: openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
		DoNotValidateServers:  true,
		SilenceServersWarning: true,
		ErrorHandlerWithOpts:  writeValidationProblem,
	})
}

func writeValidationProblem(_ context.Context, err error, w http.ResponseWriter, _ *http.Request, opts nethttpmiddleware.ErrorHandlerOpts) {
	var params []problem.InvalidParam
	body := collect(err, &params)

	status := opts.StatusCode
	if status == 0 {
		status = http.StatusBadRequest
	}
	if body {
		status = http.StatusUnprocessableEntity
	}

	p := problem.Status(status, "validation failed")
	for _, ip := range params {
		problem.WithInvalidParam(ip.Name, ip.Reason)(p)
	}
	problem.Write(w, p)
}

// collect flattens err into invalid params and reports whether any of them
// is about the request body.
func collect(err error, params *[]problem.InvalidParam) (body bool) {
	add := func(name, reason string) { *params = append(*params, problem.InvalidParam{Name: name, Reason: reason}) }

	switch e := err.(type) {
	case openapi3.MultiError:
		for _, item := range e {
			if collect(item, params) {
				body = true
			}
		}
		return body
	case *openapi3filter.RequestError:
		if e.Parameter != nil {
			reason := safeReason(e.Reason)
			var schema *openapi3.SchemaError
			if errors.As(e.Err, &schema) {
				reason = schema.Reason
			}
			add(e.Parameter.Name, reason)
			return false
		}
		switch e.Err.(type) {
		case openapi3.MultiError, *openapi3.SchemaError:
			collect(e.Err, params)
		default:
			add("body", safeReason(e.Reason))
		}
		return true
	case *openapi3.SchemaError:
		add(memberOf(e), e.Reason)
		return true
	case *openapi3filter.SecurityRequirementsError:
		add("authorization", "missing or invalid credentials")
		return false
	}
	add("request", "invalid value")
	return false
}

// memberOf names the top-level body member a schema error points at.
func memberOf(se *openapi3.SchemaError) string {
	pointer := se.JSONPointer()
	if len(pointer) == 0 || pointer[0] == "" || pointer[0] == "0" {
		return "body"
	}
	return pointer[0]
}

// safeReason keeps the request's own values out of the response.
func safeReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "must be one of"):
		return reason
	case strings.Contains(lower, "doesn't match schema"):
		return "doesn't match schema"
	}
	return "invalid value"
}
