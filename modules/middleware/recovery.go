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
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"dietprofile/modules/middleware/problem"
)

// PanicHandler answers a request whose handler panicked.
type PanicHandler func(w http.ResponseWriter, r *http.Request, recovered any)

// Recovery logs a panic with its stack and hands the request to onPanic.
// http.ErrAbortHandler is re-raised so the server aborts the connection.
func Recovery(onPanic PanicHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.ErrorContext(r.Context(), "handler panicked",
					slog.String("error", fmt.Sprint(rec)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				onPanic(w, r, rec)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func ProblemPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	problem.Write(w, problem.Internal("server error"))
}
