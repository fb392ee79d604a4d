// Package problem writes RFC 7807 problem documents.
package problem

import (
	"encoding/json"
	"net/http"
)

const ContentType = "application/problem+json"

// Problem is a problem details document. Extensions are merged into the
// top-level object but never replace a standard member.
type Problem struct {
	Type          *string         `json:"type,omitempty"`
	Title         string          `json:"title"`
	Status        int             `json:"status"`
	Detail        *string         `json:"detail,omitempty"`
	Instance      *string         `json:"instance,omitempty"`
	Code          *string         `json:"code,omitempty"`
	TraceID       *string         `json:"traceId,omitempty"`
	InvalidParams *[]InvalidParam `json:"invalidParams,omitempty"`

	Extensions map[string]any `json:"-"`
}

type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type Option func(*Problem)

// New starts from a generic 500 and applies opts.
func New(opts ...Option) *Problem {
	p := &Problem{
		Status: http.StatusInternalServerError,
		Detail: ptr("unhandled error"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.Type == nil {
		p.Type = ptr("about:blank")
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	if p.Title == "" {
		p.Title = "Unknown Error"
	}
	return p
}

// Status builds a problem for an HTTP status, titled with the status text.
func Status(status int, detail string, opts ...Option) *Problem {
	return New(append([]Option{WithStatus(status), WithDetail(detail)}, opts...)...)
}

func BadRequest(detail string, opts ...Option) *Problem {
	return Status(http.StatusBadRequest, detail, opts...)
}

func Unauthorized(detail string, opts ...Option) *Problem {
	return Status(http.StatusUnauthorized, detail, opts...)
}

func NotFound(detail string, opts ...Option) *Problem {
	return Status(http.StatusNotFound, detail, opts...)
}

func MethodNotAllowed(detail string, opts ...Option) *Problem {
	return Status(http.StatusMethodNotAllowed, detail, opts...)
}

func RequestTimeout(detail string, opts ...Option) *Problem {
	return Status(http.StatusRequestTimeout, detail, opts...)
}

func PreconditionFailed(detail string, opts ...Option) *Problem {
	return Status(http.StatusPreconditionFailed, detail, opts...)
}

func TooManyRequests(detail string, opts ...Option) *Problem {
	return Status(http.StatusTooManyRequests, detail, opts...)
}

func Internal(detail string, opts ...Option) *Problem {
	return Status(http.StatusInternalServerError, detail, opts...)
}

func BadGateway(detail string, opts ...Option) *Problem {
	return Status(http.StatusBadGateway, detail, opts...)
}

func WithStatus(status int) Option  { return func(p *Problem) { p.Status = status } }
func WithTitle(title string) Option { return func(p *Problem) { p.Title = title } }
func WithType(typ string) Option    { return func(p *Problem) { p.Type = ptr(typ) } }
func WithCode(code string) Option   { return func(p *Problem) { p.Code = ptr(code) } }

func WithDetail(detail string) Option {
	return func(p *Problem) { p.Detail = ptr(detail) }
}

func WithTraceID(traceID string) Option {
	return func(p *Problem) { p.TraceID = ptr(traceID) }
}

func WithInvalidParam(name, reason string) Option {
	return func(p *Problem) {
		var params []InvalidParam
		if p.InvalidParams != nil {
			params = *p.InvalidParams
		}
		params = append(params, InvalidParam{Name: name, Reason: reason})
		p.InvalidParams = &params
	}
}

func WithExtension(key string, value any) Option {
	return func(p *Problem) {
		if p.Extensions == nil {
			p.Extensions = make(map[string]any, 1)
		}
		p.Extensions[key] = value
	}
}

// Write sends p with its status. A nil p is sent as a 500.
func Write(w http.ResponseWriter, p *Problem) {
	if p == nil {
		p = Internal("server error")
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func (p Problem) MarshalJSON() ([]byte, error) {
	// plain has no methods, so Marshal does not recurse into this one
	type plain Problem
	base, err := json.Marshal(plain(p))
	if err != nil || len(p.Extensions) == 0 {
		return base, err
	}

	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extensions {
		if _, taken := merged[k]; taken {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

func ptr(s string) *string { return &s }
