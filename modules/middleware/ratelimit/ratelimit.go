// Package ratelimit applies per-route request budgets in front of the
// profile API.
package ratelimit

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"dietprofile/modules/middleware/problem"
	rl "dietprofile/modules/ratelimit"
)

type (
	Pattern string

	// KeyFunc names the caller a budget belongs to. An empty key means the
	// caller could not be identified.
	KeyFunc func(*http.Request) rl.Key

	RouteInfoFunc func(*http.Request) RouteInfo

	// RouteInfo is the router-independent view of a request.
	RouteInfo struct {
		ID     Pattern
		Method string
		Path   string
	}

	Policy struct {
		Limiter rl.RateLimiter
		KeyFn   KeyFunc
	}

	// RuntimePolicy is the parsed configuration. Lookup order is an explicit
	// route and method, then the default for the method, then the catch-all.
	RuntimePolicy struct {
		routes   map[routeKey]Policy
		byMethod map[string]Policy
		fallback *Policy

		AllowIfNoMatch      bool
		AllowIfNoIdentifier bool

		RouteInfoFn RouteInfoFunc
	}

	routeKey struct {
		pattern Pattern
		method  string
	}
)

func (p *RuntimePolicy) lookup(ri RouteInfo) (Policy, string, bool) {
	m := strings.ToUpper(ri.Method)
	if px, ok := p.routes[routeKey{ri.ID, m}]; ok {
		return px, "route", true
	}
	if px, ok := p.byMethod[m]; ok {
		return px, "method_default", true
	}
	if p.fallback != nil {
		return *p.fallback, "default", true
	}
	return Policy{}, "", false
}

// ParsePolicy builds the runtime policy. The patterns in cfg must be the ones
// routeFn produces.
func ParsePolicy(
	factory rl.LimiterFactory,
	cfg *RestHTTPConfig,
	routeFn RouteInfoFunc,
	keyStrategies map[KeyStrategyId]KeyFunc,
) (*RuntimePolicy, error) {
	rtp := &RuntimePolicy{
		routes:              map[routeKey]Policy{},
		byMethod:            map[string]Policy{},
		AllowIfNoMatch:      cfg.AllowIfNoMatch,
		AllowIfNoIdentifier: cfg.AllowIfNoIdentifier,
		RouteInfoFn:         routeFn,
	}

	build := func(rule EndpointRule) (Policy, error) {
		keyFn, ok := keyStrategies[rule.KeyStrategy]
		if !ok {
			return Policy{}, fmt.Errorf("ratelimit: unknown key strategy %q", rule.KeyStrategy)
		}
		return Policy{Limiter: factory(rule.Limit, rule.Window), KeyFn: keyFn}, nil
	}

	// the default counts as configured only once it has a window and a key
	if def := cfg.DefaultPolicy; def.Window > 0 && def.KeyStrategy != "" {
		px, err := build(def)
		if err != nil {
			return nil, err
		}
		if def.Method == "" {
			rtp.fallback = &px
		} else {
			rtp.byMethod[strings.ToUpper(def.Method)] = px
		}
	}

	for _, route := range cfg.Routes {
		for _, rule := range route.EndpointRules {
			k := routeKey{Pattern(route.Pattern), strings.ToUpper(rule.Method)}
			if _, dup := rtp.routes[k]; dup {
				return nil, fmt.Errorf("ratelimit: %s %s configured twice", k.method, k.pattern)
			}
			px, err := build(rule)
			if err != nil {
				return nil, err
			}
			rtp.routes[k] = px
		}
	}
	return rtp, nil
}

func NewRateLimitMiddleware(p *RuntimePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ri := p.RouteInfoFn(r)
			log := slog.With(
				slog.String("middleware", "rate_limiter"),
				slog.String("route", string(ri.ID)),
				slog.String("method", ri.Method),
			)

			px, source, ok := p.lookup(ri)
			if !ok {
				if p.AllowIfNoMatch {
					next.ServeHTTP(w, r)
					return
				}
				log.WarnContext(r.Context(), "no rate limit policy")
				tooMany(w)
				return
			}
			if source != "route" {
				log.DebugContext(r.Context(), "default rate limit policy", slog.String("policy_source", source))
			}

			var key rl.Key
			if px.KeyFn != nil {
				key = px.KeyFn(r)
			}
			if key == "" {
				if p.AllowIfNoIdentifier {
					next.ServeHTTP(w, r)
					return
				}
				log.WarnContext(r.Context(), "caller not identified")
				tooMany(w)
				return
			}

			result, err := px.Limiter.Allow(r.Context(), key)
			if err != nil {
				log.ErrorContext(r.Context(), "rate limit counter failed", slog.Any("error", err))
				problem.Write(w, problem.Internal(http.StatusText(http.StatusInternalServerError)))
				return
			}

			// handlers may replace headers, so they go out when the response is committed
			w = &headerWriter{ResponseWriter: w, result: result}
			if !result.Allowed {
				log.DebugContext(r.Context(), "rate limited", slog.String("key", string(key)))
				tooMany(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tooMany(w http.ResponseWriter) {
	problem.Write(w, problem.TooManyRequests(http.StatusText(http.StatusTooManyRequests)))
}

type headerWriter struct {
	http.ResponseWriter
	result rl.Result
	done   bool
}

func (w *headerWriter) commit() {
	if w.done {
		return
	}
	w.done = true
	h := w.ResponseWriter.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(w.result.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(w.result.Remaining, 10))
	h.Set("X-RateLimit-Window-Seconds", strconv.FormatInt(int64(w.result.Window.Seconds()), 10))
	h.Set("X-RateLimit-Reset-Seconds", strconv.FormatInt(int64(w.result.WindowResetIn.Seconds()), 10))
	if !w.result.Allowed && w.result.RetryAfter > 0 {
		h.Set("Retry-After", strconv.FormatInt(int64(w.result.RetryAfter.Seconds()+0.999), 10))
	}
}

func (w *headerWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RemoteIpKeyFunc keys on the first X-Forwarded-For hop, or the connection's
// remote host without one.
func RemoteIpKeyFunc(r *http.Request) rl.Key {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return rl.Key(ip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return rl.Key(r.RemoteAddr)
	}
	return rl.Key(host)
}

// AthleteKeyFunc keys on the athlete id in the path, so one athlete's
// profile cannot be hammered from many addresses.
func AthleteKeyFunc(r *http.Request) rl.Key {
	for _, seg := range strings.Split(r.URL.Path, "/") {
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			return rl.Key("athlete:" + seg)
		}
	}
	return ""
}

// PathRouteInfo collapses numeric path segments, so every athlete shares the
// policy of "/v1/dietary-profiles/{id}".
func PathRouteInfo(r *http.Request) RouteInfo {
	segments := strings.Split(r.URL.Path, "/")
	for i, seg := range segments {
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = "{id}"
		}
	}
	return RouteInfo{
		ID:     Pattern(strings.Join(segments, "/")),
		Method: r.Method,
		Path:   r.URL.Path,
	}
}
