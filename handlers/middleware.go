package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/juho05/log"
	"github.com/sethvargo/go-limiter/httplimit"
	"github.com/sethvargo/go-limiter/memorystore"

	"github.com/safejob-nl/auth/config"
	"github.com/safejob-nl/auth/repos"
	"github.com/safejob-nl/auth/services"
)

type (
	AuthIdentityCtxKey struct{}
	AuthClaimsCtxKey   struct{}
)

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusResponseWriter) WriteHeader(code int) {
	if s.status >= 200 {
		return
	}
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusResponseWriter) Write(b []byte) (int, error) {
	if s.status < 200 {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusResponseWriter) ReadFrom(r io.Reader) (int64, error) {
	if s.status < 200 {
		s.WriteHeader(http.StatusOK)
	}
	return io.Copy(s.ResponseWriter, r)
}

func logRequest(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		rw := &statusResponseWriter{ResponseWriter: w}
		start := time.Now()
		defer func() {
			u := r.URL
			u.RawQuery = ""
			u.RawFragment = ""
			log.Tracef("%s %s, status: %d %s, duration: %s", r.Method, u.String(), rw.status, http.StatusText(rw.status), time.Since(start).String())
		}()
		next.ServeHTTP(rw, r)
	}
	return http.HandlerFunc(fn)
}

func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if e, ok := err.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(err)
				}
				w.Header().Set("Connection", "close")
				serverError(w, fmt.Errorf("%v", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func rateLimit() func(next http.Handler) http.Handler {
	store, err := memorystore.New(&memorystore.Config{
		Tokens:   uint64(config.HTTPRateLimit()),
		Interval: time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to create rate limit store: %s", err)
	}
	middleware, err := httplimit.NewMiddleware(store, httplimit.IPKeyFunc("X-Forwarded-For"))
	if err != nil {
		log.Fatalf("Failed to create rate limit middleware: %s", err)
	}
	return middleware.Handle
}

// authenticate is the single choke point for protected routes. Missing or
// invalid credentials are never treated as anonymous access, and a store
// outage is surfaced as 503 rather than 401.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		identity, claims, err := h.SessionService.ValidateAccess(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, services.ErrUnavailable) {
				serviceUnavailable(w)
				return
			}
			if header == "" {
				w.Header().Set("WWW-Authenticate", "Bearer error=\"missing_token\"")
			} else {
				w.Header().Set("WWW-Authenticate", "Bearer error=\"invalid_token\"")
			}
			respondError(w, ErrUnauthenticated, http.StatusUnauthorized, nil)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), AuthIdentityCtxKey{}, identity))
		r = r.WithContext(context.WithValue(r.Context(), AuthClaimsCtxKey{}, claims))
		next.ServeHTTP(w, r)
	})
}

func authenticatedIdentity(ctx context.Context) (string, repos.Claims) {
	identity, _ := ctx.Value(AuthIdentityCtxKey{}).(string)
	claims, _ := ctx.Value(AuthClaimsCtxKey{}).(repos.Claims)
	return identity, claims
}

func requestContext(r *http.Request) services.RequestContext {
	// RealIP rewrites RemoteAddr to a bare IP; direct connections keep a port
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return services.RequestContext{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}
