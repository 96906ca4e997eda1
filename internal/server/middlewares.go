package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"message-board/internal/auth"
	"message-board/internal/failure"
	"message-board/internal/storage/zapadapter"

	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

// enforceJSON is a middleware pre-processing requests with a body
// it checks for application/json Content-Type header and valid json body of limited size
// it also sets blank Content-Type header to application/json
func enforceJSON(logger *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// check "Content-Type" header
		contentType := r.Header.Get("Content-Type")
		if contentType != "" {
			mt, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				writeError(w, logger, failure.Validation("Malformed Content-Type header"))
				return
			}

			if mt != "application/json" {
				writeError(w, logger, &failure.Error{
					Kind:   failure.UnsupportedMediaType,
					Code:   "UNSUPPORTED_MEDIA_TYPE",
					Detail: "Content-Type header must be application/json",
				})
				return
			}
		} else {
			r.Header.Set("Content-Type", "application/json")
		}

		// check if provided request body is valid JSON
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, logger, failure.Validation("Request body is too large"))
				return
			}
			writeError(w, logger, failure.Validation("Can not read request body"))
			return
		}

		if len(body) == 0 {
			writeError(w, logger, failure.Validation("No body provided"))
			return
		}

		if err := fastjson.ValidateBytes(body); err != nil {
			writeError(w, logger, failure.Validation("Malformed JSON"))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// logRequests assigns request id passed down via context to every log line including pgx ones
func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()
		start := time.Now()

		ctx := zapadapter.NewContextWithID(r.Context(), id)
		rwID := r.WithContext(ctx)

		logger.Info("incoming http request",
			zap.String(zapadapter.RequestIDKey, id),
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("ip", r.RemoteAddr),
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, rwID)

		logger.Info("http request completed",
			zap.String(zapadapter.RequestIDKey, id),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type identityKey struct{}

func withIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// authenticate rejects requests without a valid access token cookie
func authenticate(logger *zap.SugaredLogger, authenticator Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := authenticator.Authenticate(cookieValue(r, accessTokenCookie))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// cors answers preflight requests and sets CORS headers for allowed origins
func cors(cfg EnvConfig, next http.Handler) http.Handler {
	origins := cfg.Origins()
	allowedHeaders := strings.Join(cfg.CORSAllowedHeaders, ",")
	exposedHeaders := strings.Join(cfg.CORSExposedHeaders, ",")
	maxAge := strconv.Itoa(cfg.CORSMaxAge)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && originAllowed(origin, origins)
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
			if exposedHeaders != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// securityHeaders sets the conservative response headers a browser facing JSON API needs
func securityHeaders(production bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'self'")
		if production {
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// pruneEvery is the number of lookups between two sweeps of idle limiters
const pruneEvery = 1024

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per client ip.
// A bucket untouched for ttl is full again, so dropping it is indistinguishable from keeping it.
type limiterPool struct {
	mu      sync.Mutex
	m       map[string]*clientLimiter
	every   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	lookups int
}

func newLimiterPool(limit int, ttl time.Duration) *limiterPool {
	return &limiterPool{
		m:     make(map[string]*clientLimiter),
		every: rate.Every(ttl / time.Duration(limit)),
		burst: limit,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.lookups++
	if p.lookups%pruneEvery == 0 {
		p.prune(now)
	}

	if c, ok := p.m[key]; ok {
		c.lastSeen = now
		return c.limiter
	}
	l := rate.NewLimiter(p.every, p.burst)
	p.m[key] = &clientLimiter{limiter: l, lastSeen: now}
	return l
}

// prune drops limiters idle for longer than ttl, p.mu must be held
func (p *limiterPool) prune(now time.Time) {
	for key, c := range p.m {
		if now.Sub(c.lastSeen) > p.ttl {
			delete(p.m, key)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func throttle(logger *zap.SugaredLogger, limiters *limiterPool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !limiters.Allow(ip) {
			zapadapter.WithRequestID(r.Context(), logger).Warnf("Rate limit exceeded for %s", ip)
			writeError(w, logger, failure.New(failure.TooManyRequests, "ThrottlerException: Too Many Requests"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
