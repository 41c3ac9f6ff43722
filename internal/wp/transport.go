package wp

import (
	"bytes"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Limit is a simple rate limit: requests per second with a burst capacity.
type Limit struct {
	RPS   float64
	Burst int
}

// TransportOptions configures the retrying, rate-limited transport.
type TransportOptions struct {
	RetryMax    int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	JitterFn    func(base time.Duration, attempt int) time.Duration
	Clock       Clock
	Metrics     *Metrics

	// Per-host limit. Both instances of a sync run share the default unless
	// overridden per host.
	DefaultLimit Limit
	HostLimits   map[string]Limit
}

// DefaultTransportOptions returns conservative defaults for self-hosted
// instances. Tuning comes from the runtime settings layer, not from here.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		RetryMax:    4,
		BackoffBase: 250 * time.Millisecond,
		BackoffCap:  5 * time.Second,
		Clock:       realClock{},
		JitterFn: func(base time.Duration, attempt int) time.Duration {
			if base <= 0 {
				return 0
			}
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			return time.Duration(r.Int63n(base.Nanoseconds()))
		},
		Metrics:      NewMetrics(),
		DefaultLimit: Limit{RPS: 10, Burst: 10},
	}
}

// tokenBucket is a per-host rate limiter with fractional tokens.
type tokenBucket struct {
	mu     sync.Mutex
	rps    float64
	burst  float64
	tokens float64
	last   time.Time
	clock  Clock
}

func newTokenBucket(lim Limit, clock Clock) *tokenBucket {
	burst := float64(lim.Burst)
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{rps: lim.RPS, burst: burst, tokens: burst, last: clock.Now(), clock: clock}
}

func (tb *tokenBucket) refillLocked(now time.Time) {
	delta := now.Sub(tb.last).Seconds() * tb.rps
	if delta > 0 {
		tb.tokens = math.Min(tb.burst, tb.tokens+delta)
		tb.last = now
	}
}

func (tb *tokenBucket) Wait(req *http.Request) error {
	for {
		if err := req.Context().Err(); err != nil {
			return err
		}
		tb.mu.Lock()
		now := tb.clock.Now()
		tb.refillLocked(now)
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		need := 1 - tb.tokens
		wait := time.Duration((need / tb.rps) * float64(time.Second))
		tb.mu.Unlock()
		if wait <= 0 {
			wait = 5 * time.Millisecond
		}
		// sleep in small slices so cancellation is observed promptly
		deadline := tb.clock.Now().Add(wait)
		for tb.clock.Now().Before(deadline) {
			if err := req.Context().Err(); err != nil {
				return err
			}
			tb.clock.Sleep(5 * time.Millisecond)
		}
	}
}

// RetryingTransport wraps a base RoundTripper with per-host rate limiting and
// bounded retries on 429/5xx and transient network errors.
type RetryingTransport struct {
	Base     http.RoundTripper
	Opts     TransportOptions
	limMu    sync.Mutex
	limiters map[string]*tokenBucket
}

func NewRetryingTransport(opts TransportOptions) *RetryingTransport {
	return &RetryingTransport{Opts: opts, limiters: make(map[string]*tokenBucket)}
}

func (t *RetryingTransport) getLimiter(host string) *tokenBucket {
	if host == "" {
		host = "_default_"
	}
	t.limMu.Lock()
	defer t.limMu.Unlock()
	if tb, ok := t.limiters[host]; ok {
		return tb
	}
	lim := t.Opts.DefaultLimit
	if lim.RPS <= 0 {
		lim = Limit{RPS: 10, Burst: 10}
	}
	if v, ok := t.Opts.HostLimits[host]; ok {
		lim = v
	}
	tb := newTokenBucket(lim, t.clock())
	t.limiters[host] = tb
	return tb
}

func (t *RetryingTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *RetryingTransport) clock() Clock {
	if t.Opts.Clock != nil {
		return t.Opts.Clock
	}
	return realClock{}
}

func (t *RetryingTransport) jitter(base time.Duration, attempt int) time.Duration {
	if t.Opts.JitterFn != nil {
		return t.Opts.JitterFn(base, attempt)
	}
	return 0
}

// ensureGetBody makes a mutating request body replayable across retries.
func ensureGetBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil
	}
	buf, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	req.Body.Close()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	req.Body = io.NopCloser(bytes.NewReader(buf))
	return nil
}

func (t *RetryingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := ensureGetBody(req); err != nil {
		return nil, err
	}

	lim := t.getLimiter(req.URL.Host)
	if t.Opts.Metrics != nil {
		t.Opts.Metrics.IncRequest(req.URL.Host, req.Method)
	}

	attempts := t.Opts.RetryMax + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := lim.Wait(req); err != nil {
			return nil, err
		}

		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := t.base().RoundTrip(req)
		if err != nil {
			if isTransientNetErr(err) && attempt < attempts-1 {
				lastErr = err
				t.countRetry(req, 0)
				t.sleepBackoff(attempt)
				continue
			}
			return nil, err
		}

		if t.Opts.Metrics != nil {
			t.Opts.Metrics.IncStatus(resp.StatusCode)
		}

		if shouldRetryStatus(resp.StatusCode) && attempt < attempts-1 {
			t.countRetry(req, resp.StatusCode)
			if ra := parseRetryAfter(resp.Header.Get("Retry-After"), t.clock().Now()); ra > 0 {
				resp.Body.Close()
				d := minDur(ra, t.Opts.BackoffCap)
				t.clock().Sleep(d)
				if t.Opts.Metrics != nil {
					t.Opts.Metrics.AddBackoff(d)
				}
				continue
			}
			resp.Body.Close()
			t.sleepBackoff(attempt)
			continue
		}

		return resp, nil
	}
	if lastErr == nil {
		lastErr = errors.New("max retries exceeded")
	}
	return nil, lastErr
}

func (t *RetryingTransport) countRetry(req *http.Request, status int) {
	if t.Opts.Metrics != nil {
		t.Opts.Metrics.IncRetry()
	}
	if rc := getRetryCounters(req.Context()); rc != nil {
		rc.Total++
		switch {
		case status == 429:
			rc.Status429++
		case status >= 500:
			rc.Status5xx++
		case status == 0:
			rc.Net++
		}
	}
}

func (t *RetryingTransport) sleepBackoff(attempt int) {
	base := t.Opts.BackoffBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	cap := t.Opts.BackoffCap
	if cap <= 0 {
		cap = 5 * time.Second
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	delay = minDur(delay+t.jitter(delay, attempt), cap)
	t.clock().Sleep(delay)
	if t.Opts.Metrics != nil {
		t.Opts.Metrics.AddBackoff(delay)
	}
}

func isTransientNetErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "temporary") ||
		strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused")
}

func shouldRetryStatus(code int) bool {
	return code == 429 || code == 502 || code == 503 || code == 504
}

func parseRetryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(h); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
