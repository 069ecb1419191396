package api

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/killallgit/testimony-api/api/types"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
	"github.com/killallgit/testimony-api/pkg/logger"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterMaxIdle       = 10 * time.Minute
)

// clientLimiter holds a rate limiter and its last accessed time
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiters keeps one token bucket per client and scope. Idle clients
// are swept in the background until Stop is called.
type RateLimiters struct {
	clients   sync.Map
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewRateLimiters() *RateLimiters {
	return &RateLimiters{stop: make(chan struct{})}
}

// Middleware limits each client IP to rps requests per second within scope
func (r *RateLimiters) Middleware(scope string, rps, burst int) gin.HandlerFunc {
	r.startOnce.Do(func() { go r.cleanupLoop() })

	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = rps
	}

	return func(c *gin.Context) {
		key := scope + "|" + c.ClientIP()

		v, _ := r.clients.LoadOrStore(key, newClientLimiter(rps, burst))
		cl := v.(*clientLimiter)
		cl.lastSeen.Store(time.Now().UnixNano())

		if !cl.limiter.Allow() {
			c.Header("Retry-After", "1")
			types.SendError(c, apperrors.RateLimitError(scope, strconv.Itoa(rps)+"/s"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func newClientLimiter(rps, burst int) *clientLimiter {
	cl := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	cl.lastSeen.Store(time.Now().UnixNano())
	return cl
}

// Stop ends the background sweep
func (r *RateLimiters) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *RateLimiters) cleanupLoop() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now(), limiterMaxIdle)
		case <-r.stop:
			return
		}
	}
}

// sweep drops limiters not seen within maxIdle of now
func (r *RateLimiters) sweep(now time.Time, maxIdle time.Duration) int {
	removed := 0
	r.clients.Range(func(key, value interface{}) bool {
		cl := value.(*clientLimiter)
		if now.Sub(time.Unix(0, cl.lastSeen.Load())) > maxIdle {
			r.clients.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func RequestSizeLimit() gin.HandlerFunc {
	return RequestSizeLimitWithSize(1024 * 1024)
}

// RequestSizeLimitWithSize caps request bodies; handlers see an
// *http.MaxBytesError when reading past maxBytes.
func RequestSizeLimitWithSize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost ||
			c.Request.Method == http.MethodPut ||
			c.Request.Method == http.MethodPatch {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// RequestLogger logs one line per request through logrus
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = logger.OrDefault(log)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithRequest(c.Request).WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"bytes":      c.Writer.Size(),
		})

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Debug("request completed")
		}
	}
}
