package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/upload"
)

const (
	// DefaultRateWindow is the length of one rate limiting bucket.
	DefaultRateWindow = 15 * time.Minute
	// DefaultRateMax is the number of requests one IP may make per bucket.
	DefaultRateMax = 100

	messageRateLimited = "Too many requests from this IP, please try again later."

	headerContentTypeOptions  = "X-Content-Type-Options"
	headerContentDisposition  = "Content-Disposition"
	contentTypeOptionsNoSniff = "nosniff"
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// RateLimiter counts requests per client IP in fixed windows.
type RateLimiter struct {
	window        time.Duration
	maxPerWindow  int
	clock         func() time.Time
	countersMutex sync.Mutex
	countersByIP  map[string]int
	currentBucket int64
}

func NewRateLimiter(window time.Duration, maxPerWindow int, clock func() time.Time) *RateLimiter {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultRateMax
	}
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		window:       window,
		maxPerWindow: maxPerWindow,
		clock:        clock,
		countersByIP: make(map[string]int),
	}
}

// Middleware rejects requests above the per-IP ceiling with 429.
func (limiter *RateLimiter) Middleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		limited, retryAfter := limiter.isRateLimited(context.ClientIP())
		if limited {
			context.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			respondError(context, http.StatusTooManyRequests, messageRateLimited, nil)
			return
		}
		context.Next()
	}
}

func (limiter *RateLimiter) isRateLimited(ip string) (bool, time.Duration) {
	now := limiter.clock()
	bucket := now.UnixNano() / int64(limiter.window)

	limiter.countersMutex.Lock()
	defer limiter.countersMutex.Unlock()

	if bucket != limiter.currentBucket {
		limiter.countersByIP = make(map[string]int)
		limiter.currentBucket = bucket
	}
	limiter.countersByIP[ip]++
	retryAfter := time.Unix(0, (bucket+1)*int64(limiter.window)).Sub(now)
	return limiter.countersByIP[ip] > limiter.maxPerWindow, retryAfter
}

// UploadHeaders forbids content sniffing on stored uploads and forces a download for anything but images.
func UploadHeaders() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header(headerContentTypeOptions, contentTypeOptionsNoSniff)
		if !upload.IsImageFilename(context.Request.URL.Path) {
			context.Header(headerContentDisposition, "attachment")
		}
		context.Next()
	}
}
