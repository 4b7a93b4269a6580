package devhost

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// TokenHeader carries the shared secret on privileged routes.
const TokenHeader = "token"

const (
	failureWindow    = 5 * time.Minute
	failureThreshold = 5
	maxLockout       = 2 * time.Minute
)

// HashToken hashes a plaintext token for TokenAuth.
func HashToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// TokenAuth guards routes with one bcrypt-hashed shared secret per purpose
// and locks out clients that keep failing.
type TokenAuth struct {
	mu       sync.Mutex
	failures map[string]*authFailure
	now      func() time.Time
}

type authFailure struct {
	count        int
	lastAttempt  time.Time
	lockoutUntil time.Time
}

func NewTokenAuth() *TokenAuth {
	return &TokenAuth{
		failures: make(map[string]*authFailure),
		now:      time.Now,
	}
}

// Require returns middleware accepting only requests whose token header
// matches hash.
func (a *TokenAuth) Require(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if retryAfter, locked := a.checkLockout(key); locked {
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}

		token := strings.TrimSpace(c.GetHeader(TokenHeader))
		if token == "" {
			c.String(http.StatusBadRequest, "token was not found")
			c.Abort()
			return
		}
		if !checkToken(token, hash) {
			a.recordFailure(key)
			c.String(http.StatusUnauthorized, "failed, not authorized")
			c.Abort()
			return
		}

		a.clearFailures(key)
		c.Next()
	}
}

func (a *TokenAuth) checkLockout(key string) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.failures[key]
	if !ok {
		return 0, false
	}
	now := a.now()
	if rec.lockoutUntil.After(now) {
		return rec.lockoutUntil.Sub(now), true
	}
	return 0, false
}

func (a *TokenAuth) recordFailure(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	rec, ok := a.failures[key]
	if !ok {
		rec = &authFailure{}
		a.failures[key] = rec
	}
	if now.Sub(rec.lastAttempt) > failureWindow {
		rec.count = 0
	}
	rec.lastAttempt = now
	rec.count++

	if rec.count >= failureThreshold {
		lockout := time.Duration(rec.count) * 15 * time.Second
		if lockout > maxLockout {
			lockout = maxLockout
		}
		rec.lockoutUntil = now.Add(lockout)
		rec.count = 0
	}
}

func (a *TokenAuth) clearFailures(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.failures, key)
}
