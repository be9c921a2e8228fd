package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const codeDigits = 6

var (
	ErrCodeInvalid   = errors.New("sign-in code is invalid")
	ErrCodeExpired   = errors.New("sign-in code has expired")
	ErrCodeExhausted = errors.New("too many attempts for this sign-in code")
)

type pendingCode struct {
	digest   []byte
	expires  time.Time
	attempts int
}

// Codes holds one-time sign-in codes keyed by subject. Only an HMAC of each
// code is kept. A code is consumed by the first successful Verify.
type Codes struct {
	key         []byte
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingCode
}

func NewCodes(ttl time.Duration, maxAttempts int) (*Codes, error) {
	if ttl <= 0 {
		return nil, errors.New("code ttl must be greater than zero")
	}
	if maxAttempts <= 0 {
		return nil, errors.New("code attempts must be greater than zero")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate code key: %w", err)
	}
	return &Codes{
		key:         key,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		pending:     make(map[string]*pendingCode),
	}, nil
}

func (c *Codes) digest(subject, code string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(subject))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return mac.Sum(nil)
}

// Issue creates a fresh code for subject, replacing any earlier one.
func (c *Codes) Issue(subject string) (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%0*d", codeDigits, n.Int64())

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.prune(now)
	expires := now.Add(c.ttl)
	c.pending[subject] = &pendingCode{digest: c.digest(subject, code), expires: expires}
	return code, expires, nil
}

// Verify checks code against the pending code for subject. A wrong guess
// counts as an attempt and the code is dropped once attempts run out.
func (c *Codes) Verify(subject, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[subject]
	if !ok {
		return ErrCodeInvalid
	}
	if c.now().After(p.expires) {
		delete(c.pending, subject)
		return ErrCodeExpired
	}
	if !hmac.Equal(p.digest, c.digest(subject, code)) {
		p.attempts++
		if p.attempts >= c.maxAttempts {
			delete(c.pending, subject)
			return ErrCodeExhausted
		}
		return ErrCodeInvalid
	}
	delete(c.pending, subject)
	return nil
}

// Discard drops any pending code for subject.
func (c *Codes) Discard(subject string) {
	c.mu.Lock()
	delete(c.pending, subject)
	c.mu.Unlock()
}

func (c *Codes) TTL() time.Duration {
	return c.ttl
}

func (c *Codes) prune(now time.Time) {
	for subject, p := range c.pending {
		if now.After(p.expires) {
			delete(c.pending, subject)
		}
	}
}
