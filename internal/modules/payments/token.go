package payments

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenFetcher obtains a fresh provider access token and its lifetime.
type TokenFetcher func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenCache shares a token between server instances. Get returns an empty
// token on a miss.
type TokenCache interface {
	Get(ctx context.Context) (token string, ttl time.Duration, err error)
	Set(ctx context.Context, token string, ttl time.Duration) error
}

// TokenSource hands out a valid access token, refreshing it lazily. Concurrent
// callers that find the token expired share a single refresh.
type TokenSource struct {
	fetch TokenFetcher
	cache TokenCache
	skew  time.Duration
	now   func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenSource(fetch TokenFetcher, skew time.Duration) *TokenSource {
	if skew < 0 {
		skew = 0
	}
	return &TokenSource{fetch: fetch, skew: skew, now: time.Now}
}

// WithCache makes the source consult (and fill) a shared cache before asking
// the provider.
func (s *TokenSource) WithCache(c TokenCache) *TokenSource {
	s.cache = c
	return s
}

func (s *TokenSource) ValidToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expiry) {
		return s.token, nil
	}

	if s.cache != nil {
		// a broken cache must not stop payments
		if tok, ttl, err := s.cache.Get(ctx); err == nil && tok != "" && ttl > s.skew {
			s.token, s.expiry = tok, now.Add(ttl-s.skew)
			return tok, nil
		}
	}

	tok, ttl, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", malformed("empty access token", nil)
	}
	if ttl <= s.skew {
		return "", malformed("access token lifetime shorter than refresh skew", errors.New(ttl.String()))
	}

	s.token, s.expiry = tok, now.Add(ttl-s.skew)
	if s.cache != nil {
		_ = s.cache.Set(ctx, tok, ttl)
	}
	return tok, nil
}

// Invalidate drops the in-process token, e.g. after the provider rejected it.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token, s.expiry = "", time.Time{}
	s.mu.Unlock()
}
