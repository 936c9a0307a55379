package handlers

import (
	"crypto/sha256"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// BaselineSessionName is the cookie holding the reviews baseline fingerprint.
const BaselineSessionName = "gamedash-baseline"

const sessionKeyFingerprint = "reviews_fingerprint"

// BaselineStore remembers, per browser, the reviews baseline the client last
// loaded. Only the fingerprint is kept. Updates submitted against any other
// baseline are stale.
type BaselineStore struct {
	store *sessions.CookieStore
}

// NewBaselineStore creates a cookie-backed store.
//
// The secret can be any passphrase; it is SHA-256 hashed to derive the
// 32-byte signing key and must stay stable across restarts.
func NewBaselineStore(secret string, secure bool) *BaselineStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	return &BaselineStore{store: store}
}

// Load returns the stored baseline, or nil when none is recorded or the
// cookie cannot be verified.
func (s *BaselineStore) Load(r *http.Request) *snapshot.Baseline {
	session, err := s.store.Get(r, BaselineSessionName)
	if err != nil {
		return nil
	}
	fp, _ := session.Values[sessionKeyFingerprint].(string)
	return snapshot.BaselineOf(fp)
}

// Save records b as the client's baseline.
func (s *BaselineStore) Save(w http.ResponseWriter, r *http.Request, b *snapshot.Baseline) error {
	// A cookie signed with an old key yields an error alongside a fresh session.
	session, _ := s.store.Get(r, BaselineSessionName)
	session.Values[sessionKeyFingerprint] = b.Fingerprint
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save baseline session: %w", err)
	}
	return nil
}
