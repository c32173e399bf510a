package handler

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/sakif/buildermatch/internal/service"
)

// TransientCookies backs service.TransientStore with one encrypted,
// authenticated cookie per key ("oauth_state", "provider_temp_token").
//
// WHY ENCRYPTED COOKIES?
// The provider token is a live GitHub credential. securecookie (under
// gorilla/sessions) signs AND encrypts the value, so the browser holds it
// without being able to read or forge it, and the server stays stateless.
//
// Each value also carries its own expiry, checked on read: the cookie
// MaxAge is only a hint to the browser.
type TransientCookies struct {
	store  *sessions.CookieStore
	secure bool
}

const (
	transientValue  = "v"
	transientExpiry = "exp"
)

// NewTransientCookies derives the signing and encryption keys from secret.
func NewTransientCookies(secret string, secure bool) *TransientCookies {
	blockKey := sha256.Sum256([]byte("buildermatch/transient/" + secret))
	return &TransientCookies{
		store:  sessions.NewCookieStore([]byte(secret), blockKey[:]),
		secure: secure,
	}
}

// For binds the store to one request/response pair.
func (c *TransientCookies) For(w http.ResponseWriter, r *http.Request) service.TransientStore {
	return &requestTransient{cookies: c, w: w, r: r}
}

type requestTransient struct {
	cookies *TransientCookies
	w       http.ResponseWriter
	r       *http.Request
}

func (t *requestTransient) Get(key string) (string, bool) {
	sess, err := t.cookies.store.Get(t.r, key)
	if err != nil {
		return "", false
	}
	value, ok := sess.Values[transientValue].(string)
	if !ok {
		return "", false
	}
	exp, _ := sess.Values[transientExpiry].(int64)
	if time.Now().Unix() >= exp {
		return "", false
	}
	return value, true
}

func (t *requestTransient) Set(key, value string, ttl time.Duration) error {
	// A tampered or stale cookie yields a fresh session alongside the
	// decode error; overwriting it is exactly what we want.
	sess, _ := t.cookies.store.Get(t.r, key)
	sess.Values[transientValue] = value
	sess.Values[transientExpiry] = time.Now().Add(ttl).Unix()
	sess.Options = t.options(int(ttl.Seconds()))
	return sess.Save(t.r, t.w)
}

func (t *requestTransient) Delete(key string) error {
	sess, _ := t.cookies.store.Get(t.r, key)
	delete(sess.Values, transientValue)
	sess.Options = t.options(-1)
	return sess.Save(t.r, t.w)
}

func (t *requestTransient) options(maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.cookies.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
