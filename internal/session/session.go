// Package session persists the credential pair on the client between
// requests. The server itself keeps nothing.
package session

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	RootCookie      = "paywall_root"
	DischargeCookie = "paywall_discharge"

	defaultMaxAge = 24 * time.Hour
)

// Values is the per-request snapshot of what the client presented.
type Values struct {
	Root      string
	Discharge string
}

// Store is read once when a request starts and written at most once before
// the response.
type Store interface {
	Load(r *http.Request) Values
	Save(w http.ResponseWriter, v Values) error
}

type CookieOptions struct {
	Path   string
	Secure bool
	MaxAge time.Duration
}

// NewCookieStore signs both cookies with secret. Cookies that fail the
// signature check read as absent.
func NewCookieStore(secret []byte, opts CookieOptions) *CookieStore {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}

	codec := securecookie.New(secret, nil)
	codec.MaxAge(int(opts.MaxAge.Seconds()))

	return &CookieStore{
		codec: codec,
		opts:  opts,
	}
}

type CookieStore struct {
	codec *securecookie.SecureCookie
	opts  CookieOptions
}

func (s *CookieStore) Load(r *http.Request) Values {
	return Values{
		Root:      s.read(r, RootCookie),
		Discharge: s.read(r, DischargeCookie),
	}
}

func (s *CookieStore) Save(w http.ResponseWriter, v Values) error {
	if err := s.write(w, RootCookie, v.Root); err != nil {
		return err
	}
	return s.write(w, DischargeCookie, v.Discharge)
}

func (s *CookieStore) read(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}

	var value string
	if err := s.codec.Decode(name, c.Value, &value); err != nil {
		return ""
	}
	return value
}

// write sets the cookie, or expires it when value is empty.
func (s *CookieStore) write(w http.ResponseWriter, name, value string) error {
	cookie := &http.Cookie{
		Name:     name,
		Path:     s.opts.Path,
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if value == "" {
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
		return nil
	}

	encoded, err := s.codec.Encode(name, value)
	if err != nil {
		return err
	}
	cookie.Value = encoded
	cookie.MaxAge = int(s.opts.MaxAge.Seconds())
	http.SetCookie(w, cookie)
	return nil
}
