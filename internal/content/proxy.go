package content

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// NewProxy forwards protected requests to upstream with the paywall prefix
// removed and the paywall's own cookies stripped.
func NewProxy(upstream string, dropCookies ...string) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute url", upstream)
	}

	drop := make(map[string]bool, len(dropCookies))
	for _, name := range dropCookies {
		drop[name] = true
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			cookies := pr.In.Cookies()
			pr.Out.Header.Del("Cookie")
			for _, c := range cookies {
				if !drop[c.Name] {
					pr.Out.AddCookie(c)
				}
			}
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		r2.URL.RawPath = ""
		rp.ServeHTTP(w, r2)
	}), nil
}
