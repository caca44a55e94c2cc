// Package content serves what sits behind the paywall.
package content

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stemstr/paywall/internal/mimes"
)

var ErrNotFound = errors.New("content not found")

type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Store reads protected objects by slash separated name.
type Store interface {
	Get(ctx context.Context, name string) (*Object, error)
}

// Handler serves objects from store. It expects to be mounted on a chi
// wildcard route; the wildcard is the object name.
func Handler(store Store, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := objectName(r)
		if !ok {
			http.Error(w, ErrNotFound.Error(), http.StatusNotFound)
			return
		}

		obj, err := store.Get(r.Context(), name)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("get content failed", zap.String("name", name), zap.Error(err))
			http.Error(w, "unable to read content", http.StatusInternalServerError)
			return
		}
		defer obj.Body.Close()

		ctype := obj.ContentType
		if ctype == "" {
			ctype = mimes.FromFilename(name)
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "private, no-store")

		if rs, ok := obj.Body.(io.ReadSeeker); ok {
			http.ServeContent(w, r, name, obj.ModTime, rs)
			return
		}

		if obj.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		if !obj.ModTime.IsZero() {
			w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
		}
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, obj.Body); err != nil {
			log.Warn("copy content failed", zap.String("name", name), zap.Error(err))
		}
	})
}

// objectName cleans the wildcard and rejects names that would leave the
// content root.
func objectName(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "*")
	if raw == "" {
		return "", false
	}
	name := path.Clean("/" + raw)[1:]
	if name == "" || name == "." {
		return "", false
	}
	return name, true
}
