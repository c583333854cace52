package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	cacheVersioned   = "public, max-age=31536000, immutable"
	cacheUnversioned = "public, max-age=3600"
	cacheDev         = "no-cache"
)

// Assets serves the widget's static files. A file's content hash is both its ETag and the
// ?v= version templates put on its URL, so versioned URLs can be cached for a year.
type Assets struct {
	prefix   string
	dev      bool
	versions map[string]string
	files    http.Handler
}

// NewAssets hashes every file under dir and serves them below prefix. In dev mode
// nothing is cached.
func NewAssets(dir, prefix string, dev bool) *Assets {
	a := &Assets{
		prefix:   strings.TrimRight(prefix, "/"),
		dev:      dev,
		versions: map[string]string{},
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		sum, err := fileHash(path)
		if err != nil {
			return nil
		}
		if rel, err := filepath.Rel(dir, path); err == nil {
			a.versions["/"+filepath.ToSlash(rel)] = sum[:12]
		}
		return nil
	})
	a.files = http.StripPrefix(a.prefix, http.FileServer(http.Dir(dir)))
	return a
}

// URL is the versioned link to name, e.g. /assets/likebutton.js?v=1a2b3c4d5e6f.
func (a *Assets) URL(name string) string {
	name = "/" + strings.TrimLeft(name, "/")
	if v, ok := a.versions[name]; ok && !a.dev {
		return a.prefix + name + "?v=" + v
	}
	return a.prefix + name
}

func (a *Assets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Vary", "Accept-Encoding")
	version := a.versions[strings.TrimPrefix(r.URL.Path, a.prefix)]
	switch {
	case a.dev:
		w.Header().Set("Cache-Control", cacheDev)
	case version != "" && r.URL.Query().Get("v") == version:
		w.Header().Set("Cache-Control", cacheVersioned)
	default:
		w.Header().Set("Cache-Control", cacheUnversioned)
	}
	if version != "" && !a.dev {
		etag := `"` + version + `"`
		w.Header().Set("ETag", etag)
		if strings.Contains(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	a.files.ServeHTTP(w, r)
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
