package portal

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

var contentTypes = map[string]string{
	".htm":  "text/html",
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".json": "application/json",
}

func contentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "text/plain"
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	p := path.Clean(r.URL.Path)
	if p == "/" {
		p = "/index.html"
	}
	data, err := fs.ReadFile(s.Assets, strings.TrimPrefix(p, "/"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read asset", "path", p, "error", err)
		}
		if p == "/index.html" {
			http.Error(w, "index.html not found", http.StatusInternalServerError)
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType(p))
	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}

// LogAssets logs every file in the asset store.
func LogAssets(logger *slog.Logger, assets fs.FS) {
	count := 0
	err := fs.WalkDir(assets, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		logger.Info("asset", "path", "/"+name, "bytes", size)
		count++
		return nil
	})
	if err != nil {
		logger.Error("failed to list assets", "error", err)
		return
	}
	if count == 0 {
		logger.Warn("asset store is empty")
	}
}
