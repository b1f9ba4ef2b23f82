package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the compiled frontend from the configured directory.
// Unknown /api paths always get a JSON 404.
func (s *Server) mountStatic() {
	indexPath := ""
	s.engine.NoRoute(func(c *gin.Context) {
		if indexPath == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			abortJSON(c, http.StatusNotFound, "not_found", "endpoint not found")
			return
		}
		c.File(indexPath)
	})

	dir := s.cfg.StaticDir
	if dir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", dir, "error", err)
		return
	}

	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.logger.Warn("index.html not found", "path", index, "error", err)
	} else {
		indexPath = index
		s.engine.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})
	}

	assetsDir := filepath.Join(dir, "assets")
	if _, err := os.Stat(assetsDir); err == nil {
		s.engine.StaticFS("/assets", gin.Dir(assetsDir, false))
	}

	favicon := filepath.Join(dir, "favicon.ico")
	if _, err := os.Stat(favicon); err == nil {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}
