package server

import (
	"embed"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// indexFile is served for the root and for any path that names no asset,
// so the viewer loads from any URL.
const indexFile = "index.html"

//go:embed static
var assets embed.FS

func viewer(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusNotFound)
		return
	}
	name := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
	if name == "" {
		name = indexFile
	}
	data, err := assets.ReadFile("static/" + name)
	if err != nil {
		name = indexFile
		if data, err = assets.ReadFile("static/" + name); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
	}
	c.Data(http.StatusOK, contentType(name), data)
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "text/html; charset=utf-8"
}
