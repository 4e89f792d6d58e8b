// SPDX-License-Identifier: MIT

// Package web serves the embedded browser viewer. The viewer connects
// back over the /ws endpoint for frames and control.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html
var content embed.FS

// Handler returns an http.Handler that serves the viewer assets.
func Handler() http.Handler {
	return http.FileServer(http.FS(content))
}
