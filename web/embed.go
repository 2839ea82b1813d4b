// Package web holds the embedded templates and static assets served by the
// application in release mode. In debug mode the same files are read from
// disk for hot reload.
package web

import "embed"

//go:embed templates static
var EmbeddedFS embed.FS
