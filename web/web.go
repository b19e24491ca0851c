// Package web holds the embedded static assets for the entry page.
// go:embed compiles the template into the binary, so the server has no
// runtime dependency on the working directory.
package web

import "embed"

//go:embed index.html
var FS embed.FS
