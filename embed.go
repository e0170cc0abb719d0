package main

import (
	"embed"
	"io/fs"
)

// The remote page and its assets ship inside the binary.
//
//go:embed web/templates/*.tmpl web/static
var webFS embed.FS

// Templates holds remote.html.tmpl.
func Templates() fs.FS { return mustSub("web/templates") }

// Static is served under /static/.
func Static() fs.FS { return mustSub("web/static") }

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(webFS, dir)
	if err != nil {
		panic("embedded web assets: " + err.Error())
	}
	return sub
}
