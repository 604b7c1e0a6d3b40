// Package migrations embeds the baseline migration scripts shipped with the
// binary, laid out the way storage.Store expects them.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed scripts
var files embed.FS

func FS() fs.FS {
	return files
}
