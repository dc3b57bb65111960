// Package scripts embeds the per-language extraction scripts into the
// rocketindex binary, so `rocketindex index` works without a source
// checkout on $PATH (SPEC_FULL §6.1, mirroring the teacher's
// `scripts.FS`/`WithScriptsFS` embedding).
package scripts

import (
	"embed"
	"io/fs"
)

//go:embed extract/*.risor
var embedded embed.FS

// FS holds the extraction scripts under "extract/", the layout
// runtime.ExtractionScriptPath addresses, ready to pass to
// pipeline.WithScriptsFS.
var FS fs.FS = embedded
