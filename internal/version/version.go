// Package version exposes the steptest release string.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the embedded release version, without surrounding whitespace.
func Get() string {
	return strings.TrimSpace(versionContent)
}
