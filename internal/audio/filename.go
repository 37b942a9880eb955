package audio

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeFilename strips any directory components from name and replaces
// whitespace runs with a single underscore.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		name = ""
	}
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" {
		return "recording.wav"
	}
	return name
}

// StoredName returns the on-disk name for an upload received at now.
func StoredName(now time.Time, original string) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), SanitizeFilename(original))
}
