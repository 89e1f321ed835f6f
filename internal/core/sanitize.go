package core

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips every tag and attribute; message text is stored and
// re-broadcast as plain content only.
var strict = bluemonday.StrictPolicy()

func SanitizeText(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
