package textutil

import (
	"strings"
	"unicode"
)

// unsafeFileNameRunes are removed or replaced by SanitizeFileName.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces path separators and shell-hostile characters in
// a single file name. Control characters are dropped.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
}

// SanitizeToken lowercases value and maps every rune outside [a-z0-9_-] to
// an underscore. Runs of underscores collapse to one. Empty results become
// "unknown".
func SanitizeToken(value string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
			}
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// ExpandTemplate replaces each {key} in template with the sanitized token of
// its value. Unknown placeholders are left untouched.
func ExpandTemplate(template string, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", SanitizeToken(value))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
