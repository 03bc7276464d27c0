package textx

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFilenameLength is the limit SanitizeFilename applies when
// maxLength is zero.
const DefaultMaxFilenameLength = 255

const invalidFilenameChars = `<>:"/\|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename makes name safe to use as a file name on Windows and
// Unix. Characters invalid on either system and control characters become
// replacement and surrounding spaces and dots are trimmed. Names longer
// than maxLength characters are shortened, keeping the extension. Zero
// maxLength means DefaultMaxFilenameLength. A result that is a Windows
// device name such as CON gets replacement as a prefix.
func SanitizeFilename(name, replacement string, maxLength int) (string, error) {
	if maxLength < 0 {
		return "", invalidArgument("max_length must be positive, got %d", maxLength)
	}
	if maxLength == 0 {
		maxLength = DefaultMaxFilenameLength
	}
	if strings.ContainsAny(replacement, invalidFilenameChars) {
		return "", invalidArgument("replacement %q contains invalid filename characters", replacement)
	}

	var b strings.Builder
	for _, r := range name {
		if r < 32 || r == 127 || strings.ContainsRune(invalidFilenameChars, r) {
			b.WriteString(replacement)
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), " .")

	if replacement != "" && strings.Trim(strings.ReplaceAll(out, replacement, ""), " .") == "" {
		out = ""
	}
	if out == "" {
		return "", invalidArgument("filename %q is empty or invalid after sanitizing", name)
	}

	out = truncateFilename(out, maxLength)
	if reservedFilename(out) {
		if replacement == "" {
			replacement = "_"
		}
		out = truncateFilename(replacement+out, maxLength)
	}
	if reservedFilename(out) {
		return "", invalidArgument("filename %q is a reserved name after sanitizing", name)
	}
	return out, nil
}

func reservedFilename(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	return reservedNames[strings.ToUpper(stem)]
}

// truncateFilename shortens name to maxLength runes, keeping the extension.
// Trailing spaces and dots left at the end of the cut stem are dropped.
func truncateFilename(name string, maxLength int) string {
	if utf8.RuneCountInString(name) <= maxLength {
		return name
	}
	ext := filepath.Ext(name)
	extLen := utf8.RuneCountInString(ext)
	if extLen == 0 || extLen >= maxLength {
		return strings.TrimRight(string([]rune(name)[:maxLength]), " .")
	}
	stem := []rune(strings.TrimSuffix(name, ext))
	return strings.TrimRight(string(stem[:maxLength-extLen]), " .") + ext
}
