package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxQueryRunes        = 500
	MaxFilenameBaseRunes = 96
	NoteExtension        = ".md"
	MaxNoteBytes         = 10 * 1024 * 1024
)

var (
	ErrEmptyQuery    = errors.New("search query cannot be empty")
	ErrEmptyFilename = errors.New("filename cannot be empty")
	ErrEmptyText     = errors.New("text must be a non-empty string")
	ErrTextTooLarge  = errors.New("text too large (max 10MB)")
)

var (
	queryStripper         = strings.NewReplacer("<", "", ">", "", `"`, "", `\`, "")
	disallowedFilenameRun = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
)

// SearchQuery trims the query, strips markup and quoting characters and
// bounds it to MaxQueryRunes.
func SearchQuery(raw string) (string, error) {
	cleaned := strings.TrimSpace(queryStripper.Replace(raw))
	if cleaned == "" {
		return "", ErrEmptyQuery
	}
	if utf8.RuneCountInString(cleaned) > MaxQueryRunes {
		cleaned = string([]rune(cleaned)[:MaxQueryRunes])
	}
	return cleaned, nil
}

// Filename maps raw to a safe note file name. It is idempotent:
// Filename(Filename(x)) == Filename(x).
func Filename(raw string) (string, error) {
	name := disallowedFilenameRun.ReplaceAllString(strings.TrimSpace(raw), "_")
	name = strings.Trim(name, ". ")
	if name == "" {
		return "", ErrEmptyFilename
	}

	base := strings.TrimSuffix(name, NoteExtension)
	if utf8.RuneCountInString(base) > MaxFilenameBaseRunes {
		base = string([]rune(base)[:MaxFilenameBaseRunes])
	}
	base = strings.TrimRight(base, ". ")
	if base == "" {
		base = "note"
	}
	return base + NoteExtension, nil
}

// NoteText rejects empty or oversized note bodies and drops NUL bytes and
// invalid UTF-8.
func NoteText(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyText
	}
	if len(raw) > MaxNoteBytes {
		return "", ErrTextTooLarge
	}
	cleaned := strings.ToValidUTF8(strings.ReplaceAll(raw, "\x00", ""), "")
	if strings.TrimSpace(cleaned) == "" {
		return "", ErrEmptyText
	}
	return cleaned, nil
}

// SafeTopic turns a topic into a file-name stem, e.g. for report notes.
func SafeTopic(topic string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(topic) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if utf8.RuneCountInString(out) > 50 {
		out = string([]rune(out)[:50])
	}
	if out == "" {
		return "research"
	}
	return out
}
