package normalize

import (
	"regexp"
	"strings"
)

var (
	spokenAtRe  = regexp.MustCompile(`\s+at\s+`)
	spokenDotRe = regexp.MustCompile(`\s+dot\s+`)
	separatorRe = regexp.MustCompile(`[\s\-()]+`)
	digitRunRe  = regexp.MustCompile(`^[\d\s\-()]+$`)
)

var digitWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"oh": "0",
}

// Email rewrites a spoken email address into machine form: lower-cased,
// "at"/"dot" tokens replaced with their symbols, whitespace removed.
func Email(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = spokenAtRe.ReplaceAllString(s, "@")
	s = spokenDotRe.ReplaceAllString(s, ".")
	return strings.ReplaceAll(s, " ", "")
}

// Digits canonicalizes phone numbers, tax file numbers and postcodes.
// Input that is already numeric just loses its separators. Otherwise
// each spelled digit word becomes its digit; multi-digit words like
// "twenty" are not expanded here, so anything unrecognized is dropped.
// Returns false when no digits could be recovered at all.
func Digits(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if digitRunRe.MatchString(raw) {
		return separatorRe.ReplaceAllString(raw, ""), true
	}

	var b strings.Builder
	for _, tok := range strings.Fields(strings.ToLower(raw)) {
		tok = strings.Trim(tok, ",.!?;:")
		if d, ok := digitWords[tok]; ok {
			b.WriteString(d)
			continue
		}
		for _, r := range tok {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}
