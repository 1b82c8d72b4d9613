package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7,
	"aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	isoDateRe       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ordinalSuffixRe = regexp.MustCompile(`^(\d{1,2})(st|nd|rd|th)?$`)
)

// Date converts a spoken date fragment into canonical YYYY-MM-DD form.
// Already-canonical input passes through unchanged. Parsing is anchored
// on a month name: without one the fragment is considered unparseable
// and the second return value is false. The day may be a digit ("15th")
// or spelled out ("fifteenth", "twenty first"); the year may be four
// digits or spelled ("nineteen eighty five", "two thousand and four").
func Date(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if isoDateRe.MatchString(raw) {
		return raw, true
	}

	tokens := strings.Fields(strings.ToLower(raw))
	for i := range tokens {
		tokens[i] = strings.Trim(tokens[i], ",.!?;:")
	}

	month := 0
	monthIdx := -1
	for i, tok := range tokens {
		if m, ok := months[tok]; ok {
			month = m
			monthIdx = i
			break
		}
	}
	if month == 0 {
		return "", false
	}

	used := map[int]bool{monthIdx: true}
	year := findYear(tokens, used)
	day := findDay(tokens, used)
	if day == 0 || year == 0 {
		return "", false
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// findYear locates a year in the token stream, consuming the tokens it
// claims so spelled-year words are not later mistaken for a day.
func findYear(tokens []string, used map[int]bool) int {
	// Digit year first.
	for i, tok := range tokens {
		if used[i] {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil && n >= 1000 && n <= 2999 {
			used[i] = true
			return n
		}
	}
	// Spelled "nineteen eighty five" style.
	for i, tok := range tokens {
		if used[i] || tok != "nineteen" || i+1 >= len(tokens) {
			continue
		}
		tens, ok := tensWords[tokens[i+1]]
		if !ok {
			continue
		}
		year := 1900 + tens
		used[i], used[i+1] = true, true
		if i+2 < len(tokens) {
			if ones, ok := onesWords[tokens[i+2]]; ok && ones < 10 {
				year += ones
				used[i+2] = true
			}
		}
		return year
	}
	// Spelled "two thousand [and] [twenty] [five]" style.
	for i, tok := range tokens {
		if used[i] || tok != "two" || i+1 >= len(tokens) || tokens[i+1] != "thousand" {
			continue
		}
		year := 2000
		used[i], used[i+1] = true, true
		j := i + 2
		if j < len(tokens) && tokens[j] == "and" {
			j++
		}
		if j < len(tokens) {
			if tens, ok := tensWords[tokens[j]]; ok {
				year += tens
				used[j] = true
				j++
			}
		}
		if j < len(tokens) {
			if ones, ok := onesWords[tokens[j]]; ok && ones < 20 {
				year += ones
				used[j] = true
			}
		}
		return year
	}
	return 0
}

// findDay locates a day-of-month among the tokens the year did not claim.
func findDay(tokens []string, used map[int]bool) int {
	for i, tok := range tokens {
		if used[i] {
			continue
		}
		if m := ordinalSuffixRe.FindStringSubmatch(tok); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n >= 1 && n <= 31 {
				return n
			}
		}
		if v, ok := wordValue(tok); ok {
			// "twenty first" / "twenty one" compounds.
			if _, isTens := tensWords[tok]; isTens && i+1 < len(tokens) && !used[i+1] {
				if rest, ok := wordValue(tokens[i+1]); ok && rest < 10 {
					v += rest
				}
			}
			if v >= 1 && v <= 31 {
				return v
			}
		}
	}
	return 0
}
