package normalize

import "strings"

// Closed vocabulary of spelled numbers. This is deliberately not a general
// numeric parser: it knows ones, tens and the single compound "two thousand",
// which covers how callers actually speak days, years and percentages.
var onesWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// ordinalWords maps spoken ordinals to their cardinal value, used for
// day-of-month phrasing ("the fifteenth of March").
var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"eleventh": 11, "twelfth": 12, "thirteenth": 13, "fourteenth": 14,
	"fifteenth": 15, "sixteenth": 16, "seventeenth": 17, "eighteenth": 18,
	"nineteenth": 19, "twentieth": 20, "thirtieth": 30,
}

// WordNumber converts a spelled-out number into its integer value.
// Tokens are summed left to right, so "twenty five" yields 25 and
// "two thousand eighteen" yields 2018. Returns false when no token in
// the input belongs to the vocabulary.
func WordNumber(text string) (int, bool) {
	tokens := strings.Fields(strings.ToLower(text))
	total := 0
	matched := false
	for i := 0; i < len(tokens); i++ {
		tok := strings.Trim(tokens[i], ",.!?;:")
		if tok == "and" {
			continue
		}
		if tok == "two" && i+1 < len(tokens) && strings.Trim(tokens[i+1], ",.!?;:") == "thousand" {
			total += 2000
			matched = true
			i++
			continue
		}
		if v, ok := onesWords[tok]; ok {
			total += v
			matched = true
			continue
		}
		if v, ok := tensWords[tok]; ok {
			total += v
			matched = true
			continue
		}
		if v, ok := ordinalWords[tok]; ok {
			total += v
			matched = true
			continue
		}
	}
	if !matched {
		return 0, false
	}
	return total, true
}

func wordValue(tok string) (int, bool) {
	if v, ok := onesWords[tok]; ok {
		return v, true
	}
	if v, ok := tensWords[tok]; ok {
		return v, true
	}
	if v, ok := ordinalWords[tok]; ok {
		return v, true
	}
	return 0, false
}
