package nomination

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/advisorhq/voicebridge/pkg/normalize"
)

// fieldRule pairs a field with the pattern that recognizes the agent
// asking about it.
type fieldRule struct {
	field   Field
	pattern *regexp.Regexp
}

// detectionRules is the ordered table of field detectors applied to the
// agent's question text. First match wins, and the order is load-bearing:
// email precedes the address rows because "email address" contains
// "address", the specific address rows precede the generic one, and
// nomination type precedes priority so that a bare "type" resolves to
// nomination type.
var detectionRules = []fieldRule{
	{FieldFullName, regexp.MustCompile(`(?i)\b(full name|first and last name|their name|nominee'?s name|name of the (nominee|beneficiary|person))\b`)},
	{FieldRelationship, regexp.MustCompile(`(?i)\b(relationship|related to)\b`)},
	{FieldDateOfBirth, regexp.MustCompile(`(?i)\b(date of birth|dob|born)\b`)},
	{FieldEmail, regexp.MustCompile(`(?i)\bemail\b`)},
	{FieldPhone, regexp.MustCompile(`(?i)\b(phone|mobile|contact number)\b`)},
	{FieldTaxFileNumber, regexp.MustCompile(`(?i)\b(tax file number|tfn|tax id|tax number)\b`)},
	{FieldAddressStreet, regexp.MustCompile(`(?i)\b(street|address line)\b`)},
	{FieldAddressSuburb, regexp.MustCompile(`(?i)\b(suburb|city|town)\b`)},
	{FieldAddressState, regexp.MustCompile(`(?i)\b(state|territory)\b`)},
	{FieldAddressPostcode, regexp.MustCompile(`(?i)\b(postcode|post code|postal code|zip)\b`)},
	{FieldAllocationPercentage, regexp.MustCompile(`(?i)\b(percentage|allocation|portion|share)\b`)},
	{FieldNominationType, regexp.MustCompile(`(?i)\b(binding|non.?binding|type)\b`)},
	{FieldPriority, regexp.MustCompile(`(?i)\b(priority|primary|contingent)\b`)},
	{FieldAddressStreet, regexp.MustCompile(`(?i)\b(address|live|reside)\b`)},
}

// confirmationRule pairs a field with the labeled pattern used by the
// one-shot bulk parse of a confirmation utterance.
type confirmationRule struct {
	field   Field
	pattern *regexp.Regexp
}

const valueCapture = `([^,.;\n]+)`

var confirmationRules = []confirmationRule{
	{FieldFullName, regexp.MustCompile(`(?i)\b(?:full )?name is ` + valueCapture)},
	{FieldRelationship, regexp.MustCompile(`(?i)\brelationship is ` + valueCapture)},
	{FieldDateOfBirth, regexp.MustCompile(`(?i)\bdate of birth is ` + valueCapture)},
	{FieldDateOfBirth, regexp.MustCompile(`(?i)\bborn on ` + valueCapture)},
	{FieldEmail, regexp.MustCompile(`(?i)\bemail(?: address)? is ` + valueCapture)},
	{FieldPhone, regexp.MustCompile(`(?i)\bphone(?: number)? is ` + valueCapture)},
	{FieldTaxFileNumber, regexp.MustCompile(`(?i)\btax file number is ` + valueCapture)},
	{FieldAddressStreet, regexp.MustCompile(`(?i)\bstreet(?: address)? is ` + valueCapture)},
	{FieldAddressStreet, regexp.MustCompile(`(?i)\blives at ` + valueCapture)},
	{FieldAddressSuburb, regexp.MustCompile(`(?i)\bsuburb is ` + valueCapture)},
	{FieldAddressState, regexp.MustCompile(`(?i)\bstate is ` + valueCapture)},
	{FieldAddressPostcode, regexp.MustCompile(`(?i)\bpostcode is ` + valueCapture)},
	{FieldAllocationPercentage, regexp.MustCompile(`(?i)\ballocation is ` + valueCapture)},
	{FieldNominationType, regexp.MustCompile(`(?i)\bnomination(?: type)? is ` + valueCapture)},
	{FieldPriority, regexp.MustCompile(`(?i)\bpriority is ` + valueCapture)},
}

var (
	confirmationTriggerRe = regexp.MustCompile(`(?i)\b(let me confirm|to confirm|here(?:'s| is) the information|confirm the details|i have the following)\b`)
	twoFactorRe           = regexp.MustCompile(`(?i)\b(two.?factor|2fa|verify your identity|identity verification|confirmation code)\b`)
	goodbyeRe             = regexp.MustCompile(`(?i)\b(goodbye|bye for now|take care|have a (great|good|nice) day|thank you for your time|end(ing)? the call)\b`)

	properNameRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	integerRe    = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// percentWords is consulted when the allocation answer carries no digits.
// Matching is on word boundaries so "ten" never fires inside "seventeen".
var percentWords = []struct {
	pattern *regexp.Regexp
	value   int
}{
	{regexp.MustCompile(`\bhundred\b`), 100},
	{regexp.MustCompile(`\bseventy five\b`), 75},
	{regexp.MustCompile(`\bfifty\b`), 50},
	{regexp.MustCompile(`\btwenty five\b`), 25},
	{regexp.MustCompile(`\btwenty\b`), 20},
	{regexp.MustCompile(`\bten\b`), 10},
}

// relationshipVocab is the fixed vocabulary the relationship answer is
// matched against; unmatched answers fall back to the verbatim text.
var relationshipVocab = []string{
	"spouse", "wife", "husband", "de facto", "partner",
	"daughter", "son", "child", "mother", "father", "parent",
	"sister", "brother", "sibling", "grandchild",
	"legal personal representative", "estate", "friend",
}

// Engine is the heuristic transcript-to-field extraction pipeline. It is
// deliberately pattern-based rather than model-based, and holds no state
// of its own: turn-taking state lives on the call connection.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// DetectField determines which nomination field, if any, the agent's
// utterance is asking about.
func (e *Engine) DetectField(agentText string) (Field, bool) {
	for _, rule := range detectionRules {
		if rule.pattern.MatchString(agentText) {
			return rule.field, true
		}
	}
	return "", false
}

// ExtractValue pulls a candidate value for field out of the user's answer
// and normalizes it. The second return value is false when the answer
// failed normalization and must not be persisted.
func (e *Engine) ExtractValue(field Field, userText string) (string, bool) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return "", false
	}

	switch field {
	case FieldFullName:
		if m := properNameRe.FindString(text); m != "" {
			return m, true
		}
		return text, true
	case FieldRelationship:
		lower := strings.ToLower(text)
		for _, rel := range relationshipVocab {
			if strings.Contains(lower, rel) {
				return rel, true
			}
		}
		return text, true
	case FieldDateOfBirth:
		return normalize.Date(text)
	case FieldEmail:
		return normalize.Email(text), true
	case FieldPhone, FieldTaxFileNumber, FieldAddressPostcode:
		return normalize.Digits(text)
	case FieldAllocationPercentage:
		if m := integerRe.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
		lower := strings.ToLower(text)
		for _, pw := range percentWords {
			if pw.pattern.MatchString(lower) {
				return strconv.Itoa(pw.value), true
			}
		}
		return "", false
	case FieldNominationType:
		lower := strings.ToLower(text)
		if strings.Contains(lower, "non-binding") || strings.Contains(lower, "non binding") {
			return "non_binding", true
		}
		if strings.Contains(lower, "binding") {
			return "binding", true
		}
		return "", false
	case FieldPriority:
		lower := strings.ToLower(text)
		if strings.Contains(lower, "contingent") || strings.Contains(lower, "backup") || strings.Contains(lower, "secondary") {
			return "contingent", true
		}
		if strings.Contains(lower, "primary") || strings.Contains(lower, "first") {
			return "primary", true
		}
		return "", false
	default:
		return text, true
	}
}

// ConfirmationResult carries the outcome of a bulk confirmation parse.
// Dropped lists fields whose captured value failed normalization; they
// are reported but never written.
type ConfirmationResult struct {
	Fields  FieldValues
	Dropped []Field
}

// ParseConfirmation runs the one-shot bulk parse over a terminal
// confirmation utterance. The boolean is false when the utterance is not
// a confirmation at all.
func (e *Engine) ParseConfirmation(agentText string) (ConfirmationResult, bool) {
	if !confirmationTriggerRe.MatchString(agentText) {
		return ConfirmationResult{}, false
	}

	res := ConfirmationResult{Fields: FieldValues{}}
	for _, rule := range confirmationRules {
		if _, done := res.Fields[rule.field]; done {
			continue
		}
		m := rule.pattern.FindStringSubmatch(agentText)
		if m == nil {
			continue
		}
		value, ok := e.ExtractValue(rule.field, strings.TrimSpace(m[1]))
		if !ok {
			res.Dropped = append(res.Dropped, rule.field)
			continue
		}
		res.Fields[rule.field] = value
	}
	return res, true
}

// IsTwoFactorRequest reports whether the agent utterance asks the client
// to complete the out-of-band identity confirmation step.
func (e *Engine) IsTwoFactorRequest(text string) bool {
	return twoFactorRe.MatchString(text)
}

// IsGoodbye reports whether the agent utterance sounds like the end of
// the conversation.
func (e *Engine) IsGoodbye(text string) bool {
	return goodbyeRe.MatchString(text)
}
