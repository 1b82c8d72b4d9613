package nomination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectField(t *testing.T) {
	e := NewEngine()

	cases := []struct {
		utterance string
		want      Field
	}{
		{"What is the full name of the person you'd like to nominate?", FieldFullName},
		{"And what is their relationship to you?", FieldRelationship},
		{"Could you tell me their date of birth?", FieldDateOfBirth},
		{"When were they born?", FieldDateOfBirth},
		{"What is their email address?", FieldEmail},
		{"What's the best phone number for them?", FieldPhone},
		{"Do you have their tax file number?", FieldTaxFileNumber},
		{"What street do they live on?", FieldAddressStreet},
		{"Which suburb is that in?", FieldAddressSuburb},
		{"And the state?", FieldAddressState},
		{"What's the postcode?", FieldAddressPostcode},
		{"What percentage would you like to allocate?", FieldAllocationPercentage},
		{"Would you like a binding or non-binding nomination?", FieldNominationType},
		{"Great, thank you for that.", ""},
	}

	for _, c := range cases {
		got, found := e.DetectField(c.utterance)
		if c.want == "" {
			assert.False(t, found, "utterance %q should not match", c.utterance)
			continue
		}
		require.True(t, found, "utterance %q should match", c.utterance)
		assert.Equal(t, c.want, got, "utterance %q", c.utterance)
	}
}

// The nomination-type row precedes the priority row, so an utterance
// naming only the bare word "type" resolves to nomination type, while
// priority phrasing without it resolves to priority.
func TestDetectFieldTypePrecedence(t *testing.T) {
	e := NewEngine()

	got, found := e.DetectField("What type would you prefer?")
	require.True(t, found)
	assert.Equal(t, FieldNominationType, got)

	got, found = e.DetectField("Should this nominee be primary or contingent?")
	require.True(t, found)
	assert.Equal(t, FieldPriority, got)
}

// Generic address phrasing maps to the street field, but only after the
// specific address rows had their chance.
func TestDetectFieldAddressOrdering(t *testing.T) {
	e := NewEngine()

	got, found := e.DetectField("What is their address?")
	require.True(t, found)
	assert.Equal(t, FieldAddressStreet, got)

	got, found = e.DetectField("What is their email address?")
	require.True(t, found)
	assert.Equal(t, FieldEmail, got)
}

func TestExtractValue(t *testing.T) {
	e := NewEngine()

	cases := []struct {
		field  Field
		answer string
		want   string
		ok     bool
	}{
		{FieldFullName, "Her name is Sarah Johnson", "Sarah Johnson", true},
		{FieldFullName, "um, sarah", "um, sarah", true},
		{FieldRelationship, "She's my daughter", "daughter", true},
		{FieldRelationship, "my old mate", "my old mate", true},
		{FieldDateOfBirth, "15th of March 1985", "1985-03-15", true},
		{FieldDateOfBirth, "sometime last year", "", false},
		{FieldEmail, "sarah at gmail dot com", "sarah@gmail.com", true},
		{FieldPhone, "0412 345 678", "0412345678", true},
		{FieldAddressPostcode, "three zero zero zero", "3000", true},
		{FieldAllocationPercentage, "50 percent", "50", true},
		{FieldAllocationPercentage, "fifty percent", "50", true},
		{FieldAllocationPercentage, "the whole lot", "", false},
		{FieldNominationType, "binding please", "binding", true},
		{FieldNominationType, "make it non-binding", "non_binding", true},
		{FieldPriority, "primary", "primary", true},
		{FieldPriority, "they're the backup", "contingent", true},
		{FieldAddressStreet, "12 Wattle Street", "12 Wattle Street", true},
	}

	for _, c := range cases {
		got, ok := e.ExtractValue(c.field, c.answer)
		assert.Equal(t, c.ok, ok, "%s / %q", c.field, c.answer)
		assert.Equal(t, c.want, got, "%s / %q", c.field, c.answer)
	}
}

// "ten" must only match as a whole word, never inside "seventeen".
func TestExtractAllocationWordBoundary(t *testing.T) {
	e := NewEngine()

	got, ok := e.ExtractValue(FieldAllocationPercentage, "ten percent")
	require.True(t, ok)
	assert.Equal(t, "10", got)

	_, ok = e.ExtractValue(FieldAllocationPercentage, "seventeen percent sounds right")
	assert.False(t, ok)
}

func TestParseConfirmation(t *testing.T) {
	e := NewEngine()

	utterance := "Let me confirm what I have. The full name is Sarah Johnson, " +
		"the relationship is daughter, the date of birth is 15th of March 1985, " +
		"the email is sarah at gmail dot com, the phone is 0412 345 678, " +
		"the allocation is 50, the nomination type is binding and the priority is primary."

	res, ok := e.ParseConfirmation(utterance)
	require.True(t, ok)

	want := FieldValues{
		FieldFullName:             "Sarah Johnson",
		FieldRelationship:         "daughter",
		FieldDateOfBirth:          "1985-03-15",
		FieldEmail:                "sarah@gmail.com",
		FieldPhone:                "0412345678",
		FieldAllocationPercentage: "50",
		FieldNominationType:       "binding",
		FieldPriority:             "primary",
	}
	assert.Equal(t, want, res.Fields)
	assert.Empty(t, res.Dropped)
}

func TestParseConfirmationDropsUnnormalizable(t *testing.T) {
	e := NewEngine()

	res, ok := e.ParseConfirmation(
		"Let me confirm. The name is Sarah Johnson and the date of birth is sometime last year.")
	require.True(t, ok)

	assert.Equal(t, "Sarah Johnson", res.Fields[FieldFullName])
	assert.NotContains(t, res.Fields, FieldDateOfBirth)
	assert.Contains(t, res.Dropped, FieldDateOfBirth)
}

func TestParseConfirmationNotTriggered(t *testing.T) {
	e := NewEngine()
	_, ok := e.ParseConfirmation("What is the full name?")
	assert.False(t, ok)
}

func TestSideChannelTriggers(t *testing.T) {
	e := NewEngine()

	assert.True(t, e.IsTwoFactorRequest("Please check your app to verify your identity."))
	assert.True(t, e.IsTwoFactorRequest("We'll send a two-factor prompt now."))
	assert.False(t, e.IsTwoFactorRequest("What is the postcode?"))

	assert.True(t, e.IsGoodbye("Thanks so much, goodbye!"))
	assert.True(t, e.IsGoodbye("Have a great day."))
	assert.False(t, e.IsGoodbye("What is their relationship to you?"))
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusEmpty, DeriveStatus(FieldValues{}))

	assert.Equal(t, StatusPartial, DeriveStatus(FieldValues{
		FieldEmail: "sarah@gmail.com",
	}))

	assert.Equal(t, StatusPartial, DeriveStatus(FieldValues{
		FieldFullName:     "Sarah Johnson",
		FieldRelationship: "daughter",
	}))

	assert.Equal(t, StatusComplete, DeriveStatus(FieldValues{
		FieldFullName:             "Sarah Johnson",
		FieldRelationship:         "daughter",
		FieldAllocationPercentage: "50",
	}))

	assert.Equal(t, StatusComplete, DeriveStatus(FieldValues{
		FieldFullName:             "Sarah Johnson",
		FieldRelationship:         "daughter",
		FieldAllocationPercentage: "50",
		FieldEmail:                "sarah@gmail.com",
		FieldAddressPostcode:      "3000",
	}))
}
