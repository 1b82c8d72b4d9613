package nomination

// Field identifies one structured slot of a beneficiary nomination draft.
// Values double as the persisted column names.
type Field string

const (
	FieldFullName             Field = "full_name"
	FieldRelationship         Field = "relationship"
	FieldDateOfBirth          Field = "date_of_birth"
	FieldEmail                Field = "email"
	FieldPhone                Field = "phone"
	FieldTaxFileNumber        Field = "tax_file_number"
	FieldAddressStreet        Field = "address_street"
	FieldAddressSuburb        Field = "address_suburb"
	FieldAddressState         Field = "address_state"
	FieldAddressPostcode      Field = "address_postcode"
	FieldAllocationPercentage Field = "allocation_percentage"
	FieldNominationType       Field = "nomination_type"
	FieldPriority             Field = "priority"
)

// AllFields lists every draft field in persisted-column order.
var AllFields = []Field{
	FieldFullName,
	FieldRelationship,
	FieldDateOfBirth,
	FieldEmail,
	FieldPhone,
	FieldTaxFileNumber,
	FieldAddressStreet,
	FieldAddressSuburb,
	FieldAddressState,
	FieldAddressPostcode,
	FieldAllocationPercentage,
	FieldNominationType,
	FieldPriority,
}

// FieldValues holds a set of extracted, already-normalized field values.
type FieldValues map[Field]string

// Status is the coarse completeness indicator derived from a draft.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusPartial  Status = "partial"
	StatusComplete Status = "complete"
)

// requiredFields are the slots a nomination cannot be acted on without.
var requiredFields = []Field{FieldFullName, FieldRelationship, FieldAllocationPercentage}

// DeriveStatus recomputes the extraction status for a draft's current
// field values. Complete means every required field is populated,
// regardless of the rest.
func DeriveStatus(values FieldValues) Status {
	populated := 0
	for _, v := range values {
		if v != "" {
			populated++
		}
	}
	if populated == 0 {
		return StatusEmpty
	}
	for _, f := range requiredFields {
		if values[f] == "" {
			return StatusPartial
		}
	}
	return StatusComplete
}

// HasIdentifyingData reports whether the draft captured at least one of
// the minimal identifying fields, which decides whether a finished call
// counts as completed or cancelled.
func HasIdentifyingData(values FieldValues) bool {
	for _, f := range []Field{FieldFullName, FieldDateOfBirth, FieldPhone, FieldEmail} {
		if values[f] != "" {
			return true
		}
	}
	return false
}
