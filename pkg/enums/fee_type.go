package enums

// FeeType labels how the service fee was framed to the creator. The payout
// arithmetic is identical for both; only the label differs.
type FeeType string

const (
	FeeTypeMandatory FeeType = "mandatory"
	FeeTypeVoluntary FeeType = "voluntary"
)

// String implements fmt.Stringer.
func (f FeeType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FeeType.
func (f FeeType) IsValid() bool {
	return f == FeeTypeMandatory || f == FeeTypeVoluntary
}
