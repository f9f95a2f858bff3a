package domain

import "fmt"

// BloodType is the canonical 8-valued ABO/Rh type. The display string ("O-",
// "AB+", ...) is the single wire and storage representation; parse once at the
// boundary, never compare raw strings elsewhere.
type BloodType string

const (
	OPositive  BloodType = "O+"
	ONegative  BloodType = "O-"
	APositive  BloodType = "A+"
	ANegative  BloodType = "A-"
	BPositive  BloodType = "B+"
	BNegative  BloodType = "B-"
	ABPositive BloodType = "AB+"
	ABNegative BloodType = "AB-"
)

// BloodTypes lists all valid types in a stable order.
var BloodTypes = []BloodType{
	OPositive, ONegative,
	APositive, ANegative,
	BPositive, BNegative,
	ABPositive, ABNegative,
}

// ParseBloodType validates a display string. Unknown values are a validation
// error, never coerced.
func ParseBloodType(s string) (BloodType, error) {
	bt := BloodType(s)
	switch bt {
	case OPositive, ONegative, APositive, ANegative,
		BPositive, BNegative, ABPositive, ABNegative:
		return bt, nil
	}
	return "", fmt.Errorf("%w: unknown blood type %q", ErrValidation, s)
}

func (bt BloodType) String() string { return string(bt) }

// compatibleRecipients maps a donor type to the recipient types it may serve.
var compatibleRecipients = map[BloodType][]BloodType{
	ONegative:  {OPositive, ONegative, APositive, ANegative, BPositive, BNegative, ABPositive, ABNegative},
	OPositive:  {OPositive, APositive, BPositive, ABPositive},
	ANegative:  {ANegative, APositive, ABNegative, ABPositive},
	APositive:  {APositive, ABPositive},
	BNegative:  {BNegative, BPositive, ABNegative, ABPositive},
	BPositive:  {BPositive, ABPositive},
	ABNegative: {ABNegative, ABPositive},
	ABPositive: {ABPositive},
}

// Compatible reports whether blood of the donor type may be transfused into a
// recipient of the given type.
func Compatible(donor, recipient BloodType) bool {
	for _, r := range compatibleRecipients[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}

// Match priorities used to rank compatible donor/request pairs.
const (
	PriorityExact     = 1
	PriorityUniversal = 2
	PriorityOther     = 3
)

// MatchPriority ranks a compatible pair: exact type match first, then the
// universal donor (O-), then any other compatible combination. Incompatible
// pairs return 0.
func MatchPriority(donor, recipient BloodType) int {
	if !Compatible(donor, recipient) {
		return 0
	}
	switch {
	case donor == recipient:
		return PriorityExact
	case donor == ONegative:
		return PriorityUniversal
	default:
		return PriorityOther
	}
}

// CompatibleRecipients returns the recipient types a donor type may serve.
// The returned slice is shared; callers must not mutate it.
func CompatibleRecipients(donor BloodType) []BloodType {
	return compatibleRecipients[donor]
}
