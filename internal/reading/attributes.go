package reading

import (
	"log"
	"time"

	"fortuna/internal/models"
)

const birthdateLayout = "2006-01-02"

// Attributes is the normalized set of user-facing attributes extracted from
// a reading. Every field is either a meaningful value or its zero value;
// no placeholder strings.
type Attributes struct {
	Name               string
	Age                int // 0 means absent or not meaningful
	RelationshipStatus string
	EmploymentStatus   string
}

// NormalizeAttributes extracts and derives the attribute set from a raw
// reading. Pure: the only side effect is advisory logging. A malformed
// birthdate never fails the reading; the age is simply absent.
func NormalizeAttributes(r *models.Reading, now time.Time) Attributes {
	attrs := Attributes{
		Name:               r.Name,
		RelationshipStatus: r.RelationshipStatus,
		EmploymentStatus:   r.EmploymentStatus,
	}

	if r.Birthdate != "" {
		attrs.Age = ageFromBirthdate(r.Birthdate, now)
	}

	log.Printf("[READING] Normalized attributes for %s: name=%q age=%d relationship=%q employment=%q",
		r.ID.Hex(), attrs.Name, attrs.Age, attrs.RelationshipStatus, attrs.EmploymentStatus)

	return attrs
}

// ageFromBirthdate computes calendar age as of now: the year difference,
// decremented by one if (now.month, now.day) precedes (birth.month,
// birth.day). Returns 0 when the birthdate cannot be parsed or the result
// is not a positive age.
func ageFromBirthdate(birthdate string, now time.Time) int {
	birth, err := time.Parse(birthdateLayout, birthdate)
	if err != nil {
		log.Printf("[READING] Unparseable birthdate %q: %v", birthdate, err)
		return 0
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}

	if age <= 0 {
		return 0
	}
	return age
}
