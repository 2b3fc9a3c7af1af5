package reading

import (
	"fmt"
	"strings"
)

// Fixed prompt fragments. ComposePrompt must stay byte-deterministic for
// identical attribute sets, so nothing here may depend on time or
// randomness.
const (
	promptClauseName         = "The person's name is %s."
	promptClauseAge          = "The person is %d years old."
	promptClauseRelationship = "Their relationship status is %s."
	promptClauseEmployment   = "Their employment status is %s."

	promptClosing = "Based on this information and the attached palm photos, give a personal fortune-telling interpretation covering love, career, and overall flow of life."

	promptFallback = "Give a personal fortune-telling interpretation based on the attached palm photos, covering love, career, and overall flow of life."
)

// Policy and style directives appended verbatim to every prompt.
var promptDirectives = []string{
	"Answer in Korean.",
	"Use a warm, conversational tone.",
	"Do not mention that you are an AI model.",
}

// ComposePrompt builds the single instruction string sent to the model from
// the normalized attributes. Attributes are rendered in fixed order (name,
// age, relationship status, employment status); absent attributes are
// omitted. When no attribute is present the minimal fallback instruction is
// used instead.
func ComposePrompt(attrs Attributes) string {
	var clauses []string

	if attrs.Name != "" {
		clauses = append(clauses, fmt.Sprintf(promptClauseName, attrs.Name))
	}
	if attrs.Age > 0 {
		clauses = append(clauses, fmt.Sprintf(promptClauseAge, attrs.Age))
	}
	if attrs.RelationshipStatus != "" {
		clauses = append(clauses, fmt.Sprintf(promptClauseRelationship, attrs.RelationshipStatus))
	}
	if attrs.EmploymentStatus != "" {
		clauses = append(clauses, fmt.Sprintf(promptClauseEmployment, attrs.EmploymentStatus))
	}

	var core string
	if len(clauses) == 0 {
		core = promptFallback
	} else {
		core = strings.Join(clauses, " ") + " " + promptClosing
	}

	return core + " " + strings.Join(promptDirectives, " ")
}
