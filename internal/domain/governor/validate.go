package governor

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError marks a malformed CandidateIntent. Rejected before any
// risk logic runs, never silently coerced.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid candidate intent: %s %s", e.Field, e.Detail)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(intentStructLevel, CandidateIntent{})
	return v
}

// intentStructLevel enforces cross-field rules the tags cannot express: the
// stop must sit on the loss side of entry for the stated direction, and the
// strategy tag must be one of the six playbooks.
func intentStructLevel(sl validator.StructLevel) {
	intent := sl.Current().Interface().(CandidateIntent)

	switch intent.Direction {
	case Long:
		if intent.Stop >= intent.Entry {
			sl.ReportError(intent.Stop, "Stop", "Stop", "stopside", "")
		}
	case Short:
		if intent.Stop <= intent.Entry {
			sl.ReportError(intent.Stop, "Stop", "Stop", "stopside", "")
		}
	}

	known := false
	for _, s := range AllStrategies {
		if intent.Strategy == s {
			known = true
			break
		}
	}
	if !known {
		sl.ReportError(intent.Strategy, "Strategy", "Strategy", "playbook", "")
	}
}

// ValidateIntent checks a candidate intent, returning a *ValidationError for
// the first violation found.
func ValidateIntent(intent CandidateIntent) error {
	err := validate.Struct(intent)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ValidationError{Field: "intent", Detail: err.Error()}
	}
	fe := verrs[0]
	detail := fmt.Sprintf("failed %q", fe.Tag())
	switch fe.Tag() {
	case "stopside":
		detail = "stop must be below entry for LONG and above entry for SHORT"
	case "playbook":
		detail = "unknown strategy tag"
	}
	return &ValidationError{Field: fe.Field(), Detail: detail}
}
