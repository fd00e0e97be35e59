package coordinator

import (
	"fmt"
	"regexp"

	"synckit/internal/obs/errs"
)

var docIDPattern = regexp.MustCompile(`^[A-Za-z0-9_:\-]+$`)

// Validator checks a document id against §6's format contract. The
// coordinator holds one as a field (New builds it with DefaultValidator)
// rather than consulting a package-level global, per §9's
// "singletons → explicit context" note.
type Validator func(docID string) error

// DefaultValidator returns the regex + length validator from §6:
// ^[A-Za-z0-9_:\-]+$, length <= maxLen.
func DefaultValidator(maxLen int) Validator {
	return func(docID string) error {
		if docID == "" {
			return errs.Protocol("document id must not be empty")
		}
		if len(docID) > maxLen {
			return errs.Protocol(fmt.Sprintf("document id exceeds max length %d", maxLen))
		}
		if !docIDPattern.MatchString(docID) {
			return errs.Protocol(fmt.Sprintf("invalid document id %q", docID))
		}
		return nil
	}
}
