// ABOUTME: Failure classifier mapping engine errors onto the problem taxonomy
// ABOUTME: Decides which defects degrade a report and which abort the call
package classify

import (
	"errors"
	"fmt"

	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/engine"
)

// Classify maps an engine failure onto either a recoverable structural
// problem or a fatal error. Exactly one of the two results is non-nil.
// Failures without a recognized code classify as fatal so that unreadable
// input never produces a half-trusted report.
func Classify(err error) (*domain.StructuralProblem, *domain.FatalError) {
	var engineErr *engine.Error
	if !errors.As(err, &engineErr) {
		return nil, &domain.FatalError{
			Code:   domain.FatalUnreadableAsset,
			Detail: "verification engine failed",
			Err:    err,
		}
	}

	switch engineErr.Code {
	case engine.CodeMalformedRegion:
		problem := domain.Problem(domain.ProblemMalformedRegion, engineErr.Path, "%s", engineErr.Detail)
		return &problem, nil
	case engine.CodeUnsupportedVersion:
		problem := domain.Problem(domain.ProblemUnsupportedVersion, engineErr.Path, "%s", engineErr.Detail)
		return &problem, nil
	case engine.CodeUnsupportedEncoding:
		return nil, &domain.FatalError{
			Code:   domain.FatalUnsupportedEncoding,
			Detail: engineErr.Detail,
			Err:    engineErr,
		}
	case engine.CodeUnreadableContainer:
		return nil, &domain.FatalError{
			Code:   domain.FatalUnreadableAsset,
			Detail: engineErr.Detail,
			Err:    engineErr,
		}
	default:
		return nil, &domain.FatalError{
			Code:   domain.FatalUnreadableAsset,
			Detail: fmt.Sprintf("unrecognized engine failure %q", engineErr.Code),
			Err:    engineErr,
		}
	}
}

// IsFatalClass reports whether a structural problem class undermines the
// integrity of the whole manifest, forcing the validation state to Invalid.
func IsFatalClass(code domain.ProblemCode) bool {
	return code == domain.ProblemMalformedRegion
}

// HasFatalClass reports whether any problem in the list is fatal-class.
func HasFatalClass(problems []domain.StructuralProblem) bool {
	for _, problem := range problems {
		if IsFatalClass(problem.Code) {
			return true
		}
	}
	return false
}
