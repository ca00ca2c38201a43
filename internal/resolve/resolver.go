// ABOUTME: Validation state resolver combining raw status with trust policy
// ABOUTME: Implements the strict precedence chain ending in the final state
package resolve

import (
	"github.com/gillisandrew/lodestone/internal/classify"
	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/trust"
)

// Resolve computes the final validation state from the engine's raw verdict,
// the signing chain evidence, the structural problems recorded so far, and a
// trust policy snapshot (nil when no trust is configured).
//
// The rules form a strict precedence chain; a later rule never overrides an
// earlier one:
//
//  1. a malformed verdict or a fatal-class structural problem is Invalid
//  2. a missing signature is NoSignature
//  3. an invalid signature is Invalid
//  4. a valid signature without a policy is Valid
//  5. a valid signature with a policy is Trusted when the signing chain
//     reaches the policy's anchors or allowed intermediates, otherwise Valid
//
// Resolve never fails. Absence of trust or of a signature degrades the state
// instead of raising an error, and no cryptographic checks are repeated here;
// an expired certificate, for example, already arrived as signature_invalid.
func Resolve(status domain.RawStatus, evidence domain.TrustEvidence, problems []domain.StructuralProblem, policy *trust.Policy) domain.ValidationState {
	if status == domain.RawMalformed || !status.Known() || classify.HasFatalClass(problems) {
		return domain.StateInvalid
	}
	if status == domain.RawSignatureMissing {
		return domain.StateNoSignature
	}
	if status == domain.RawSignatureInvalid {
		return domain.StateInvalid
	}

	if policy == nil {
		return domain.StateValid
	}
	if chainConfirmed(evidence, policy) {
		return domain.StateTrusted
	}
	return domain.StateValid
}

// chainConfirmed reports whether any certificate in the signing chain is one
// of the policy's anchors or allowed intermediates. Matching is purely by
// fingerprint; the chain's cryptographic validity was established upstream.
func chainConfirmed(evidence domain.TrustEvidence, policy *trust.Policy) bool {
	for _, der := range evidence.CertificateChain {
		if len(der) == 0 {
			continue
		}
		if policy.MatchesAnchor(der) || policy.MatchesIntermediate(der) {
			return true
		}
	}
	return false
}
