// ABOUTME: Verification result decoding service - the default engine implementation
// ABOUTME: Decodes result documents captured from an upstream cryptographic engine
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gillisandrew/lodestone/internal/domain"
)

// maxSupportedClaimVersion is the newest manifest claim version this service
// understands. Newer manifests are salvaged best-effort and flagged.
const maxSupportedClaimVersion = 2

// Service decodes verification result documents produced by an upstream
// cryptographic engine run. It performs no cryptography itself; the signature
// and chain verdicts inside the document are taken as given.
type Service struct{}

// NewService creates a verification result decoding service
func NewService() *Service {
	return &Service{}
}

// Verify decodes data as a verification result document. The MIME type, when
// supplied, must describe a JSON document; this service cannot read media
// containers directly.
//
// On recoverable defects Verify returns the salvaged partial result together
// with an *Error describing the defect. Fatal defects return a nil result.
// Assets carrying no provenance data return domain.ErrNoProvenance.
func (s *Service) Verify(ctx context.Context, data []byte, mimeType string) (*domain.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !acceptableMediaType(mimeType) {
		return nil, &Error{
			Code:   CodeUnsupportedEncoding,
			Detail: fmt.Sprintf("cannot decode %q, expected a JSON verification result document", mimeType),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.ErrNoProvenance
	}

	var result *domain.VerificationResult
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&result); err != nil {
		return nil, &Error{
			Code:   CodeUnreadableContainer,
			Detail: "verification result document could not be parsed",
			Err:    err,
		}
	}
	if dec.More() {
		return nil, &Error{
			Code:   CodeUnreadableContainer,
			Detail: "trailing data after verification result document",
		}
	}

	if result == nil || isEmptyResult(result) {
		return nil, domain.ErrNoProvenance
	}

	normalizeStatus(result)

	if active, ok := result.Manifests[result.ActiveManifest]; ok && active != nil {
		if active.ClaimVersion > maxSupportedClaimVersion {
			return result, &Error{
				Code:   CodeUnsupportedVersion,
				Detail: fmt.Sprintf("claim version %d exceeds supported version %d", active.ClaimVersion, maxSupportedClaimVersion),
				Path:   "$." + result.ActiveManifest,
			}
		}
	}

	return result, nil
}

// normalizeStatus folds a missing or unrecognized status into the malformed
// verdict so the resolver's precedence chain handles it uniformly.
func normalizeStatus(result *domain.VerificationResult) {
	if result.Status.Known() {
		return
	}

	if result.Status == "" {
		result.Problems = append(result.Problems,
			domain.Problem(domain.ProblemMissingField, "$.status", "verification result is missing its status"))
	} else {
		result.Problems = append(result.Problems,
			domain.Problem(domain.ProblemMalformedRegion, "$.status", "unrecognized status %q", string(result.Status)))
	}
	result.Status = domain.RawMalformed
}

// isEmptyResult reports whether the document decoded but describes nothing,
// which callers treat the same as an asset without provenance data.
func isEmptyResult(result *domain.VerificationResult) bool {
	return result.ActiveManifest == "" &&
		len(result.Manifests) == 0 &&
		result.Status == "" &&
		len(result.Problems) == 0
}

func acceptableMediaType(mimeType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(strings.SplitN(mimeType, ";", 2)[0]))
	switch mediaType {
	case "", "application/json", "text/json":
		return true
	}
	return strings.HasSuffix(mediaType, "+json")
}
