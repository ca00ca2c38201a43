// ABOUTME: Core domain types for the lodestone provenance engine
// ABOUTME: Contains the manifest graph, validation states, and problem taxonomy
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoProvenance is returned when an asset carries no provenance data at all.
// It is not a failure; callers should treat it as "nothing to report".
var ErrNoProvenance = errors.New("no provenance data found")

// RawStatus is the cryptographic verdict reported by the verification engine.
// The engine has already performed all signature and chain checks; this core
// only combines the verdict with trust policy, it never re-evaluates it.
type RawStatus string

const (
	RawSignatureValid   RawStatus = "signature_valid"
	RawSignatureInvalid RawStatus = "signature_invalid"
	RawSignatureMissing RawStatus = "signature_missing"
	RawMalformed        RawStatus = "malformed"
)

// Known reports whether the status is one of the recognized verdicts.
func (s RawStatus) Known() bool {
	switch s {
	case RawSignatureValid, RawSignatureInvalid, RawSignatureMissing, RawMalformed:
		return true
	}
	return false
}

// ValidationState is the final reportable outcome for an asset's manifest.
// The string values are part of the report format and must not change.
type ValidationState string

const (
	StateNoSignature ValidationState = "NoSignature"
	StateInvalid     ValidationState = "Invalid"
	StateValid       ValidationState = "Valid"
	StateTrusted     ValidationState = "Trusted"
)

// ProblemCode identifies a class of structural defect found in a manifest
// graph. Codes are stable identifiers consumers may match on.
type ProblemCode string

const (
	ProblemCycleDetected      ProblemCode = "ingredient.cycleDetected"
	ProblemDanglingReference  ProblemCode = "ingredient.danglingReference"
	ProblemDepthExceeded      ProblemCode = "manifest.depthExceeded"
	ProblemMalformedRegion    ProblemCode = "manifest.malformedRegion"
	ProblemUnsupportedVersion ProblemCode = "manifest.unsupportedVersion"
	ProblemMissingField       ProblemCode = "manifest.missingField"
)

// StructuralProblem is a recoverable defect found while traversing a manifest
// graph. Problems are recorded in the report, never raised as errors.
type StructuralProblem struct {
	Code        ProblemCode `json:"code"`
	Description string      `json:"description"`
	Path        string      `json:"path,omitempty"`
}

// Problem builds a structural problem for the given code and graph path.
func Problem(code ProblemCode, path, format string, args ...any) StructuralProblem {
	return StructuralProblem{
		Code:        code,
		Description: fmt.Sprintf(format, args...),
		Path:        path,
	}
}

// FatalCode identifies an unrecoverable failure class.
type FatalCode string

const (
	FatalUnreadableAsset     FatalCode = "asset.unreadable"
	FatalUnsupportedEncoding FatalCode = "asset.unsupportedEncoding"
)

// FatalError aborts a read call entirely; no report is produced. It always
// carries a stable code so callers never see an unlabeled failure.
type FatalError struct {
	Code   FatalCode
	Detail string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Relationship describes how an ingredient contributed to the current asset.
type Relationship string

const (
	RelationshipParentOf    Relationship = "parentOf"
	RelationshipComponentOf Relationship = "componentOf"
	RelationshipInputTo     Relationship = "inputTo"
)

// Engine is the verification engine boundary. The engine performs all
// cryptographic work; consumers only interpret its output.
type Engine interface {
	// Verify extracts a verification result from asset data. It returns
	// ErrNoProvenance when the asset carries no provenance at all, and may
	// return a salvaged partial result alongside an error.
	Verify(ctx context.Context, data []byte, mimeType string) (*VerificationResult, error)
}

// VerificationResult is the engine's output and this core's input. It is
// untrusted structured data: the manifest arena may contain dangling or
// cyclic references and must never be assumed well-formed.
type VerificationResult struct {
	// ActiveManifest is the label of the asset's own manifest within the arena.
	ActiveManifest string `json:"active_manifest"`

	// Manifests is the arena of every manifest the engine recovered,
	// addressed by label. Ingredient references point into this map.
	Manifests map[string]*ManifestRecord `json:"manifests"`

	// Status is the engine's cryptographic verdict for the active manifest.
	Status RawStatus `json:"status"`

	// Problems are structural defects the engine itself observed.
	Problems []StructuralProblem `json:"problems,omitempty"`

	// TrustEvidence carries the signing chain used for trust evaluation.
	TrustEvidence TrustEvidence `json:"trust_evidence,omitempty"`
}

// TrustEvidence holds the signing certificate chain for the active manifest,
// leaf first, as DER-encoded certificates. The chain is already validated
// cryptographically by the engine; it is matched against trust policy by
// fingerprint only.
type TrustEvidence struct {
	CertificateChain [][]byte `json:"certificate_chain,omitempty"`
}

// ManifestRecord is one manifest in the engine-supplied arena, either the
// asset's own or one belonging to an ingredient.
type ManifestRecord struct {
	Label          string             `json:"label,omitempty"`
	Title          string             `json:"title,omitempty"`
	ClaimGenerator string             `json:"claim_generator,omitempty"`
	ClaimVersion   int                `json:"claim_version,omitempty"`
	CreatedAt      *time.Time         `json:"created_at,omitempty"`
	ModifiedAt     *time.Time         `json:"modified_at,omitempty"`
	Assertions     []AssertionRecord  `json:"assertions,omitempty"`
	Ingredients    []IngredientRecord `json:"ingredients,omitempty"`
	Thumbnail      *ThumbnailRecord   `json:"thumbnail,omitempty"`
	SignatureInfo  *SignatureRecord   `json:"signature_info,omitempty"`
}

// AssertionRecord is a single typed claim: a stable label plus an opaque
// structured payload this core carries through without interpreting.
type AssertionRecord struct {
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// IngredientRecord is a named edge from one manifest to another. The manifest
// label may be empty (the ingredient carries no provenance of its own),
// dangle, or close a cycle; the normalizer handles all three.
type IngredientRecord struct {
	Title         string       `json:"title,omitempty"`
	Relationship  Relationship `json:"relationship,omitempty"`
	ManifestLabel string       `json:"active_manifest,omitempty"`
	Status        string       `json:"status,omitempty"`
}

// ThumbnailRecord is the engine's view of a manifest thumbnail: either inline
// bytes or an opaque reference with a reported size.
type ThumbnailRecord struct {
	Format    string `json:"format,omitempty"`
	Data      []byte `json:"data,omitempty"`
	Reference string `json:"reference,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// SignatureRecord carries signature metadata recovered by the engine.
// Present at most once per manifest.
type SignatureRecord struct {
	Issuer       string     `json:"issuer,omitempty"`
	Time         *time.Time `json:"time,omitempty"`
	SerialNumber string     `json:"cert_serial_number,omitempty"`
	ChainDepth   int        `json:"chain_depth,omitempty"`
}
