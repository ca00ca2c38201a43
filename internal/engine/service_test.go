package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/gillisandrew/lodestone/internal/domain"
)

func TestVerifyDecodesResultDocument(t *testing.T) {
	doc := `{
		"active_manifest": "urn:uuid:7f2a3b1c-0001-4000-8000-000000000001",
		"status": "signature_valid",
		"manifests": {
			"urn:uuid:7f2a3b1c-0001-4000-8000-000000000001": {
				"title": "sunset.jpg",
				"claim_generator": "make_test_images/0.16.1",
				"assertions": [
					{"label": "c2pa.actions", "data": {"actions": [{"action": "c2pa.created"}]}}
				]
			}
		},
		"trust_evidence": {"certificate_chain": ["MIIB"]}
	}`

	svc := NewService()
	result, err := svc.Verify(context.Background(), []byte(doc), "application/json")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Status != domain.RawSignatureValid {
		t.Errorf("Expected status %s, got %s", domain.RawSignatureValid, result.Status)
	}
	if result.ActiveManifest != "urn:uuid:7f2a3b1c-0001-4000-8000-000000000001" {
		t.Errorf("Unexpected active manifest %q", result.ActiveManifest)
	}

	active := result.Manifests[result.ActiveManifest]
	if active == nil {
		t.Fatal("Expected active manifest record to be present")
	}
	if active.Title != "sunset.jpg" {
		t.Errorf("Expected title sunset.jpg, got %s", active.Title)
	}
	if len(active.Assertions) != 1 || active.Assertions[0].Label != "c2pa.actions" {
		t.Errorf("Expected one c2pa.actions assertion, got %+v", active.Assertions)
	}
	if len(result.TrustEvidence.CertificateChain) != 1 {
		t.Errorf("Expected one chain certificate, got %d", len(result.TrustEvidence.CertificateChain))
	}
}

func TestVerifyNoProvenance(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty input", ""},
		{"whitespace only", "  \n\t"},
		{"json null", "null"},
		{"empty document", "{}"},
	}

	svc := NewService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Verify(context.Background(), []byte(tt.data), "application/json")
			if !errors.Is(err, domain.ErrNoProvenance) {
				t.Errorf("Expected ErrNoProvenance, got %v", err)
			}
			if result != nil {
				t.Errorf("Expected nil result, got %+v", result)
			}
		})
	}
}

func TestVerifyUnreadableDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "\xff\xd8\xff\xe0 jpeg bytes"},
		{"truncated object", `{"active_manifest": "a", "status"`},
		{"trailing data", `{"status": "signature_valid", "manifests": {"a": {}}, "active_manifest": "a"} garbage`},
		{"wrong top-level type", `[1, 2, 3]`},
	}

	svc := NewService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), []byte(tt.data), "")
			var engineErr *Error
			if !errors.As(err, &engineErr) {
				t.Fatalf("Expected *engine.Error, got %v", err)
			}
			if engineErr.Code != CodeUnreadableContainer {
				t.Errorf("Expected code %s, got %s", CodeUnreadableContainer, engineErr.Code)
			}
		})
	}
}

func TestVerifyMediaTypes(t *testing.T) {
	doc := `{"active_manifest": "a", "status": "signature_missing", "manifests": {"a": {}}}`

	tests := []struct {
		name        string
		mimeType    string
		expectError bool
	}{
		{"empty hint", "", false},
		{"plain json", "application/json", false},
		{"json with params", "application/json; charset=utf-8", false},
		{"structured suffix", "application/vnd.example.result+json", false},
		{"jpeg", "image/jpeg", true},
		{"png", "image/png", true},
		{"octet stream", "application/octet-stream", true},
	}

	svc := NewService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), []byte(doc), tt.mimeType)
			if tt.expectError {
				var engineErr *Error
				if !errors.As(err, &engineErr) {
					t.Fatalf("Expected *engine.Error for %q, got %v", tt.mimeType, err)
				}
				if engineErr.Code != CodeUnsupportedEncoding {
					t.Errorf("Expected code %s, got %s", CodeUnsupportedEncoding, engineErr.Code)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error for %q, got %v", tt.mimeType, err)
			}
		})
	}
}

func TestVerifyNormalizesStatus(t *testing.T) {
	tests := []struct {
		name            string
		doc             string
		expectedCode    domain.ProblemCode
		expectedProblem int
	}{
		{
			name:            "missing status",
			doc:             `{"active_manifest": "a", "manifests": {"a": {"title": "x"}}}`,
			expectedCode:    domain.ProblemMissingField,
			expectedProblem: 1,
		},
		{
			name:            "unrecognized status",
			doc:             `{"active_manifest": "a", "status": "probably_fine", "manifests": {"a": {}}}`,
			expectedCode:    domain.ProblemMalformedRegion,
			expectedProblem: 1,
		},
	}

	svc := NewService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Verify(context.Background(), []byte(tt.doc), "application/json")
			if err != nil {
				t.Fatalf("Expected salvaged result, got error %v", err)
			}
			if result.Status != domain.RawMalformed {
				t.Errorf("Expected status %s, got %s", domain.RawMalformed, result.Status)
			}
			if len(result.Problems) != tt.expectedProblem {
				t.Fatalf("Expected %d problem, got %d", tt.expectedProblem, len(result.Problems))
			}
			if result.Problems[0].Code != tt.expectedCode {
				t.Errorf("Expected problem code %s, got %s", tt.expectedCode, result.Problems[0].Code)
			}
		})
	}
}

func TestVerifyUnsupportedClaimVersion(t *testing.T) {
	doc := `{
		"active_manifest": "a",
		"status": "signature_valid",
		"manifests": {"a": {"title": "future.jpg", "claim_version": 3}}
	}`

	svc := NewService()
	result, err := svc.Verify(context.Background(), []byte(doc), "application/json")

	var engineErr *Error
	if !errors.As(err, &engineErr) {
		t.Fatalf("Expected *engine.Error, got %v", err)
	}
	if engineErr.Code != CodeUnsupportedVersion {
		t.Errorf("Expected code %s, got %s", CodeUnsupportedVersion, engineErr.Code)
	}

	if result == nil {
		t.Fatal("Expected salvaged partial result alongside the error")
	}
	if result.Manifests["a"].Title != "future.jpg" {
		t.Errorf("Expected salvaged title future.jpg, got %s", result.Manifests["a"].Title)
	}
}

func TestVerifyContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService()
	_, err := svc.Verify(ctx, []byte(`{}`), "application/json")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without path",
			err:      &Error{Code: CodeUnreadableContainer, Detail: "bad bytes"},
			expected: "container.unreadable: bad bytes",
		},
		{
			name:     "with path",
			err:      &Error{Code: CodeUnsupportedVersion, Detail: "claim version 9", Path: "$.active"},
			expected: "manifest.unsupportedVersion at $.active: claim version 9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
