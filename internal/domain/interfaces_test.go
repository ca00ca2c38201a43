package domain

import (
	"testing"
)

// This file serves as documentation for the domain contracts and where they
// are implemented. Interface compliance tests live in the consuming packages.

// TestDomainContracts documents the core contracts between packages
func TestDomainContracts(t *testing.T) {
	t.Run("Engine", func(t *testing.T) {
		t.Log("Engine is the verification engine boundary:")
		t.Log("  - Verify(ctx, data, mimeType) (*VerificationResult, error)")
		t.Log("Production implementation: internal/engine/service.go")
		t.Log("Test implementation: internal/mock/mock.go")
	})

	t.Run("TrustManager", func(t *testing.T) {
		t.Log("trust.Manager holds the process-wide trust policy:")
		t.Log("  - Configure(anchors, allowed, storeConfig []byte) error")
		t.Log("  - CurrentPolicy() *trust.Policy (nil means no trust configured)")
		t.Log("Policies are immutable and swapped atomically")
	})

	t.Run("Resolver", func(t *testing.T) {
		t.Log("resolve.Resolve combines a raw status with trust policy:")
		t.Log("  - Resolve(status, evidence, problems, policy) ValidationState")
		t.Log("The precedence chain is strict; it never returns an error")
	})

	t.Run("Classifier", func(t *testing.T) {
		t.Log("classify.Classify maps engine failures onto the taxonomy:")
		t.Log("  - Classify(err) (*StructuralProblem, *FatalError)")
		t.Log("Exactly one of the two results is non-nil")
	})
}

// TestValidationStateValues pins the literal state strings used in reports
func TestValidationStateValues(t *testing.T) {
	tests := []struct {
		name     string
		state    ValidationState
		expected string
	}{
		{"no signature", StateNoSignature, "NoSignature"},
		{"invalid", StateInvalid, "Invalid"},
		{"valid", StateValid, "Valid"},
		{"trusted", StateTrusted, "Trusted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.state) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.state)
			}
		})
	}
}

func TestRawStatusKnown(t *testing.T) {
	tests := []struct {
		name     string
		status   RawStatus
		expected bool
	}{
		{"signature valid", RawSignatureValid, true},
		{"signature invalid", RawSignatureInvalid, true},
		{"signature missing", RawSignatureMissing, true},
		{"malformed", RawMalformed, true},
		{"empty", RawStatus(""), false},
		{"unrecognized", RawStatus("signature_probably_fine"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Known(); got != tt.expected {
				t.Errorf("Expected Known() == %v for %q, got %v", tt.expected, tt.status, got)
			}
		})
	}
}

func TestFatalErrorFormat(t *testing.T) {
	err := &FatalError{
		Code:   FatalUnreadableAsset,
		Detail: "container could not be parsed",
	}

	expected := "asset.unreadable: container could not be parsed"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}
