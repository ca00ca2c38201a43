// ABOUTME: Shared mock implementations for testing across all packages
// ABOUTME: Centralizes the scriptable engine and certificate/graph fixtures
package mock

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/gillisandrew/lodestone/internal/domain"
)

// Well-known manifest labels used by the canned graph fixtures.
const (
	RootManifest  = "urn:uuid:87d51599-286e-43b2-9478-88c79f49c347"
	ChildManifest = "urn:uuid:1f4a6b2d-5c3e-4d7f-9a8b-0c1d2e3f4a5b"
)

// Engine is a scriptable verification engine. Tests set Result and Err and
// inspect the recorded call state afterwards.
type Engine struct {
	Result *domain.VerificationResult
	Err    error

	Calls    int
	LastMIME string
	LastData []byte
}

// Verify returns the scripted result and error, recording the call
func (e *Engine) Verify(ctx context.Context, data []byte, mimeType string) (*domain.VerificationResult, error) {
	e.Calls++
	e.LastMIME = mimeType
	e.LastData = append([]byte(nil), data...)
	return e.Result, e.Err
}

// Certificate is a generated test certificate in both encodings.
type Certificate struct {
	DER  []byte
	PEM  []byte
	Cert *x509.Certificate
}

// NewCertificate generates a self-signed certificate for the given common
// name. Each call produces a distinct certificate.
func NewCertificate(commonName string) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"Lodestone Test"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}

	return &Certificate{
		DER:  der,
		PEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		Cert: cert,
	}, nil
}

// StoreConfig returns a minimal valid trust-store configuration blob.
func StoreConfig() []byte {
	return []byte(`{"version": "1.0.0", "name": "test store"}`)
}

// SignedResult returns a two-manifest graph with a signature_valid verdict.
// The supplied chain, if any, becomes the trust evidence.
func SignedResult(chain ...[]byte) *domain.VerificationResult {
	signedAt := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)
	createdAt := time.Date(2025, time.March, 14, 9, 25, 0, 0, time.UTC)

	return &domain.VerificationResult{
		ActiveManifest: RootManifest,
		Status:         domain.RawSignatureValid,
		Manifests: map[string]*domain.ManifestRecord{
			RootManifest: {
				Title:          "sunset.jpg",
				ClaimGenerator: "lodestone-test/1.0.0",
				ClaimVersion:   1,
				CreatedAt:      &createdAt,
				Assertions: []domain.AssertionRecord{
					{Label: "c2pa.actions", Data: json.RawMessage(`{"actions":[{"action":"c2pa.created"}]}`)},
					{Label: "stds.schema-org.CreativeWork", Data: json.RawMessage(`{"author":[{"name":"Test Author"}]}`)},
				},
				Ingredients: []domain.IngredientRecord{
					{
						Title:         "source.png",
						Relationship:  domain.RelationshipComponentOf,
						ManifestLabel: ChildManifest,
						Status:        "verified",
					},
				},
				Thumbnail: &domain.ThumbnailRecord{
					Format: "image/jpeg",
					Data:   []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10},
				},
				SignatureInfo: &domain.SignatureRecord{
					Issuer:       "Lodestone Test CA",
					Time:         &signedAt,
					SerialNumber: "513208986297310335",
					ChainDepth:   2,
				},
			},
			ChildManifest: {
				Title:          "source.png",
				ClaimGenerator: "lodestone-test/1.0.0",
				ClaimVersion:   1,
				Assertions: []domain.AssertionRecord{
					{Label: "c2pa.actions", Data: json.RawMessage(`{"actions":[{"action":"c2pa.opened"}]}`)},
				},
				SignatureInfo: &domain.SignatureRecord{
					Issuer:       "Lodestone Test CA",
					Time:         &signedAt,
					SerialNumber: "513208986297310336",
				},
			},
		},
		TrustEvidence: domain.TrustEvidence{CertificateChain: chain},
	}
}

// CyclicResult returns a graph whose child ingredient points back at the
// root manifest.
func CyclicResult() *domain.VerificationResult {
	result := SignedResult()
	result.Manifests[ChildManifest].Ingredients = []domain.IngredientRecord{
		{
			Title:         "sunset.jpg",
			Relationship:  domain.RelationshipParentOf,
			ManifestLabel: RootManifest,
		},
	}
	return result
}

// NestedResult returns a linear ingredient chain of the given depth below
// the root manifest.
func NestedResult(depth int) *domain.VerificationResult {
	labels := make([]string, depth+1)
	for i := range labels {
		labels[i] = fmt.Sprintf("urn:lodestone:test:%04d", i)
	}

	manifests := make(map[string]*domain.ManifestRecord, len(labels))
	for i, label := range labels {
		record := &domain.ManifestRecord{
			Title:          fmt.Sprintf("layer-%d.png", i),
			ClaimGenerator: "lodestone-test/1.0.0",
		}
		if i+1 < len(labels) {
			record.Ingredients = []domain.IngredientRecord{
				{
					Title:         fmt.Sprintf("layer-%d.png", i+1),
					Relationship:  domain.RelationshipComponentOf,
					ManifestLabel: labels[i+1],
				},
			}
		}
		manifests[label] = record
	}

	return &domain.VerificationResult{
		ActiveManifest: labels[0],
		Status:         domain.RawSignatureValid,
		Manifests:      manifests,
	}
}
