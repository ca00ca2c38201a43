// ABOUTME: Immutable trust policy value resolved from configured trust material
// ABOUTME: Matches signing chains against anchor and intermediate sets by fingerprint
package trust

import (
	"crypto/x509"

	"github.com/opencontainers/go-digest"
)

// StoreConfig is the validated trust-store configuration blob. It travels
// with the policy so downstream consumers see the exact configuration the
// certificates were accepted under.
type StoreConfig struct {
	Version            string   `json:"version"`
	Name               string   `json:"name,omitempty"`
	AllowedEKUs        []string `json:"allowed_ekus,omitempty"`
	RequireSigningTime bool     `json:"require_signing_time,omitempty"`
}

// Policy is a resolved, immutable trust policy. Once constructed it is never
// mutated; reconfiguration replaces the whole value through the Manager.
// Methods are safe for concurrent use from any number of goroutines.
type Policy struct {
	anchors         []*x509.Certificate
	intermediates   []*x509.Certificate
	anchorSet       map[digest.Digest]struct{}
	intermediateSet map[digest.Digest]struct{}
	config          StoreConfig
}

func newPolicy(anchors, intermediates []*x509.Certificate, config StoreConfig) *Policy {
	p := &Policy{
		anchors:         anchors,
		intermediates:   intermediates,
		anchorSet:       make(map[digest.Digest]struct{}, len(anchors)),
		intermediateSet: make(map[digest.Digest]struct{}, len(intermediates)),
		config:          config,
	}
	for _, cert := range anchors {
		p.anchorSet[Fingerprint(cert)] = struct{}{}
	}
	for _, cert := range intermediates {
		p.intermediateSet[Fingerprint(cert)] = struct{}{}
	}
	return p
}

// Fingerprint returns the content digest of a certificate's DER encoding.
// Trust matching is done purely on these fingerprints.
func Fingerprint(cert *x509.Certificate) digest.Digest {
	return digest.FromBytes(cert.Raw)
}

// MatchesAnchor reports whether the DER-encoded certificate is one of the
// policy's root anchors.
func (p *Policy) MatchesAnchor(der []byte) bool {
	_, ok := p.anchorSet[digest.FromBytes(der)]
	return ok
}

// MatchesIntermediate reports whether the DER-encoded certificate is in the
// policy's allowed-intermediate set.
func (p *Policy) MatchesIntermediate(der []byte) bool {
	_, ok := p.intermediateSet[digest.FromBytes(der)]
	return ok
}

// Anchors returns the root anchor certificates in the order they were
// supplied. The returned slice is a copy; the policy stays immutable.
func (p *Policy) Anchors() []*x509.Certificate {
	return append([]*x509.Certificate(nil), p.anchors...)
}

// Intermediates returns the allowed intermediate certificates in the order
// they were supplied.
func (p *Policy) Intermediates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), p.intermediates...)
}

// Config returns the store configuration the policy was built with.
func (p *Policy) Config() StoreConfig {
	cfg := p.config
	cfg.AllowedEKUs = append([]string(nil), p.config.AllowedEKUs...)
	return cfg
}
