// ABOUTME: Trust configuration manager holding the process-wide trust policy
// ABOUTME: Validates PEM certificate material and swaps policies atomically
package trust

import (
	"bytes"
	"crypto/x509"
	_ "embed"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed store_config_schema.json
var storeConfigSchemaJSON string

var storeConfigSchema = jsonschema.MustCompileString("store-config.schema.json", storeConfigSchemaJSON)

var supportedConfigVersions = mustConstraint("^1.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ConfigErrorCode identifies why trust configuration was rejected.
type ConfigErrorCode string

const (
	ConfigErrorInvalidCertificateData ConfigErrorCode = "invalid_certificate_data"
	ConfigErrorInvalidStoreConfig     ConfigErrorCode = "invalid_store_config"
)

// ConfigError rejects a Configure call. The previous policy, or the absence
// of one, remains in effect.
type ConfigError struct {
	Code   ConfigErrorCode
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Manager holds the process-wide trust policy. The zero-value-adjacent
// NewManager starts with no policy configured; readers observe either no
// policy or one complete policy, never a partial mix.
type Manager struct {
	policy atomic.Pointer[Policy]
}

// NewManager creates a trust manager with no policy configured
func NewManager() *Manager {
	return &Manager{}
}

// Configure parses and validates the supplied trust material and, only on
// success, atomically replaces the current policy. Anchors are required;
// allowed intermediates may be empty; the store configuration must satisfy
// the embedded schema and declare a supported version.
//
// Configure is safe to call concurrently with in-flight policy reads.
func (m *Manager) Configure(anchors, allowed, storeConfig []byte) error {
	anchorCerts, err := parseCertificates("anchors", anchors)
	if err != nil {
		return err
	}

	var allowedCerts []*x509.Certificate
	if len(bytes.TrimSpace(allowed)) > 0 {
		allowedCerts, err = parseCertificates("allowed intermediates", allowed)
		if err != nil {
			return err
		}
	}

	config, err := parseStoreConfig(storeConfig)
	if err != nil {
		return err
	}

	m.policy.Store(newPolicy(anchorCerts, allowedCerts, config))
	return nil
}

// CurrentPolicy returns the policy snapshot in effect, or nil when no trust
// has been configured. Callers read it once per operation and use that value
// throughout.
func (m *Manager) CurrentPolicy() *Policy {
	return m.policy.Load()
}

func parseCertificates(kind string, data []byte) ([]*x509.Certificate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigError{
			Code:   ConfigErrorInvalidCertificateData,
			Detail: fmt.Sprintf("%s buffer is empty", kind),
		}
	}

	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return nil, &ConfigError{
				Code:   ConfigErrorInvalidCertificateData,
				Detail: fmt.Sprintf("%s: unexpected PEM block %q", kind, block.Type),
			}
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &ConfigError{
				Code:   ConfigErrorInvalidCertificateData,
				Detail: fmt.Sprintf("%s: certificate could not be parsed", kind),
				Err:    err,
			}
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, &ConfigError{
			Code:   ConfigErrorInvalidCertificateData,
			Detail: fmt.Sprintf("%s: no PEM certificates found", kind),
		}
	}
	return certs, nil
}

func parseStoreConfig(data []byte) (StoreConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return StoreConfig{}, &ConfigError{
			Code:   ConfigErrorInvalidStoreConfig,
			Detail: "store configuration is empty",
		}
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return StoreConfig{}, &ConfigError{
			Code:   ConfigErrorInvalidStoreConfig,
			Detail: "store configuration is not valid JSON",
			Err:    err,
		}
	}
	if err := storeConfigSchema.Validate(value); err != nil {
		return StoreConfig{}, &ConfigError{
			Code:   ConfigErrorInvalidStoreConfig,
			Detail: "store configuration failed schema validation",
			Err:    err,
		}
	}

	var config StoreConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return StoreConfig{}, &ConfigError{
			Code:   ConfigErrorInvalidStoreConfig,
			Detail: "store configuration could not be decoded",
			Err:    err,
		}
	}

	version, err := semver.NewVersion(config.Version)
	if err != nil {
		return StoreConfig{}, &ConfigError{
			Code:   ConfigErrorInvalidStoreConfig,
			Detail: fmt.Sprintf("store configuration version %q is not a semantic version", config.Version),
			Err:    err,
		}
	}
	if !supportedConfigVersions.Check(version) {
		return StoreConfig{}, &ConfigError{
			Code:   ConfigErrorInvalidStoreConfig,
			Detail: fmt.Sprintf("store configuration version %s is outside the supported range %s", config.Version, supportedConfigVersions),
		}
	}

	return config, nil
}
