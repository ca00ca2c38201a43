// ABOUTME: Verification engine boundary types and error codes
// ABOUTME: Defines the stable failure contract between engines and the reader
package engine

import "fmt"

// Code identifies an engine failure class. Codes are stable and are the only
// thing the failure classifier keys on.
type Code string

const (
	// CodeUnreadableContainer means the asset container could not be parsed
	// at all. Classified fatal; no report can be produced.
	CodeUnreadableContainer Code = "container.unreadable"

	// CodeUnsupportedEncoding means the engine does not understand the
	// fundamental encoding it was handed. Classified fatal.
	CodeUnsupportedEncoding Code = "encoding.unsupported"

	// CodeMalformedRegion means a recognized manifest region failed to parse.
	// Classified as a structural problem; a degraded report is still produced.
	CodeMalformedRegion Code = "manifest.malformedRegion"

	// CodeUnsupportedVersion means the manifest declares a claim version newer
	// than this engine supports. Classified as a structural problem.
	CodeUnsupportedVersion Code = "manifest.unsupportedVersion"
)

// Error is a typed engine failure. Engines may return an Error alongside a
// partial verification result when the defect is recoverable; the reader
// classifies the error and salvages what it can.
type Error struct {
	Code   Code
	Detail string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
