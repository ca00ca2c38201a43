// ABOUTME: Report rendering for normalized manifest trees
// ABOUTME: Produces full or minimal views and a JCS canonical JSON encoding
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/opencontainers/go-digest"

	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/normalize"
)

// Mode selects how much of the manifest tree a report carries.
type Mode string

const (
	// ModeFull renders the whole tree: assertions, ingredients, thumbnails,
	// and complete signature metadata.
	ModeFull Mode = "full"

	// ModeMinimal renders the summary view: title, generator, validation
	// state, problems, and a trimmed signature block.
	ModeMinimal Mode = "minimal"
)

// Opts configures report rendering.
type Opts struct {
	// Mode selects the full or minimal view.
	Mode Mode

	// IncludeThumbnail keeps the active manifest's thumbnail in minimal
	// reports. Full reports always carry it.
	IncludeThumbnail bool
}

// DefaultOpts returns the default rendering options.
func DefaultOpts() *Opts {
	return &Opts{Mode: ModeFull}
}

// WithMode sets the rendering mode.
func (o *Opts) WithMode(mode Mode) *Opts {
	o.Mode = mode
	return o
}

// WithIncludeThumbnail controls the thumbnail in minimal reports.
func (o *Opts) WithIncludeThumbnail(include bool) *Opts {
	o.IncludeThumbnail = include
	return o
}

// Report is the final output of a read: the active manifest's content plus
// the validation verdict and every structural problem found along the way.
// Field names are part of the output format and must not change.
type Report struct {
	Title              string                     `json:"title,omitempty"`
	Generator          string                     `json:"generator,omitempty"`
	Thumbnail          *Thumbnail                 `json:"thumbnail,omitempty"`
	Assertions         []Assertion                `json:"assertions,omitempty"`
	SignatureInfo      *SignatureInfo             `json:"signature_info,omitempty"`
	Ingredients        []Ingredient               `json:"ingredients,omitempty"`
	ValidationState    domain.ValidationState     `json:"validation_state"`
	StructuralProblems []domain.StructuralProblem `json:"structural_problems"`
}

// Manifest is an ingredient's manifest rendered inside a report. It carries
// the same content as the top level minus verdict and problems, which only
// ever describe the asset's own manifest.
type Manifest struct {
	Title         string         `json:"title,omitempty"`
	Generator     string         `json:"generator,omitempty"`
	Thumbnail     *Thumbnail     `json:"thumbnail,omitempty"`
	Assertions    []Assertion    `json:"assertions,omitempty"`
	SignatureInfo *SignatureInfo `json:"signature_info,omitempty"`
	Ingredients   []Ingredient   `json:"ingredients,omitempty"`
}

// Ingredient is one rendered edge. Manifest is absent when the ingredient
// carried no provenance or its sub-tree was pruned.
type Ingredient struct {
	Title        string              `json:"title,omitempty"`
	Relationship domain.Relationship `json:"relationship,omitempty"`
	Status       string              `json:"status,omitempty"`
	Manifest     *Manifest           `json:"manifest,omitempty"`
}

// Assertion is one rendered claim with its opaque payload.
type Assertion struct {
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SignatureInfo is the rendered signature block.
type SignatureInfo struct {
	Issuer       string     `json:"issuer,omitempty"`
	Time         *time.Time `json:"time,omitempty"`
	SerialNumber string     `json:"cert_serial_number,omitempty"`
	ChainDepth   int        `json:"chain_depth,omitempty"`
}

// Thumbnail is the rendered thumbnail: format and size, plus a content
// digest for inline data or an opaque reference otherwise.
type Thumbnail struct {
	Format    string        `json:"format,omitempty"`
	Size      int64         `json:"size"`
	Digest    digest.Digest `json:"digest,omitempty"`
	Reference string        `json:"reference,omitempty"`
}

// Build renders a normalized tree into a report. It never fails: an empty
// tree yields a bare report carrying only the verdict and problems. The
// minimal view is the full view with detail stripped, so it always agrees
// with the full view on the fields it keeps.
func Build(tree *normalize.Tree, state domain.ValidationState, problems []domain.StructuralProblem, opts *Opts) *Report {
	if opts == nil {
		opts = DefaultOpts()
	}

	report := &Report{
		ValidationState:    state,
		StructuralProblems: append([]domain.StructuralProblem{}, problems...),
	}
	if tree == nil || tree.Root == nil {
		return report
	}

	full := renderNode(tree.Root)
	report.Title = full.Title
	report.Generator = full.Generator
	report.Thumbnail = full.Thumbnail
	report.Assertions = full.Assertions
	report.SignatureInfo = full.SignatureInfo
	report.Ingredients = full.Ingredients

	if opts.Mode == ModeMinimal {
		report.Assertions = nil
		report.Ingredients = nil
		if !opts.IncludeThumbnail {
			report.Thumbnail = nil
		}
		if report.SignatureInfo != nil {
			report.SignatureInfo = &SignatureInfo{
				Issuer: report.SignatureInfo.Issuer,
				Time:   report.SignatureInfo.Time,
			}
		}
	}

	return report
}

// Canonical encodes the report as RFC 8785 canonical JSON. Identical
// reports always produce identical bytes.
func (r *Report) Canonical() ([]byte, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	canonical, err := jcs.Transform(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize report: %w", err)
	}
	return canonical, nil
}

func renderNode(node *normalize.Node) *Manifest {
	manifest := &Manifest{
		Title:         node.Title,
		Generator:     node.Generator,
		Thumbnail:     renderThumbnail(node.Thumbnail),
		Assertions:    renderAssertions(node.Assertions),
		SignatureInfo: renderSignature(node.Signature),
	}

	for _, ingredient := range node.Ingredients {
		entry := Ingredient{
			Title:        ingredient.Title,
			Relationship: ingredient.Relationship,
			Status:       ingredient.Status,
		}
		if ingredient.Manifest != nil {
			entry.Manifest = renderNode(ingredient.Manifest)
		}
		manifest.Ingredients = append(manifest.Ingredients, entry)
	}

	return manifest
}

func renderAssertions(assertions []normalize.Assertion) []Assertion {
	if len(assertions) == 0 {
		return nil
	}
	rendered := make([]Assertion, 0, len(assertions))
	for _, assertion := range assertions {
		rendered = append(rendered, Assertion{Label: assertion.Label, Data: assertion.Data})
	}
	return rendered
}

func renderThumbnail(thumbnail *normalize.Thumbnail) *Thumbnail {
	if thumbnail == nil {
		return nil
	}
	return &Thumbnail{
		Format:    thumbnail.Format,
		Size:      thumbnail.Size,
		Digest:    thumbnail.Digest,
		Reference: thumbnail.Reference,
	}
}

func renderSignature(signature *normalize.Signature) *SignatureInfo {
	if signature == nil {
		return nil
	}
	return &SignatureInfo{
		Issuer:       signature.Issuer,
		Time:         signature.Time,
		SerialNumber: signature.SerialNumber,
		ChainDepth:   signature.ChainDepth,
	}
}
