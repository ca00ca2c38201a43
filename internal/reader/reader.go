// ABOUTME: The read pipeline joining engine, normalizer, trust, and report
// ABOUTME: Exposes ReadFile and ReadBytes, the package's main entry points
package reader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gillisandrew/lodestone/internal/classify"
	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/engine"
	"github.com/gillisandrew/lodestone/internal/normalize"
	"github.com/gillisandrew/lodestone/internal/report"
	"github.com/gillisandrew/lodestone/internal/resolve"
	"github.com/gillisandrew/lodestone/internal/trust"
)

// ReaderOpts configures a Reader.
type ReaderOpts struct {
	// Mode selects the full or minimal report view.
	Mode report.Mode

	// IncludeThumbnail keeps the thumbnail in minimal reports.
	IncludeThumbnail bool

	// VerifyTrust enables trust evaluation against the configured policy.
	// Without it a valid signature caps at Valid, never Trusted.
	VerifyTrust bool
}

// DefaultReaderOpts returns the default read options: the full view with
// trust evaluation enabled.
func DefaultReaderOpts() *ReaderOpts {
	return &ReaderOpts{
		Mode:        report.ModeFull,
		VerifyTrust: true,
	}
}

// WithMode sets the report view.
func (opts *ReaderOpts) WithMode(mode report.Mode) *ReaderOpts {
	opts.Mode = mode
	return opts
}

// WithIncludeThumbnail controls the thumbnail in minimal reports.
func (opts *ReaderOpts) WithIncludeThumbnail(include bool) *ReaderOpts {
	opts.IncludeThumbnail = include
	return opts
}

// WithVerifyTrust toggles trust evaluation.
func (opts *ReaderOpts) WithVerifyTrust(verify bool) *ReaderOpts {
	opts.VerifyTrust = verify
	return opts
}

// Reader reads provenance from assets: it runs the engine, normalizes the
// resulting manifest graph, resolves the validation state against trust
// policy, and renders a report. A Reader is safe for concurrent use when
// its engine is.
type Reader struct {
	engine domain.Engine
	trust  *trust.Manager
	opts   *ReaderOpts
}

// NewReader creates a reader. A nil engine falls back to the bundled result
// document service; a nil manager disables trust evaluation; nil opts fall
// back to defaults.
func NewReader(eng domain.Engine, manager *trust.Manager, opts *ReaderOpts) *Reader {
	if eng == nil {
		eng = engine.NewService()
	}
	if opts == nil {
		opts = DefaultReaderOpts()
	}
	return &Reader{
		engine: eng,
		trust:  manager,
		opts:   opts,
	}
}

// ReadFile reads provenance from the file at path. The MIME type is derived
// from the file extension. Unreadable files return a *domain.FatalError.
func (r *Reader) ReadFile(ctx context.Context, path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.FatalError{
			Code:   domain.FatalUnreadableAsset,
			Detail: fmt.Sprintf("failed to read %s", path),
			Err:    err,
		}
	}
	return r.ReadBytes(ctx, data, DetectMIME(path))
}

// ReadBytes reads provenance from in-memory asset data.
//
// Recoverable engine failures degrade the report instead of aborting it:
// the defect joins the structural problem list and, for fatal-class
// defects, forces the validation state to Invalid. domain.ErrNoProvenance
// and context cancellation pass through unchanged; everything else that
// cannot be salvaged returns a *domain.FatalError.
func (r *Reader) ReadBytes(ctx context.Context, data []byte, mimeType string) (*report.Report, error) {
	result, err := r.engine.Verify(ctx, data, mimeType)

	var callProblem *domain.StructuralProblem
	if err != nil {
		if errors.Is(err, domain.ErrNoProvenance) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		problem, fatal := classify.Classify(err)
		if fatal != nil {
			return nil, fatal
		}
		if result == nil {
			// Recoverable defect but nothing was salvaged, so there is no
			// graph to degrade. Fail closed.
			return nil, &domain.FatalError{
				Code:   domain.FatalUnreadableAsset,
				Detail: "engine returned no result to salvage",
				Err:    err,
			}
		}
		callProblem = problem
	}
	if result == nil {
		return nil, &domain.FatalError{
			Code:   domain.FatalUnreadableAsset,
			Detail: "engine returned neither a result nor an error",
		}
	}

	tree, problems := normalize.Normalize(result)
	if callProblem != nil {
		problems = append(problems, *callProblem)
	}

	var policy *trust.Policy
	if r.opts.VerifyTrust && r.trust != nil {
		policy = r.trust.CurrentPolicy()
	}

	state := resolve.Resolve(result.Status, result.TrustEvidence, problems, policy)

	opts := report.DefaultOpts().
		WithMode(r.opts.Mode).
		WithIncludeThumbnail(r.opts.IncludeThumbnail)
	return report.Build(tree, state, problems, opts), nil
}
