// ABOUTME: Manifest graph normalizer producing canonical, depth-bounded trees
// ABOUTME: Prunes cycles and dangling references, normalizes assertions and thumbnails
package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"github.com/gillisandrew/lodestone/internal/domain"
)

// MaxDepth is the traversal ceiling. Ingredient chains nested deeper than
// this are pruned and reported, bounding the work a hostile graph can cause.
// It is a package constant, not a per-call knob.
const MaxDepth = 32

// labelNamespace seeds deterministic fallback labels for manifests the
// engine reported without one.
var labelNamespace = uuid.MustParse("76e1c2ad-08f4-4a57-9d3b-54c1e8a9bd02")

// Tree is the canonical, acyclic view of one manifest graph. Identical
// verification results always normalize to identical trees.
type Tree struct {
	// Root is the asset's own manifest, or nil when the graph named no
	// usable active manifest.
	Root *Node
}

// Node is one normalized manifest: the asset's own, or one belonging to an
// ingredient somewhere below it.
type Node struct {
	Label       string
	Title       string
	Generator   string
	CreatedAt   *time.Time
	ModifiedAt  *time.Time
	Assertions  []Assertion
	Ingredients []Ingredient
	Thumbnail   *Thumbnail
	Signature   *Signature
}

// Assertion is a normalized claim. Order follows the engine's order; for
// exclusive labels the earliest occurrence keeps its position and carries
// the data of the last.
type Assertion struct {
	Label string
	Data  json.RawMessage
}

// Ingredient is a normalized edge from a manifest to one of its sources.
// Manifest is nil when the ingredient carries no provenance of its own or
// when its sub-tree was pruned.
type Ingredient struct {
	Title         string
	Relationship  domain.Relationship
	Status        string
	ManifestLabel string
	Manifest      *Node
}

// Thumbnail is the uniform thumbnail shape: format tag plus byte length,
// with either an inline content digest or an opaque reference.
type Thumbnail struct {
	Format    string
	Size      int64
	Digest    digest.Digest
	Reference string
}

// Signature carries the signature metadata of one manifest.
type Signature struct {
	Issuer       string
	Time         *time.Time
	SerialNumber string
	ChainDepth   int
}

// NodeCount returns the number of manifests in the tree.
func (t *Tree) NodeCount() int {
	if t == nil {
		return 0
	}
	return countNodes(t.Root)
}

func countNodes(node *Node) int {
	if node == nil {
		return 0
	}
	count := 1
	for _, ingredient := range node.Ingredients {
		count += countNodes(ingredient.Manifest)
	}
	return count
}

// Depth returns the number of edges on the longest root-to-leaf chain.
// An empty tree has depth zero.
func (t *Tree) Depth() int {
	if t == nil {
		return 0
	}
	return nodeDepth(t.Root)
}

func nodeDepth(node *Node) int {
	if node == nil {
		return 0
	}
	deepest := 0
	for _, ingredient := range node.Ingredients {
		if ingredient.Manifest == nil {
			continue
		}
		if depth := nodeDepth(ingredient.Manifest) + 1; depth > deepest {
			deepest = depth
		}
	}
	return deepest
}

// Normalize walks the verification result's manifest graph into a canonical
// tree. Traversal is depth-first and pre-order; ingredients are visited in
// the order the engine reported them and never re-sorted. The returned
// problem list starts with a copy of the engine-reported problems followed
// by traversal problems in visit order.
//
// Normalize never fails and never mutates the result. Cycles, dangling
// references, and chains deeper than MaxDepth are pruned and recorded as
// structural problems instead.
func Normalize(result *domain.VerificationResult) (*Tree, []domain.StructuralProblem) {
	problems := append([]domain.StructuralProblem(nil), result.Problems...)

	record, ok := result.Manifests[result.ActiveManifest]
	if !ok || record == nil {
		switch {
		case result.ActiveManifest == "" && len(result.Manifests) == 0:
			// Nothing was recovered; the report will be bare.
		case result.ActiveManifest == "":
			problems = append(problems, domain.Problem(domain.ProblemMissingField,
				"$.active_manifest", "verification result names no active manifest"))
		default:
			problems = append(problems, domain.Problem(domain.ProblemDanglingReference,
				"$.active_manifest", "active manifest %q is not present in the graph", result.ActiveManifest))
		}
		return &Tree{}, problems
	}

	w := &walker{arena: result.Manifests, active: make(map[string]bool)}
	root := w.visit(result.ActiveManifest, record, "$", 0)
	return &Tree{Root: root}, append(problems, w.problems...)
}

// walker carries the traversal state: the arena of manifests, the set of
// labels on the current path for cycle detection, and the problems found.
type walker struct {
	arena    map[string]*domain.ManifestRecord
	active   map[string]bool
	problems []domain.StructuralProblem
}

func (w *walker) visit(label string, record *domain.ManifestRecord, path string, depth int) *Node {
	w.active[label] = true
	defer delete(w.active, label)

	node := &Node{
		Label:      nodeLabel(label, record),
		Title:      record.Title,
		Generator:  record.ClaimGenerator,
		CreatedAt:  copyTime(record.CreatedAt),
		ModifiedAt: copyTime(record.ModifiedAt),
		Assertions: normalizeAssertions(record.Assertions),
		Signature:  normalizeSignature(record.SignatureInfo),
	}
	node.Thumbnail = w.normalizeThumbnail(record.Thumbnail, path)

	for i, ingredient := range record.Ingredients {
		edgePath := fmt.Sprintf("%s.ingredients[%d]", path, i)
		edge := Ingredient{
			Title:         ingredient.Title,
			Relationship:  ingredient.Relationship,
			Status:        ingredient.Status,
			ManifestLabel: ingredient.ManifestLabel,
		}

		switch {
		case ingredient.ManifestLabel == "":
			// The ingredient carries no provenance of its own.
		case w.active[ingredient.ManifestLabel]:
			w.report(domain.ProblemCycleDetected, edgePath,
				"ingredient %q closes a cycle back to manifest %q", ingredient.Title, ingredient.ManifestLabel)
		case depth+1 > MaxDepth:
			w.report(domain.ProblemDepthExceeded, edgePath,
				"ingredient chain exceeds the depth ceiling of %d", MaxDepth)
		default:
			child, ok := w.arena[ingredient.ManifestLabel]
			if !ok || child == nil {
				w.report(domain.ProblemDanglingReference, edgePath,
					"ingredient %q references unknown manifest %q", ingredient.Title, ingredient.ManifestLabel)
			} else {
				edge.Manifest = w.visit(ingredient.ManifestLabel, child, edgePath, depth+1)
			}
		}

		node.Ingredients = append(node.Ingredients, edge)
	}

	return node
}

func (w *walker) report(code domain.ProblemCode, path, format string, args ...any) {
	w.problems = append(w.problems, domain.Problem(code, path, format, args...))
}

// exclusiveLabels are assertion kinds that may appear at most once per
// manifest. When the engine reports duplicates the last occurrence wins:
// its data replaces the earliest occurrence, which keeps its position.
var exclusiveLabels = map[string]bool{
	"c2pa.hash.data":       true,
	"c2pa.thumbnail.claim": true,
}

func normalizeAssertions(records []domain.AssertionRecord) []Assertion {
	if len(records) == 0 {
		return nil
	}

	assertions := make([]Assertion, 0, len(records))
	position := make(map[string]int, len(records))
	for _, record := range records {
		data := append(json.RawMessage(nil), record.Data...)
		if exclusiveLabels[record.Label] {
			if at, seen := position[record.Label]; seen {
				assertions[at].Data = data
				continue
			}
			position[record.Label] = len(assertions)
		}
		assertions = append(assertions, Assertion{Label: record.Label, Data: data})
	}
	return assertions
}

func (w *walker) normalizeThumbnail(record *domain.ThumbnailRecord, path string) *Thumbnail {
	if record == nil {
		return nil
	}

	thumbnail := &Thumbnail{Format: record.Format}
	switch {
	case len(record.Data) > 0:
		thumbnail.Size = int64(len(record.Data))
		thumbnail.Digest = digest.FromBytes(record.Data)
	case record.Reference != "":
		thumbnail.Size = record.Size
		thumbnail.Reference = record.Reference
	default:
		w.report(domain.ProblemMissingField, path+".thumbnail",
			"thumbnail carries neither inline data nor a reference")
		return nil
	}
	return thumbnail
}

func normalizeSignature(record *domain.SignatureRecord) *Signature {
	if record == nil {
		return nil
	}
	return &Signature{
		Issuer:       record.Issuer,
		Time:         copyTime(record.Time),
		SerialNumber: record.SerialNumber,
		ChainDepth:   record.ChainDepth,
	}
}

// nodeLabel returns the manifest's arena label, deriving a stable urn:uuid
// identity from the record content when the engine reported none.
func nodeLabel(label string, record *domain.ManifestRecord) string {
	if label != "" {
		return label
	}
	content, err := json.Marshal(record)
	if err != nil {
		content = []byte(record.Title)
	}
	return "urn:uuid:" + uuid.NewSHA1(labelNamespace, content).String()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
