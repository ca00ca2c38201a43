package normalize

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/mock"
)

func problemCodes(problems []domain.StructuralProblem) []domain.ProblemCode {
	codes := make([]domain.ProblemCode, 0, len(problems))
	for _, problem := range problems {
		codes = append(codes, problem.Code)
	}
	return codes
}

func countCode(problems []domain.StructuralProblem, code domain.ProblemCode) int {
	count := 0
	for _, problem := range problems {
		if problem.Code == code {
			count++
		}
	}
	return count
}

func TestNormalizeSignedGraph(t *testing.T) {
	result := mock.SignedResult()

	tree, problems := Normalize(result)
	if len(problems) != 0 {
		t.Fatalf("Expected no problems, got %v", problems)
	}

	root := tree.Root
	if root == nil {
		t.Fatal("Expected a root node")
	}
	if root.Label != mock.RootManifest {
		t.Errorf("Expected label %s, got %s", mock.RootManifest, root.Label)
	}
	if root.Title != "sunset.jpg" {
		t.Errorf("Expected title sunset.jpg, got %s", root.Title)
	}
	if root.Generator != "lodestone-test/1.0.0" {
		t.Errorf("Expected generator lodestone-test/1.0.0, got %s", root.Generator)
	}
	if root.CreatedAt == nil {
		t.Error("Expected creation timestamp to carry through")
	}

	if len(root.Assertions) != 2 {
		t.Fatalf("Expected 2 assertions, got %d", len(root.Assertions))
	}
	if root.Assertions[0].Label != "c2pa.actions" || root.Assertions[1].Label != "stds.schema-org.CreativeWork" {
		t.Errorf("Expected assertion order to be preserved, got %s then %s",
			root.Assertions[0].Label, root.Assertions[1].Label)
	}

	if root.Signature == nil {
		t.Fatal("Expected signature info on the root")
	}
	if root.Signature.Issuer != "Lodestone Test CA" {
		t.Errorf("Expected issuer Lodestone Test CA, got %s", root.Signature.Issuer)
	}
	if root.Signature.SerialNumber != "513208986297310335" {
		t.Errorf("Expected serial 513208986297310335, got %s", root.Signature.SerialNumber)
	}

	if len(root.Ingredients) != 1 {
		t.Fatalf("Expected 1 ingredient, got %d", len(root.Ingredients))
	}
	ingredient := root.Ingredients[0]
	if ingredient.Relationship != domain.RelationshipComponentOf {
		t.Errorf("Expected relationship %s, got %s", domain.RelationshipComponentOf, ingredient.Relationship)
	}
	if ingredient.Manifest == nil {
		t.Fatal("Expected the ingredient's manifest to be expanded")
	}
	if ingredient.Manifest.Title != "source.png" {
		t.Errorf("Expected ingredient manifest title source.png, got %s", ingredient.Manifest.Title)
	}
}

func TestNormalizeThumbnail(t *testing.T) {
	inline := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

	tests := []struct {
		name          string
		record        *domain.ThumbnailRecord
		expectNil     bool
		expectProblem bool
		expected      Thumbnail
	}{
		{
			name:   "inline data",
			record: &domain.ThumbnailRecord{Format: "image/jpeg", Data: inline, Size: 999},
			expected: Thumbnail{
				Format: "image/jpeg",
				Size:   int64(len(inline)),
				Digest: digest.FromBytes(inline),
			},
		},
		{
			name:   "opaque reference",
			record: &domain.ThumbnailRecord{Format: "image/png", Reference: "self#jumbf=c2pa/thumb", Size: 2048},
			expected: Thumbnail{
				Format:    "image/png",
				Size:      2048,
				Reference: "self#jumbf=c2pa/thumb",
			},
		},
		{
			name:      "no thumbnail",
			record:    nil,
			expectNil: true,
		},
		{
			name:          "empty record",
			record:        &domain.ThumbnailRecord{Format: "image/jpeg"},
			expectNil:     true,
			expectProblem: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mock.SignedResult()
			result.Manifests[mock.RootManifest].Thumbnail = tt.record

			tree, problems := Normalize(result)

			if tt.expectProblem {
				if countCode(problems, domain.ProblemMissingField) != 1 {
					t.Errorf("Expected one missing-field problem, got %v", problems)
				}
			} else if countCode(problems, domain.ProblemMissingField) != 0 {
				t.Errorf("Expected no missing-field problem, got %v", problems)
			}

			thumbnail := tree.Root.Thumbnail
			if tt.expectNil {
				if thumbnail != nil {
					t.Fatalf("Expected no thumbnail, got %+v", thumbnail)
				}
				return
			}
			if thumbnail == nil {
				t.Fatal("Expected a thumbnail")
			}
			if *thumbnail != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, *thumbnail)
			}
		})
	}
}

func TestNormalizeExclusiveAssertions(t *testing.T) {
	result := mock.SignedResult()
	result.Manifests[mock.RootManifest].Assertions = []domain.AssertionRecord{
		{Label: "c2pa.hash.data", Data: json.RawMessage(`{"alg":"sha256","gen":1}`)},
		{Label: "c2pa.actions", Data: json.RawMessage(`{"actions":[]}`)},
		{Label: "c2pa.actions", Data: json.RawMessage(`{"actions":[{"action":"c2pa.edited"}]}`)},
		{Label: "c2pa.hash.data", Data: json.RawMessage(`{"alg":"sha256","gen":2}`)},
	}

	tree, problems := Normalize(result)
	if len(problems) != 0 {
		t.Fatalf("Expected no problems, got %v", problems)
	}

	assertions := tree.Root.Assertions
	if len(assertions) != 3 {
		t.Fatalf("Expected 3 assertions after exclusive collapse, got %d", len(assertions))
	}

	// The exclusive label keeps its first position but carries the last data.
	if assertions[0].Label != "c2pa.hash.data" {
		t.Errorf("Expected exclusive assertion to keep position 0, got %s", assertions[0].Label)
	}
	if string(assertions[0].Data) != `{"alg":"sha256","gen":2}` {
		t.Errorf("Expected last exclusive data to win, got %s", assertions[0].Data)
	}

	// Non-exclusive duplicates are preserved in order.
	if assertions[1].Label != "c2pa.actions" || assertions[2].Label != "c2pa.actions" {
		t.Errorf("Expected duplicate c2pa.actions to be preserved, got %s then %s",
			assertions[1].Label, assertions[2].Label)
	}
	if string(assertions[2].Data) != `{"actions":[{"action":"c2pa.edited"}]}` {
		t.Errorf("Expected second c2pa.actions data intact, got %s", assertions[2].Data)
	}
}

func TestNormalizeCycleSafety(t *testing.T) {
	tree, problems := Normalize(mock.CyclicResult())

	if count := countCode(problems, domain.ProblemCycleDetected); count != 1 {
		t.Fatalf("Expected exactly one cycle problem, got %d: %v", count, problemCodes(problems))
	}

	root := tree.Root
	if len(root.Ingredients) != 1 {
		t.Fatalf("Expected 1 ingredient on the root, got %d", len(root.Ingredients))
	}
	child := root.Ingredients[0].Manifest
	if child == nil {
		t.Fatal("Expected the child manifest to be expanded")
	}
	if len(child.Ingredients) != 1 {
		t.Fatalf("Expected the cyclic edge to remain in the ingredient list, got %d", len(child.Ingredients))
	}
	if child.Ingredients[0].Manifest != nil {
		t.Error("Expected the cyclic edge's sub-tree to be pruned")
	}
	if child.Ingredients[0].ManifestLabel != mock.RootManifest {
		t.Errorf("Expected pruned edge to keep its label, got %s", child.Ingredients[0].ManifestLabel)
	}
}

func TestNormalizeSelfReference(t *testing.T) {
	result := mock.SignedResult()
	result.Manifests[mock.RootManifest].Ingredients = []domain.IngredientRecord{
		{Title: "sunset.jpg", Relationship: domain.RelationshipParentOf, ManifestLabel: mock.RootManifest},
	}

	tree, problems := Normalize(result)

	if count := countCode(problems, domain.ProblemCycleDetected); count != 1 {
		t.Fatalf("Expected exactly one cycle problem, got %d", count)
	}
	if len(tree.Root.Ingredients) != 1 {
		t.Fatalf("Expected the self-referencing ingredient to be kept, got %d", len(tree.Root.Ingredients))
	}
	if tree.Root.Ingredients[0].Manifest != nil {
		t.Error("Expected the self-referencing edge to be pruned")
	}
}

func TestNormalizeDepthBound(t *testing.T) {
	tree, problems := Normalize(mock.NestedResult(MaxDepth + 1))

	if count := countCode(problems, domain.ProblemDepthExceeded); count != 1 {
		t.Fatalf("Expected exactly one depth problem, got %d: %v", count, problemCodes(problems))
	}
	if depth := tree.Depth(); depth != MaxDepth {
		t.Errorf("Expected tree truncated at depth %d, got %d", MaxDepth, depth)
	}
	if count := tree.NodeCount(); count != MaxDepth+1 {
		t.Errorf("Expected %d nodes, got %d", MaxDepth+1, count)
	}
}

func TestNormalizeAtDepthCeiling(t *testing.T) {
	tree, problems := Normalize(mock.NestedResult(MaxDepth))

	if len(problems) != 0 {
		t.Fatalf("Expected a chain at the ceiling to normalize cleanly, got %v", problems)
	}
	if depth := tree.Depth(); depth != MaxDepth {
		t.Errorf("Expected depth %d, got %d", MaxDepth, depth)
	}
}

func TestNormalizeDanglingReference(t *testing.T) {
	result := mock.SignedResult()
	result.Manifests[mock.RootManifest].Ingredients = []domain.IngredientRecord{
		{Title: "ghost.png", Relationship: domain.RelationshipInputTo, ManifestLabel: "urn:uuid:not-in-arena"},
	}

	tree, problems := Normalize(result)

	if count := countCode(problems, domain.ProblemDanglingReference); count != 1 {
		t.Fatalf("Expected exactly one dangling-reference problem, got %d", count)
	}
	if len(tree.Root.Ingredients) != 1 {
		t.Fatalf("Expected the dangling ingredient to be kept, got %d", len(tree.Root.Ingredients))
	}
	ingredient := tree.Root.Ingredients[0]
	if ingredient.Manifest != nil {
		t.Error("Expected no manifest behind a dangling reference")
	}
	if ingredient.Title != "ghost.png" || ingredient.Status != "" {
		t.Errorf("Expected the edge's own attributes to survive, got %+v", ingredient)
	}
}

func TestNormalizeIngredientWithoutProvenance(t *testing.T) {
	result := mock.SignedResult()
	result.Manifests[mock.RootManifest].Ingredients = []domain.IngredientRecord{
		{Title: "camera.raw", Relationship: domain.RelationshipInputTo},
	}

	tree, problems := Normalize(result)

	if len(problems) != 0 {
		t.Fatalf("Expected no problems for a provenance-free ingredient, got %v", problems)
	}
	if len(tree.Root.Ingredients) != 1 || tree.Root.Ingredients[0].Manifest != nil {
		t.Errorf("Expected one ingredient without a manifest, got %+v", tree.Root.Ingredients)
	}
}

func TestNormalizeDiamondGraph(t *testing.T) {
	shared := "urn:lodestone:test:shared"
	result := &domain.VerificationResult{
		ActiveManifest: mock.RootManifest,
		Status:         domain.RawSignatureValid,
		Manifests: map[string]*domain.ManifestRecord{
			mock.RootManifest: {
				Title: "composite.jpg",
				Ingredients: []domain.IngredientRecord{
					{Title: "left.png", Relationship: domain.RelationshipComponentOf, ManifestLabel: shared},
					{Title: "right.png", Relationship: domain.RelationshipComponentOf, ManifestLabel: shared},
				},
			},
			shared: {Title: "shared.png"},
		},
	}

	tree, problems := Normalize(result)

	// A node reachable twice via distinct paths is not a cycle.
	if len(problems) != 0 {
		t.Fatalf("Expected a diamond to normalize cleanly, got %v", problems)
	}
	if len(tree.Root.Ingredients) != 2 {
		t.Fatalf("Expected 2 ingredients, got %d", len(tree.Root.Ingredients))
	}
	for i, ingredient := range tree.Root.Ingredients {
		if ingredient.Manifest == nil {
			t.Errorf("Expected ingredient %d to be expanded", i)
		} else if ingredient.Manifest.Title != "shared.png" {
			t.Errorf("Expected shared.png at ingredient %d, got %s", i, ingredient.Manifest.Title)
		}
	}
	if tree.NodeCount() != 3 {
		t.Errorf("Expected 3 nodes in the expanded diamond, got %d", tree.NodeCount())
	}
}

func TestNormalizeUnusableActiveManifest(t *testing.T) {
	tests := []struct {
		name     string
		result   *domain.VerificationResult
		expected domain.ProblemCode
	}{
		{
			name: "active manifest not in arena",
			result: &domain.VerificationResult{
				ActiveManifest: "urn:uuid:absent",
				Status:         domain.RawSignatureValid,
				Manifests:      map[string]*domain.ManifestRecord{"urn:uuid:other": {Title: "x"}},
			},
			expected: domain.ProblemDanglingReference,
		},
		{
			name: "active manifest is null",
			result: &domain.VerificationResult{
				ActiveManifest: "urn:uuid:null",
				Status:         domain.RawSignatureValid,
				Manifests:      map[string]*domain.ManifestRecord{"urn:uuid:null": nil},
			},
			expected: domain.ProblemDanglingReference,
		},
		{
			name: "no active manifest named",
			result: &domain.VerificationResult{
				Status:    domain.RawSignatureMissing,
				Manifests: map[string]*domain.ManifestRecord{"urn:uuid:orphan": {Title: "x"}},
			},
			expected: domain.ProblemMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, problems := Normalize(tt.result)
			if tree.Root != nil {
				t.Errorf("Expected no root node, got %+v", tree.Root)
			}
			if len(problems) != 1 || problems[0].Code != tt.expected {
				t.Errorf("Expected one %s problem, got %v", tt.expected, problems)
			}
		})
	}
}

func TestNormalizeEmptyGraph(t *testing.T) {
	tree, problems := Normalize(&domain.VerificationResult{Status: domain.RawSignatureMissing})

	if tree.Root != nil {
		t.Errorf("Expected no root for an empty graph, got %+v", tree.Root)
	}
	if len(problems) != 0 {
		t.Errorf("Expected no problems for an empty graph, got %v", problems)
	}
	if tree.NodeCount() != 0 || tree.Depth() != 0 {
		t.Errorf("Expected zero stats, got count %d depth %d", tree.NodeCount(), tree.Depth())
	}
}

func TestNormalizeFallbackLabel(t *testing.T) {
	build := func() *domain.VerificationResult {
		return &domain.VerificationResult{
			ActiveManifest: "",
			Status:         domain.RawSignatureMissing,
			Manifests: map[string]*domain.ManifestRecord{
				"": {Title: "anonymous.jpg", ClaimGenerator: "unknown/0.0.1"},
			},
		}
	}

	first, problems := Normalize(build())
	if len(problems) != 0 {
		t.Fatalf("Expected no problems, got %v", problems)
	}
	if first.Root == nil {
		t.Fatal("Expected the unlabeled manifest to become the root")
	}
	if !strings.HasPrefix(first.Root.Label, "urn:uuid:") {
		t.Errorf("Expected a urn:uuid fallback label, got %q", first.Root.Label)
	}

	second, _ := Normalize(build())
	if first.Root.Label != second.Root.Label {
		t.Errorf("Expected a stable fallback label, got %q and %q", first.Root.Label, second.Root.Label)
	}
}

func TestNormalizePreservesEngineProblems(t *testing.T) {
	result := mock.CyclicResult()
	result.Problems = []domain.StructuralProblem{
		domain.Problem(domain.ProblemMalformedRegion, "$.manifests.x", "assertion box truncated"),
	}

	_, problems := Normalize(result)

	if len(problems) != 2 {
		t.Fatalf("Expected 2 problems, got %d: %v", len(problems), problemCodes(problems))
	}
	// Engine-reported problems come first, traversal problems after.
	if problems[0].Code != domain.ProblemMalformedRegion {
		t.Errorf("Expected engine problem first, got %s", problems[0].Code)
	}
	if problems[1].Code != domain.ProblemCycleDetected {
		t.Errorf("Expected traversal problem second, got %s", problems[1].Code)
	}

	if len(result.Problems) != 1 {
		t.Errorf("Expected the input problem list to stay untouched, got %d entries", len(result.Problems))
	}
}

func TestNormalizeDoesNotMutateResult(t *testing.T) {
	result := mock.SignedResult()
	signedAt := result.Manifests[mock.RootManifest].SignatureInfo.Time

	tree, _ := Normalize(result)

	// Mutating the tree must not reach back into the verification result.
	tree.Root.Assertions[0].Data[0] = '?'
	*tree.Root.Signature.Time = tree.Root.Signature.Time.Add(time.Hour)

	original := mock.SignedResult()
	if string(result.Manifests[mock.RootManifest].Assertions[0].Data) != string(original.Manifests[mock.RootManifest].Assertions[0].Data) {
		t.Error("Expected assertion data in the result to stay untouched")
	}
	if !signedAt.Equal(*original.Manifests[mock.RootManifest].SignatureInfo.Time) {
		t.Error("Expected signature time in the result to stay untouched")
	}
}

func TestNormalizeIdempotence(t *testing.T) {
	results := map[string]*domain.VerificationResult{
		"signed": mock.SignedResult(),
		"cyclic": mock.CyclicResult(),
		"nested": mock.NestedResult(MaxDepth + 3),
	}

	for name, result := range results {
		t.Run(name, func(t *testing.T) {
			firstTree, firstProblems := Normalize(result)
			secondTree, secondProblems := Normalize(result)

			if !reflect.DeepEqual(firstTree, secondTree) {
				t.Error("Expected identical trees from repeated normalization")
			}
			if !reflect.DeepEqual(firstProblems, secondProblems) {
				t.Errorf("Expected identical problem lists, got %v and %v", firstProblems, secondProblems)
			}
		})
	}
}

func TestTreeStats(t *testing.T) {
	tests := []struct {
		name          string
		tree          *Tree
		expectedCount int
		expectedDepth int
	}{
		{"nil tree", nil, 0, 0},
		{"empty tree", &Tree{}, 0, 0},
		{"single node", &Tree{Root: &Node{Title: "a"}}, 1, 0},
		{
			"chain of three",
			&Tree{Root: &Node{Ingredients: []Ingredient{{Manifest: &Node{Ingredients: []Ingredient{{Manifest: &Node{}}}}}}}},
			3, 2,
		},
		{
			"pruned edge does not count",
			&Tree{Root: &Node{Ingredients: []Ingredient{{Manifest: nil}}}},
			1, 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tree.NodeCount(); got != tt.expectedCount {
				t.Errorf("Expected node count %d, got %d", tt.expectedCount, got)
			}
			if got := tt.tree.Depth(); got != tt.expectedDepth {
				t.Errorf("Expected depth %d, got %d", tt.expectedDepth, got)
			}
		})
	}
}
