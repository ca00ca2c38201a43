// ABOUTME: Inspect command showing the raw manifest graph behind an asset
// ABOUTME: Prints the normalized tree and structural problems without a verdict
package inspect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gillisandrew/lodestone/internal/classify"
	"github.com/gillisandrew/lodestone/internal/cmd"
	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/engine"
	"github.com/gillisandrew/lodestone/internal/normalize"
	"github.com/gillisandrew/lodestone/internal/reader"
)

type inspectFlags struct {
	mimeType string
}

func NewInspectCommand(ctx *cmd.CommandContext) *cobra.Command {
	flags := &inspectFlags{}

	inspectCmd := &cobra.Command{
		Use:   "inspect [ASSET_PATH]",
		Short: "Inspect the manifest graph of an asset",
		Long: `Decode the provenance data embedded in an asset and print the manifest
tree as the engine reported it, along with any structural problems.
No trust evaluation happens; this is a debugging view.`,
		Args: cobra.ExactArgs(1),
		Run: func(cobraCmd *cobra.Command, args []string) {
			assetPath := args[0]
			ctx.Logger.Debug("Inspecting asset", ctx.Logger.Args("path", assetPath))

			if err := runInspectCommand(assetPath, flags, ctx); err != nil {
				ctx.Logger.Error("Inspect failed", ctx.Logger.Args("error", err))
				os.Exit(1)
			}
		},
	}

	inspectCmd.Flags().StringVar(&flags.mimeType, "mime", "", "Override the detected MIME type")

	return inspectCmd
}

func runInspectCommand(assetPath string, flags *inspectFlags, ctx *cmd.CommandContext) error {
	data, err := os.ReadFile(assetPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", assetPath, err)
	}

	mimeType := flags.mimeType
	if mimeType == "" {
		mimeType = reader.DetectMIME(assetPath)
	}

	opCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, verifyErr := engine.NewService().Verify(opCtx, data, mimeType)

	var callProblem *domain.StructuralProblem
	if verifyErr != nil {
		if errors.Is(verifyErr, domain.ErrNoProvenance) {
			ctx.Logger.Info("No provenance data found", ctx.Logger.Args("path", assetPath))
			return nil
		}
		if errors.Is(verifyErr, context.Canceled) || errors.Is(verifyErr, context.DeadlineExceeded) {
			return verifyErr
		}
		problem, fatal := classify.Classify(verifyErr)
		if fatal != nil || result == nil {
			return verifyErr
		}
		callProblem = problem
	}

	tree, problems := normalize.Normalize(result)
	if callProblem != nil {
		problems = append(problems, *callProblem)
	}

	ctx.Logger.Info("Manifest graph decoded", ctx.Logger.Args(
		"status", string(result.Status),
		"manifests", len(result.Manifests),
		"nodes", tree.NodeCount(),
		"depth", tree.Depth(),
		"problems", len(problems)))

	if tree.Root != nil {
		pterm.DefaultTree.WithRoot(manifestNode(tree.Root)).Render()
	} else {
		pterm.Warning.Printfln("No usable active manifest")
	}

	if len(problems) > 0 {
		problemData := pterm.TableData{{"CODE", "PATH", "DESCRIPTION"}}
		for _, problem := range problems {
			problemData = append(problemData, []string{string(problem.Code), problem.Path, problem.Description})
		}
		pterm.DefaultTable.WithHasHeader().WithData(problemData).Render()
	} else {
		pterm.Success.Printfln("No structural problems")
	}

	return nil
}

func manifestNode(node *normalize.Node) pterm.TreeNode {
	text := node.Label
	if node.Title != "" {
		text = fmt.Sprintf("%s [%s]", node.Title, node.Label)
	}

	treeNode := pterm.TreeNode{Text: text}
	for _, ingredient := range node.Ingredients {
		treeNode.Children = append(treeNode.Children, ingredientNode(ingredient))
	}
	return treeNode
}

func ingredientNode(ingredient normalize.Ingredient) pterm.TreeNode {
	switch {
	case ingredient.Manifest != nil:
		return manifestNode(ingredient.Manifest)
	case ingredient.ManifestLabel != "":
		return pterm.TreeNode{Text: fmt.Sprintf("%s (pruned: %s)", ingredientTitle(ingredient), ingredient.ManifestLabel)}
	default:
		return pterm.TreeNode{Text: fmt.Sprintf("%s (no provenance)", ingredientTitle(ingredient))}
	}
}

func ingredientTitle(ingredient normalize.Ingredient) string {
	if ingredient.Title == "" {
		return "(untitled)"
	}
	return ingredient.Title
}
