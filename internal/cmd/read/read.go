// ABOUTME: Read command extracting provenance reports from assets
// ABOUTME: Runs the read pipeline and renders text or canonical JSON output
package read

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gillisandrew/lodestone/internal/cmd"
	"github.com/gillisandrew/lodestone/internal/config"
	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/reader"
	"github.com/gillisandrew/lodestone/internal/report"
	"github.com/gillisandrew/lodestone/internal/trust"
)

type readFlags struct {
	minimal       bool
	withThumbnail bool
	noVerifyTrust bool
	mimeType      string
	format        string
	output        string
	anchors       string
	allowed       string
	storeConfig   string
}

func NewReadCommand(ctx *cmd.CommandContext) *cobra.Command {
	flags := &readFlags{}

	readCmd := &cobra.Command{
		Use:   "read [ASSET_PATH]",
		Short: "Read and verify provenance from an asset",
		Long: `Read the provenance manifest embedded in an asset, verify it against
the configured trust material, and print a report.

Assets without provenance data exit cleanly with a notice. Trust
evaluation requires anchors and a store config; without them a valid
signature caps at Valid instead of Trusted.

Example:
  lodestone read photos/sunset.json --format json`,
		Args: cobra.ExactArgs(1),
		Run: func(cobraCmd *cobra.Command, args []string) {
			assetPath := args[0]
			ctx.Logger.Debug("Reading asset", ctx.Logger.Args("path", assetPath))

			if err := runReadCommand(assetPath, flags, ctx); err != nil {
				ctx.Logger.Error("Read failed", ctx.Logger.Args("error", err))
				os.Exit(1)
			}
		},
	}

	readCmd.Flags().BoolVar(&flags.minimal, "minimal", false, "Render the minimal report view")
	readCmd.Flags().BoolVar(&flags.withThumbnail, "with-thumbnail", false, "Keep the thumbnail in the minimal view")
	readCmd.Flags().BoolVar(&flags.noVerifyTrust, "no-verify-trust", false, "Skip trust evaluation")
	readCmd.Flags().StringVar(&flags.mimeType, "mime", "", "Override the detected MIME type")
	readCmd.Flags().StringVar(&flags.format, "format", "", "Output format: text or json")
	readCmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the canonical JSON report to a file")
	readCmd.Flags().StringVar(&flags.anchors, "anchors", "", "Path to PEM-encoded trust anchors")
	readCmd.Flags().StringVar(&flags.allowed, "allowed", "", "Path to PEM-encoded allowed intermediates")
	readCmd.Flags().StringVar(&flags.storeConfig, "store-config", "", "Path to the trust store configuration")

	return readCmd
}

func runReadCommand(assetPath string, flags *readFlags, ctx *cmd.CommandContext) error {
	// Load configuration
	configOpts := config.DefaultConfigOpts().WithCreateIfMissing(false)
	if ctx.ConfigPath != "" {
		configOpts = configOpts.WithConfigPath(ctx.ConfigPath)
	}
	configManager := config.NewConfigManager(configOpts)
	cfg, configPath, err := configManager.LoadConfig()
	if err != nil {
		ctx.Logger.Warn("Failed to load configuration, using defaults", ctx.Logger.Args("error", err))
		cfg = config.DefaultConfig()
		configPath = ""
	}

	// Flags sharpen the configured behavior, they never loosen it
	mode := report.ModeFull
	if cfg.Extraction.Mode == "minimal" || flags.minimal {
		mode = report.ModeMinimal
	}
	includeThumbnail := cfg.Extraction.IncludeThumbnail || flags.withThumbnail
	verifyTrust := cfg.Extraction.VerifyTrust && !flags.noVerifyTrust

	format := cfg.Output.Format
	if flags.format != "" {
		format = flags.format
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid output format: %s (must be 'text' or 'json')", format)
	}

	// Configure trust material when trust evaluation is on
	manager := trust.NewManager()
	if verifyTrust {
		trustPaths := cmd.ResolveTrustPaths(cmd.TrustPaths{
			Anchors:     flags.anchors,
			Allowed:     flags.allowed,
			StoreConfig: flags.storeConfig,
		}, cfg, configPath)

		if trustPaths.Empty() {
			ctx.Logger.Debug("No trust material configured, reads cap at Valid")
		} else {
			material, err := cmd.LoadTrustMaterial(trustPaths)
			if err != nil {
				return err
			}
			if err := manager.Configure(material.Anchors, material.Allowed, material.StoreConfig); err != nil {
				return fmt.Errorf("failed to configure trust: %w", err)
			}
			ctx.Logger.Debug("Trust policy configured",
				ctx.Logger.Args("anchors", trustPaths.Anchors, "storeConfig", trustPaths.StoreConfig))
		}
	}

	readerOpts := reader.DefaultReaderOpts().
		WithMode(mode).
		WithIncludeThumbnail(includeThumbnail).
		WithVerifyTrust(verifyTrust)
	assetReader := reader.NewReader(nil, manager, readerOpts)

	opCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result *report.Report
	var readErr error
	if flags.mimeType != "" {
		data, err := os.ReadFile(assetPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", assetPath, err)
		}
		result, readErr = assetReader.ReadBytes(opCtx, data, flags.mimeType)
	} else {
		result, readErr = assetReader.ReadFile(opCtx, assetPath)
	}

	if readErr != nil {
		if errors.Is(readErr, domain.ErrNoProvenance) {
			ctx.Logger.Info("No provenance data found", ctx.Logger.Args("path", assetPath))
			return nil
		}
		return readErr
	}

	canonical, err := result.Canonical()
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if flags.output != "" {
		if err := os.WriteFile(flags.output, canonical, 0644); err != nil {
			return fmt.Errorf("failed to write report to %s: %w", flags.output, err)
		}
		ctx.Logger.Info("Report written", ctx.Logger.Args("path", flags.output, "bytes", len(canonical)))
	}

	if format == "json" {
		fmt.Println(string(canonical))
		return nil
	}

	renderTextReport(result)
	ctx.Logger.Debug("Read completed",
		ctx.Logger.Args("state", string(result.ValidationState), "problems", len(result.StructuralProblems)))

	return nil
}

func renderTextReport(result *report.Report) {
	pterm.DefaultSection.Println(displayTitle(result.Title))

	info := pterm.TableData{
		{"STATE", stateStyle(result.ValidationState).Sprint(string(result.ValidationState))},
	}
	if result.Generator != "" {
		info = append(info, []string{"GENERATOR", result.Generator})
	}
	if result.SignatureInfo != nil {
		info = append(info, []string{"ISSUER", result.SignatureInfo.Issuer})
		if result.SignatureInfo.Time != nil {
			info = append(info, []string{"SIGNED", result.SignatureInfo.Time.Format(time.RFC3339)})
		}
		if result.SignatureInfo.SerialNumber != "" {
			info = append(info, []string{"SERIAL", result.SignatureInfo.SerialNumber})
		}
	}
	if result.Thumbnail != nil {
		info = append(info, []string{"THUMBNAIL", fmt.Sprintf("%s, %d bytes", result.Thumbnail.Format, result.Thumbnail.Size)})
	}
	pterm.DefaultTable.WithData(info).Render()

	if len(result.Ingredients) > 0 {
		pterm.DefaultSection.WithLevel(2).Println("Ingredients")
		pterm.DefaultTree.WithRoot(ingredientTree(result)).Render()
	}

	if len(result.Assertions) > 0 {
		pterm.DefaultSection.WithLevel(2).Println("Assertions")
		assertionData := pterm.TableData{{"LABEL", "SIZE"}}
		for _, assertion := range result.Assertions {
			assertionData = append(assertionData, []string{assertion.Label, fmt.Sprintf("%d bytes", len(assertion.Data))})
		}
		pterm.DefaultTable.WithHasHeader().WithData(assertionData).Render()
	}

	if len(result.StructuralProblems) > 0 {
		pterm.DefaultSection.WithLevel(2).Println("Structural problems")
		problemData := pterm.TableData{{"CODE", "PATH", "DESCRIPTION"}}
		for _, problem := range result.StructuralProblems {
			problemData = append(problemData, []string{string(problem.Code), problem.Path, problem.Description})
		}
		pterm.DefaultTable.WithHasHeader().WithData(problemData).Render()
	}
}

func stateStyle(state domain.ValidationState) *pterm.Style {
	switch state {
	case domain.StateTrusted:
		return pterm.NewStyle(pterm.FgGreen, pterm.Bold)
	case domain.StateValid:
		return pterm.NewStyle(pterm.FgGreen)
	case domain.StateNoSignature:
		return pterm.NewStyle(pterm.FgYellow)
	default:
		return pterm.NewStyle(pterm.FgRed)
	}
}

func ingredientTree(result *report.Report) pterm.TreeNode {
	root := pterm.TreeNode{Text: displayTitle(result.Title)}
	for _, ingredient := range result.Ingredients {
		root.Children = append(root.Children, ingredientNode(ingredient))
	}
	return root
}

func ingredientNode(ingredient report.Ingredient) pterm.TreeNode {
	text := displayTitle(ingredient.Title)
	if ingredient.Relationship != "" {
		text = fmt.Sprintf("%s (%s)", text, ingredient.Relationship)
	}
	node := pterm.TreeNode{Text: text}
	if ingredient.Manifest != nil {
		for _, nested := range ingredient.Manifest.Ingredients {
			node.Children = append(node.Children, ingredientNode(nested))
		}
	}
	return node
}

func displayTitle(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}
