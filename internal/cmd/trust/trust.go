// ABOUTME: Trust command group for working with configured trust material
// ABOUTME: Validates anchors and store config and prints the resulting policy
package trust

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gillisandrew/lodestone/internal/cmd"
	"github.com/gillisandrew/lodestone/internal/config"
	"github.com/gillisandrew/lodestone/internal/trust"
)

type checkFlags struct {
	anchors     string
	allowed     string
	storeConfig string
}

func NewTrustCommand(ctx *cmd.CommandContext) *cobra.Command {
	trustCmd := &cobra.Command{
		Use:   "trust",
		Short: "Manage trust material",
		Long: `Work with the trust anchors, allowed intermediates, and store
configuration that back trust evaluation during reads.`,
	}

	trustCmd.AddCommand(newCheckCommand(ctx))

	return trustCmd
}

func newCheckCommand(ctx *cmd.CommandContext) *cobra.Command {
	flags := &checkFlags{}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configured trust material",
		Long: `Parse the configured trust anchors, allowed intermediates, and store
configuration, and print the certificates the resulting policy would
accept. Material comes from flags or from the configuration file.`,
		Run: func(cobraCmd *cobra.Command, args []string) {
			if err := runCheckCommand(flags, ctx); err != nil {
				ctx.Logger.Error("Trust check failed", ctx.Logger.Args("error", err))
				os.Exit(1)
			}
		},
	}

	checkCmd.Flags().StringVar(&flags.anchors, "anchors", "", "Path to PEM-encoded trust anchors")
	checkCmd.Flags().StringVar(&flags.allowed, "allowed", "", "Path to PEM-encoded allowed intermediates")
	checkCmd.Flags().StringVar(&flags.storeConfig, "store-config", "", "Path to the trust store configuration")

	return checkCmd
}

func runCheckCommand(flags *checkFlags, ctx *cmd.CommandContext) error {
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

	trustPaths := cmd.ResolveTrustPaths(cmd.TrustPaths{
		Anchors:     flags.anchors,
		Allowed:     flags.allowed,
		StoreConfig: flags.storeConfig,
	}, cfg, configPath)

	if trustPaths.Empty() {
		return fmt.Errorf("no trust material configured: pass --anchors and --store-config or set them in %s", config.ConfigFileName)
	}

	material, err := cmd.LoadTrustMaterial(trustPaths)
	if err != nil {
		return err
	}

	manager := trust.NewManager()
	if err := manager.Configure(material.Anchors, material.Allowed, material.StoreConfig); err != nil {
		var configErr *trust.ConfigError
		if errors.As(err, &configErr) {
			ctx.Logger.Error("Trust material rejected",
				ctx.Logger.Args("code", configErr.Code, "detail", configErr.Detail))
		}
		return err
	}

	policy := manager.CurrentPolicy()
	storeConfig := policy.Config()
	anchors := policy.Anchors()
	intermediates := policy.Intermediates()

	table := pterm.TableData{{"KIND", "SUBJECT", "ISSUER", "SERIAL", "NOT AFTER", "FINGERPRINT"}}
	for _, cert := range anchors {
		table = append(table, certRow("anchor", cert))
	}
	for _, cert := range intermediates {
		table = append(table, certRow("intermediate", cert))
	}
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()

	pterm.Success.Printfln("Trust material is valid")
	if storeConfig.Name != "" {
		pterm.Info.Printfln("Store: %s (schema %s)", storeConfig.Name, storeConfig.Version)
	} else {
		pterm.Info.Printfln("Store schema version: %s", storeConfig.Version)
	}

	ctx.Logger.Info("Trust policy loaded",
		ctx.Logger.Args("anchors", len(anchors), "intermediates", len(intermediates)))

	return nil
}

func certRow(kind string, cert *x509.Certificate) []string {
	return []string{
		kind,
		cert.Subject.CommonName,
		cert.Issuer.CommonName,
		cert.SerialNumber.String(),
		cert.NotAfter.Format("2006-01-02"),
		shortFingerprint(cert),
	}
}

// shortFingerprint trims the fingerprint to a width that fits the table.
func shortFingerprint(cert *x509.Certificate) string {
	return trust.Fingerprint(cert).Encoded()[:12]
}
