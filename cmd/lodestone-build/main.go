package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dagger.io/dagger"
	"dagger.io/dagger/dag"
	"github.com/spf13/cobra"
)

var (
	ref       string
	commit    string
	directory string
	outputDir string
	version   string

	// Build-time variables (injected via -ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "lodestone-build <path>",
		Short: "Build the lodestone CLI using Dagger",
		Long:  "A CLI tool to build lodestone from a local directory or remote git repository using Dagger",
		Args:  cobra.ExactArgs(1),
		Example: `  # Build from remote repository
  lodestone-build https://github.com/gillisandrew/lodestone.git --ref main
  lodestone-build https://github.com/gillisandrew/lodestone.git --commit abc123def456

  # Build from local directory
  lodestone-build . --output-dir dist
  lodestone-build /path/to/checkout --directory lodestone`,
		Run: func(cmd *cobra.Command, args []string) {
			path := args[0]

			// Validate that both --ref and --commit are not used together
			if ref != "main" && commit != "" {
				fmt.Fprintf(os.Stderr, "Warning: Both --ref and --commit specified. Using commit hash (%s) and ignoring ref (%s).\n", commit, ref)
			}

			finalDirectory := directory
			if finalDirectory == "" {
				finalDirectory = "." // Use root of the path
			}

			if err := build(context.Background(), path, ref, commit, finalDirectory, outputDir, version); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}

	// Version command
	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lodestone-build version %s\n", Version)
			fmt.Printf("Git commit: %s\n", Commit)
			fmt.Printf("Build time: %s\n", BuildTime)
		},
	}

	rootCmd.AddCommand(versionCmd)

	rootCmd.Flags().StringVarP(&ref, "ref", "r", "main", "Git reference (branch or tag) - only used for remote repositories")
	rootCmd.Flags().StringVarP(&commit, "commit", "c", "", "Specific commit hash to use - only used for remote repositories (takes precedence over --ref)")
	rootCmd.Flags().StringVarP(&directory, "directory", "d", "", "Subdirectory to build from (defaults to root of path)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "dist", "Directory where the built binary will be exported")
	rootCmd.Flags().StringVar(&version, "version", "dev", "Version string embedded in the binary")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func build(ctx context.Context, path, ref, commit, directory, outputDir, version string) error {
	fmt.Println("Building with Dagger")
	defer dag.Close()

	// create empty directory to put build outputs
	outputs := dag.Directory()

	var workingDir *dagger.Directory

	// Determine if path is a remote repository URL or local directory
	if isRemoteRepository(path) {
		// Use commit if provided, otherwise use ref
		gitRef := ref
		if commit != "" {
			gitRef = commit
			fmt.Printf("Building from remote repository: %s (commit: %s)\n", path, commit)
		} else {
			fmt.Printf("Building from remote repository: %s (ref: %s)\n", path, ref)
		}

		repo := dag.Git(path).Ref(gitRef).Tree()

		if directory == "." {
			fmt.Printf("Using repository root\n")
			workingDir = repo
		} else {
			fmt.Printf("Using directory: %s\n", directory)
			workingDir = repo.Directory(directory)
		}
	} else {
		fmt.Printf("Building from local directory: %s\n", path)
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path: %v", err)
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", absPath)
		}

		repo := dag.Host().Directory(absPath)
		if directory == "." {
			fmt.Printf("Using entire directory\n")
			workingDir = repo
		} else {
			fmt.Printf("Using subdirectory: %s\n", directory)
			workingDir = repo.Directory(directory)
		}
	}

	buildCommit := commit
	if buildCommit == "" {
		buildCommit = "unknown"
	}
	buildTime := time.Now().UTC().Format(time.RFC3339)
	ldflags := fmt.Sprintf("-s -w -X main.Version=%s -X main.Commit=%s -X main.BuildTime=%s",
		version, buildCommit, buildTime)

	builder := dag.Container().
		From("golang:1.25").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/usr/src/lodestone", workingDir).
		WithWorkdir("/usr/src/lodestone").
		WithExec([]string{"go", "vet", "./..."}).
		WithExec([]string{"go", "test", "./..."}).
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", "bin/lodestone", "./cmd/lodestone"})

	outputs = outputs.WithFile("lodestone", builder.File("bin/lodestone"))

	_, err := outputs.Export(ctx, outputDir)
	if err != nil {
		return err
	}
	return nil
}

// isRemoteRepository checks if the given path is a remote repository URL
func isRemoteRepository(path string) bool {
	return strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "ssh://")
}
