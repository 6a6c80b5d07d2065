package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/gopherscan/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/gopherscan.yaml
var configTemplate embed.FS

const templatePath = "templates/gopherscan.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a gopherscan configuration file",
		Long: `Init writes a commented .gopherscan file to the current directory.

The file documents the default timeouts, request delay and response size
limit, and shows how to override them for a single server or skip
selectors with ignore patterns.

Examples:
  # Create .gopherscan in the current directory
  gopherscan init

  # Create the file at a specific path
  gopherscan init -o ~/.gopherscan

  # Overwrite an existing file
  gopherscan init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if err := writeFileWithDirs(outputPath, content); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to set, per server:")
	fmt.Fprintln(out, "  - connect and read timeouts")
	fmt.Fprintln(out, "  - the delay between requests")
	fmt.Fprintln(out, "  - selectors to skip")

	return nil
}

// writeFileWithDirs writes data to path with mode 0600, creating missing
// parent directories with mode 0750.
func writeFileWithDirs(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
