package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cg8-5712/EAIP-Viewer/internal/ecp"
)

var (
	buildVersion     string
	buildPassword    string
	buildCompression string
	buildLevel       int
	buildNoProgress  bool
)

var buildCmd = &cobra.Command{
	Use:   "build <source_dir> <output_path>",
	Short: "Scan a chart tree and seal it into a single .ecp package",
	Args:  cobra.ExactArgs(2),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildVersion, "version", "", "eAIP version tag (auto-detected from source_dir if omitted)")
	buildCmd.Flags().StringVar(&buildPassword, "password", "", "package password (prompted twice on a TTY if omitted)")
	buildCmd.Flags().StringVar(&buildCompression, "compression", "gzip", "gzip|none")
	buildCmd.Flags().IntVar(&buildLevel, "level", 6, "gzip compression level, 1-9")
	buildCmd.Flags().BoolVar(&buildNoProgress, "no-progress", false, "disable progress reporting")
}

func runBuild(cmd *cobra.Command, args []string) error {
	sourceDir, outputPath := args[0], args[1]

	password := buildPassword
	if password == "" {
		var err error
		password, err = promptPasswordTwice()
		if err != nil {
			return err
		}
	}

	algo := ecp.CompressionGzip
	if buildCompression == "none" {
		algo = ecp.CompressionNone
	} else if buildCompression != "gzip" {
		return fmt.Errorf("unsupported --compression %q", buildCompression)
	}

	var progress ecp.ProgressFunc
	if !buildNoProgress {
		progress = func(current, total int, message string) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", current, total, message)
		}
	}

	stats, err := ecp.CreatePackage(ecp.BuildOptions{
		SourceDir:   sourceDir,
		OutputPath:  outputPath,
		Password:    password,
		Version:     buildVersion,
		Compression: ecp.Compression{Algo: algo, Level: buildLevel},
		Progress:    progress,
		Logger:      slog.Default(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d files, %d airports, %.1f%% compression ratio\n",
		stats.OutputPath, stats.TotalFiles, stats.AirportsCount, stats.CompressionRatio*100)
	return nil
}

func promptPasswordTwice() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
