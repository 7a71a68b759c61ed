package cmd

import (
	"fmt"
	"os"

	"go-voxura-native/internal/errs"
	"go-voxura-native/internal/helpers"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cleanCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean [DIR]",
	Short: "Remove leftover download temp files",
	Long: `Recursively scans DIR and removes any files ending with .tmp, which is what an
interrupted download leaves behind.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	dir := args[0]

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: accessing %s: %v", errs.ErrIO, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", errs.ErrIO, dir)
	}

	log.Infof("Scanning for .tmp files in %s...", dir)
	removed, failed, walkErr := helpers.RemoveTempFiles(dir)
	if walkErr != nil {
		log.Errorf("Error during directory walk of %q: %v", dir, walkErr)
	}

	summary := fmt.Sprintf("Clean complete. Removed: %d .tmp file(s)", removed)
	if failed > 0 {
		summary += fmt.Sprintf(". Failed to remove %d file(s).", failed)
	}
	log.Info(summary)

	if walkErr != nil {
		return walkErr
	}
	if failed > 0 {
		return fmt.Errorf("%w: failed to remove %d temp file(s)", errs.ErrIO, failed)
	}
	return nil
}
