package cmd

import (
	"fmt"

	"go-voxura-native/internal/hasher"
	"go-voxura-native/internal/resolver"

	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash [FILE]",
	Short: "Print the content digest used as the mod cache key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := globalConfig.DigestAlgorithm
		if cmd.Flags().Changed("algo") {
			name, _ = cmd.Flags().GetString("algo")
		}
		algo, err := hasher.ParseAlgorithm(name)
		if err != nil {
			return err
		}
		digest, err := hasher.Digest(args[0], algo)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), digest)
		return err
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists [PATH...]",
	Short: "Report which of the given paths exist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, resolver.FilesExist(args))
	},
}

func init() {
	rootCmd.AddCommand(hashCmd, existsCmd)
	hashCmd.Flags().String("algo", "", "Digest algorithm, md5 or blake3 (overrides config)")
}
