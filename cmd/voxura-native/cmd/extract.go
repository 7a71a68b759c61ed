package cmd

import (
	"go-voxura-native/internal/installer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Unpack installation archives",
	Long: `Unpacks .zip/.jar, .tar.gz, .tar.zst and .tar.xz archives. Each task reports a
two-step progress (started, completed) on the download_update channel.`,
}

var extractArchiveCmd = &cobra.Command{
	Use:   "archive [SRC] [DEST]",
	Short: "Extract a whole archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd, func(i *installer.Installer, id string) error {
			return i.ExtractArchive(cmd.Context(), id, args[0], args[1])
		})
	},
}

var extractNativesCmd = &cobra.Command{
	Use:   "natives [SRC] [DEST]",
	Short: "Copy the platform's native libraries flat into DEST",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd, func(i *installer.Installer, id string) error {
			return i.ExtractNatives(cmd.Context(), id, args[0], args[1])
		})
	},
}

var extractSelectedCmd = &cobra.Command{
	Use:   "selected [SRC] [DEST]",
	Short: "Extract only entries whose path contains --filter",
	Long: `Extracts entries whose archive path contains --filter, relocated to what follows the
match. For example --filter natives writes natives/a.dll as DEST/a.dll.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd, func(i *installer.Installer, id string) error {
			return i.ExtractSelected(cmd.Context(), id, args[0], args[1], viper.GetString("extract.filter"))
		})
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.AddCommand(extractArchiveCmd, extractNativesCmd, extractSelectedCmd)

	extractCmd.PersistentFlags().String("id", "", "Task id attached to progress events (random if empty)")
	extractCmd.PersistentFlags().String("events", "live", "Progress output: live or json")
	extractSelectedCmd.Flags().String("filter", "", "Substring an entry path must contain")
	_ = extractSelectedCmd.MarkFlagRequired("filter")

	viper.BindPFlag("extract.id", extractCmd.PersistentFlags().Lookup("id"))
	viper.BindPFlag("extract.events", extractCmd.PersistentFlags().Lookup("events"))
	viper.BindPFlag("extract.filter", extractSelectedCmd.Flags().Lookup("filter"))
}

func runExtract(cmd *cobra.Command, fn func(i *installer.Installer, id string) error) error {
	emitter, stop, err := newEmitter(cmd, viper.GetString("extract.events"), false)
	if err != nil {
		return err
	}
	defer stop()

	i := installer.New(emitter, globalConfig.NativeSuffixes)
	return fn(i, taskID(viper.GetString("extract.id")))
}
