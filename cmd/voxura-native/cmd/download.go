package cmd

import (
	"fmt"
	"os"

	"go-voxura-native/internal/downloader"
	"go-voxura-native/internal/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download an asset with progress reporting",
	Long: `Streams --url into --dest. Progress is reported every ProgressThresholdBytes and on
completion, either as a live terminal display or, with --events json, as JSON lines
on stdout for a host process.`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("url", "", "Source URL")
	downloadCmd.Flags().String("dest", "", "Destination file path")
	downloadCmd.Flags().String("id", "", "Task id attached to progress events (random if empty)")
	downloadCmd.Flags().Int("timeout", 0, "HTTP timeout in seconds (0 uses config)")
	downloadCmd.PersistentFlags().String("events", "live", "Progress output: live or json")
	_ = downloadCmd.MarkFlagRequired("url")
	_ = downloadCmd.MarkFlagRequired("dest")

	viper.BindPFlag("download.url", downloadCmd.Flags().Lookup("url"))
	viper.BindPFlag("download.dest", downloadCmd.Flags().Lookup("dest"))
	viper.BindPFlag("download.id", downloadCmd.Flags().Lookup("id"))
	viper.BindPFlag("download.timeout", downloadCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("download.events", downloadCmd.PersistentFlags().Lookup("events"))
}

// taskID returns the given id or a fresh random one.
func taskID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// newEmitter picks the progress sink for mode. The returned stop func must be
// called once the task is finished.
func newEmitter(cmd *cobra.Command, mode string, bytes bool) (events.Emitter, func(), error) {
	switch mode {
	case "json":
		return events.NewJSONLines(cmd.OutOrStdout()), func() {}, nil
	case "live", "":
		r := newProgressRenderer(os.Stderr, bytes)
		return r, r.Stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown events mode %q (want live or json)", mode)
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	if t := viper.GetInt("download.timeout"); cmd.Flags().Changed("timeout") && t > 0 {
		globalConfig.DownloadTimeoutSec = t
	}
	client, closeLog, err := newHTTPClient()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLog(); err != nil {
			log.WithError(err).Error("Error closing HTTP log file")
		}
	}()

	emitter, stop, err := newEmitter(cmd, viper.GetString("download.events"), true)
	if err != nil {
		return err
	}
	defer stop()

	id := taskID(viper.GetString("download.id"))
	d := downloader.NewDownloader(client, emitter, globalConfig.ProgressThresholdBytes)
	return d.Download(cmd.Context(), id, viper.GetString("download.dest"), viper.GetString("download.url"))
}
