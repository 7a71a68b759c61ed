package cmd

import (
	"fmt"
	"time"

	"go-voxura-native/internal/auth"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Account sign-in helpers",
}

var authCodeCmd = &cobra.Command{
	Use:   "code",
	Short: "Wait for an OAuth redirect on the loopback port and print its target",
	Long: `Listens on AuthAddr (localhost:3432 by default) until a browser is redirected to it,
then prints the raw request target, e.g. /callback?code=ABC123. Malformed requests
get a 400 page and the listener keeps waiting. Gives up after --timeout seconds.`,
	RunE: runAuthCode,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authCodeCmd)

	authCodeCmd.Flags().String("addr", "", "Listen address (overrides config)")
	authCodeCmd.Flags().Int("timeout", 0, "Seconds to wait before giving up (0 uses config)")

	viper.BindPFlag("auth.addr", authCodeCmd.Flags().Lookup("addr"))
	viper.BindPFlag("auth.timeout", authCodeCmd.Flags().Lookup("timeout"))
}

func runAuthCode(cmd *cobra.Command, args []string) error {
	addr := globalConfig.AuthAddr
	if a := viper.GetString("auth.addr"); cmd.Flags().Changed("addr") && a != "" {
		addr = a
	}
	timeout := globalConfig.AuthTimeoutSec
	if t := viper.GetInt("auth.timeout"); cmd.Flags().Changed("timeout") && t > 0 {
		timeout = t
	}

	log.WithField("addr", addr).Info("Waiting for auth redirect")
	target, err := auth.Code(cmd.Context(), addr, time.Duration(timeout)*time.Second)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), target)
	return err
}
