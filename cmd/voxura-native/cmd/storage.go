package cmd

import (
	"encoding/json"
	"fmt"

	"go-voxura-native/internal/database"

	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Read and write JSON settings in the key-value store",
}

var storageGetCmd = &cobra.Command{
	Use:   "get [KEY]",
	Short: "Print the JSON value stored under KEY, or --default if there is none",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, _ := cmd.Flags().GetString("default")
		if !json.Valid([]byte(def)) {
			return fmt.Errorf("--default is not valid JSON: %s", def)
		}
		return withDB(func(db *database.DB) error {
			v, err := db.GetJSON(args[0], json.RawMessage(def))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return err
		})
	},
}

var storageSetCmd = &cobra.Command{
	Use:   "set [KEY] [JSON]",
	Short: "Store a JSON value under KEY",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *database.DB) error {
			return db.SetJSON(args[0], json.RawMessage(args[1]))
		})
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(storageGetCmd, storageSetCmd)
	storageGetCmd.Flags().String("default", "null", "JSON returned when the key is absent")
}
