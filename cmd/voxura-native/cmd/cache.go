package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"go-voxura-native/internal/database"
	"go-voxura-native/internal/helpers"
	"go-voxura-native/internal/modcache"
	"go-voxura-native/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// cacheCmd represents the base command for mod cache operations
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the digest-keyed mod cache",
}

var cacheViewCmd = &cobra.Command{
	Use:   "view",
	Short: "List cached mod entries",
	RunE:  runCacheView,
}

var cacheGetCmd = &cobra.Command{
	Use:   "get [DIGEST]",
	Short: "Print one cache entry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheGet,
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete [DIGEST]",
	Short: "Remove one cache entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheDelete,
}

var cacheAddCmd = &cobra.Command{
	Use:   "add [MOD_FILE]",
	Short: "Read a mod archive and store it in the cache with its project identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheAdd,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheViewCmd, cacheGetCmd, cacheDeleteCmd, cacheAddCmd)

	cacheAddCmd.Flags().String("project-id", "", "Catalog project id")
	cacheAddCmd.Flags().String("version", "", "Catalog version id")
	cacheAddCmd.Flags().String("platform", "", "Catalog platform (e.g. modrinth)")
}

func runCacheView(cmd *cobra.Command, args []string) error {
	return withDB(func(db *database.DB) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Digest\tProject\tVersion\tPlatform\tDescriptor\tIcon")
		fmt.Fprintln(tw, "------\t-------\t-------\t--------\t----------\t----")

		count := 0
		err := modcache.NewDBCache(db).Each(func(digest string, e models.CacheEntry) error {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				digest, e.ID, e.Version, e.Platform, e.MetadataKind, helpers.BytesToSize(uint64(len(e.Icon))))
			count++
			return nil
		})
		if err != nil {
			log.WithError(err).Error("Error occurred during cache scan")
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		log.Infof("Displayed %d entries.", count)
		return nil
	})
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	return withDB(func(db *database.DB) error {
		entry, ok, err := modcache.NewDBCache(db).Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no cache entry for %s", args[0])
		}
		return printJSON(cmd, entry)
	})
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	return withDB(func(db *database.DB) error {
		err := modcache.NewDBCache(db).Delete(args[0])
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no cache entry for %s", args[0])
		}
		if err != nil {
			return err
		}
		log.Infof("Deleted cache entry %s", args[0])
		return nil
	})
}

func runCacheAdd(cmd *cobra.Command, args []string) error {
	return withDB(func(db *database.DB) error {
		r, err := newResolver(cmd, db)
		if err != nil {
			return err
		}
		// Read from the archive itself, not from whatever is already cached.
		r.Cache = nil
		r.WriteBack = nil

		rec, err := r.Resolve(args[0])
		if err != nil {
			return err
		}

		entry := models.CacheEntry{Icon: rec.Icon, Metadata: rec.Metadata, MetadataKind: rec.MetadataKind}
		entry.ID, _ = cmd.Flags().GetString("project-id")
		entry.Version, _ = cmd.Flags().GetString("version")
		entry.Platform, _ = cmd.Flags().GetString("platform")

		if err := modcache.NewDBCache(db).Put(rec.Digest, entry); err != nil {
			return err
		}
		log.WithField("digest", rec.Digest).Infof("Cached %s", rec.Name)
		return printJSON(cmd, entry)
	})
}
