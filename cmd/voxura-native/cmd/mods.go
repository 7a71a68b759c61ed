package cmd

import (
	"fmt"

	"go-voxura-native/index"
	"go-voxura-native/internal/database"
	"go-voxura-native/internal/hasher"
	"go-voxura-native/internal/modcache"
	"go-voxura-native/internal/models"
	"go-voxura-native/internal/resolver"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: "Read mod archive metadata",
}

var modsReadCmd = &cobra.Command{
	Use:   "read [PATH]",
	Short: "Resolve one mod archive",
	Long:  `Prints the digest, file name, icon and loader descriptor of a single mod archive as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runModsRead,
}

var modsScanCmd = &cobra.Command{
	Use:   "scan [DIR]",
	Short: "Resolve every mod archive in a directory",
	Long: `Resolves every regular file directly inside DIR in parallel. Files that cannot be
read as mod archives are logged and left out of the result.`,
	Args: cobra.ExactArgs(1),
	RunE: runModsScan,
}

var modsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the index of scanned mods",
	Long:  `Runs a Bleve query string (e.g. 'sodium' or '+loader:fabric') against the mods indexed by 'mods scan --index'.`,
	RunE:  runModsSearch,
}

func init() {
	rootCmd.AddCommand(modsCmd)
	modsCmd.AddCommand(modsReadCmd, modsScanCmd, modsSearchCmd)

	modsCmd.PersistentFlags().String("algo", "", "Digest algorithm, md5 or blake3 (overrides config)")
	modsCmd.PersistentFlags().Bool("write-back", false, "Store archive-derived metadata in the cache (overrides config)")
	modsScanCmd.Flags().IntP("concurrency", "c", 0, "Number of resolver workers (0 uses config)")
	modsReadCmd.Flags().Bool("index", false, "Add the mod to the search index")
	modsScanCmd.Flags().Bool("index", false, "Add the scanned mods to the search index")
	modsScanCmd.Flags().Bool("rebuild", false, "Drop the search index before adding the scanned mods (with --index)")
	modsSearchCmd.Flags().StringP("query", "q", "", "Query string")
	_ = modsSearchCmd.MarkFlagRequired("query")

	viper.BindPFlag("mods.algo", modsCmd.PersistentFlags().Lookup("algo"))
	viper.BindPFlag("mods.write_back", modsCmd.PersistentFlags().Lookup("write-back"))
	viper.BindPFlag("scan.concurrency", modsScanCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("read.index", modsReadCmd.Flags().Lookup("index"))
	viper.BindPFlag("scan.index", modsScanCmd.Flags().Lookup("index"))
	viper.BindPFlag("scan.rebuild", modsScanCmd.Flags().Lookup("rebuild"))
	viper.BindPFlag("search.query", modsSearchCmd.Flags().Lookup("query"))
}

// newResolver builds a resolver over the database-backed cache.
func newResolver(cmd *cobra.Command, db *database.DB) (*resolver.Resolver, error) {
	algoName := globalConfig.DigestAlgorithm
	if cmd.Flags().Changed("algo") {
		algoName = viper.GetString("mods.algo")
	}
	algo, err := hasher.ParseAlgorithm(algoName)
	if err != nil {
		return nil, err
	}

	cache := modcache.NewDBCache(db)
	r := &resolver.Resolver{Cache: cache, Algorithm: algo}

	writeBack := globalConfig.CacheWriteBack
	if cmd.Flags().Changed("write-back") {
		writeBack = viper.GetBool("mods.write_back")
	}
	if writeBack {
		r.WriteBack = cache
	}
	return r, nil
}

func runModsRead(cmd *cobra.Command, args []string) error {
	return withDB(func(db *database.DB) error {
		r, err := newResolver(cmd, db)
		if err != nil {
			return err
		}
		rec, err := r.Resolve(args[0])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("index") && viper.GetBool("read.index") {
			if err := indexOne(rec); err != nil {
				return err
			}
		}
		return printJSON(cmd, rec)
	})
}

func runModsScan(cmd *cobra.Command, args []string) error {
	concurrency := globalConfig.ScanConcurrency
	if n := viper.GetInt("scan.concurrency"); cmd.Flags().Changed("concurrency") && n > 0 {
		concurrency = n
	}

	var recs []models.ModRecord
	err := withDB(func(db *database.DB) error {
		r, err := newResolver(cmd, db)
		if err != nil {
			return err
		}
		recs, err = r.ScanDir(cmd.Context(), args[0], concurrency)
		return err
	})
	if err != nil {
		return err
	}
	log.Infof("Resolved %d mods in %s", len(recs), args[0])

	if viper.GetBool("scan.index") && cmd.Flags().Changed("index") {
		if cmd.Flags().Changed("rebuild") && viper.GetBool("scan.rebuild") {
			if err := index.DeleteIndex(globalConfig.IndexPath); err != nil {
				return fmt.Errorf("failed to drop index: %w", err)
			}
		}
		idx, err := index.OpenOrCreateIndex(globalConfig.IndexPath)
		if err != nil {
			return fmt.Errorf("failed to open index: %w", err)
		}
		defer idx.Close()
		if err := index.IndexRecords(idx, recs); err != nil {
			return fmt.Errorf("failed to index mods: %w", err)
		}
		log.Infof("Indexed %d mods", len(recs))
	}
	return printJSON(cmd, recs)
}

// indexOne adds or updates a single resolved mod in the search index.
func indexOne(rec models.ModRecord) error {
	idx, err := index.OpenOrCreateIndex(globalConfig.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer idx.Close()
	if err := index.IndexItem(idx, index.ItemFromRecord(rec)); err != nil {
		return fmt.Errorf("failed to index %s: %w", rec.Name, err)
	}
	log.WithField("digest", rec.Digest).Info("Indexed mod")
	return nil
}

func runModsSearch(cmd *cobra.Command, args []string) error {
	idx, err := index.OpenOrCreateIndex(globalConfig.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer idx.Close()

	res, err := index.SearchIndex(idx, viper.GetString("search.query"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	hits := make([]map[string]interface{}, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, h.Fields)
	}
	return printJSON(cmd, hits)
}
