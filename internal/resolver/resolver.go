// Package resolver turns mod archive paths into ModRecords, consulting the
// digest-keyed cache before touching the archive.
package resolver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-voxura-native/internal/errs"
	"go-voxura-native/internal/hasher"
	"go-voxura-native/internal/metrics"
	"go-voxura-native/internal/modarchive"
	"go-voxura-native/internal/modcache"
	"go-voxura-native/internal/models"

	log "github.com/sirupsen/logrus"
)

// Resolver resolves single archives. Cache may be nil; WriteBack, when set,
// receives entries for records that needed the archive.
type Resolver struct {
	Cache     modcache.Lookup
	Algorithm hasher.Algorithm
	WriteBack modcache.Store
}

// Resolve builds the record for the archive at path.
func (r *Resolver) Resolve(path string) (models.ModRecord, error) {
	abs, err := canonicalize(path)
	if err != nil {
		metrics.Resolves.WithLabelValues("error").Inc()
		return models.ModRecord{}, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		metrics.Resolves.WithLabelValues("error").Inc()
		return models.ModRecord{}, fmt.Errorf("%w: reading %s: %v", errs.ErrIO, abs, err)
	}

	rec := models.ModRecord{
		Digest: hasher.Sum(data, r.Algorithm),
		Name:   filepath.Base(abs),
		Path:   abs,
	}

	var cached models.CacheEntry
	var hit bool
	if r.Cache != nil {
		cached, hit, err = r.Cache.Get(rec.Digest)
		if err != nil {
			// The cache is best-effort; a failing lookup is treated as a miss.
			log.WithError(err).WithField("digest", rec.Digest).Warn("Cache lookup failed")
			hit = false
		}
		if hit {
			rec.Seed(cached)
		}
	}

	if rec.Complete() {
		metrics.Resolves.WithLabelValues("cache").Inc()
		return rec, nil
	}

	if err := fillFromArchive(&rec, data); err != nil {
		metrics.Resolves.WithLabelValues("error").Inc()
		return models.ModRecord{}, err
	}
	metrics.Resolves.WithLabelValues("archive").Inc()

	if r.WriteBack != nil {
		r.writeBack(rec, cached)
	}
	return rec, nil
}

// fillFromArchive reads only the fields the record still lacks.
func fillFromArchive(rec *models.ModRecord, data []byte) error {
	archive, err := modarchive.Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%s: %w", rec.Path, err)
	}

	needDescriptor := rec.Metadata == "" || rec.MetadataKind == ""
	needIcon := len(rec.Icon) == 0
	hint := modarchive.Descriptor{Kind: rec.MetadataKind, Text: rec.Metadata}

	contents, err := archive.Scan(needDescriptor, needIcon, hint)
	if err != nil {
		return fmt.Errorf("%s: %w", rec.Path, err)
	}

	if contents.Descriptor.Found() {
		if rec.Metadata == "" {
			rec.Metadata = contents.Descriptor.Text
		}
		if rec.MetadataKind == "" {
			rec.MetadataKind = contents.Descriptor.Kind
		}
	}
	if needIcon {
		rec.Icon = contents.Icon
	}
	return nil
}

// writeBack stores the merged record, keeping the catalog fields of any prior entry.
func (r *Resolver) writeBack(rec models.ModRecord, prior models.CacheEntry) {
	entry := prior
	entry.Icon = rec.Icon
	entry.Metadata = rec.Metadata
	entry.MetadataKind = rec.MetadataKind
	if err := r.WriteBack.Put(rec.Digest, entry); err != nil {
		log.WithError(err).WithField("digest", rec.Digest).Warn("Failed to write cache entry")
	}
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %v", errs.ErrIO, path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", errs.ErrIO, abs)
	}
	return abs, nil
}

// ScanDir resolves every regular file directly inside dir using at most
// concurrency workers. Entries that fail to resolve are logged and omitted.
// Result order follows the directory listing but callers should not rely on it.
func (r *Resolver) ScanDir(ctx context.Context, dir string, concurrency int) ([]models.ModRecord, error) {
	start := time.Now()
	defer func() { metrics.ScanDuration.Observe(time.Since(start).Seconds()) }()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading directory %s: %v", errs.ErrIO, dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	type result struct {
		rec models.ModRecord
		ok  bool
	}
	results := make([]result, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec, err := r.Resolve(paths[i])
				if err != nil {
					log.WithError(err).WithField("path", paths[i]).Warn("Skipping unreadable mod")
					continue
				}
				results[i] = result{rec: rec, ok: true}
			}
		}()
	}

dispatch:
	for i := range paths {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]models.ModRecord, 0, len(paths))
	for _, res := range results {
		if res.ok {
			records = append(records, res.rec)
		}
	}
	log.WithFields(log.Fields{"dir": dir, "files": len(paths), "resolved": len(records)}).Debug("Scan finished")
	return records, nil
}

// FilesExist reports, for each path, whether it exists on disk.
func FilesExist(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		_, err := os.Stat(p)
		out[p] = err == nil
	}
	return out
}
