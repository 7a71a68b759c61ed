package helpers

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TempSuffix marks in-flight download files.
const TempSuffix = ".tmp"

// CounterWriter tracks the number of bytes written to the underlying writer
// and reports the running total after each write.
type CounterWriter struct {
	Total   uint64
	Writer  io.Writer
	OnWrite func(total uint64)
}

// Write implements the io.Writer interface for CounterWriter.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	if n > 0 && cw.OnWrite != nil {
		cw.OnWrite(cw.Total)
	}
	return n, err
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// CheckAndMakeDir ensures a directory exists, creating parents as needed.
func CheckAndMakeDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return err
	}
	return nil
}

// SafeJoin joins an archive-internal name onto dest, refusing names that
// would land outside dest.
func SafeJoin(dest, name string) (string, error) {
	cleanDest := filepath.Clean(dest)
	target := filepath.Join(cleanDest, filepath.FromSlash(name))
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes %s", name, dest)
	}
	return target, nil
}

// RemoveTempFiles walks root and deletes leftover download temp files.
// It returns how many were removed and how many could not be.
func RemoveTempFiles(root string) (removed, failed int, err error) {
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Error accessing path %q during scan: %v", path, err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), TempSuffix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			log.Errorf("Failed to remove %q: %v", path, err)
			failed++
			return nil
		}
		log.Infof("Removed %s", path)
		removed++
		return nil
	})
	return removed, failed, walkErr
}
