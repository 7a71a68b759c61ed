// Package installer unpacks downloaded assets: whole archives, a filtered
// subtree, or just the platform's native libraries.
package installer

import (
	"context"
	"path"
	"runtime"
	"strings"

	"go-voxura-native/internal/events"
	"go-voxura-native/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// NativeSuffixes returns the shared-library extensions for goos.
func NativeSuffixes(goos string) []string {
	switch goos {
	case "windows":
		return []string{".dll"}
	case "darwin":
		return []string{".dylib", ".jnilib"}
	default:
		return []string{".so"}
	}
}

// Installer runs extraction tasks and reports their two-step progress.
type Installer struct {
	emitter  events.Emitter
	suffixes []string
}

// New returns an Installer. Empty suffixes default to the host platform's.
func New(emitter events.Emitter, suffixes []string) *Installer {
	if emitter == nil {
		emitter = events.Discard
	}
	if len(suffixes) == 0 {
		suffixes = NativeSuffixes(runtime.GOOS)
	}
	return &Installer{emitter: emitter, suffixes: suffixes}
}

// ExtractArchive unpacks all of src into dest.
func (i *Installer) ExtractArchive(ctx context.Context, id, src, dest string) error {
	return i.run(ctx, id, src, func(a Archive) error {
		return a.ExtractAll(ctx, dest)
	})
}

// ExtractSelected unpacks only entries whose path contains filter. Each
// written path is what follows the first occurrence of filter.
func (i *Installer) ExtractSelected(ctx context.Context, id, src, dest, filter string) error {
	return i.run(ctx, id, src, func(a Archive) error {
		return a.ExtractFiltered(ctx, dest, SelectMapper(filter))
	})
}

// ExtractNatives copies native libraries from src flat into dest.
func (i *Installer) ExtractNatives(ctx context.Context, id, src, dest string) error {
	return i.run(ctx, id, src, func(a Archive) error {
		return a.ExtractFiltered(ctx, dest, NativesMapper(i.suffixes))
	})
}

// StartArchive runs ExtractArchive in the background.
func (i *Installer) StartArchive(ctx context.Context, id, src, dest string) {
	go i.background(id, func() error { return i.ExtractArchive(ctx, id, src, dest) })
}

// StartNatives runs ExtractNatives in the background.
func (i *Installer) StartNatives(ctx context.Context, id, src, dest string) {
	go i.background(id, func() error { return i.ExtractNatives(ctx, id, src, dest) })
}

func (i *Installer) background(id string, fn func() error) {
	if err := fn(); err != nil {
		log.WithError(err).WithField("id", id).Error("Extraction failed")
	}
}

func (i *Installer) run(ctx context.Context, id, src string, extract func(Archive) error) (err error) {
	format, _ := DetectFormat(src)
	defer func() {
		metrics.Extractions.WithLabelValues(format.String(), metrics.Result(err)).Inc()
		if err != nil {
			i.emit(id, events.ExtractStarted, err.Error())
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := OpenArchive(src)
	if err != nil {
		return err
	}
	defer a.Close()

	i.emit(id, events.ExtractStarted, "")
	log.WithFields(log.Fields{"id": id, "src": src, "format": a.Format()}).Info("Extracting")

	if err := extract(a); err != nil {
		return err
	}
	i.emit(id, events.ExtractDone, "")
	return nil
}

func (i *Installer) emit(id string, step uint64, errMsg string) {
	events.Notify(i.emitter, events.DownloadUpdate, events.Progress{
		ID:       id,
		Total:    events.ExtractSteps,
		Progress: step,
		Error:    errMsg,
	})
}

// SelectMapper keeps entries containing filter, relocated to the remainder of
// the path after the match. Entries whose remainder is empty are skipped.
func SelectMapper(filter string) Mapper {
	return func(e Entry) (string, bool) {
		idx := strings.Index(e.Name, filter)
		if filter == "" || idx < 0 {
			return "", false
		}
		rel := strings.TrimLeft(e.Name[idx+len(filter):], "/")
		if rel == "" {
			return "", false
		}
		return rel, true
	}
}

// NativesMapper keeps files with one of suffixes, flattened to their base name.
// Symlinks are left out: flattening breaks their relative targets, and the
// library they point at is copied in its own right.
func NativesMapper(suffixes []string) Mapper {
	return func(e Entry) (string, bool) {
		if e.IsDir || e.Symlink {
			return "", false
		}
		base := path.Base(e.Name)
		lower := strings.ToLower(base)
		for _, s := range suffixes {
			if strings.HasSuffix(lower, strings.ToLower(s)) {
				return base, true
			}
		}
		return "", false
	}
}
