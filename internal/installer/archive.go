package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go-voxura-native/internal/errs"
	"go-voxura-native/internal/helpers"

	log "github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported archive format", errs.ErrIO)
	ErrUnsafePath        = fmt.Errorf("%w: archive entry escapes destination", errs.ErrCorruptArchive)
)

// Entry describes one archive member. Symlink entries carry their target in
// Linkname; hard links are reported as plain files.
type Entry struct {
	Name     string
	Size     int64
	IsDir    bool
	Symlink  bool
	Linkname string
}

// Mapper decides where an entry goes, relative to the destination.
// Returning ok=false skips the entry.
type Mapper func(e Entry) (rel string, ok bool)

// Archive is the per-format extraction capability.
type Archive interface {
	Format() Format
	Entries() ([]Entry, error)
	ExtractAll(ctx context.Context, dest string) error
	ExtractFiltered(ctx context.Context, dest string, mapper Mapper) error
	Close() error
}

// OpenArchive opens path with the implementation for its detected format.
func OpenArchive(path string) (Archive, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatZip:
		return openZip(path)
	default:
		return openTar(path, format)
	}
}

func identity(e Entry) (string, bool) {
	return e.Name, true
}

// extraction writes entries under dest and can undo what it wrote. Every
// path is first written under a temporary name and renamed into place, so
// a file that already existed is moved aside rather than truncated.
type extraction struct {
	dest    string
	created []string          // files, links and directories that did not exist before
	isNew   map[string]bool   // membership for created
	backups map[string]string // replaced target -> moved-aside original
}

func newExtraction(dest string) (*extraction, error) {
	if err := helpers.CheckAndMakeDir(dest); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", errs.ErrIO, dest, err)
	}
	return &extraction{
		dest:    filepath.Clean(dest),
		isNew:   map[string]bool{},
		backups: map[string]string{},
	}, nil
}

func (x *extraction) target(rel string) (string, error) {
	target, err := helpers.SafeJoin(x.dest, rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	return target, nil
}

func (x *extraction) record(path string) {
	if !x.isNew[path] {
		x.isNew[path] = true
		x.created = append(x.created, path)
	}
}

// mkdirs creates dir and any missing parents below dest, recording each one.
func (x *extraction) mkdirs(dir string) error {
	var missing []string
	for d := dir; d != x.dest && len(d) > len(x.dest); d = filepath.Dir(d) {
		info, err := os.Lstat(d)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%w: %s exists and is not a directory", errs.ErrIO, d)
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}
		missing = append(missing, d)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0o755); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}
		x.record(missing[i])
	}
	return nil
}

func (x *extraction) dir(rel string) error {
	target, err := x.target(rel)
	if err != nil {
		return err
	}
	return x.mkdirs(target)
}

func (x *extraction) file(rel string, r io.Reader, mode os.FileMode) error {
	target, err := x.target(rel)
	if err != nil {
		return err
	}
	if mode&0o777 == 0 {
		mode = 0o644
	}
	return x.place(target, func(tmp *os.File) error {
		src := &trackedReader{r: r}
		_, copyErr := io.Copy(tmp, src)
		switch {
		case copyErr != nil && src.err != nil:
			return fmt.Errorf("%w: reading %s: %v", errs.ErrCorruptArchive, rel, copyErr)
		case copyErr != nil:
			return fmt.Errorf("%w: writing %s: %v", errs.ErrIO, target, copyErr)
		}
		if err := tmp.Chmod(mode & 0o777); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}
		return nil
	})
}

// symlink creates rel pointing at linkname. The link must resolve inside dest.
func (x *extraction) symlink(rel, linkname string) error {
	target, err := x.target(rel)
	if err != nil {
		return err
	}
	if linkname == "" || filepath.IsAbs(linkname) {
		return fmt.Errorf("%w: symlink %s -> %q", ErrUnsafePath, rel, linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	inside, err := filepath.Rel(x.dest, resolved)
	if err != nil {
		return fmt.Errorf("%w: symlink %s: %v", ErrUnsafePath, rel, err)
	}
	if _, err := helpers.SafeJoin(x.dest, filepath.ToSlash(inside)); err != nil {
		return fmt.Errorf("%w: symlink %s: %v", ErrUnsafePath, rel, err)
	}
	return x.placeLink(target, func(tmp string) error {
		return os.Symlink(filepath.FromSlash(linkname), tmp)
	})
}

// hardlink creates rel as another name for the already extracted srcRel.
func (x *extraction) hardlink(rel, srcRel string) error {
	target, err := x.target(rel)
	if err != nil {
		return err
	}
	source, err := x.target(srcRel)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(source); err != nil {
		return fmt.Errorf("%w: hard link %s refers to missing %s", errs.ErrCorruptArchive, rel, srcRel)
	}
	return x.placeLink(target, func(tmp string) error {
		return os.Link(source, tmp)
	})
}

// place writes target through a temporary file filled by fill.
func (x *extraction) place(target string, fill func(tmp *os.File) error) error {
	dir := filepath.Dir(target)
	if err := x.mkdirs(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*"+helpers.TempSuffix)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	fillErr := fill(tmp)
	closeErr := tmp.Close()
	if fillErr == nil && closeErr != nil {
		fillErr = fmt.Errorf("%w: closing %s: %v", errs.ErrIO, tmp.Name(), closeErr)
	}
	if fillErr != nil {
		_ = os.Remove(tmp.Name())
		return fillErr
	}
	return x.commit(tmp.Name(), target)
}

// placeLink is place for entries created by name rather than by writing.
func (x *extraction) placeLink(target string, create func(tmp string) error) error {
	dir := filepath.Dir(target)
	if err := x.mkdirs(dir); err != nil {
		return err
	}
	name, err := reserveName(dir, "."+filepath.Base(target)+".*"+helpers.TempSuffix)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if err := create(name); err != nil {
		return fmt.Errorf("%w: linking %s: %v", errs.ErrIO, target, err)
	}
	return x.commit(name, target)
}

// commit renames tmp onto target, moving a pre-existing target aside first.
func (x *extraction) commit(tmp, target string) error {
	info, err := os.Lstat(target)
	switch {
	case err == nil && info.IsDir():
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s is a directory", errs.ErrIO, target)
	case err == nil && !x.isNew[target]:
		if _, saved := x.backups[target]; !saved {
			backup, err := reserveName(filepath.Dir(target), "."+filepath.Base(target)+".*.orig")
			if err != nil {
				_ = os.Remove(tmp)
				return err
			}
			if err := os.Rename(target, backup); err != nil {
				_ = os.Remove(tmp)
				_ = os.Remove(backup)
				return fmt.Errorf("%w: %v", errs.ErrIO, err)
			}
			x.backups[target] = backup
		}
	case err != nil && !errors.Is(err, os.ErrNotExist):
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if _, replaced := x.backups[target]; !replaced {
		x.record(target)
	}
	return nil
}

// finish drops the moved-aside originals once the extraction has succeeded.
func (x *extraction) finish() {
	for target, backup := range x.backups {
		if err := os.Remove(backup); err != nil {
			log.WithError(err).Warnf("Failed to remove replaced copy of %s", target)
		}
	}
}

// rollback removes everything created so far, newest first, and puts back
// any file that was replaced.
func (x *extraction) rollback() {
	for i := len(x.created) - 1; i >= 0; i-- {
		if err := os.Remove(x.created[i]); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warnf("Failed to remove partially extracted %s", x.created[i])
		}
	}
	for target, backup := range x.backups {
		if err := os.Rename(backup, target); err != nil {
			log.WithError(err).Errorf("Failed to restore %s from %s", target, backup)
		}
	}
}

func reserveName(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	name := f.Name()
	_ = f.Close()
	return name, nil
}

// trackedReader remembers read-side failures so they are not reported as write errors.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
