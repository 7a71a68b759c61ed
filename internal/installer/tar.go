package installer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go-voxura-native/internal/errs"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// tarArchive is a compressed tarball. Each pass re-reads the file from the
// start since tar streams cannot be indexed.
type tarArchive struct {
	f      *os.File
	format Format
}

func openTar(path string, format Format) (*tarArchive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	t := &tarArchive{f: f, format: format}

	// Validate the compression header up front so a bad file fails at open.
	r, closeFn, err := t.stream()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := tar.NewReader(r).Next(); err != nil && err != io.EOF {
		closeFn()
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrCorruptArchive, path, err)
	}
	closeFn()
	return t, nil
}

func (t *tarArchive) Format() Format { return t.format }

func (t *tarArchive) Close() error { return t.f.Close() }

// stream rewinds the file and wraps it in the format's decompressor.
func (t *tarArchive) stream() (io.Reader, func(), error) {
	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	switch t.format {
	case FormatTarGz:
		gz, err := gzip.NewReader(t.f)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: gzip header: %v", errs.ErrCorruptArchive, err)
		}
		return gz, func() { gz.Close() }, nil
	case FormatTarZst:
		zr, err := zstd.NewReader(t.f)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: zstd header: %v", errs.ErrCorruptArchive, err)
		}
		return zr, zr.Close, nil
	case FormatTarXz:
		xr, err := xz.NewReader(t.f)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: xz header: %v", errs.ErrCorruptArchive, err)
		}
		return xr, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, t.format)
	}
}

func (t *tarArchive) walk(fn func(h *tar.Header, r io.Reader) error) error {
	r, closeFn, err := t.stream()
	if err != nil {
		return err
	}
	defer closeFn()

	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrCorruptArchive, err)
		}
		if err := fn(h, tr); err != nil {
			return err
		}
	}
}

func (t *tarArchive) Entries() ([]Entry, error) {
	var out []Entry
	err := t.walk(func(h *tar.Header, _ io.Reader) error {
		out = append(out, tarEntry(h))
		return nil
	})
	return out, err
}

func (t *tarArchive) ExtractAll(ctx context.Context, dest string) error {
	return t.ExtractFiltered(ctx, dest, identity)
}

func (t *tarArchive) ExtractFiltered(ctx context.Context, dest string, mapper Mapper) error {
	x, err := newExtraction(dest)
	if err != nil {
		return err
	}
	err = t.walk(func(h *tar.Header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch h.Typeflag {
		case tar.TypeDir, tar.TypeReg, tar.TypeSymlink, tar.TypeLink:
		default:
			log.WithFields(log.Fields{"entry": h.Name, "type": string(h.Typeflag)}).Warn("Skipping unsupported tar entry type")
			return nil
		}
		e := tarEntry(h)
		rel, ok := mapper(e)
		if !ok {
			return nil
		}
		switch h.Typeflag {
		case tar.TypeDir:
			return x.dir(rel)
		case tar.TypeSymlink:
			return x.symlink(rel, h.Linkname)
		case tar.TypeLink:
			// The link source is an archive path and goes through the same mapping.
			srcRel, ok := mapper(Entry{Name: strings.TrimPrefix(h.Linkname, "./")})
			if !ok {
				log.WithFields(log.Fields{"entry": h.Name, "source": h.Linkname}).Warn("Skipping hard link to an entry that was not extracted")
				return nil
			}
			return x.hardlink(rel, srcRel)
		default:
			return x.file(rel, r, os.FileMode(h.Mode))
		}
	})
	if err != nil {
		x.rollback()
		return err
	}
	x.finish()
	return nil
}

func tarEntry(h *tar.Header) Entry {
	name := strings.TrimPrefix(h.Name, "./")
	isDir := h.Typeflag == tar.TypeDir
	if isDir && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	e := Entry{Name: name, Size: h.Size, IsDir: isDir}
	if h.Typeflag == tar.TypeSymlink {
		e.Symlink = true
		e.Linkname = h.Linkname
	}
	return e
}
