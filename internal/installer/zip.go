package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go-voxura-native/internal/errs"

	"github.com/klauspost/compress/zip"
)

// maxLinkTarget bounds a symlink target read from a zip entry body.
const maxLinkTarget = 4096

type zipArchive struct {
	rc *zip.ReadCloser
}

func openZip(path string) (*zipArchive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrCorruptArchive, path, err)
	}
	return &zipArchive{rc: rc}, nil
}

func (z *zipArchive) Format() Format { return FormatZip }

func (z *zipArchive) Close() error { return z.rc.Close() }

func (z *zipArchive) Entries() ([]Entry, error) {
	out := make([]Entry, 0, len(z.rc.File))
	for _, f := range z.rc.File {
		out = append(out, zipEntry(f))
	}
	return out, nil
}

func (z *zipArchive) ExtractAll(ctx context.Context, dest string) error {
	return z.ExtractFiltered(ctx, dest, identity)
}

func (z *zipArchive) ExtractFiltered(ctx context.Context, dest string, mapper Mapper) error {
	x, err := newExtraction(dest)
	if err != nil {
		return err
	}
	if err := z.extract(ctx, x, mapper); err != nil {
		x.rollback()
		return err
	}
	x.finish()
	return nil
}

func (z *zipArchive) extract(ctx context.Context, x *extraction, mapper Mapper) error {
	for _, f := range z.rc.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := zipEntry(f)
		rel, ok := mapper(e)
		if !ok {
			continue
		}
		if e.IsDir {
			if err := x.dir(rel); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: opening %s: %v", errs.ErrCorruptArchive, f.Name, err)
		}
		if e.Symlink {
			// A zip symlink stores its target as the entry body.
			target, readErr := io.ReadAll(io.LimitReader(rc, maxLinkTarget+1))
			rc.Close()
			if readErr != nil || len(target) > maxLinkTarget {
				return fmt.Errorf("%w: reading link %s: %v", errs.ErrCorruptArchive, f.Name, readErr)
			}
			if err := x.symlink(rel, string(target)); err != nil {
				return err
			}
			continue
		}
		err = x.file(rel, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func zipEntry(f *zip.File) Entry {
	return Entry{
		Name:    f.Name,
		Size:    int64(f.UncompressedSize64),
		IsDir:   strings.HasSuffix(f.Name, "/"),
		Symlink: f.Mode()&os.ModeSymlink != 0,
	}
}
