// Package modarchive reads the UI-facing parts of a mod archive: the loader
// descriptor and the icon.
package modarchive

import (
	"fmt"
	"io"
	"path"
	"strings"

	"go-voxura-native/internal/errs"

	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"
)

// Descriptor entry names. The name of the matched entry is the metadata kind.
const (
	KindQuilt    = "quilt.mod.json"
	KindFabric   = "fabric.mod.json"
	KindForge    = "META-INF/mods.toml"
	KindNeoForge = "META-INF/neoforge.mods.toml"
)

// maxEntrySize caps a single descriptor or icon read.
const maxEntrySize = 32 << 20

type matchMode int

const (
	// matchExact compares the full archive-internal path.
	matchExact matchMode = iota
	// matchSuffix accepts the name at the root or at the end of any directory path.
	matchSuffix
)

type candidate struct {
	name string
	mode matchMode
}

func (c candidate) matches(entryName string) bool {
	switch c.mode {
	case matchExact:
		return entryName == c.name
	default:
		return entryName == c.name || strings.HasSuffix(entryName, "/"+c.name)
	}
}

// descriptorCandidates is in priority order: the first candidate present wins.
var descriptorCandidates = []candidate{
	{KindQuilt, matchExact},
	{KindFabric, matchExact},
	{KindForge, matchSuffix},
	{KindNeoForge, matchSuffix},
}

// Icons are looked up at the archive root first; nested copies are a last resort.
var (
	iconCandidates = []candidate{
		{"icon.png", matchExact},
		{"logo.png", matchExact},
	}
	iconFallbacks = []candidate{
		{"icon.png", matchSuffix},
		{"logo.png", matchSuffix},
	}
)

// Descriptor is the raw text of a loader descriptor and the entry it came from.
type Descriptor struct {
	Kind string
	Text string
}

// Found reports whether the descriptor holds anything.
func (d Descriptor) Found() bool {
	return d.Kind != "" && d.Text != ""
}

// Contents is what Scan extracted. Zero fields were not requested or not present.
type Contents struct {
	Descriptor Descriptor
	Icon       []byte
}

// Archive is an opened ZIP container.
type Archive struct {
	zr *zip.Reader
}

// Open parses the central directory of a ZIP stream.
func Open(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCorruptArchive, err)
	}
	return &Archive{zr: zr}, nil
}

// Scan looks up the requested parts. hint is a descriptor the caller already
// holds. The icon its descriptor declares takes precedence over well-known
// icon names.
func (a *Archive) Scan(wantDescriptor, wantIcon bool, hint Descriptor) (Contents, error) {
	var out Contents

	if wantDescriptor {
		d, err := a.descriptor()
		if err != nil {
			return Contents{}, err
		}
		out.Descriptor = d
	}

	if wantIcon {
		if !hint.Found() {
			hint = out.Descriptor
		}
		icon, err := a.icon(hint)
		if err != nil {
			return Contents{}, err
		}
		out.Icon = icon
	}
	return out, nil
}

func (a *Archive) descriptor() (Descriptor, error) {
	for _, c := range descriptorCandidates {
		f := a.find(c)
		if f == nil {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{Kind: c.name, Text: string(data)}, nil
	}
	return Descriptor{}, nil
}

func (a *Archive) icon(hint Descriptor) ([]byte, error) {
	if f := a.declaredIcon(hint); f != nil {
		return readEntry(f)
	}
	for _, list := range [][]candidate{iconCandidates, iconFallbacks} {
		for _, c := range list {
			if f := a.find(c); f != nil {
				return readEntry(f)
			}
		}
	}
	return nil, nil
}

// declaredIcon returns the entry named by the descriptor's icon field, if any.
func (a *Archive) declaredIcon(d Descriptor) *zip.File {
	if !d.Found() {
		return nil
	}
	declared := ParseLoaderInfo(d.Kind, d.Text).Icon
	if declared == "" {
		return nil
	}
	f := a.find(candidate{name: path.Clean(strings.TrimPrefix(declared, "/")), mode: matchExact})
	if f == nil {
		log.WithField("icon", declared).Debug("Declared icon not present in archive")
	}
	return f
}

// find returns the first non-directory entry in archive order matching c.
func (a *Archive) find(c candidate) *zip.File {
	for _, f := range a.zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if c.matches(f.Name) {
			return f
		}
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("%w: entry %s is %d bytes", errs.ErrCorruptArchive, f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", errs.ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errs.ErrCorruptArchive, f.Name, err)
	}
	return data, nil
}
