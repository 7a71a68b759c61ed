package installer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the container format of an installable archive, chosen once from
// the file name.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
	FormatTarZst
	FormatTarXz
)

// compoundExtensions are checked before the single extension.
var compoundExtensions = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tar.zst", FormatTarZst},
	{".tar.xz", FormatTarXz},
}

var singleExtensions = map[string]Format{
	".zip": FormatZip,
	".jar": FormatZip,
	".tgz": FormatTarGz,
	".tzst": FormatTarZst,
	".txz": FormatTarXz,
}

// DetectFormat maps an archive path to its Format by extension.
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	for _, c := range compoundExtensions {
		if strings.HasSuffix(lower, c.suffix) {
			return c.format, nil
		}
	}
	if f, ok := singleExtensions[filepath.Ext(lower)]; ok {
		return f, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarZst:
		return "tar.zst"
	case FormatTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}
