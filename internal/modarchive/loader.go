package modarchive

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// LoaderInfo is the subset of a loader descriptor the UI displays.
type LoaderInfo struct {
	Loader      string `json:"loader"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// DisplayName falls back from the declared name to the id, then to fileName.
func (l LoaderInfo) DisplayName(fileName string) string {
	switch {
	case l.Name != "":
		return l.Name
	case l.ID != "":
		return l.ID
	default:
		return fileName
	}
}

// LoaderFor maps a descriptor kind to its loader name.
func LoaderFor(kind string) string {
	switch kind {
	case KindQuilt:
		return "quilt"
	case KindFabric:
		return "fabric"
	case KindForge:
		return "forge"
	case KindNeoForge:
		return "neoforge"
	default:
		return ""
	}
}

type fabricDescriptor struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Icon        json.RawMessage `json:"icon"`
}

type quiltDescriptor struct {
	QuiltLoader struct {
		ID       string `json:"id"`
		Version  string `json:"version"`
		Metadata struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Icon        json.RawMessage `json:"icon"`
		} `json:"metadata"`
	} `json:"quilt_loader"`
}

type forgeDescriptor struct {
	LogoFile string `toml:"logoFile"`
	Mods     []struct {
		ModID       string `toml:"modId"`
		Version     string `toml:"version"`
		DisplayName string `toml:"displayName"`
		Description string `toml:"description"`
		LogoFile    string `toml:"logoFile"`
	} `toml:"mods"`
}

// ParseLoaderInfo parses descriptor text of the given kind. Unparseable text
// yields a LoaderInfo with only Loader set; it is never an error.
func ParseLoaderInfo(kind, text string) LoaderInfo {
	info := LoaderInfo{Loader: LoaderFor(kind)}
	if text == "" {
		return info
	}

	switch kind {
	case KindFabric:
		var d fabricDescriptor
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			log.WithError(err).Debug("Unparseable fabric descriptor")
			return info
		}
		info.ID, info.Name, info.Version, info.Description = d.ID, d.Name, d.Version, d.Description
		info.Icon = iconPath(d.Icon)
	case KindQuilt:
		var d quiltDescriptor
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			log.WithError(err).Debug("Unparseable quilt descriptor")
			return info
		}
		q := d.QuiltLoader
		info.ID, info.Version = q.ID, q.Version
		info.Name, info.Description = q.Metadata.Name, q.Metadata.Description
		info.Icon = iconPath(q.Metadata.Icon)
	case KindForge, KindNeoForge:
		var d forgeDescriptor
		if _, err := toml.Decode(text, &d); err != nil {
			log.WithError(err).Debug("Unparseable mods.toml descriptor")
			return info
		}
		info.Icon = d.LogoFile
		if len(d.Mods) > 0 {
			m := d.Mods[0]
			info.ID, info.Name, info.Version, info.Description = m.ModID, m.DisplayName, m.Version, m.Description
			if m.LogoFile != "" {
				info.Icon = m.LogoFile
			}
		}
	}
	return info
}

// iconPath accepts either a plain path or a size->path object, in which case
// the largest size wins.
func iconPath(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var sized map[string]string
	if err := json.Unmarshal(raw, &sized); err != nil || len(sized) == 0 {
		return ""
	}
	sizes := make([]string, 0, len(sized))
	for k := range sized {
		sizes = append(sizes, k)
	}
	sort.Slice(sizes, func(i, j int) bool {
		a, _ := strconv.Atoi(sizes[i])
		b, _ := strconv.Atoi(sizes[j])
		return a > b
	})
	return sized[sizes[0]]
}
