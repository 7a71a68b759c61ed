package models

type (
	Config struct {
		// Paths
		DatabasePath string `toml:"DatabasePath"`
		IndexPath    string `toml:"IndexPath"` // Bleve index of scanned mods

		// Mod scanning
		DigestAlgorithm string `toml:"DigestAlgorithm"` // "md5" or "blake3"
		ScanConcurrency int    `toml:"ScanConcurrency"`
		CacheWriteBack  bool   `toml:"CacheWriteBack"`

		// Downloads and extraction
		DownloadTimeoutSec     int      `toml:"DownloadTimeoutSec"`
		ProgressThresholdBytes uint64   `toml:"ProgressThresholdBytes"`
		NativeSuffixes         []string `toml:"NativeSuffixes"`

		// Auth
		AuthAddr       string `toml:"AuthAddr"`
		AuthTimeoutSec int    `toml:"AuthTimeoutSec"`

		// Storage
		MaxValueSizeBytes uint64 `toml:"MaxValueSizeBytes"`

		// Other
		LogHttpRequests bool   `toml:"LogHttpRequests"`
		MetricsAddr     string `toml:"MetricsAddr"`
	}

	// ModRecord is one resolved mod archive. Icon, Metadata and MetadataKind are
	// optional; an empty value means the field is absent.
	ModRecord struct {
		Digest       string `json:"md5"`
		Name         string `json:"name"`
		Path         string `json:"path"`
		Icon         []byte `json:"icon,omitempty"`
		Metadata     string `json:"meta,omitempty"`
		MetadataKind string `json:"meta_name,omitempty"`
	}

	// CacheEntry is the persisted projection of a ModRecord, keyed by digest.
	// ID, Version and Platform belong to the project catalog and are only round-tripped.
	CacheEntry struct {
		ID           string `json:"id"`
		Version      string `json:"version"`
		Platform     string `json:"platform"`
		Icon         []byte `json:"cached_icon,omitempty"`
		MetadataKind string `json:"cached_metaname,omitempty"`
		Metadata     string `json:"cached_metadata,omitempty"`
	}
)

// Complete reports whether the record carries every optional field.
func (r ModRecord) Complete() bool {
	return len(r.Icon) > 0 && r.Metadata != "" && r.MetadataKind != ""
}

// Seed copies the optional fields of a cache entry into the record.
// Fields are copied independently; a cached MetadataKind without Metadata is kept as-is.
func (r *ModRecord) Seed(e CacheEntry) {
	r.Icon = e.Icon
	r.Metadata = e.Metadata
	r.MetadataKind = e.MetadataKind
}
