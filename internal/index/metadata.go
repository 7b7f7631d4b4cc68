package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// MetadataVersion is the current version of the metadata format.
	MetadataVersion = 1

	// DefaultMaxAge is the age past which an index is reported stale.
	DefaultMaxAge = 7 * 24 * time.Hour
)

// Build modes recorded in metadata.
const (
	ModeRebuild = "rebuild"
	ModeExtend  = "extend"
)

// IndexMeta describes the build that produced a stored index.
type IndexMeta struct {
	Version     int       `json:"version"`
	BuildID     string    `json:"buildId"`
	CreatedAt   time.Time `json:"createdAt"`
	Interpreter string    `json:"interpreter,omitempty"`
	Roots       []string  `json:"roots"`
	ExtraRoots  []string  `json:"extraRoots,omitempty"`
	ModuleCount int       `json:"moduleCount"`
	SymbolCount int       `json:"symbolCount"`
	Duration    string    `json:"duration"`
	Mode        string    `json:"mode"`
	Extractor   string    `json:"extractor"`
	Truncated   bool      `json:"truncated,omitempty"`
}

// FreshnessResult describes index freshness status.
type FreshnessResult struct {
	Fresh  bool   `json:"fresh"`
	Reason string `json:"reason,omitempty"`
	Age    string `json:"age,omitempty"`
}

// NewMeta starts metadata for a build with a fresh build ID.
func NewMeta(mode string, stats BuildStats) *IndexMeta {
	return &IndexMeta{
		BuildID:     uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		ModuleCount: stats.Modules,
		SymbolCount: stats.Symbols,
		Duration:    stats.Duration.Round(time.Millisecond).String(),
		Mode:        mode,
		Truncated:   stats.Truncated,
	}
}

// MetaPath returns the sidecar file for indexPath.
func MetaPath(indexPath string) string {
	return indexPath + ".meta.json"
}

// LoadMeta loads the metadata stored next to indexPath.
// Returns nil without error if no metadata file exists.
func LoadMeta(indexPath string) (*IndexMeta, error) {
	data, err := os.ReadFile(MetaPath(indexPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}

	var meta IndexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing index metadata: %w", err)
	}

	// Version mismatch - treat as no metadata
	if meta.Version != MetadataVersion {
		return nil, nil
	}

	return &meta, nil
}

// Save writes the metadata next to indexPath.
func (m *IndexMeta) Save(indexPath string) error {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	m.Version = MetadataVersion
	if m.BuildID == "" {
		m.BuildID = uuid.NewString()
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}

	if err := os.WriteFile(MetaPath(indexPath), data, 0644); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}

	return nil
}

// CheckFreshness reports whether the index is younger than maxAge.
// A non-positive maxAge uses DefaultMaxAge.
func (m *IndexMeta) CheckFreshness(maxAge time.Duration) FreshnessResult {
	if m == nil {
		return FreshnessResult{
			Fresh:  false,
			Reason: "no index metadata found",
		}
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	age := time.Since(m.CreatedAt)
	result := FreshnessResult{Fresh: true, Age: humanDuration(age)}
	if m.Truncated {
		result.Fresh = false
		result.Reason = "last build was truncated"
		return result
	}
	if age > maxAge {
		result.Fresh = false
		result.Reason = fmt.Sprintf("index is %s old", humanDuration(age))
	}
	return result
}

// humanDuration formats a duration in human-readable form.
func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
