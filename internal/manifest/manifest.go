// Package manifest records the SHA-256 digests of a decoded log and the
// artefacts produced from it.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/bblgate/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	// Source is the log the artefacts were decoded from.
	Source   *Item  `json:"source,omitempty"`
	LogIndex int    `json:"logIndex,omitempty"`
	Items    []Item `json:"items"`
}

// Build hashes every path. The first path is the source log.
func Build(source string, logIndex int, outputs []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256", LogIndex: logIndex}
	if source != "" {
		item, err := hashItem(source)
		if err != nil {
			return m, err
		}
		m.Source = &item
	}
	for _, p := range outputs {
		item, err := hashItem(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, item)
	}
	return m, nil
}

// Add appends an artefact whose digest was computed while writing it.
func (m *Manifest) Add(path string, size int64, sha256 string) {
	m.Items = append(m.Items, Item{Path: path, Size: size, Sha256: sha256, Type: itemType(path)})
}

func hashItem(path string) (Item, error) {
	hex, sz, err := common.Sha256OfFile(path)
	if err != nil {
		return Item{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return Item{Path: path, Size: sz, Sha256: hex, Type: itemType(path)}, nil
}

func itemType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bbl", ".bfl", ".txt":
		return "blackbox"
	case ".csv":
		return "csv"
	case ".ndjson", ".jsonl":
		return "ndjson"
	case ".cbor":
		return "cbor"
	case ".json":
		return "json"
	case ".pdf":
		return "pdf"
	case ".prom":
		return "metrics"
	}
	return "other"
}

// Verify rehashes every item and reports the paths whose digest or size no
// longer match.
func Verify(m Manifest) ([]string, error) {
	items := m.Items
	if m.Source != nil {
		items = append([]Item{*m.Source}, items...)
	}
	var changed []string
	for _, it := range items {
		hex, sz, err := common.Sha256OfFile(it.Path)
		if err != nil {
			if os.IsNotExist(err) {
				changed = append(changed, it.Path)
				continue
			}
			return changed, err
		}
		if hex != it.Sha256 || sz != it.Size {
			changed = append(changed, it.Path)
		}
	}
	return changed, nil
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}
