package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"local_rag/internal/chunker"
)

// Metadata remembers which files are in the index and in what state they
// were ingested.
type Metadata struct {
	Files    map[string]FileInfo `json:"files"`
	DataPath string              `json:"data_path"`
}

type FileInfo struct {
	Path         string    `json:"path" yaml:"path"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
	Size         int64     `json:"size" yaml:"size"`
	Chunks       int       `json:"chunks" yaml:"chunks"`
	Failed       int       `json:"failed,omitempty" yaml:"failed,omitempty"` // Chunks not written by the last run
	Fingerprint  string    `json:"fingerprint" yaml:"fingerprint"`           // Empty until every chunk is written
}

func newMetadata() *Metadata {
	return &Metadata{Files: make(map[string]FileInfo)}
}

// fingerprint identifies a file version together with the chunking that was
// applied to it. Changing either makes the file stale.
func fingerprint(modTime time.Time, size int64, cfg chunker.Config, method string) string {
	return fmt.Sprintf("%d:%d:%d:%d:%s", modTime.UnixNano(), size, cfg.ChunkSize, cfg.Overlap, method)
}

// unchanged reports whether source is fully indexed with the given
// fingerprint.
func (m *Metadata) unchanged(source, fp string) bool {
	info, ok := m.Files[source]
	return ok && info.Fingerprint != "" && info.Fingerprint == fp
}

func (m *Metadata) sortedFiles() []FileInfo {
	files := make([]FileInfo, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

func loadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return newMetadata(), nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	md := newMetadata()
	if err := json.NewDecoder(f).Decode(md); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if md.Files == nil {
		md.Files = make(map[string]FileInfo)
	}
	return md, nil
}

// save writes the metadata atomically.
func (m *Metadata) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metadata-*.json")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
