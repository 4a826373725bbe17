// Package capturestore accepts capture artifacts from external producers
// (browser automation scripts, manual screenshots) and tracks them with
// metadata in a captures.json document. The document is kept as raw JSON and
// mutated in place so custom fields written by other tools survive rewrites.
package capturestore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/quenby/glimpse/internal/log"
)

// Extensions accepted as capture artifacts.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".txt":  true,
	".html": true,
}

// Metadata describes one stored capture.
type Metadata struct {
	ID           string   `json:"id"`
	OriginalPath string   `json:"original_path"`
	StoredPath   string   `json:"stored_path"`
	Event        string   `json:"event,omitempty"`
	Description  string   `json:"description,omitempty"`
	Timestamp    int64    `json:"timestamp"`
	Source       string   `json:"source"`
	Verified     bool     `json:"verified"`
	Result       string   `json:"verification_result,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Store manages the capture directory and its metadata document.
type Store struct {
	dir    string
	events *log.EventLog

	mu sync.Mutex
}

// New creates a Store rooted at dir.
func New(dir string, events *log.EventLog) *Store {
	return &Store{dir: dir, events: events}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// IncomingDir is where external producers drop files for auto-registration.
func (s *Store) IncomingDir() string { return filepath.Join(s.dir, "incoming") }

func (s *Store) metadataPath() string { return filepath.Join(s.dir, "captures.json") }

func (s *Store) loadDoc() string {
	data, err := os.ReadFile(s.metadataPath())
	if err != nil || !gjson.ValidBytes(data) {
		return `{"captures":[]}`
	}
	return string(data)
}

func (s *Store) writeDoc(doc string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("capturestore: create dir: %w", err)
	}
	if err := os.WriteFile(s.metadataPath(), []byte(doc), 0o644); err != nil {
		return fmt.Errorf("capturestore: write metadata: %w", err)
	}
	return nil
}

// generateID derives a content-addressed 12-hex identifier.
func generateID(path string) string {
	h := md5.New()
	io.WriteString(h, path)
	io.WriteString(h, fmt.Sprint(time.Now().UnixNano()))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Accepted reports whether the file extension is a recognized capture type.
func Accepted(path string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Add copies the file into the store and registers its metadata.
func (s *Store) Add(path, event, description, source string, tags []string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !Accepted(path) {
		return Metadata{}, fmt.Errorf("capturestore: unsupported file type: %s", filepath.Ext(path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("capturestore: resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return Metadata{}, fmt.Errorf("capturestore: %s: %w", path, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Metadata{}, fmt.Errorf("capturestore: create dir: %w", err)
	}

	id := generateID(abs)
	destName := fmt.Sprintf("%s_%d%s", id, time.Now().Unix(), filepath.Ext(abs))
	destPath := filepath.Join(s.dir, destName)
	if err := copyFile(abs, destPath); err != nil {
		return Metadata{}, err
	}

	if source == "" {
		source = "external"
	}
	meta := Metadata{
		ID:           id,
		OriginalPath: abs,
		StoredPath:   destPath,
		Event:        event,
		Description:  description,
		Timestamp:    time.Now().Unix(),
		Source:       source,
		Tags:         tags,
	}

	doc := s.loadDoc()
	doc, err = sjson.Set(doc, "captures.-1", meta)
	if err != nil {
		return Metadata{}, fmt.Errorf("capturestore: append metadata: %w", err)
	}
	if err := s.writeDoc(doc); err != nil {
		return Metadata{}, err
	}

	if s.events != nil {
		_ = s.events.Log(log.NewEvent(log.EventTypeStoreAdded, source).
			WithStatus("success").
			WithPath(destPath))
	}
	return meta, nil
}

// AddBatch registers several files, tagging each with its batch position.
// Files that fail are skipped, not fatal.
func (s *Store) AddBatch(paths []string, commonTags []string) []Metadata {
	var out []Metadata
	for i, path := range paths {
		meta, err := s.Add(path, fmt.Sprintf("batch_%d", i+1), "", "external", commonTags)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out
}

// Get looks up a capture by id.
func (s *Store) Get(id string) (Metadata, bool) {
	for _, m := range s.List() {
		if m.ID == id {
			return m, true
		}
	}
	return Metadata{}, false
}

// List returns all registered captures in insertion order.
func (s *Store) List() []Metadata {
	s.mu.Lock()
	doc := s.loadDoc()
	s.mu.Unlock()
	return decodeAll(doc)
}

// Pending returns captures not yet verified.
func (s *Store) Pending() []Metadata {
	return s.filter(func(m Metadata) bool { return !m.Verified })
}

// ByTag returns captures carrying the tag.
func (s *Store) ByTag(tag string) []Metadata {
	return s.filter(func(m Metadata) bool {
		for _, t := range m.Tags {
			if t == tag {
				return true
			}
		}
		return false
	})
}

// BySource returns captures from the given source.
func (s *Store) BySource(source string) []Metadata {
	return s.filter(func(m Metadata) bool { return m.Source == source })
}

func (s *Store) filter(keep func(Metadata) bool) []Metadata {
	var out []Metadata
	for _, m := range s.List() {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// MarkVerified records a verification result against a capture. The update
// touches only the verified/result fields so foreign metadata fields on the
// entry are preserved.
func (s *Store) MarkVerified(id, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadDoc()
	idx := indexOf(doc, id)
	if idx < 0 {
		return fmt.Errorf("capturestore: no capture %s", id)
	}

	doc, err := sjson.Set(doc, fmt.Sprintf("captures.%d.verified", idx), true)
	if err != nil {
		return fmt.Errorf("capturestore: update %s: %w", id, err)
	}
	doc, err = sjson.Set(doc, fmt.Sprintf("captures.%d.verification_result", idx), result)
	if err != nil {
		return fmt.Errorf("capturestore: update %s: %w", id, err)
	}
	return s.writeDoc(doc)
}

// Delete removes a capture's file and metadata entry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadDoc()
	idx := indexOf(doc, id)
	if idx < 0 {
		return fmt.Errorf("capturestore: no capture %s", id)
	}

	stored := gjson.Get(doc, fmt.Sprintf("captures.%d.stored_path", idx)).String()
	if stored != "" {
		if err := os.Remove(stored); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("capturestore: remove %s: %w", stored, err)
		}
	}

	doc, err := sjson.Delete(doc, fmt.Sprintf("captures.%d", idx))
	if err != nil {
		return fmt.Errorf("capturestore: delete %s: %w", id, err)
	}
	return s.writeDoc(doc)
}

// Clear removes every stored capture and resets the metadata document.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range decodeAll(s.loadDoc()) {
		if err := os.Remove(m.StoredPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("capturestore: remove %s: %w", m.StoredPath, err)
		}
	}
	return s.writeDoc(`{"captures":[]}`)
}

// Paths returns the stored file paths of all captures, oldest first.
func (s *Store) Paths() []string {
	var out []string
	for _, m := range s.List() {
		out = append(out, m.StoredPath)
	}
	return out
}

func indexOf(doc, id string) int {
	idx := -1
	gjson.Get(doc, "captures").ForEach(func(key, value gjson.Result) bool {
		if value.Get("id").String() == id {
			idx = int(key.Int())
			return false
		}
		return true
	})
	return idx
}

func decodeAll(doc string) []Metadata {
	var out []Metadata
	gjson.Get(doc, "captures").ForEach(func(_, value gjson.Result) bool {
		m := Metadata{
			ID:           value.Get("id").String(),
			OriginalPath: value.Get("original_path").String(),
			StoredPath:   value.Get("stored_path").String(),
			Event:        value.Get("event").String(),
			Description:  value.Get("description").String(),
			Timestamp:    value.Get("timestamp").Int(),
			Source:       value.Get("source").String(),
			Verified:     value.Get("verified").Bool(),
			Result:       value.Get("verification_result").String(),
		}
		value.Get("tags").ForEach(func(_, t gjson.Result) bool {
			m.Tags = append(m.Tags, t.String())
			return true
		})
		out = append(out, m)
		return true
	})
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("capturestore: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("capturestore: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("capturestore: copy to %s: %w", dst, err)
	}
	return nil
}
