// Package storage keeps generated migrations on disk as
// scripts/<id>/{manifest.json,up.sql,down.sql}.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mini_orm/internal/migrate"
)

var (
	ErrChecksumMismatch = errors.New("script checksum mismatch")
	ErrReadOnly         = errors.New("store is read-only")
)

const (
	scriptsDir   = "scripts"
	manifestFile = "manifest.json"
	upFile       = "up.sql"
	downFile     = "down.sql"
)

// Manifest describes a stored migration.
type Manifest struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Checksum    string    `json:"checksum"`
}

// Store reads scripts from a file system and, when backed by a directory,
// writes them too.
type Store struct {
	base string
	fsys fs.FS
}

// New returns a writable store rooted at base.
func New(base string) *Store {
	return &Store{base: base, fsys: os.DirFS(base)}
}

// FromFS returns a read-only store over fsys, e.g. an embedded baseline.
func FromFS(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// EnsureBase makes sure the storage root exists.
func (s *Store) EnsureBase() error {
	if s.base == "" {
		return ErrReadOnly
	}
	return os.MkdirAll(filepath.Join(s.base, scriptsDir), 0o755)
}

// Save writes m. An id that is already stored is rejected.
func (s *Store) Save(m migrate.Migration) (Manifest, error) {
	if s.base == "" {
		return Manifest{}, ErrReadOnly
	}
	if err := validID(m.ID); err != nil {
		return Manifest{}, err
	}
	dir := filepath.Join(s.base, scriptsDir, m.ID)
	if _, err := os.Stat(filepath.Join(dir, manifestFile)); err == nil {
		return Manifest{}, fmt.Errorf("script %s already exists", m.ID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, upFile), []byte(m.Up), 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write up script: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, downFile), []byte(m.Down), 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write down script: %w", err)
	}

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	manifest := Manifest{
		ID:          m.ID,
		Description: m.Description,
		CreatedAt:   createdAt.UTC(),
		Checksum:    Checksum(m.Up, m.Down),
	}
	if err := writeJSON(filepath.Join(dir, manifestFile), manifest); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Load reads a stored migration and verifies its checksum.
func (s *Store) Load(id string) (migrate.Migration, error) {
	manifest, err := s.Manifest(id)
	if err != nil {
		return migrate.Migration{}, err
	}
	up, err := fs.ReadFile(s.fsys, path.Join(scriptsDir, id, upFile))
	if err != nil {
		return migrate.Migration{}, fmt.Errorf("read up script: %w", err)
	}
	down, err := fs.ReadFile(s.fsys, path.Join(scriptsDir, id, downFile))
	if err != nil {
		return migrate.Migration{}, fmt.Errorf("read down script: %w", err)
	}
	if sum := Checksum(string(up), string(down)); sum != manifest.Checksum {
		return migrate.Migration{}, fmt.Errorf("%w: %s", ErrChecksumMismatch, id)
	}
	return migrate.Migration{
		ID:          manifest.ID,
		Description: manifest.Description,
		Up:          string(up),
		Down:        string(down),
		CreatedAt:   manifest.CreatedAt,
	}, nil
}

// Lookup implements migrate.Source.
func (s *Store) Lookup(id string) (migrate.Migration, error) {
	m, err := s.Load(id)
	if errors.Is(err, fs.ErrNotExist) {
		return migrate.Migration{}, fmt.Errorf("%w: %s", migrate.ErrScriptNotFound, id)
	}
	return m, err
}

// Manifest reads metadata without loading script bodies.
func (s *Store) Manifest(id string) (Manifest, error) {
	if err := validID(id); err != nil {
		return Manifest{}, err
	}
	var manifest Manifest
	data, err := fs.ReadFile(s.fsys, path.Join(scriptsDir, id, manifestFile))
	if err != nil {
		return manifest, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("parse manifest %s: %w", id, err)
	}
	return manifest, nil
}

// List returns the stored ids in ascending order, which is the order they
// were generated in.
func (s *Store) List() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, scriptsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Manifests returns the manifests of every stored script.
func (s *Store) Manifests() ([]Manifest, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]Manifest, 0, len(ids))
	for _, id := range ids {
		m, err := s.Manifest(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Seed copies every script of from that this store does not have yet and
// returns the ids it copied.
func (s *Store) Seed(from *Store) ([]string, error) {
	have, err := s.List()
	if err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(have))
	for _, id := range have {
		existing[id] = struct{}{}
	}
	ids, err := from.List()
	if err != nil {
		return nil, err
	}
	var copied []string
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			continue
		}
		m, err := from.Load(id)
		if err != nil {
			return copied, err
		}
		if _, err := s.Save(m); err != nil {
			return copied, err
		}
		copied = append(copied, id)
	}
	return copied, nil
}

// Checksum is the hex sha256 of the up and down scripts.
func Checksum(up, down string) string {
	h := sha256.New()
	h.Write([]byte(up))
	h.Write([]byte(down))
	return hex.EncodeToString(h.Sum(nil))
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("migration id is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid migration id %q", id)
	}
	return nil
}

func writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}
