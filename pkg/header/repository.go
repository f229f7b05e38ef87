package header

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

// Repository looks up the catalog generated for a bitfile signature.
type Repository interface {
	Lookup(signature string) (*rio.Catalog, error)
}

// MemoryRepository is an in-memory Repository, filled from header files or
// from catalogs the caller builds itself.
type MemoryRepository struct {
	mu          sync.RWMutex
	bySignature map[string]*rio.Catalog
	byBitfile   map[string]*rio.Catalog
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bySignature: make(map[string]*rio.Catalog),
		byBitfile:   make(map[string]*rio.Catalog),
	}
}

// Add registers c under its signature and bitfile name, replacing any
// catalog with the same signature.
func (r *MemoryRepository) Add(c *rio.Catalog) error {
	if c == nil || c.Signature == "" {
		return fmt.Errorf("header: catalog without signature")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySignature[strings.ToUpper(c.Signature)] = c
	if c.Bitfile != "" {
		r.byBitfile[path.Base(c.Bitfile)] = c
	}
	return nil
}

// Lookup implements the Repository interface. Signatures compare case
// insensitively.
func (r *MemoryRepository) Lookup(signature string) (*rio.Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.bySignature[strings.ToUpper(signature)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("header: no catalog for signature %s", signature)
}

// ByBitfile finds a catalog by bitfile file name; directories are ignored.
func (r *MemoryRepository) ByBitfile(bitfile string) (*rio.Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byBitfile[path.Base(filepath.ToSlash(bitfile))]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("header: no catalog for bitfile %s", bitfile)
}

// Catalogs lists the loaded catalogs ordered by name.
func (r *MemoryRepository) Catalogs() []*rio.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*rio.Catalog, 0, len(r.bySignature))
	for _, c := range r.bySignature {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadFiles parses the provided headers and adds each catalog.
func (r *MemoryRepository) LoadFiles(paths ...string) error {
	for _, p := range paths {
		c, err := Load(p)
		if err != nil {
			return err
		}
		if err := r.Add(c); err != nil {
			return fmt.Errorf("header: add %s: %w", p, err)
		}
	}
	return nil
}

// LoadDir recursively loads every NiFpga_<Name>.h below root. The shared
// NiFpga.h API header is skipped.
func (r *MemoryRepository) LoadDir(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := InterfaceFromPath(p); !ok {
			return nil
		}
		return r.LoadFiles(p)
	})
}
