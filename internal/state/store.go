// Package state implements proxygen's durable deployment registry: a
// file-backed JSON ledger of deployment records and multi-hop chains, guarded
// by an exclusive advisory lock so concurrent CLI invocations never race.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

// SchemaVersion is written into every persisted document for forward
// compatibility.
const SchemaVersion = 1

const (
	registryFile = "registry.json"
	chainsFile   = "chains.json"
	lockFile     = "state.lock"
)

// registryDocument is the on-disk shape of the record ledger.
type registryDocument struct {
	SchemaVersion int                        `json:"schema_version"`
	UpdatedAt     time.Time                  `json:"updated_at"`
	Records       []*models.DeploymentRecord `json:"records"`
}

// Store is the deployment record ledger. All mutating operations follow the
// same discipline: acquire the exclusive lock, re-read the on-disk state,
// apply the change, validate the registry invariants, and write atomically.
type Store struct {
	dir    string
	path   string
	lock   *FileLock
	logger *slog.Logger

	// doc is the snapshot from the most recent Load; reads outside the lock
	// serve from disk, never from this cache.
	doc *registryDocument
}

// Open prepares a store rooted at dir, creating the directory if needed.
// The same lock file guards the record ledger and the chain document.
func Open(dir string, lockTimeout time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{
		dir:    dir,
		path:   filepath.Join(dir, registryFile),
		lock:   NewFileLock(filepath.Join(dir, lockFile), lockTimeout),
		logger: logger,
	}, nil
}

// Dir returns the state directory this store is rooted at.
func (s *Store) Dir() string { return s.dir }

// Lock exposes the store's lock so the chain store can share its discipline.
func (s *Store) Lock() *FileLock { return s.lock }

// Close releases any held lock.
func (s *Store) Close() error {
	return s.lock.Release()
}

// Load reads the registry document from disk into the store. A missing file
// yields an empty registry.
func (s *Store) Load() error {
	doc, err := readRegistry(s.path)
	if err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// Persist writes the current snapshot to disk atomically, keeping a .backup
// copy of the previous document. Callers must hold the lock when persisting
// after a mutation.
func (s *Store) Persist() error {
	if s.doc == nil {
		s.doc = emptyRegistry()
	}
	s.doc.SchemaVersion = SchemaVersion
	s.doc.UpdatedAt = time.Now().UTC()
	return writeAtomic(s.path, s.doc)
}

// Create registers a new record, normally in pending status, before the
// external provisioning engine runs. Without forceNewIP a second record for
// the same (provider, region) that is still pending or active is a conflict;
// a public IP collision with any active record is always a conflict.
func (s *Store) Create(ctx context.Context, rec *models.DeploymentRecord, forceNewIP bool) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	err := s.withLock(ctx, func() error {
		for _, existing := range s.doc.Records {
			if existing.ID == rec.ID {
				return &models.ConflictError{
					Provider: rec.Provider,
					Region:   rec.Region,
					Reason:   "duplicate deployment id",
					RecordID: existing.ID,
				}
			}
			if !forceNewIP && existing.Provider == rec.Provider && existing.Region == rec.Region &&
				(existing.Status == models.StatusActive || existing.Status == models.StatusPending) {
				return &models.ConflictError{
					Provider: rec.Provider,
					Region:   rec.Region,
					Reason:   "existing active deployment",
					RecordID: existing.ID,
				}
			}
		}
		s.doc.Records = append(s.doc.Records, rec)
		if err := validateInvariants(s.doc.Records); err != nil {
			return err
		}
		return s.Persist()
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("registered deployment", "id", rec.ID, "provider", rec.Provider, "region", rec.Region, "status", rec.Status)
	return rec.ID, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(id string) (*models.DeploymentRecord, error) {
	doc, err := readRegistry(s.path)
	if err != nil {
		return nil, err
	}
	for _, rec := range doc.Records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
}

// Update applies mutate to the record with the given id under the exclusive
// lock, re-reading the on-disk state first so concurrent writers never lose
// updates. The mutated registry is validated before it is written.
func (s *Store) Update(ctx context.Context, id string, mutate func(*models.DeploymentRecord) error) (*models.DeploymentRecord, error) {
	var updated *models.DeploymentRecord
	err := s.withLock(ctx, func() error {
		for _, rec := range s.doc.Records {
			if rec.ID != id {
				continue
			}
			if err := mutate(rec); err != nil {
				return err
			}
			if err := rec.Validate(); err != nil {
				return err
			}
			if err := validateInvariants(s.doc.Records); err != nil {
				return err
			}
			updated = rec
			return s.Persist()
		}
		return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a record entirely. Only pending records may be deleted:
// a failed provisioning attempt must not leave a stale pending entry, while
// anything that ever went active is retained for audit.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withLock(ctx, func() error {
		for i, rec := range s.doc.Records {
			if rec.ID != id {
				continue
			}
			if rec.Status != models.StatusPending {
				return &models.ValidationError{
					Field:   "status",
					Message: fmt.Sprintf("only pending records may be deleted, %s is %s", id, rec.Status),
				}
			}
			s.doc.Records = append(s.doc.Records[:i], s.doc.Records[i+1:]...)
			return s.Persist()
		}
		return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	})
}

// List returns all records matching the filter, reading the current on-disk
// state.
func (s *Store) List(filter models.RecordFilter) ([]*models.DeploymentRecord, error) {
	doc, err := readRegistry(s.path)
	if err != nil {
		return nil, err
	}
	var out []*models.DeploymentRecord
	for _, rec := range doc.Records {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Cleanup purges destroyed records older than the cutoff. Returns how many
// records were removed.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	err := s.withLock(ctx, func() error {
		kept := s.doc.Records[:0]
		for _, rec := range s.doc.Records {
			if rec.Status == models.StatusDestroyed && rec.DestroyedAt != nil && rec.DestroyedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		if removed == 0 {
			return nil
		}
		s.doc.Records = kept
		return s.Persist()
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("cleaned up destroyed deployments", "removed", removed)
	}
	return removed, nil
}

// withLock runs fn with the exclusive lock held and the snapshot freshly
// loaded from disk.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	if err := s.lock.Acquire(ctx); err != nil {
		return err
	}
	defer s.lock.Release()

	if err := s.Load(); err != nil {
		return err
	}
	return fn()
}

// validateInvariants enforces the registry-wide rules: ids are unique and no
// two active records share a public IP.
func validateInvariants(records []*models.DeploymentRecord) error {
	ids := make(map[string]bool, len(records))
	activeIPs := make(map[string]string)
	for _, rec := range records {
		if ids[rec.ID] {
			return &models.ConflictError{
				Provider: rec.Provider,
				Region:   rec.Region,
				Reason:   "duplicate deployment id",
				RecordID: rec.ID,
			}
		}
		ids[rec.ID] = true

		if rec.Status != models.StatusActive || rec.PublicIP == "" {
			continue
		}
		if holder, taken := activeIPs[rec.PublicIP]; taken {
			return &models.ConflictError{
				Provider: rec.Provider,
				Region:   rec.Region,
				Reason:   fmt.Sprintf("public IP %s already held by active deployment %s", rec.PublicIP, holder),
				RecordID: rec.ID,
			}
		}
		activeIPs[rec.PublicIP] = rec.ID
	}
	return nil
}

func emptyRegistry() *registryDocument {
	return &registryDocument{SchemaVersion: SchemaVersion, Records: []*models.DeploymentRecord{}}
}

func readRegistry(path string) (*registryDocument, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return emptyRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("registry %s has schema version %d, this build understands up to %d", path, doc.SchemaVersion, SchemaVersion)
	}
	if doc.Records == nil {
		doc.Records = []*models.DeploymentRecord{}
	}
	return &doc, nil
}

// writeAtomic writes the document to a temp file in the same directory and
// renames it into place, keeping the previous content in a .backup sibling.
// A crash mid-write therefore never corrupts the store.
func writeAtomic(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state document: %w", err)
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".backup", prev, 0o644); err != nil {
			return fmt.Errorf("failed to write backup copy: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state document: %w", err)
	}
	return nil
}
