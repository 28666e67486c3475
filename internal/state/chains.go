package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

// chainsDocument is the on-disk shape of the chain ledger. Subnet allocations
// live inside each chain definition, so the document is also the allocation
// table for the shared pool.
type chainsDocument struct {
	SchemaVersion int                       `json:"schema_version"`
	UpdatedAt     time.Time                 `json:"updated_at"`
	Chains        []*models.ChainDefinition `json:"chains"`
}

// ChainStore persists chain definitions and hands out per-hop subnet slices
// from the configured pool. It shares the record store's lock file, so chain
// mutations and subnet allocation serialize with record writes: two chains
// built concurrently can never be handed overlapping subnets.
type ChainStore struct {
	path   string
	lock   *FileLock
	pool   *net.IPNet
	logger *slog.Logger

	doc *chainsDocument
}

// NewChainStore creates a chain store rooted in the same directory as the
// record store. pool must be an IPv4 network at least as wide as /24.
func NewChainStore(store *Store, pool string, logger *slog.Logger) (*ChainStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	_, network, err := net.ParseCIDR(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to parse subnet pool %q: %w", pool, err)
	}
	if ones, bits := network.Mask.Size(); bits != 32 || ones > 24 {
		return nil, &models.ValidationError{Field: "chains.subnet_pool", Message: "pool must be an IPv4 network of /24 or wider"}
	}
	return &ChainStore{
		path:   filepath.Join(store.Dir(), chainsFile),
		lock:   store.Lock(),
		pool:   network,
		logger: logger,
	}, nil
}

// Create persists a new chain definition. The name must be unused.
func (c *ChainStore) Create(ctx context.Context, def *models.ChainDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return c.withLock(ctx, func() error {
		for _, existing := range c.doc.Chains {
			if existing.Name == def.Name {
				return &models.ValidationError{Field: "name", Message: fmt.Sprintf("chain %q already exists", def.Name)}
			}
		}
		c.doc.Chains = append(c.doc.Chains, def)
		return c.persist()
	})
}

// Get returns the chain with the given name, or ErrNotFound.
func (c *ChainStore) Get(name string) (*models.ChainDefinition, error) {
	doc, err := readChains(c.path)
	if err != nil {
		return nil, err
	}
	for _, def := range doc.Chains {
		if def.Name == name {
			return def, nil
		}
	}
	return nil, fmt.Errorf("chain %s: %w", name, ErrNotFound)
}

// List returns every stored chain definition.
func (c *ChainStore) List() ([]*models.ChainDefinition, error) {
	doc, err := readChains(c.path)
	if err != nil {
		return nil, err
	}
	return doc.Chains, nil
}

// Update applies mutate to the named chain under the exclusive lock.
func (c *ChainStore) Update(ctx context.Context, name string, mutate func(*models.ChainDefinition) error) (*models.ChainDefinition, error) {
	var updated *models.ChainDefinition
	err := c.withLock(ctx, func() error {
		for _, def := range c.doc.Chains {
			if def.Name != name {
				continue
			}
			if err := mutate(def); err != nil {
				return err
			}
			if err := def.Validate(); err != nil {
				return err
			}
			updated = def
			return c.persist()
		}
		return fmt.Errorf("chain %s: %w", name, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AllocateSubnets hands out n non-overlapping /24 slices from the pool and
// records them against the named chain. Slices held by chains that are not
// torn down stay reserved, so concurrent builders always see each other's
// allocations.
func (c *ChainStore) AllocateSubnets(ctx context.Context, name string, n int) ([]string, error) {
	var allocated []string
	err := c.withLock(ctx, func() error {
		inUse := make(map[string]bool)
		var target *models.ChainDefinition
		for _, def := range c.doc.Chains {
			if def.Name == name {
				target = def
			}
			if def.Status == models.ChainTornDown {
				continue
			}
			for _, s := range def.Subnets {
				inUse[s] = true
			}
		}
		if target == nil {
			return fmt.Errorf("chain %s: %w", name, ErrNotFound)
		}

		allocated = allocated[:0]
		for i := 0; len(allocated) < n; i++ {
			subnet, ok := c.sliceAt(i)
			if !ok {
				return fmt.Errorf("allocating %d subnets for chain %s: %w", n, name, ErrPoolExhausted)
			}
			if inUse[subnet] {
				continue
			}
			allocated = append(allocated, subnet)
		}
		target.Subnets = append([]string(nil), allocated...)
		return c.persist()
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("allocated chain subnets", "chain", name, "subnets", allocated)
	return allocated, nil
}

// ReleaseSubnets returns the named chain's slices to the pool. The chain
// keeps no addressing after this; underlying deployment records are untouched.
func (c *ChainStore) ReleaseSubnets(ctx context.Context, name string) error {
	return c.withLock(ctx, func() error {
		for _, def := range c.doc.Chains {
			if def.Name != name {
				continue
			}
			def.Subnets = nil
			return c.persist()
		}
		return fmt.Errorf("chain %s: %w", name, ErrNotFound)
	})
}

// sliceAt returns the i-th /24 slice of the pool, or false when the pool is
// exhausted.
func (c *ChainStore) sliceAt(i int) (string, bool) {
	ones, _ := c.pool.Mask.Size()
	if i >= 1<<(24-ones) {
		return "", false
	}
	base := c.pool.IP.To4()
	addr := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
	addr += uint32(i) << 8
	return fmt.Sprintf("%d.%d.%d.0/24", byte(addr>>24), byte(addr>>16), byte(addr>>8)), true
}

func (c *ChainStore) withLock(ctx context.Context, fn func() error) error {
	if err := c.lock.Acquire(ctx); err != nil {
		return err
	}
	defer c.lock.Release()

	doc, err := readChains(c.path)
	if err != nil {
		return err
	}
	c.doc = doc
	return fn()
}

func (c *ChainStore) persist() error {
	c.doc.SchemaVersion = SchemaVersion
	c.doc.UpdatedAt = time.Now().UTC()
	return writeAtomic(c.path, c.doc)
}

func readChains(path string) (*chainsDocument, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &chainsDocument{SchemaVersion: SchemaVersion, Chains: []*models.ChainDefinition{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chain document: %w", err)
	}
	var doc chainsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse chain document %s: %w", path, err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("chain document %s has schema version %d, this build understands up to %d", path, doc.SchemaVersion, SchemaVersion)
	}
	if doc.Chains == nil {
		doc.Chains = []*models.ChainDefinition{}
	}
	return &doc, nil
}
