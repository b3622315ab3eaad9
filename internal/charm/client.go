// ABOUTME: Charm KV client for syncing knowledge-base snapshots between machines
// ABOUTME: Snapshots are stored under kb:<name> with a JSON descriptor under kbmeta:<name>
package charm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/harper/ragcore/internal/models"
)

// Key prefixes
const (
	SnapshotPrefix = "kb:"
	MetaPrefix     = "kbmeta:"
)

// Config holds charm client configuration
type Config struct {
	Host     string
	DBName   string
	AutoSync bool
}

// DefaultConfig returns default configuration for charm client
func DefaultConfig() Config {
	return Config{
		Host:     "cloud.charm.sh",
		DBName:   "ragcore",
		AutoSync: false,
	}
}

// Store is the subset of charm KV the client needs
type Store interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
	Close() error
}

// SnapshotInfo describes a pushed snapshot
type SnapshotInfo struct {
	Name     string    `json:"name"`
	Size     int       `json:"size"`
	SHA256   string    `json:"sha256"`
	PushedAt time.Time `json:"pushed_at"`
}

// Client wraps charm KV for snapshot storage. Each caller owns its client.
type Client struct {
	store  Store
	config Config
	mu     sync.Mutex
	closed bool
}

// NewClient opens the charm KV database named in cfg
func NewClient(cfg Config) (*Client, error) {
	if cfg.DBName == "" {
		return nil, models.Validationf("charm database name is required")
	}
	// The charm library reads its host from the environment
	if cfg.Host != "" {
		if err := os.Setenv("CHARM_HOST", cfg.Host); err != nil {
			return nil, fmt.Errorf("failed to set CHARM_HOST: %w", err)
		}
	}

	db, err := kv.OpenWithDefaults(cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}
	c := NewWithStore(db, cfg)

	// Pull remote data on startup
	if cfg.AutoSync {
		_ = db.Sync()
	}
	return c, nil
}

// NewWithStore wraps an already opened store
func NewWithStore(store Store, cfg Config) *Client {
	return &Client{store: store, config: cfg}
}

// Close closes the KV database
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

func (c *Client) requireOpen() error {
	if c.closed {
		return models.Statef("charm client is closed")
	}
	return nil
}

// syncIfEnabled syncs to cloud after writes
func (c *Client) syncIfEnabled() {
	if c.config.AutoSync {
		_ = c.store.Sync()
	}
}

// ID returns the charm user ID
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// Sync manually triggers a sync with the cloud
func (c *Client) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen(); err != nil {
		return err
	}
	return c.store.Sync()
}

// SnapshotKey generates the key holding a snapshot's bytes
func SnapshotKey(name string) string {
	return SnapshotPrefix + name
}

// MetaKey generates the key holding a snapshot's descriptor
func MetaKey(name string) string {
	return MetaPrefix + name
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return models.Validationf("snapshot name cannot be empty")
	}
	if strings.ContainsAny(name, ": \t\n") {
		return models.Validationf("snapshot name %q may not contain spaces or colons", name)
	}
	return nil
}

// PushSnapshot stores data under name, replacing any earlier snapshot
func (c *Client) PushSnapshot(name string, data []byte) (SnapshotInfo, error) {
	if err := validName(name); err != nil {
		return SnapshotInfo{}, err
	}
	if len(data) == 0 {
		return SnapshotInfo{}, models.ErrEmptyInput
	}

	sum := sha256.Sum256(data)
	info := SnapshotInfo{
		Name:     name,
		Size:     len(data),
		SHA256:   hex.EncodeToString(sum[:]),
		PushedAt: time.Now().UTC(),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to marshal snapshot info: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen(); err != nil {
		return SnapshotInfo{}, err
	}
	if err := c.store.Set([]byte(SnapshotKey(name)), data); err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to set key %s: %w", SnapshotKey(name), err)
	}
	if err := c.store.Set([]byte(MetaKey(name)), meta); err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to set key %s: %w", MetaKey(name), err)
	}
	c.syncIfEnabled()
	return info, nil
}

// PullSnapshot returns the bytes stored under name and checks them against the descriptor
func (c *Client) PullSnapshot(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen(); err != nil {
		return nil, err
	}

	data, err := c.get(SnapshotKey(name))
	if err != nil {
		return nil, err
	}
	if raw, err := c.get(MetaKey(name)); err == nil {
		var info SnapshotInfo
		if json.Unmarshal(raw, &info) == nil && info.SHA256 != "" {
			sum := sha256.Sum256(data)
			if hex.EncodeToString(sum[:]) != info.SHA256 {
				return nil, models.Validationf("snapshot %s does not match its checksum", name)
			}
		}
	}
	return data, nil
}

// DeleteSnapshot removes a snapshot and its descriptor
func (c *Client) DeleteSnapshot(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen(); err != nil {
		return err
	}
	if _, err := c.get(SnapshotKey(name)); err != nil {
		return err
	}
	for _, key := range []string{SnapshotKey(name), MetaKey(name)} {
		if err := c.store.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	c.syncIfEnabled()
	return nil
}

// ListSnapshots returns the descriptors of every pushed snapshot, sorted by name
func (c *Client) ListSnapshots() ([]SnapshotInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen(); err != nil {
		return nil, err
	}

	keys, err := c.store.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var out []SnapshotInfo
	for _, key := range keys {
		k := string(key)
		if !strings.HasPrefix(k, MetaPrefix) {
			continue
		}
		raw, err := c.get(k)
		if err != nil {
			continue
		}
		var info SnapshotInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// get maps a missing key to ErrNotFound
func (c *Client) get(key string) ([]byte, error) {
	data, err := c.store.Get([]byte(key))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, models.NotFoundf("key %s", key)
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if data == nil {
		return nil, models.NotFoundf("key %s", key)
	}
	return data, nil
}
