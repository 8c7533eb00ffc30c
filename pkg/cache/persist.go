package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alana-ai/alana/pkg/models"
)

// FilePersister keeps the mapping as indented JSON on disk.
type FilePersister struct {
	Path string
}

// NewFilePersister returns a FilePersister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

// Load reads the mapping. A missing file is an empty cache.
func (p *FilePersister) Load(_ context.Context) (map[string]models.CacheEntry, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read cache file: %v", models.ErrPersistence, err)
	}
	return decodeEntries(data)
}

// Save writes the mapping to a temp file and renames it over Path.
func (p *FilePersister) Save(_ context.Context, entries map[string]models.CacheEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode cache: %v", models.ErrPersistence, err)
	}

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create cache dir: %v", models.ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", models.ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write cache file: %v", models.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close cache file: %v", models.ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), p.Path); err != nil {
		return fmt.Errorf("%w: replace cache file: %v", models.ErrPersistence, err)
	}
	return nil
}

// RedisPersister stores the whole mapping as one JSON value under Key.
type RedisPersister struct {
	client *goredis.Client
	key    string
	owned  bool
}

// NewRedisPersister wraps an existing client. The caller keeps ownership.
func NewRedisPersister(client *goredis.Client, key string) *RedisPersister {
	return &RedisPersister{client: client, key: key}
}

// DialRedisPersister connects to url and returns a persister that closes
// the client on Close.
func DialRedisPersister(url, key string) (*RedisPersister, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisPersister{client: goredis.NewClient(opt), key: key, owned: true}, nil
}

// Load fetches the mapping. A missing key is an empty cache.
func (p *RedisPersister) Load(ctx context.Context) (map[string]models.CacheEntry, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get: %v", models.ErrPersistence, err)
	}
	return decodeEntries(data)
}

// Save replaces the stored mapping.
func (p *RedisPersister) Save(ctx context.Context, entries map[string]models.CacheEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: encode cache: %v", models.ErrPersistence, err)
	}
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", models.ErrPersistence, err)
	}
	return nil
}

// Close releases the client if the persister dialed it.
func (p *RedisPersister) Close() error {
	if !p.owned {
		return nil
	}
	return p.client.Close()
}

func decodeEntries(data []byte) (map[string]models.CacheEntry, error) {
	entries := make(map[string]models.CacheEntry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode cache: %v", models.ErrPersistence, err)
	}
	for k, e := range entries {
		if e.CreatedAt.IsZero() {
			delete(entries, k)
		}
	}
	return entries, nil
}
