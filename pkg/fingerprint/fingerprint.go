// Package fingerprint derives an identifier for the current state of the
// document index so cached answers are bound to the corpus they came from.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NoCorpus is returned when the index root is missing, empty or unreadable.
const NoCorpus = "no_vector"

// Mode selects how a Generator derives the fingerprint.
type Mode string

const (
	ModeScan   Mode = "scan"
	ModeMarker Mode = "marker"
)

// Compute walks every regular file under root and hashes the sorted
// (relative path, mtime in whole seconds) pairs. It is recomputed on every call.
func Compute(root string) string {
	var entries []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, filepath.ToSlash(rel)+":"+strconv.FormatInt(info.ModTime().Unix(), 10))
		return nil
	})
	if err != nil || len(entries) == 0 {
		return NoCorpus
	}

	sort.Strings(entries)
	sum := sha256.Sum256([]byte(strings.Join(entries, "|")))
	return hex.EncodeToString(sum[:])
}

// Marker returns the corpus id stored at path, creating a new one if absent.
func Marker(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read corpus marker: %w", err)
	}
	return writeMarker(path)
}

// ResetMarker replaces the corpus id at path, starting a new corpus lifetime.
func ResetMarker(path string) (string, error) {
	return writeMarker(path)
}

func writeMarker(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create marker dir: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write corpus marker: %w", err)
	}
	return id, nil
}

// Generator produces the fingerprint used for cache keys.
type Generator struct {
	Root       string
	MarkerPath string
	Mode       Mode

	mu     sync.Mutex
	marker string
}

// New returns a Generator for root. An empty mode means ModeScan.
func New(root, markerPath string, mode Mode) *Generator {
	if mode == "" {
		mode = ModeScan
	}
	if markerPath == "" {
		markerPath = filepath.Join(root, ".corpus_id")
	}
	return &Generator{Root: root, MarkerPath: markerPath, Mode: mode}
}

// Fingerprint returns the current corpus fingerprint, or NoCorpus.
func (g *Generator) Fingerprint() string {
	if g.Mode != ModeMarker {
		return Compute(g.Root)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.marker != "" {
		return g.marker
	}
	id, err := Marker(g.MarkerPath)
	if err != nil {
		return NoCorpus
	}
	g.marker = id
	return id
}

// Reset starts a new corpus lifetime. In scan mode it is a no-op because
// the fingerprint already follows the files.
func (g *Generator) Reset() error {
	if g.Mode != ModeMarker {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ResetMarker(g.MarkerPath)
	if err != nil {
		return err
	}
	g.marker = id
	return nil
}
