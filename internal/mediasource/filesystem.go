package mediasource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photovault/internal/filesystem"
	"photovault/internal/logging"
)

// maxEXIFHeaderBytes bounds how much of a photo is read for its EXIF block.
// The APP1 segment sits near the start of the file, so 256KiB is plenty.
const maxEXIFHeaderBytes = 256 << 10

// FSProvider enumerates a directory tree of media files as a Provider.
// Item IDs are slash-separated paths relative to the root, which keeps them
// stable across restarts. Creation time is approximated by file modification
// time since birth time is not portably available.
type FSProvider struct {
	root  string
	retry filesystem.RetryConfig

	mu         sync.Mutex
	generation int
	snapshot   []fsEntry
}

type fsEntry struct {
	relPath string
	size    int64
	modTime time.Time
}

// NewFSProvider creates a provider rooted at dir. The retry config governs
// stat/open/readdir behavior on network mounts.
func NewFSProvider(dir string, retry filesystem.RetryConfig) (*FSProvider, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving media root: %w", err)
	}
	return &FSProvider{root: abs, retry: retry}, nil
}

// Root returns the absolute media root directory.
func (p *FSProvider) Root() string {
	return p.root
}

// PermissionStatus implements Provider. The media root stands in for the
// device library, so a readable root means access is granted.
func (p *FSProvider) PermissionStatus() PermissionStatus {
	_, err := filesystem.ReadDirWithRetry(p.root, p.retry)
	switch {
	case err == nil:
		return PermissionGranted
	case os.IsPermission(err):
		return PermissionDenied
	default:
		return PermissionUndetermined
	}
}

// ListItems implements Provider. An empty cursor walks the tree and caches a
// sorted snapshot; subsequent cursors page through that snapshot so one scan
// sees a consistent ordering even while files are added or removed.
func (p *FSProvider) ListItems(ctx context.Context, cursor string, pageSize int, filters ListFilters) (ListPage, error) {
	if err := ctx.Err(); err != nil {
		return ListPage{}, err
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := 0
	if cursor == "" {
		entries, err := p.walk(ctx)
		if err != nil {
			return ListPage{}, err
		}
		p.generation++
		p.snapshot = entries
	} else {
		gen, idx, err := parseCursor(cursor)
		if err != nil {
			return ListPage{}, err
		}
		if gen != p.generation {
			return ListPage{}, fmt.Errorf("cursor %q is from a stale enumeration", cursor)
		}
		start = idx
	}

	filtered := filterEntries(p.snapshot, filters)
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	page := ListPage{HasMore: end < len(filtered)}
	for _, e := range filtered[start:end] {
		page.Items = append(page.Items, ItemRef{
			ID:           e.relPath,
			URI:          "file://" + filepath.Join(p.root, filepath.FromSlash(e.relPath)),
			Filename:     filepath.Base(e.relPath),
			MimeType:     MimeForFilename(e.relPath),
			CreationTime: e.modTime,
		})
	}
	if page.HasMore {
		page.NextCursor = fmt.Sprintf("%d:%d", p.generation, end)
	}
	return page, nil
}

// GetItemDetail implements Provider. It stats the file, probes image
// dimensions, and reads the file header as the raw EXIF block for photos.
func (p *FSProvider) GetItemDetail(ctx context.Context, id string) (ItemDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return ItemDescriptor{}, err
	}

	path, err := p.securePath(id)
	if err != nil {
		return ItemDescriptor{}, err
	}

	info, err := filesystem.StatWithRetry(path, p.retry)
	if err != nil {
		return ItemDescriptor{}, fmt.Errorf("stat %s: %w", id, err)
	}

	desc := ItemDescriptor{
		ID:               id,
		URI:              "file://" + path,
		Filename:         filepath.Base(path),
		FileSize:         info.Size(),
		MimeType:         MimeForFilename(path),
		CreationTime:     info.ModTime(),
		ModificationTime: info.ModTime(),
	}

	if KindForFilename(path) == KindPhoto {
		p.probePhoto(path, &desc)
	}

	return desc, nil
}

// probePhoto fills in dimensions and the raw EXIF header. Probe failures are
// logged and left out of the descriptor rather than failing the item.
func (p *FSProvider) probePhoto(path string, desc *ItemDescriptor) {
	f, err := filesystem.OpenWithRetry(path, p.retry)
	if err != nil {
		logging.Debug("Photo probe open failed for %s: %v", path, err)
		return
	}
	defer f.Close()

	head := make([]byte, maxEXIFHeaderBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		logging.Debug("Photo probe read failed for %s: %v", path, err)
		return
	}
	head = head[:n]
	desc.RawEXIF = head

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(head)); err == nil {
		desc.Width = cfg.Width
		desc.Height = cfg.Height
	}
}

// EstimateCount implements Provider by walking the tree and counting matches.
func (p *FSProvider) EstimateCount(ctx context.Context, filters ListFilters) (int, error) {
	entries, err := p.walk(ctx)
	if err != nil {
		return 0, err
	}
	return len(filterEntries(entries, filters)), nil
}

// walk enumerates supported media files under the root, sorted by
// modification time ascending with path as tiebreaker. Hidden entries
// (dotfiles) are skipped.
func (p *FSProvider) walk(ctx context.Context) ([]fsEntry, error) {
	var entries []fsEntry

	var visit func(dir string) error
	visit = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		dirEntries, err := filesystem.ReadDirWithRetry(dir, p.retry)
		if err != nil {
			// Subdirectories may vanish mid-walk; only the root is fatal.
			if dir != p.root && os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("reading %s: %w", dir, err)
		}

		for _, de := range dirEntries {
			name := de.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := filepath.Join(dir, name)
			if de.IsDir() {
				if err := visit(full); err != nil {
					return err
				}
				continue
			}
			if !IsSupported(name) {
				continue
			}
			info, err := de.Info()
			if err != nil {
				logging.Debug("Skipping %s: %v", full, err)
				continue
			}
			rel, err := filepath.Rel(p.root, full)
			if err != nil {
				continue
			}
			entries = append(entries, fsEntry{
				relPath: filepath.ToSlash(rel),
				size:    info.Size(),
				modTime: info.ModTime(),
			})
		}
		return nil
	}

	if err := visit(p.root); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].relPath < entries[j].relPath
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})
	return entries, nil
}

// securePath resolves an item ID to an absolute path, rejecting anything
// escaping the media root.
func (p *FSProvider) securePath(id string) (string, error) {
	if id == "" || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid item id %q", id)
	}
	path := filepath.Join(p.root, filepath.FromSlash(id))
	if !strings.HasPrefix(path, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid item id %q", id)
	}
	return path, nil
}

func parseCursor(cursor string) (generation, index int, err error) {
	genStr, idxStr, ok := strings.Cut(cursor, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	generation, err = strconv.Atoi(genStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	index, err = strconv.Atoi(idxStr)
	if err != nil || index < 0 {
		return 0, 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return generation, index, nil
}

func filterEntries(entries []fsEntry, filters ListFilters) []fsEntry {
	var out []fsEntry
	for _, e := range entries {
		if !filters.Since.IsZero() && !e.modTime.After(filters.Since) {
			continue
		}
		if len(filters.Kinds) > 0 {
			kind := KindForFilename(e.relPath)
			match := false
			for _, want := range filters.Kinds {
				if kind == want {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
