package mediasource

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// FakeProvider is an in-memory Provider implementation. It enumerates a
// fixed set of descriptors in creation-time order and supports permission
// and per-item failure injection. Used by tests and local development.
type FakeProvider struct {
	mu         sync.RWMutex
	items      []ItemDescriptor
	permission PermissionStatus
	failDetail map[string]error
}

// NewFakeProvider creates a FakeProvider with permission granted.
func NewFakeProvider(items ...ItemDescriptor) *FakeProvider {
	p := &FakeProvider{
		permission: PermissionGranted,
		failDetail: make(map[string]error),
	}
	p.SetItems(items...)
	return p
}

// SetItems replaces the provider's item set.
func (p *FakeProvider) SetItems(items ...ItemDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = append([]ItemDescriptor(nil), items...)
	sort.Slice(p.items, func(i, j int) bool {
		if p.items[i].CreationTime.Equal(p.items[j].CreationTime) {
			return p.items[i].ID < p.items[j].ID
		}
		return p.items[i].CreationTime.Before(p.items[j].CreationTime)
	})
}

// AddItems appends items to the provider's set.
func (p *FakeProvider) AddItems(items ...ItemDescriptor) {
	p.mu.RLock()
	existing := append([]ItemDescriptor(nil), p.items...)
	p.mu.RUnlock()
	p.SetItems(append(existing, items...)...)
}

// SetPermission overrides the reported permission status.
func (p *FakeProvider) SetPermission(status PermissionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permission = status
}

// FailDetail makes GetItemDetail return err for the given item id.
func (p *FakeProvider) FailDetail(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failDetail[id] = err
}

// PermissionStatus implements Provider.
func (p *FakeProvider) PermissionStatus() PermissionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.permission
}

// ListItems implements Provider. The cursor is the decimal index of the
// next item in the filtered, creation-time-ordered set.
func (p *FakeProvider) ListItems(ctx context.Context, cursor string, pageSize int, filters ListFilters) (ListPage, error) {
	if err := ctx.Err(); err != nil {
		return ListPage{}, err
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	filtered := p.filtered(filters)

	start := 0
	if cursor != "" {
		idx, err := strconv.Atoi(cursor)
		if err != nil || idx < 0 {
			return ListPage{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		start = idx
	}
	if start > len(filtered) {
		start = len(filtered)
	}

	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	page := ListPage{HasMore: end < len(filtered)}
	for _, item := range filtered[start:end] {
		page.Items = append(page.Items, ItemRef{
			ID:           item.ID,
			URI:          item.URI,
			Filename:     item.Filename,
			MimeType:     item.MimeType,
			CreationTime: item.CreationTime,
		})
	}
	if page.HasMore {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// GetItemDetail implements Provider.
func (p *FakeProvider) GetItemDetail(ctx context.Context, id string) (ItemDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return ItemDescriptor{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if err, ok := p.failDetail[id]; ok {
		return ItemDescriptor{}, err
	}
	for _, item := range p.items {
		if item.ID == id {
			return item, nil
		}
	}
	return ItemDescriptor{}, fmt.Errorf("item %q not found", id)
}

// EstimateCount implements Provider.
func (p *FakeProvider) EstimateCount(ctx context.Context, filters ListFilters) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.filtered(filters)), nil
}

// filtered returns the item set narrowed by filters. Caller holds p.mu.
func (p *FakeProvider) filtered(filters ListFilters) []ItemDescriptor {
	var out []ItemDescriptor
	for _, item := range p.items {
		if !filters.Since.IsZero() && !item.CreationTime.After(filters.Since) {
			continue
		}
		if len(filters.Kinds) > 0 {
			kind := KindForMime(item.MimeType)
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
		out = append(out, item)
	}
	return out
}
