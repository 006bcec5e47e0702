package session

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"dashbot-backend/internal/models"
)

// HasMoreMessages reports whether the server holds pages beyond what has been
// materialized for the active session.
func (e *Engine) HasMoreMessages() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMoreLocked()
}

// RemainingMessages is the server-reported total minus the materialized count.
func (e *Engine) RemainingMessages() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := e.pageTotal - len(e.pageItems); n > 0 {
		return n
	}
	return 0
}

func (e *Engine) hasMoreLocked() bool {
	return e.pageSession != uuid.Nil && len(e.pageItems) < e.pageTotal
}

// LoadOlder fetches the next persisted page and re-hydrates. No-op when there
// is no active session, no further page, or a fetch is already running.
func (e *Engine) LoadOlder(ctx context.Context) error {
	if err := e.fetchNextPage(ctx); err != nil {
		return err
	}
	return e.hydrate(ctx)
}

// LoadAll keeps fetching until the server reports no further pages. No-op when
// there is no active session; stops as soon as a fetch makes no progress (for
// example because a concurrent fetch already holds the in-flight flag).
func (e *Engine) LoadAll(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.pageSession == uuid.Nil {
			e.mu.Unlock()
			return nil
		}
		more := e.pagesLoaded == 0 || e.hasMoreLocked()
		before := e.pagesLoaded
		e.mu.Unlock()
		if !more {
			break
		}
		if err := e.fetchNextPage(ctx); err != nil {
			return err
		}
		e.mu.Lock()
		progressed := e.pagesLoaded != before
		e.mu.Unlock()
		if !progressed {
			break
		}
	}
	return e.hydrate(ctx)
}

func (e *Engine) fetchNextPage(ctx context.Context) error {
	e.mu.Lock()
	if e.fetching || e.pageSession == uuid.Nil {
		e.mu.Unlock()
		return nil
	}
	if e.pagesLoaded > 0 && !e.hasMoreLocked() {
		e.mu.Unlock()
		return nil
	}
	e.fetching = true
	sid := e.pageSession
	page := e.pagesLoaded + 1
	e.mu.Unlock()

	items, total, err := e.store.ListMessages(ctx, sid, page, e.pageSize)

	e.mu.Lock()
	e.fetching = false
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if e.pageSession != sid {
		// Session switched while the fetch was outstanding; drop the page.
		e.mu.Unlock()
		return nil
	}
	e.pagesLoaded = page
	e.pageTotal = total
	e.pageItems = mergeRecords(e.pageItems, items)
	e.mu.Unlock()
	return nil
}

// mergeRecords combines pages into one list deduplicated by id and sorted
// oldest first.
func mergeRecords(have, more []*models.PersistedMessage) []*models.PersistedMessage {
	seen := make(map[uuid.UUID]bool, len(have))
	merged := make([]*models.PersistedMessage, 0, len(have)+len(more))
	for _, m := range have {
		if !seen[m.ID] {
			seen[m.ID] = true
			merged = append(merged, m)
		}
	}
	for _, m := range more {
		if !seen[m.ID] {
			seen[m.ID] = true
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}
