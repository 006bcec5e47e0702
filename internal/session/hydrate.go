package session

import (
	"context"

	"github.com/google/uuid"

	"dashbot-backend/internal/models"
)

// ActivateSession switches the live view to a persisted session: it resets
// the pagination window, fetches the first page, and hydrates.
func (e *Engine) ActivateSession(ctx context.Context, id uuid.UUID) error {
	e.mu.Lock()
	e.selectedSession = id
	if e.pageSession != id {
		e.pageSession = id
		e.pageItems = nil
		e.pagesLoaded = 0
		e.pageTotal = 0
		e.hydrateSignaled = false
	}
	e.mu.Unlock()

	if err := e.fetchNextPage(ctx); err != nil {
		return err
	}
	return e.hydrate(ctx)
}

// hydrate merges the materialized persisted pages into the live view. It is
// an idempotent no-op while a fetch is outstanding, when nothing changed
// since the last hydration, or while a stream is in flight (an in-progress
// stream is never disturbed). A session that reports zero messages and was
// not the one explicitly selected is recorded without loading, so an empty
// seed never flashes before the real fetch lands.
func (e *Engine) hydrate(ctx context.Context) error {
	e.mu.Lock()
	if e.fetching || e.streamingNow {
		e.mu.Unlock()
		return nil
	}
	sid := e.pageSession
	count := len(e.pageItems)
	if sid == uuid.Nil {
		e.mu.Unlock()
		return nil
	}
	if sid == e.hydratedSession && count == e.hydratedCount {
		e.mu.Unlock()
		return nil
	}
	if count == 0 && sid != e.selectedSession {
		e.hydratedSession = sid
		e.hydratedCount = 0
		e.mu.Unlock()
		return nil
	}

	items := append([]*models.PersistedMessage(nil), e.pageItems...)
	e.loadSessionLocked(sid, items)
	e.hydratedSession = sid
	e.hydratedCount = count
	first := !e.hydrateSignaled
	e.hydrateSignaled = true
	e.mu.Unlock()

	// Switch the selected model to match the hydrated session.
	if sess, err := e.store.GetSession(ctx, sid); err == nil {
		e.mu.Lock()
		if sess.Model != "" && sess.Model != e.model {
			e.model = sess.Model
		}
		if sess.Provider != "" {
			e.providerName = sess.Provider
		}
		e.mu.Unlock()
	}

	// One-shot completion signal for the skeleton-done transition; later
	// growth hydrations stay silent.
	if first && e.publish != nil {
		e.publish(models.WSMessage{
			Type:    "hydration_done",
			Payload: models.HydrationDone{SessionID: sid},
		})
	}

	e.publishState()
	return nil
}
