package session

import (
	"context"
	"log"

	"github.com/google/uuid"

	"dashbot-backend/internal/models"
)

// maybeAutoSave persists the messages added since the last watermark, exactly
// once per growth. It acts only when a session is bound, streaming has
// stopped, and no save is already in flight. The watermark is advanced and
// the in-flight flag set *before* the persistence call: a state change firing
// during the network round trip must not re-save the same slice.
func (e *Engine) maybeAutoSave() {
	e.mu.Lock()
	if e.discarded || e.streamingNow || e.saving {
		e.mu.Unlock()
		return
	}

	target := e.boundSessionID
	if target == uuid.Nil {
		target = e.currentSessionID
	}
	if target == uuid.Nil {
		e.mu.Unlock()
		return
	}

	res := e.deriveLocked()
	if len(res.History) <= e.watermark {
		e.mu.Unlock()
		return
	}

	pending := append([]models.ChatMessage(nil), res.History[e.watermark:]...)
	e.watermark = len(res.History)
	e.saving = true
	e.mu.Unlock()

	// Best-effort persistence: on failure the watermark stays advanced and
	// the conversation continues in memory (durability is not guaranteed).
	if err := e.store.SaveMessages(context.Background(), target, pending); err != nil {
		log.Printf("chat autosave failed for session %s: %v", target, err)
	}

	e.mu.Lock()
	e.saving = false
	// The stream-time binding is spent; a later session switch must not reuse it.
	e.boundSessionID = uuid.Nil
	e.mu.Unlock()
}
