package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"dashbot-backend/internal/models"
	"dashbot-backend/internal/stream"
)

// Store is the persistence API the engine consumes.
type Store interface {
	CreateSession(ctx context.Context, s *models.ChatSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	SaveMessages(ctx context.Context, sessionID uuid.UUID, msgs []models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID uuid.UUID, page, limit int) ([]*models.PersistedMessage, int, error)
}

// Provider is the stream transport collaborator: an ordered fragment feed per
// outgoing exchange.
type Provider interface {
	Stream(ctx context.Context, model string, history []models.ChatMessage, prompt string) (<-chan stream.Event, error)
}

// Options wires an engine's collaborators.
type Options struct {
	Store            Store
	Provider         Provider
	Publish          func(models.WSMessage)
	OnSessionCreated func(sess *models.ChatSession, firstMessage string)
	DefaultModel     string
	DefaultProvider  string
	PageSize         int
}

// Engine owns one dashboard client's live conversation: the transport message
// list, the session binding, the save watermark, and the hydration/pagination
// bookkeeping. All session-scoped mutable state lives here behind one mutex;
// each field has a single logical writer (the method group named for it), the
// lock only serializes the cooperative steps the way a single-threaded event
// loop would.
type Engine struct {
	clientID         string
	store            Store
	provider         Provider
	publish          func(models.WSMessage)
	onSessionCreated func(sess *models.ChatSession, firstMessage string)
	pageSize         int

	mu sync.Mutex

	// Transport message list. The consume goroutine appends fragments; load
	// and discard are the only wholesale replacements.
	msgs []stream.Message
	ts   *stream.Timestamps

	// Session binding.
	currentSessionID uuid.UUID
	boundSessionID   uuid.UUID // captured at send time; an in-flight save never retargets
	discarded        bool
	creating         bool

	// Auto-save watermark.
	watermark int
	saving    bool

	// Live stream.
	streamingNow bool
	cancelStream context.CancelFunc
	lastErr      string

	// Selected model/provider for the next send.
	model        string
	providerName string

	// Hydration bookkeeping: the last {session, count} actually loaded.
	hydratedSession uuid.UUID
	hydratedCount   int
	hydrateSignaled bool
	selectedSession uuid.UUID

	// Paginated persisted history for the active session.
	pageSession uuid.UUID
	pageItems   []*models.PersistedMessage
	pagesLoaded int
	pageTotal   int
	fetching    bool
}

func NewEngine(clientID string, opts Options) *Engine {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Engine{
		clientID:         clientID,
		store:            opts.Store,
		provider:         opts.Provider,
		publish:          opts.Publish,
		onSessionCreated: opts.OnSessionCreated,
		pageSize:         pageSize,
		ts:               stream.NewTimestamps(),
		model:            opts.DefaultModel,
		providerName:     opts.DefaultProvider,
	}
}

// SendMessage dispatches a user message into the active session, creating and
// binding a session lazily on first send. Blank input is a no-op. The bound
// session id is captured before the transport send so a session switch during
// the stream cannot retarget the save.
func (e *Engine) SendMessage(ctx context.Context, req models.SendRequest) error {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil
	}

	e.mu.Lock()
	if e.streamingNow {
		e.mu.Unlock()
		return nil
	}
	e.discarded = false
	if req.Model != "" {
		e.model = req.Model
	}
	if req.Provider != "" {
		e.providerName = req.Provider
	}

	var created *models.ChatSession
	if e.currentSessionID == uuid.Nil {
		if e.creating {
			// A concurrent send already has a creation round trip outstanding.
			e.mu.Unlock()
			return nil
		}
		e.creating = true
		model, prov := e.model, e.providerName
		e.mu.Unlock()

		sess := &models.ChatSession{
			ClientID: e.clientID,
			Title:    draftTitle(text),
			Model:    model,
			Provider: prov,
		}
		err := e.store.CreateSession(ctx, sess)

		e.mu.Lock()
		e.creating = false
		if err != nil {
			e.lastErr = "Could not start a new conversation."
			e.mu.Unlock()
			e.publishState()
			return err
		}
		if e.discarded {
			// Cancelled while the creation round trip was outstanding.
			e.mu.Unlock()
			return nil
		}
		if e.currentSessionID == uuid.Nil {
			e.currentSessionID = sess.ID
			created = sess
		}
	}

	e.boundSessionID = e.currentSessionID

	prior := e.deriveLocked()
	history := append([]models.ChatMessage(nil), prior.History...)

	e.msgs = append(e.msgs, stream.Message{
		ID:   uuid.NewString(),
		Role: "user",
		Parts: []stream.Fragment{
			{Kind: stream.KindTextFinal, Text: text, State: stream.StateDone},
		},
	})

	asstID := uuid.NewString()
	e.msgs = append(e.msgs, stream.Message{ID: asstID, Role: "assistant"})

	sctx, cancel := context.WithCancel(context.Background())
	e.cancelStream = cancel
	e.streamingNow = true
	e.lastErr = ""
	model := e.model
	e.mu.Unlock()

	if created != nil && e.onSessionCreated != nil {
		e.onSessionCreated(created, text)
	}
	e.publishState()

	go e.consume(sctx, asstID, model, history, text)
	return nil
}

// consume drains one exchange's fragment feed into the transport message
// list. Fragments arriving after a discard never re-enter the view.
func (e *Engine) consume(sctx context.Context, asstID, model string, history []models.ChatMessage, prompt string) {
	ch, err := e.provider.Stream(sctx, model, history, prompt)
	if err != nil {
		e.mu.Lock()
		e.streamingNow = false
		e.cancelStream = nil
		if !e.discarded {
			e.lastErr = err.Error()
		}
		e.mu.Unlock()
		// The user message is already past the watermark; persist it even
		// though the exchange never started.
		e.maybeAutoSave()
		e.publishState()
		return
	}

	for ev := range ch {
		if ev.Err != nil {
			e.mu.Lock()
			if !e.discarded {
				e.lastErr = ev.Err.Error()
			}
			e.mu.Unlock()
			continue
		}

		e.mu.Lock()
		if e.discarded || sctx.Err() != nil {
			e.mu.Unlock()
			continue
		}
		e.appendFragmentLocked(asstID, ev.Fragment)
		e.mu.Unlock()
		e.publishState()
	}

	e.mu.Lock()
	if !e.discarded {
		e.finalizeLocked(asstID)
	}
	e.streamingNow = false
	e.cancelStream = nil
	e.mu.Unlock()

	e.maybeAutoSave()
	e.publishState()
}

// DiscardStream is the cancellation primitive. Safe at any point during an
// in-flight stream; afterwards no fragment of the cancelled stream can reach
// the view until a new send clears the discarded flag.
func (e *Engine) DiscardStream() {
	e.clear()
}

// NewSession clears all session-scoped state without requiring an active
// stream.
func (e *Engine) NewSession() {
	e.clear()
}

func (e *Engine) clear() {
	e.mu.Lock()
	e.discarded = true
	e.boundSessionID = uuid.Nil
	if e.cancelStream != nil {
		e.cancelStream()
		e.cancelStream = nil
	}
	e.streamingNow = false
	e.msgs = nil
	e.currentSessionID = uuid.Nil
	e.watermark = 0
	e.lastErr = ""
	e.ts.Reset()
	e.hydratedSession = uuid.Nil
	e.hydratedCount = 0
	e.hydrateSignaled = false
	e.selectedSession = uuid.Nil
	e.pageSession = uuid.Nil
	e.pageItems = nil
	e.pagesLoaded = 0
	e.pageTotal = 0
	e.mu.Unlock()
	e.publishState()
}

// LoadSession seeds the transport message list from persisted records and
// resets the watermark to the count of records that survive processing.
func (e *Engine) LoadSession(id uuid.UUID, records []*models.PersistedMessage) {
	e.mu.Lock()
	e.loadSessionLocked(id, records)
	e.mu.Unlock()
	e.publishState()
}

func (e *Engine) loadSessionLocked(id uuid.UUID, records []*models.PersistedMessage) {
	e.discarded = false
	e.currentSessionID = id
	e.ts.Reset()

	msgs := make([]stream.Message, 0, len(records))
	valid := 0
	for _, rec := range records {
		parts := []stream.Fragment{
			{Kind: stream.KindTextFinal, Text: rec.Content, State: stream.StateDone},
		}
		for i := range rec.Blocks {
			parts = append(parts, stream.Fragment{
				Kind:  stream.KindChart,
				Chart: &rec.Blocks[i],
				State: stream.StateDone,
			})
		}
		msgs = append(msgs, stream.Message{ID: rec.ID.String(), Role: rec.Role, Parts: parts})
		if strings.TrimSpace(rec.Content) != "" || len(rec.Blocks) > 0 {
			valid++
		}
	}

	e.msgs = msgs
	e.watermark = valid
	e.lastErr = ""
}

// Snapshot derives the current conversation view. While discarded it is
// forced empty regardless of transport content.
func (e *Engine) Snapshot() models.ChatState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() models.ChatState {
	res := e.deriveLocked()

	status := "ready"
	if e.streamingNow && !e.discarded {
		status = "streaming"
	}
	if e.lastErr != "" {
		status = "error"
	}

	var sid *uuid.UUID
	if e.currentSessionID != uuid.Nil {
		v := e.currentSessionID
		sid = &v
	}

	return models.ChatState{
		History:   res.History,
		Streaming: res.Streaming,
		Reasoning: res.Reasoning,
		SessionID: sid,
		Status:    status,
		Error:     e.lastErr,
	}
}

func (e *Engine) deriveLocked() stream.Result {
	if e.discarded {
		return stream.Result{}
	}
	return stream.Process(e.msgs, e.ts)
}

func (e *Engine) appendFragmentLocked(id string, f stream.Fragment) {
	for i := len(e.msgs) - 1; i >= 0; i-- {
		if e.msgs[i].ID == id {
			e.msgs[i].Parts = append(e.msgs[i].Parts, f)
			return
		}
	}
}

// finalizeLocked closes a message at end-of-stream when no text-final was
// delivered: stream end marks the message done.
func (e *Engine) finalizeLocked(id string) {
	for i := len(e.msgs) - 1; i >= 0; i-- {
		if e.msgs[i].ID != id {
			continue
		}
		agg := stream.AggregateText(e.msgs[i].Parts)
		if agg.Streaming {
			e.msgs[i].Parts = append(e.msgs[i].Parts, stream.Fragment{
				Kind:  stream.KindTextFinal,
				Text:  agg.Raw,
				State: stream.StateDone,
			})
		}
		return
	}
}

func (e *Engine) publishState() {
	if e.publish == nil {
		return
	}
	e.mu.Lock()
	state := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(models.WSMessage{Type: "chat_state", Payload: state})
}

// Model reports the model currently selected for the next send.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// draftTitle is the placeholder title used until the worker pool generates a
// real one.
func draftTitle(text string) string {
	const max = 48
	title := strings.Join(strings.Fields(text), " ")
	if len(title) > max {
		title = strings.TrimSpace(title[:max]) + "…"
	}
	return title
}
