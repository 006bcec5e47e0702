package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"dashbot-backend/internal/models"
	"dashbot-backend/internal/stream"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.ChatSession
	records  map[uuid.UUID][]*models.PersistedMessage
	saves    map[uuid.UUID][][]models.ChatMessage
	getCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*models.ChatSession),
		records:  make(map[uuid.UUID][]*models.PersistedMessage),
		saves:    make(map[uuid.UUID][][]models.ChatMessage),
	}
}

func (s *fakeStore) CreateSession(ctx context.Context, sess *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = uuid.New()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *fakeStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, fmt.Errorf("session %s not found", id)
}

func (s *fakeStore) SaveMessages(ctx context.Context, sessionID uuid.UUID, msgs []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves[sessionID] = append(s.saves[sessionID], msgs)
	return nil
}

func (s *fakeStore) ListMessages(ctx context.Context, sessionID uuid.UUID, page, limit int) ([]*models.PersistedMessage, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[sessionID]
	total := len(recs)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return recs[start:end], total, nil
}

func (s *fakeStore) saveCount(sessionID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves[sessionID])
}

func (s *fakeStore) savedBatch(sessionID uuid.UUID, i int) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[sessionID][i]
}

// scriptedProvider plays one prepared fragment sequence per Stream call.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts [][]stream.Event
	calls   int
}

func (p *scriptedProvider) Stream(ctx context.Context, model string, history []models.ChatMessage, prompt string) (<-chan stream.Event, error) {
	p.mu.Lock()
	var script []stream.Event
	if p.calls < len(p.scripts) {
		script = p.scripts[p.calls]
	}
	p.calls++
	p.mu.Unlock()

	ch := make(chan stream.Event)
	go func() {
		defer close(ch)
		for _, ev := range script {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// failingProvider refuses every exchange before the stream opens.
type failingProvider struct{}

func (failingProvider) Stream(ctx context.Context, model string, history []models.ChatMessage, prompt string) (<-chan stream.Event, error) {
	return nil, fmt.Errorf("model backend unavailable")
}

// chanProvider hands the test direct control over the fragment feed.
type chanProvider struct {
	ch chan stream.Event
}

func (p *chanProvider) Stream(ctx context.Context, model string, history []models.ChatMessage, prompt string) (<-chan stream.Event, error) {
	return p.ch, nil
}

func finalEvent(text string) stream.Event {
	return stream.Event{Fragment: stream.Fragment{
		Kind: stream.KindTextFinal, Text: text, State: stream.StateDone,
	}}
}

func deltaEvent(text string) stream.Event {
	return stream.Event{Fragment: stream.Fragment{
		Kind: stream.KindTextDelta, Text: text, State: stream.StateStreaming,
	}}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSendMessage_CreatesSessionAndSaves(t *testing.T) {
	store := newFakeStore()
	provider := &scriptedProvider{scripts: [][]stream.Event{
		{deltaEvent("Hi "), deltaEvent("there!"), finalEvent("Hi there!")},
	}}
	e := NewEngine("client-1", Options{Store: store, Provider: provider, DefaultModel: "m1"})

	if err := e.SendMessage(context.Background(), models.SendRequest{Message: "Hello"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	state := e.Snapshot()
	if state.SessionID == nil {
		t.Fatal("expected a session to be created on first send")
	}
	sid := *state.SessionID

	waitFor(t, "autosave", func() bool { return store.saveCount(sid) == 1 })

	batch := store.savedBatch(sid, 0)
	if len(batch) != 2 {
		t.Fatalf("saved batch = %+v", batch)
	}
	if batch[0].Role != "user" || batch[0].Content != "Hello" {
		t.Errorf("batch[0] = %+v", batch[0])
	}
	if batch[1].Role != "assistant" || batch[1].Content != "Hi there!" {
		t.Errorf("batch[1] = %+v", batch[1])
	}

	state = e.Snapshot()
	if state.Status != "ready" {
		t.Errorf("status = %q", state.Status)
	}
	if len(state.History) != 2 || state.Streaming != nil {
		t.Errorf("state = %+v", state)
	}
}

func TestSendMessage_BlankIsNoOp(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("client-1", Options{Store: store, Provider: &scriptedProvider{}})

	if err := e.SendMessage(context.Background(), models.SendRequest{Message: "   \n "}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got := e.Snapshot(); got.SessionID != nil || len(got.History) != 0 {
		t.Errorf("blank send should change nothing, got %+v", got)
	}
	store.mu.Lock()
	created := len(store.sessions)
	store.mu.Unlock()
	if created != 0 {
		t.Errorf("blank send created %d sessions", created)
	}
}

func TestAutoSave_NoOverlapNoGap(t *testing.T) {
	store := newFakeStore()
	provider := &scriptedProvider{scripts: [][]stream.Event{
		{finalEvent("first answer")},
		{finalEvent("second answer")},
	}}
	e := NewEngine("client-1", Options{Store: store, Provider: provider})

	e.SendMessage(context.Background(), models.SendRequest{Message: "q1"})
	sid := *e.Snapshot().SessionID
	waitFor(t, "first save", func() bool { return store.saveCount(sid) == 1 })

	e.SendMessage(context.Background(), models.SendRequest{Message: "q2"})
	waitFor(t, "second save", func() bool { return store.saveCount(sid) == 2 })

	first := store.savedBatch(sid, 0)
	second := store.savedBatch(sid, 1)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("batch sizes = %d, %d", len(first), len(second))
	}
	if second[0].Content != "q2" || second[1].Content != "second answer" {
		t.Errorf("second batch re-saved or skipped entries: %+v", second)
	}
	if first[0].ID == second[0].ID || first[1].ID == second[1].ID {
		t.Error("batches overlap")
	}
}

func TestDiscardStream_DropsLateFragments(t *testing.T) {
	store := newFakeStore()
	provider := &chanProvider{ch: make(chan stream.Event)}
	e := NewEngine("client-1", Options{Store: store, Provider: provider})

	e.SendMessage(context.Background(), models.SendRequest{Message: "go"})
	sid := *e.Snapshot().SessionID

	provider.ch <- deltaEvent("partial ")
	waitFor(t, "streaming entry", func() bool { return e.Snapshot().Streaming != nil })

	e.DiscardStream()

	// Fragments arriving after the discard must never surface.
	provider.ch <- deltaEvent("late")
	provider.ch <- finalEvent("partial late")
	close(provider.ch)

	waitFor(t, "stream teardown", func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return !e.streamingNow
	})

	state := e.Snapshot()
	if len(state.History) != 0 || state.Streaming != nil {
		t.Errorf("discarded view should be empty, got %+v", state)
	}
	if state.SessionID != nil {
		t.Errorf("discard should unbind the session, got %v", state.SessionID)
	}
	if n := store.saveCount(sid); n != 0 {
		t.Errorf("discarded stream saved %d batches", n)
	}
}

func TestAutoSave_TargetsSessionBoundAtSend(t *testing.T) {
	store := newFakeStore()
	provider := &chanProvider{ch: make(chan stream.Event)}
	e := NewEngine("client-1", Options{Store: store, Provider: provider})

	e.SendMessage(context.Background(), models.SendRequest{Message: "bind me"})
	bound := *e.Snapshot().SessionID

	// A session switch while the stream is in flight must not retarget the save.
	hijack := uuid.New()
	e.mu.Lock()
	e.currentSessionID = hijack
	e.mu.Unlock()

	provider.ch <- finalEvent("answer")
	close(provider.ch)

	waitFor(t, "save", func() bool { return store.saveCount(bound) == 1 })
	if n := store.saveCount(hijack); n != 0 {
		t.Errorf("save leaked to the switched-to session (%d batches)", n)
	}
}

func TestLoadSession_WatermarkSkipsEmptyRecords(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("client-1", Options{Store: store, Provider: &scriptedProvider{}})

	sid := uuid.New()
	records := []*models.PersistedMessage{
		{ID: uuid.New(), SessionID: sid, Role: "user", Content: "question", CreatedAt: time.Now()},
		{ID: uuid.New(), SessionID: sid, Role: "assistant", Content: "  ", CreatedAt: time.Now()},
		{ID: uuid.New(), SessionID: sid, Role: "assistant", Content: "", CreatedAt: time.Now(),
			Blocks: []models.ChartBlock{{
				Kind:   models.ChartKindBar,
				Data:   []map[string]any{{"x": 1.0}},
				Series: []models.ChartSeries{{DataKey: "x"}},
			}}},
	}

	e.LoadSession(sid, records)

	e.mu.Lock()
	watermark := e.watermark
	e.mu.Unlock()
	if watermark != 2 {
		t.Errorf("watermark = %d, want 2 (blank record does not count)", watermark)
	}

	state := e.Snapshot()
	if len(state.History) != 2 {
		t.Errorf("history = %+v", state.History)
	}
	if state.SessionID == nil || *state.SessionID != sid {
		t.Errorf("session id = %v", state.SessionID)
	}
}

func TestActivateSession_HydratesOnce(t *testing.T) {
	store := newFakeStore()
	sid := uuid.New()
	store.sessions[sid] = &models.ChatSession{ID: sid, ClientID: "client-1", Model: "m2"}
	store.records[sid] = []*models.PersistedMessage{
		{ID: uuid.New(), SessionID: sid, Role: "user", Content: "hi", CreatedAt: time.Now()},
	}

	var mu sync.Mutex
	var published []string
	e := NewEngine("client-1", Options{
		Store:    store,
		Provider: &scriptedProvider{},
		Publish: func(msg models.WSMessage) {
			mu.Lock()
			published = append(published, msg.Type)
			mu.Unlock()
		},
		DefaultModel: "m1",
		PageSize:     20,
	})

	if err := e.ActivateSession(context.Background(), sid); err != nil {
		t.Fatalf("ActivateSession: %v", err)
	}
	if err := e.ActivateSession(context.Background(), sid); err != nil {
		t.Fatalf("ActivateSession again: %v", err)
	}

	mu.Lock()
	done := 0
	for _, typ := range published {
		if typ == "hydration_done" {
			done++
		}
	}
	mu.Unlock()
	if done != 1 {
		t.Errorf("hydration_done published %d times, want 1", done)
	}

	if got := e.Model(); got != "m2" {
		t.Errorf("model after hydration = %q, want the session's model", got)
	}
	if state := e.Snapshot(); len(state.History) != 1 {
		t.Errorf("history = %+v", state.History)
	}
}

func TestPagination_LoadOlderAndLoadAll(t *testing.T) {
	store := newFakeStore()
	sid := uuid.New()
	store.sessions[sid] = &models.ChatSession{ID: sid, ClientID: "client-1"}
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 45; i++ {
		store.records[sid] = append(store.records[sid], &models.PersistedMessage{
			ID:        uuid.New(),
			SessionID: sid,
			Role:      "user",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	e := NewEngine("client-1", Options{Store: store, Provider: &scriptedProvider{}, PageSize: 20})

	if err := e.ActivateSession(context.Background(), sid); err != nil {
		t.Fatalf("ActivateSession: %v", err)
	}
	if !e.HasMoreMessages() {
		t.Fatal("expected more pages after the first")
	}
	if got := e.RemainingMessages(); got != 25 {
		t.Errorf("remaining = %d, want 25", got)
	}

	if err := e.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if got := e.RemainingMessages(); got != 5 {
		t.Errorf("remaining after second page = %d, want 5", got)
	}

	if err := e.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if e.HasMoreMessages() {
		t.Error("LoadAll should exhaust the pages")
	}
	if got := e.RemainingMessages(); got != 0 {
		t.Errorf("remaining = %d", got)
	}

	state := e.Snapshot()
	if len(state.History) != 45 {
		t.Fatalf("history length = %d, want 45", len(state.History))
	}
	if state.History[0].Content != "message 0" || state.History[44].Content != "message 44" {
		t.Error("history is not oldest-first")
	}
}

func TestLoadAll_NoActiveSessionReturns(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("client-1", Options{Store: store, Provider: &scriptedProvider{}, PageSize: 20})

	done := make(chan error, 1)
	go func() { done <- e.LoadAll(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("LoadAll did not return with no active session")
	}

	if e.HasMoreMessages() || e.RemainingMessages() != 0 {
		t.Error("no-session LoadAll should leave pagination state empty")
	}
}

func TestAutoSave_AfterStreamStartError(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("client-1", Options{Store: store, Provider: failingProvider{}})

	if err := e.SendMessage(context.Background(), models.SendRequest{Message: "hello"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	sid := *e.Snapshot().SessionID

	// The exchange never opened, but the user message still has to land.
	waitFor(t, "save after stream error", func() bool { return store.saveCount(sid) == 1 })

	batch := store.savedBatch(sid, 0)
	if len(batch) != 1 || batch[0].Role != "user" || batch[0].Content != "hello" {
		t.Errorf("saved batch = %+v", batch)
	}

	waitFor(t, "error status", func() bool { return e.Snapshot().Status == "error" })
	if state := e.Snapshot(); len(state.History) != 1 {
		t.Errorf("history = %+v", state.History)
	}
}

func TestMergeRecords(t *testing.T) {
	now := time.Now()
	a := &models.PersistedMessage{ID: uuid.New(), Content: "a", CreatedAt: now}
	b := &models.PersistedMessage{ID: uuid.New(), Content: "b", CreatedAt: now.Add(time.Second)}
	c := &models.PersistedMessage{ID: uuid.New(), Content: "c", CreatedAt: now.Add(2 * time.Second)}

	merged := mergeRecords([]*models.PersistedMessage{b, a}, []*models.PersistedMessage{c, a})
	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3 (duplicate dropped)", len(merged))
	}
	for i, want := range []*models.PersistedMessage{a, b, c} {
		if merged[i].ID != want.ID {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].Content, want.Content)
		}
	}
}
