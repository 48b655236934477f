// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// Tests for the session turn state machine.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoraAI/LitoraChat/services/llm"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// --- Mock corpus sources ---

type MockEncyclopedia struct {
	mu         sync.Mutex
	Records    []datatypes.ContentRecord
	Err        error
	Calls      int
	GotQueries [][]string
}

func (m *MockEncyclopedia) Fetch(_ context.Context, queries []string, _, _ int) ([]datatypes.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.GotQueries = append(m.GotQueries, append([]string(nil), queries...))
	return m.Records, m.Err
}

// MockPapers is called concurrently for relevance and recency fetches.
type MockPapers struct {
	mu            sync.Mutex
	Records       []datatypes.ContentRecord
	Err           error
	Calls         int
	GotPriorities []datatypes.FetchPriority
	GotMaxResults []int
}

func (m *MockPapers) Fetch(_ context.Context, _ datatypes.TopicFilter, _ []string, maxResults int, priority datatypes.FetchPriority) ([]datatypes.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.GotPriorities = append(m.GotPriorities, priority)
	m.GotMaxResults = append(m.GotMaxResults, maxResults)
	return m.Records, m.Err
}

// --- Mock content store ---

type MockStore struct {
	mu            sync.Mutex
	StoreErr      error
	RetrieveErr   error
	DeleteErr     error
	Retrieved     []datatypes.ContentRecord
	StoreCalls    int
	RetrieveCalls int
	DeleteCalls   int
	Stored        [][]datatypes.ContentRecord
	Block         chan struct{} // when non-nil, wait inside Store
}

func (m *MockStore) Store(_ context.Context, _, _ string, records []datatypes.ContentRecord, _ int) error {
	m.mu.Lock()
	m.StoreCalls++
	m.Stored = append(m.Stored, append([]datatypes.ContentRecord(nil), records...))
	m.mu.Unlock()
	if m.Block != nil {
		<-m.Block
	}
	return m.StoreErr
}

func (m *MockStore) StoreCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StoreCalls
}

func (m *MockStore) Retrieve(_ context.Context, _, _, _ string, _ int, _ float64) ([]datatypes.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetrieveCalls++
	return m.Retrieved, m.RetrieveErr
}

func (m *MockStore) DeleteCollection(_ context.Context, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	return m.DeleteErr
}

// --- Mock text intelligence ---

type MockKeywords struct {
	Phrases       []string
	Err           error
	Calls         int
	GotThresholds []float64
}

func (m *MockKeywords) Extract(_ context.Context, _ string, _ int, threshold float64) ([]string, error) {
	m.Calls++
	m.GotThresholds = append(m.GotThresholds, threshold)
	return m.Phrases, m.Err
}

type MockSummarizer struct {
	Summary string
	Err     error
}

func (m *MockSummarizer) Summarize(_ context.Context, text string, _, _ int) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Summary == "" {
		return text, nil
	}
	return m.Summary, nil
}

// --- Mock streaming generator ---

type MockGenerator struct {
	mu        sync.Mutex
	Fragments []string
	Err       error
	Block     chan struct{} // when non-nil, wait before streaming
	calls     int
	GotPrompt string
}

func (m *MockGenerator) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	return "", errors.New("not used")
}

func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockGenerator) GenerateStream(_ context.Context, prompt string, _ llm.GenerationParams, callback llm.StreamCallback) error {
	m.mu.Lock()
	m.calls++
	m.GotPrompt = prompt
	m.mu.Unlock()
	if m.Block != nil {
		<-m.Block
	}
	for _, fragment := range m.Fragments {
		if err := callback(fragment); err != nil {
			return err
		}
	}
	return m.Err
}

// --- Event collection ---

type eventCollector struct {
	mu     sync.Mutex
	events []datatypes.TurnEvent
}

func (c *eventCollector) sink(event datatypes.TurnEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *eventCollector) kinds() []datatypes.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]datatypes.EventKind, len(c.events))
	for i, e := range c.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (c *eventCollector) payloads(kind datatypes.EventKind) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e.Payload)
		}
	}
	return out
}

// assertProtocolOrder verifies status* clearStatus data* citation* end.
func assertProtocolOrder(t *testing.T, kinds []datatypes.EventKind) {
	t.Helper()
	rank := map[datatypes.EventKind]int{
		datatypes.EventStatus:      0,
		datatypes.EventClearStatus: 1,
		datatypes.EventData:        2,
		datatypes.EventCitation:    3,
		datatypes.EventEnd:         4,
	}
	last := -1
	clearCount := 0
	for _, kind := range kinds {
		r, ok := rank[kind]
		require.True(t, ok, "unexpected event kind %s", kind)
		require.GreaterOrEqual(t, r, last, "event %s out of order in %v", kind, kinds)
		last = r
		if kind == datatypes.EventClearStatus {
			clearCount++
		}
	}
	assert.Equal(t, 1, clearCount, "exactly one clearStatus")
	require.NotEmpty(t, kinds)
	assert.Equal(t, datatypes.EventEnd, kinds[len(kinds)-1], "stream ends with end")
}

// --- Fixture ---

type fixture struct {
	machine *Machine
	enc     *MockEncyclopedia
	papers  *MockPapers
	store   *MockStore
	kw      *MockKeywords
	sum     *MockSummarizer
	gen     *MockGenerator
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		enc:    &MockEncyclopedia{},
		papers: &MockPapers{},
		store:  &MockStore{},
		kw:     &MockKeywords{},
		sum:    &MockSummarizer{},
		gen:    &MockGenerator{Fragments: []string{"Generated ", "answer."}},
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "test-session"
	}
	f.machine = NewMachine(cfg, Deps{
		Encyclopedia: f.enc,
		Papers:       f.papers,
		Store:        f.store,
		Keywords:     f.kw,
		Summarizer:   f.sum,
		Generator:    f.gen,
	})
	return f
}

func (f *fixture) initWith(t *testing.T, flags datatypes.RetrievalFlags, topics ...string) {
	t.Helper()
	if len(topics) == 0 {
		topics = []string{"machine learning"}
	}
	require.NoError(t, f.machine.Init(context.Background(), topics, flags, datatypes.TopicFilter{}))
}

// --- Lifecycle guards ---

func TestHandleTurnRequiresInit(t *testing.T) {
	f := newFixture(Config{})
	err := f.machine.HandleTurn(context.Background(), "hello", (&eventCollector{}).sink)
	assert.ErrorIs(t, err, ErrSessionNotInitialized)
}

func TestHandleTurnRejectsEmptyPrompt(t *testing.T) {
	f := newFixture(Config{})
	f.initWith(t, datatypes.RetrievalFlags{})

	err := f.machine.HandleTurn(context.Background(), "   ", (&eventCollector{}).sink)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "prompt", vErr.Field)
}

func TestInitRequiresTopics(t *testing.T) {
	f := newFixture(Config{})
	err := f.machine.Init(context.Background(), nil, datatypes.RetrievalFlags{}, datatypes.TopicFilter{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

// --- First turn ---

func TestFirstTurnEndToEnd(t *testing.T) {
	f := newFixture(Config{})
	f.enc.Records = []datatypes.ContentRecord{{ID: "w1", Title: "X", Text: "about X", Source: "enc"}}
	f.store.Retrieved = f.enc.Records
	f.kw.Phrases = []string{"neural networks"}
	f.initWith(t, datatypes.RetrievalFlags{UseEncyclopedia: true}, "AI")

	collector := &eventCollector{}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "tell me about neural networks please", collector.sink))

	assertProtocolOrder(t, collector.kinds())
	assert.Equal(t, 1, f.store.StoreCalls, "exactly one store write")
	assert.Equal(t, 1, f.store.RetrieveCalls, "exactly one retrieval")
	assert.Equal(t, []float64{0.50}, f.kw.GotThresholds)

	// Fetch queries carry extracted phrases plus session topics.
	require.Len(t, f.enc.GotQueries, 1)
	assert.ElementsMatch(t, []string{"neural networks", "AI"}, f.enc.GotQueries[0])

	citations := collector.payloads(datatypes.EventCitation)
	require.Len(t, citations, 2)
	assert.Equal(t, "References: <br>", citations[0])
	assert.Equal(t, "- X (enc)", citations[1])

	snap := f.machine.Snapshot()
	assert.False(t, snap.IsFirstTurn)
	assert.ElementsMatch(t, []string{"neural networks", "AI"}, snap.KeyPhrases)
	require.Len(t, snap.ContextTurns, 2)
	assert.Equal(t, datatypes.RoleAssistant, snap.ContextTurns[1].Role)
	assert.Equal(t, "Generated answer.", snap.ContextTurns[1].Text)
	assert.Contains(t, snap.ConversationHistory, "User: tell me about neural networks please")
	assert.Contains(t, snap.ConversationHistory, "Assistant: Generated answer.")
}

func TestFirstTurnWithoutSourcesSkipsPipelineButAnswers(t *testing.T) {
	f := newFixture(Config{})
	f.kw.Phrases = []string{"history"}
	f.initWith(t, datatypes.RetrievalFlags{})

	collector := &eventCollector{}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "tell me about the history of rome", collector.sink))

	assert.Zero(t, f.enc.Calls)
	assert.Zero(t, f.papers.Calls)
	assert.Zero(t, f.store.StoreCalls)
	assert.Zero(t, f.store.RetrieveCalls, "retrieval needs at least one source")
	assertProtocolOrder(t, collector.kinds())
	assert.Empty(t, collector.payloads(datatypes.EventCitation))

	snap := f.machine.Snapshot()
	assert.False(t, snap.IsFirstTurn, "first-turn flag flips even without sources")
	assert.Contains(t, snap.KeyPhrases, "history", "keywords still accumulate")
}

func TestShortPromptAddsRawInputAsKeyword(t *testing.T) {
	f := newFixture(Config{})
	f.kw.Phrases = nil
	f.initWith(t, datatypes.RetrievalFlags{})

	collector := &eventCollector{}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "what is LoRA?", collector.sink))

	snap := f.machine.Snapshot()
	assert.Contains(t, snap.KeyPhrases, "what is LoRA?")
}

// --- Follow-up turns ---

func TestKeywordMonotonicityAndIncrementalFetch(t *testing.T) {
	f := newFixture(Config{})
	f.enc.Records = []datatypes.ContentRecord{{ID: "w1", Title: "X", Text: "x", Source: "enc"}}
	f.kw.Phrases = []string{"transformers"}
	f.initWith(t, datatypes.RetrievalFlags{UseEncyclopedia: true}, "deep learning")

	sink := (&eventCollector{}).sink
	require.NoError(t, f.machine.HandleTurn(context.Background(), "explain transformers to me in detail", sink))
	require.Equal(t, 1, f.enc.Calls)
	firstPhrases := f.machine.Snapshot().KeyPhrases

	// Same keywords again: nothing genuinely new, no fetch.
	require.NoError(t, f.machine.HandleTurn(context.Background(), "tell me more about transformers please today", sink))
	assert.Equal(t, 1, f.enc.Calls, "no incremental fetch without new keywords")
	assert.Equal(t, firstPhrases, f.machine.Snapshot().KeyPhrases)

	// Genuinely new keyword: incremental fetch with only the new one.
	f.kw.Phrases = []string{"transformers", "attention"}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "and how does attention work exactly here", sink))
	require.Equal(t, 2, f.enc.Calls)
	assert.Equal(t, []string{"attention"}, f.enc.GotQueries[1], "only genuinely new keywords are fetched")

	grown := f.machine.Snapshot().KeyPhrases
	for _, phrase := range firstPhrases {
		assert.Contains(t, grown, phrase, "key phrases never shrink")
	}
	assert.Contains(t, grown, "attention")

	// Follow-ups use the lower extraction threshold.
	assert.Equal(t, []float64{0.50, 0.25, 0.25}, f.kw.GotThresholds)
}

func TestPaperFetchCapsAndPriorities(t *testing.T) {
	f := newFixture(Config{})
	f.papers.Records = []datatypes.ContentRecord{{ID: "p1", Title: "P", Text: "p", Source: "arx"}}
	f.kw.Phrases = []string{"mixing"}
	f.initWith(t, datatypes.RetrievalFlags{FetchByRelevance: true, FetchByRecency: true}, "probability")

	sink := (&eventCollector{}).sink
	require.NoError(t, f.machine.HandleTurn(context.Background(), "what is known about mixing times", sink))
	assert.ElementsMatch(t, []datatypes.FetchPriority{datatypes.PriorityRelevance, datatypes.PriorityRecency}, f.papers.GotPriorities)
	assert.Equal(t, []int{20, 20}, f.papers.GotMaxResults)

	f.kw.Phrases = []string{"mixing", "cutoff"}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "does the cutoff phenomenon appear here", sink))
	assert.Equal(t, []int{20, 20, 25, 25}, f.papers.GotMaxResults, "incremental fetches use the higher cap")
}

// --- Degradation and failure ---

func TestSourceFailureDegradesTurn(t *testing.T) {
	f := newFixture(Config{})
	f.enc.Err = errors.New("encyclopedia down")
	f.papers.Records = []datatypes.ContentRecord{{ID: "p1", Title: "P", Text: "p", Source: "arx"}}
	f.store.Retrieved = f.papers.Records
	f.kw.Phrases = []string{"entropy"}
	f.initWith(t, datatypes.RetrievalFlags{UseEncyclopedia: true, FetchByRelevance: true})

	collector := &eventCollector{}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "please tell me about entropy today", collector.sink))

	assertProtocolOrder(t, collector.kinds())
	statuses := collector.payloads(datatypes.EventStatus)
	degradeSeen := false
	for _, s := range statuses {
		if s == "Source encyclopedia unavailable, continuing without it." {
			degradeSeen = true
		}
	}
	assert.True(t, degradeSeen, "degradation is narrated, got %v", statuses)
	assert.Equal(t, 1, f.store.StoreCalls, "surviving source content is stored")
}

func TestStoreFailureAbortsWithoutMutation(t *testing.T) {
	f := newFixture(Config{})
	f.enc.Records = []datatypes.ContentRecord{{ID: "w1", Title: "X", Text: "x", Source: "enc"}}
	f.store.StoreErr = errors.New("weaviate down")
	f.kw.Phrases = []string{"fusion"}
	f.initWith(t, datatypes.RetrievalFlags{UseEncyclopedia: true})

	collector := &eventCollector{}
	err := f.machine.HandleTurn(context.Background(), "explain nuclear fusion to me fully", collector.sink)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)

	kinds := collector.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, datatypes.EventFailure, kinds[len(kinds)-1], "failure event replaces end")
	assert.NotContains(t, kinds, datatypes.EventEnd)

	snap := f.machine.Snapshot()
	assert.True(t, snap.IsFirstTurn, "failed first turn does not consume the transition")
	assert.Empty(t, snap.KeyPhrases, "staged keywords are discarded")
	assert.Empty(t, snap.ContextTurns)
	assert.Zero(t, f.gen.CallCount(), "no generation after an aborted turn")
}

func TestRetrieveFailureAbortsTurn(t *testing.T) {
	f := newFixture(Config{})
	f.enc.Records = []datatypes.ContentRecord{{ID: "w1", Title: "X", Text: "x", Source: "enc"}}
	f.store.RetrieveErr = errors.New("query timeout")
	f.kw.Phrases = []string{"fusion"}
	f.initWith(t, datatypes.RetrievalFlags{UseEncyclopedia: true})

	collector := &eventCollector{}
	err := f.machine.HandleTurn(context.Background(), "explain nuclear fusion to me fully", collector.sink)

	var retrieveErr *RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.NotContains(t, collector.kinds(), datatypes.EventEnd)
	assert.Empty(t, f.machine.Snapshot().ContextTurns, "context untouched on retrieval failure")
}

func TestGenerationStreamFailureEmitsFailureNotEnd(t *testing.T) {
	f := newFixture(Config{})
	f.gen.Fragments = []string{"partial "}
	f.gen.Err = errors.New("upstream reset")
	f.kw.Phrases = nil
	f.initWith(t, datatypes.RetrievalFlags{})

	collector := &eventCollector{}
	err := f.machine.HandleTurn(context.Background(), "please write something long for me", collector.sink)

	var genErr *GenerationStreamError
	require.ErrorAs(t, err, &genErr)

	kinds := collector.kinds()
	assert.Contains(t, kinds, datatypes.EventClearStatus)
	assert.Contains(t, kinds, datatypes.EventData)
	assert.Equal(t, datatypes.EventFailure, kinds[len(kinds)-1])
	assert.NotContains(t, kinds, datatypes.EventEnd)

	snap := f.machine.Snapshot()
	require.NotEmpty(t, snap.ContextTurns)
	assert.Equal(t, datatypes.RoleUser, snap.ContextTurns[len(snap.ContextTurns)-1].Role,
		"partial answer is not committed to the context")
}

func TestKeywordExtractorFailureDegrades(t *testing.T) {
	f := newFixture(Config{})
	f.kw.Err = errors.New("sidecar down")
	f.initWith(t, datatypes.RetrievalFlags{})

	collector := &eventCollector{}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "what is the meaning of life", collector.sink))
	assertProtocolOrder(t, collector.kinds())
}

// --- Concurrency ---

func TestConcurrentTurnRejected(t *testing.T) {
	f := newFixture(Config{})
	f.gen.Block = make(chan struct{})
	f.initWith(t, datatypes.RetrievalFlags{})

	done := make(chan error, 1)
	go func() {
		done <- f.machine.HandleTurn(context.Background(), "slow question number one here", (&eventCollector{}).sink)
	}()

	// Wait for the first turn to hold the lock.
	require.Eventually(t, func() bool {
		return f.gen.CallCount() == 1
	}, time.Second, 5*time.Millisecond)

	err := f.machine.HandleTurn(context.Background(), "second question", (&eventCollector{}).sink)
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(f.gen.Block)
	require.NoError(t, <-done)
}

func TestSessionMutationRejectedDuringTurn(t *testing.T) {
	f := newFixture(Config{})
	f.enc.Records = []datatypes.ContentRecord{{ID: "w1", Title: "X", Text: "x", Source: "enc"}}
	f.kw.Phrases = []string{"entropy"}
	f.store.Block = make(chan struct{})
	f.initWith(t, datatypes.RetrievalFlags{UseEncyclopedia: true})

	done := make(chan error, 1)
	go func() {
		done <- f.machine.HandleTurn(context.Background(), "please tell me about entropy today", (&eventCollector{}).sink)
	}()

	// Wait for the turn to hold the lock inside its store phase, the
	// point where its staged keywords are not yet committed.
	require.Eventually(t, func() bool {
		return f.store.StoreCallCount() == 1
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, f.machine.Reset(context.Background()), ErrTurnInFlight)
	assert.ErrorIs(t, f.machine.HandleUpload(context.Background(),
		[]datatypes.ContentRecord{rec("u")}, []string{"u.txt"}), ErrTurnInFlight)
	assert.ErrorIs(t, f.machine.Init(context.Background(),
		[]string{"other topic"}, datatypes.RetrievalFlags{}, datatypes.TopicFilter{}), ErrTurnInFlight)

	close(f.store.Block)
	require.NoError(t, <-done)

	// The turn committed into intact session state.
	assert.True(t, f.machine.Initialized())
	assert.Contains(t, f.machine.Snapshot().KeyPhrases, "entropy")
}

// --- Context budget ---

func TestContextBudgetTrimsOldestPairs(t *testing.T) {
	f := newFixture(Config{ContextBudgetWords: 60})
	f.gen.Fragments = []string{words(20)}
	f.kw.Phrases = nil
	f.initWith(t, datatypes.RetrievalFlags{})

	sink := (&eventCollector{}).sink
	require.NoError(t, f.machine.HandleTurn(context.Background(), words(20), sink))
	require.NoError(t, f.machine.HandleTurn(context.Background(), words(20), sink))
	require.NoError(t, f.machine.HandleTurn(context.Background(), words(20), sink))

	snap := f.machine.Snapshot()
	assert.LessOrEqual(t, datatypes.ContextWords(snap.ContextTurns), 60+20,
		"context stays near budget (current answer may exceed momentarily)")
	assert.Equal(t, datatypes.RoleUser, snap.ContextTurns[0].Role,
		"trimming drops whole pairs, never leaving a leading answer")
}

// --- Reset and upload ---

func TestResetTearsDownSession(t *testing.T) {
	f := newFixture(Config{})
	f.initWith(t, datatypes.RetrievalFlags{})

	require.NoError(t, f.machine.Reset(context.Background()))
	assert.Equal(t, 1, f.store.DeleteCalls)
	assert.False(t, f.machine.Initialized())

	err := f.machine.HandleTurn(context.Background(), "hello", (&eventCollector{}).sink)
	assert.ErrorIs(t, err, ErrSessionNotInitialized)

	// Re-init restores a clean first-turn session.
	f.initWith(t, datatypes.RetrievalFlags{})
	snap := f.machine.Snapshot()
	assert.True(t, snap.IsFirstTurn)
	assert.Empty(t, snap.KeyPhrases)
	assert.Empty(t, snap.ContextTurns)
}

func TestResetRequiresInit(t *testing.T) {
	f := newFixture(Config{})
	assert.ErrorIs(t, f.machine.Reset(context.Background()), ErrSessionNotInitialized)
}

func TestUploadStoresChunksAndFlipsFlag(t *testing.T) {
	f := newFixture(Config{})
	f.initWith(t, datatypes.RetrievalFlags{})

	chunks := []datatypes.ContentRecord{
		{ID: "file_1", Title: "notes.txt - Chunk 1", Text: "chunk one", Source: "Uploaded file: notes.txt"},
	}
	require.NoError(t, f.machine.HandleUpload(context.Background(), chunks, []string{"notes.txt"}))

	assert.Equal(t, 1, f.store.StoreCalls)
	snap := f.machine.Snapshot()
	assert.True(t, snap.Flags.FileUploaded)
	assert.Empty(t, snap.KeyPhrases, "file stems join keywords only after the first turn")

	// After the first turn, a second upload contributes its stem.
	require.NoError(t, f.machine.HandleTurn(context.Background(), "summarize my uploaded notes for me", (&eventCollector{}).sink))
	require.NoError(t, f.machine.HandleUpload(context.Background(), chunks, []string{"paper.txt"}))
	assert.Contains(t, f.machine.Snapshot().KeyPhrases, "paper")
}

func TestUploadRequiresInit(t *testing.T) {
	f := newFixture(Config{})
	err := f.machine.HandleUpload(context.Background(), []datatypes.ContentRecord{rec("a")}, []string{"a.txt"})
	assert.ErrorIs(t, err, ErrSessionNotInitialized)
}

func TestUploadedSessionRetrievesWithoutFetchSources(t *testing.T) {
	f := newFixture(Config{})
	f.store.Retrieved = []datatypes.ContentRecord{
		{ID: "file_1", Title: "notes.txt - Chunk 1", Text: "chunk one", Source: "Uploaded file: notes.txt"},
	}
	f.initWith(t, datatypes.RetrievalFlags{})
	require.NoError(t, f.machine.HandleUpload(context.Background(), f.store.Retrieved, []string{"notes.txt"}))

	collector := &eventCollector{}
	require.NoError(t, f.machine.HandleTurn(context.Background(), "what do my notes say about this", collector.sink))

	assert.Equal(t, 1, f.store.RetrieveCalls, "uploaded content makes retrieval eligible")
	assert.Zero(t, f.enc.Calls, "uploads never trigger network fetches")
	citations := collector.payloads(datatypes.EventCitation)
	require.NotEmpty(t, citations)
	assert.Contains(t, citations, "- notes.txt - Chunk 1 (Uploaded file: notes.txt)")
}
