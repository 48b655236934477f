// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session implements the per-session orchestration core: the
// turn state machine, keyword-driven incremental fetching, content
// deduplication, context assembly under a word budget, and the turn
// event protocol.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LitoraAI/LitoraChat/services/llm"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/observability"
)

// =============================================================================
// Configuration
// =============================================================================

// Config tunes a session machine. Zero fields take defaults.
type Config struct {
	// Namespace prefixes the per-session collection key in the store.
	Namespace string

	// SessionID identifies this session's collection. Generated when
	// empty.
	SessionID string

	// ContextBudgetWords bounds the rolling prompt context. Trimming
	// drops whole leading turn pairs once the budget is exceeded.
	ContextBudgetWords int

	// FirstTurnKeywordThreshold filters key phrases on the first turn,
	// where the query is the only signal and precision matters.
	FirstTurnKeywordThreshold float64

	// FollowupKeywordThreshold filters key phrases on follow-up turns.
	// Lower than the first-turn threshold so topic drift is caught.
	FollowupKeywordThreshold float64

	// KeywordTopN caps extracted phrases per turn.
	KeywordTopN int

	// ShortPromptWords marks prompts too short for reliable extraction;
	// such prompts are added verbatim as a key phrase.
	ShortPromptWords int

	// RetrieveTopK and RetrieveThreshold shape per-turn retrieval.
	RetrieveTopK      int
	RetrieveThreshold float64

	// StoreBatchSize bounds one store write.
	StoreBatchSize int

	// EncyclopediaResults / EncyclopediaSections cap encyclopedia
	// fetches per query.
	EncyclopediaResults  int
	EncyclopediaSections int

	// FirstTurnPaperResults / FollowupPaperResults cap paper fetches.
	// The follow-up cap is higher: incremental fetches target fewer,
	// more specific keywords.
	FirstTurnPaperResults int
	FollowupPaperResults  int

	// SummarizeInputTokens / SummarizeOutputTokens bound context
	// condensation.
	SummarizeInputTokens  int
	SummarizeOutputTokens int
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "rag_session_"
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.ContextBudgetWords <= 0 {
		c.ContextBudgetWords = 3000
	}
	if c.FirstTurnKeywordThreshold <= 0 {
		c.FirstTurnKeywordThreshold = 0.50
	}
	if c.FollowupKeywordThreshold <= 0 {
		c.FollowupKeywordThreshold = 0.25
	}
	if c.KeywordTopN <= 0 {
		c.KeywordTopN = 5
	}
	if c.ShortPromptWords <= 0 {
		c.ShortPromptWords = 4
	}
	if c.RetrieveTopK <= 0 {
		c.RetrieveTopK = 20
	}
	if c.RetrieveThreshold <= 0 {
		c.RetrieveThreshold = 0.35
	}
	if c.StoreBatchSize <= 0 {
		c.StoreBatchSize = 256
	}
	if c.EncyclopediaResults <= 0 {
		c.EncyclopediaResults = 10
	}
	if c.EncyclopediaSections <= 0 {
		c.EncyclopediaSections = 15
	}
	if c.FirstTurnPaperResults <= 0 {
		c.FirstTurnPaperResults = 20
	}
	if c.FollowupPaperResults <= 0 {
		c.FollowupPaperResults = 25
	}
	if c.SummarizeInputTokens <= 0 {
		c.SummarizeInputTokens = 1024
	}
	if c.SummarizeOutputTokens <= 0 {
		c.SummarizeOutputTokens = 1024
	}
}

// Deps are the external capabilities a session machine consumes.
type Deps struct {
	Encyclopedia EncyclopediaFetcher
	Papers       PaperFetcher
	Store        ContentStore
	Keywords     llm.KeywordExtractor
	Summarizer   llm.Summarizer
	Generator    llm.LLMClient

	// Metrics is optional; nil disables phase instrumentation.
	Metrics *observability.SessionMetrics
}

// EventSink receives the turn's protocol events in order. A sink error
// (typically a disconnected consumer) aborts the turn.
type EventSink func(datatypes.TurnEvent) error

// =============================================================================
// Session Machine
// =============================================================================

// Machine owns one session's state and drives its turns.
//
// # Description
//
// Turns are strictly serialized: a turn arriving while another is in
// flight is rejected with ErrTurnInFlight rather than queued, because a
// second turn would interleave with the active SSE stream. State
// mutation follows a commit discipline: extracted keywords are staged
// and only committed once fetched content is safely stored, and the
// assistant's answer only joins the context after the stream finishes.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
type Machine struct {
	cfg  Config
	deps Deps
	asm  Assembler

	// turnMu serializes turns; taken with TryLock so a concurrent turn
	// fails fast instead of queueing behind a live stream. Init, Reset
	// and HandleUpload take the same lock, so session mutation never
	// interleaves with an in-flight turn.
	turnMu sync.Mutex

	// mu guards the state fields below.
	mu          sync.RWMutex
	initialized bool
	firstTurn   bool
	topics      []string
	flags       datatypes.RetrievalFlags
	filter      datatypes.TopicFilter
	preamble    string
	keyPhrases  []string
	keySet      map[string]struct{}
	turns       []datatypes.TurnRecord
	history     string
	citations   []string
}

// NewMachine creates a session machine with defaults applied.
func NewMachine(cfg Config, deps Deps) *Machine {
	cfg.applyDefaults()
	return &Machine{
		cfg:  cfg,
		deps: deps,
		asm: Assembler{
			Summarizer:      deps.Summarizer,
			MaxInputTokens:  cfg.SummarizeInputTokens,
			MaxOutputTokens: cfg.SummarizeOutputTokens,
		},
	}
}

// SessionID returns the machine's collection identifier.
func (m *Machine) SessionID() string {
	return m.cfg.SessionID
}

// Initialized reports whether Init has configured the session.
func (m *Machine) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Init configures a fresh session.
//
// # Description
//
// Replaces any previous session: the old collection is deleted from the
// store and all turn state is discarded. Topics and source flags are
// fixed for the session's lifetime (FileUploaded may still flip via
// HandleUpload). Rejected with ErrTurnInFlight while a turn streams.
func (m *Machine) Init(ctx context.Context, topics []string, flags datatypes.RetrievalFlags, filter datatypes.TopicFilter) error {
	if len(topics) == 0 {
		return &ValidationError{Field: "topics", Reason: "at least one topic is required"}
	}
	if !m.turnMu.TryLock() {
		return ErrTurnInFlight
	}
	defer m.turnMu.Unlock()

	m.mu.Lock()
	wasInitialized := m.initialized
	m.mu.Unlock()
	if wasInitialized {
		if err := m.deps.Store.DeleteCollection(ctx, m.cfg.Namespace, m.cfg.SessionID); err != nil {
			slog.Warn("failed to delete previous session collection",
				"session_id", m.cfg.SessionID, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	m.firstTurn = true
	m.topics = append([]string(nil), topics...)
	m.flags = flags
	m.filter = filter
	m.preamble = fmt.Sprintf("Topics: %s\n\n", strings.Join(topics, ", "))
	m.keyPhrases = nil
	m.keySet = make(map[string]struct{})
	m.turns = nil
	m.history = ""
	m.citations = nil

	slog.Info("Session initialized",
		"session_id", m.cfg.SessionID,
		"topics", topics,
		"use_encyclopedia", flags.UseEncyclopedia,
		"fetch_by_relevance", flags.FetchByRelevance,
		"fetch_by_recency", flags.FetchByRecency)
	return nil
}

// Reset tears the session down: the collection is deleted and the
// machine returns to the uninitialized state. Rejected with
// ErrTurnInFlight while a turn streams, so an in-flight turn never
// commits into torn-down state.
func (m *Machine) Reset(ctx context.Context) error {
	if !m.turnMu.TryLock() {
		return ErrTurnInFlight
	}
	defer m.turnMu.Unlock()

	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrSessionNotInitialized
	}
	m.initialized = false
	m.firstTurn = true
	m.topics = nil
	m.keyPhrases = nil
	m.keySet = nil
	m.turns = nil
	m.history = ""
	m.citations = nil
	m.mu.Unlock()

	if err := m.deps.Store.DeleteCollection(ctx, m.cfg.Namespace, m.cfg.SessionID); err != nil {
		return &StoreError{Err: err}
	}
	slog.Info("Session reset", "session_id", m.cfg.SessionID)
	return nil
}

// Snapshot returns a read-only copy of the session state.
func (m *Machine) Snapshot() datatypes.SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keyPhrases := append([]string(nil), m.keyPhrases...)
	sort.Strings(keyPhrases)
	return datatypes.SessionSnapshot{
		Topics:              append([]string(nil), m.topics...),
		KeyPhrases:          keyPhrases,
		ConversationHistory: m.history,
		Citations:           append([]string(nil), m.citations...),
		ContextTurns:        append([]datatypes.TurnRecord(nil), m.turns...),
		IsFirstTurn:         m.firstTurn,
		Flags:               m.flags,
		Filter:              m.filter,
	}
}

// HandleUpload stores pre-chunked uploaded content in the session's
// collection and flips the upload flag.
//
// # Description
//
// After the first turn, the file name stems also join the key-phrase
// set so follow-up turns can match against them. During the first turn
// the initial keyword extraction will see the full prompt anyway.
// Rejected with ErrTurnInFlight while a turn streams.
func (m *Machine) HandleUpload(ctx context.Context, records []datatypes.ContentRecord, fileNames []string) error {
	if !m.turnMu.TryLock() {
		return ErrTurnInFlight
	}
	defer m.turnMu.Unlock()

	if !m.Initialized() {
		return ErrSessionNotInitialized
	}
	if len(records) == 0 {
		return &ValidationError{Field: "files", Reason: "no content chunks produced"}
	}

	records = Dedup(records)
	if err := m.deps.Store.Store(ctx, m.cfg.Namespace, m.cfg.SessionID, records, m.cfg.StoreBatchSize); err != nil {
		return &StoreError{Err: err}
	}
	m.countStored("upload", len(records))

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.firstTurn {
		for _, name := range fileNames {
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			m.addKeyPhraseLocked(stem)
		}
	}
	m.flags.FileUploaded = true

	slog.Info("Uploaded content stored",
		"session_id", m.cfg.SessionID,
		"files", fileNames,
		"chunks", len(records))
	return nil
}

// HandleTurn drives one conversation turn, emitting protocol events to
// sink as it goes.
//
// # Description
//
// The phases run in a fixed order: keyword staging, source fetch,
// store, retrieve, context assembly, generation, citation emission.
// Fetch failures degrade (the turn continues with the surviving
// sources); store, retrieve, and generation failures abort the turn
// with a failure event. Staged keywords only commit once fetched
// content is stored, so a failed turn can be retried without the
// keyword set lying about what the corpus contains.
//
// # Outputs
//
//   - error: nil on a completed turn. ErrTurnInFlight,
//     ErrSessionNotInitialized and ValidationError reject the turn
//     before any event is emitted.
func (m *Machine) HandleTurn(ctx context.Context, prompt string, sink EventSink) error {
	if !m.turnMu.TryLock() {
		return ErrTurnInFlight
	}
	defer m.turnMu.Unlock()

	if !m.Initialized() {
		return ErrSessionNotInitialized
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if len(prompt) > datatypes.MaxPromptBytes {
		return &ValidationError{Field: "prompt", Reason: "exceeds maximum size"}
	}

	m.mu.RLock()
	firstTurn := m.firstTurn
	flags := m.flags
	filter := m.filter
	m.mu.RUnlock()

	// --- Phase 1: keyword staging ---
	staged := m.stageKeywords(ctx, prompt, firstTurn, sink)

	// --- Phase 2: fetch + store ---
	fetchNeeded := flags.AnyFetchSource() && (firstTurn || len(staged) > 0)
	if fetchNeeded {
		if err := m.fetchAndStore(ctx, staged, firstTurn, flags, filter, sink); err != nil {
			return m.failTurn(sink, err)
		}
	}

	// Keywords commit only after fetched content is safely stored. The
	// first-turn flag flips at the same point: the fetch phase of the
	// first turn has now completed.
	m.mu.Lock()
	for _, phrase := range staged {
		m.addKeyPhraseLocked(phrase)
	}
	m.firstTurn = false
	m.mu.Unlock()

	// --- Phase 3: retrieve ---
	var passages []datatypes.ContentRecord
	if flags.AnySource() {
		if err := emit(sink, datatypes.StatusEvent("Retrieving relevant documents...")); err != nil {
			return err
		}
		retrieveStart := time.Now()
		var err error
		passages, err = m.deps.Store.Retrieve(ctx, m.cfg.Namespace, m.cfg.SessionID,
			prompt, m.cfg.RetrieveTopK, m.cfg.RetrieveThreshold)
		if err != nil {
			return m.failTurn(sink, &RetrieveError{Err: err})
		}
		m.observePhase("retrieve", retrieveStart)
	}

	// --- Phase 4: context assembly ---
	userTurn, citations, degraded := m.asm.BuildUserTurn(ctx, prompt, passages)
	if degraded {
		if err := emit(sink, datatypes.StatusEvent("Summarization unavailable, using raw context.")); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.citations = citations
	m.turns = TrimToBudget(append(m.turns, userTurn), m.cfg.ContextBudgetWords)
	m.history += fmt.Sprintf("User: %s\nAssistant: ", prompt)
	renderedPrompt := datatypes.RenderPrompt(m.preamble, m.turns)
	m.mu.Unlock()

	// --- Phase 5: generation ---
	if err := emit(sink, datatypes.StatusEvent("Generating response...")); err != nil {
		return err
	}

	var answer strings.Builder
	statusCleared := false
	genStart := time.Now()
	streamErr := m.deps.Generator.GenerateStream(ctx, renderedPrompt, llm.TurnSamplingParams(),
		func(fragment string) error {
			if !statusCleared {
				statusCleared = true
				if err := emit(sink, datatypes.TurnEvent{Kind: datatypes.EventClearStatus}); err != nil {
					return err
				}
			}
			answer.WriteString(fragment)
			return emit(sink, datatypes.DataEvent(fragment))
		})
	if streamErr != nil {
		return m.failTurn(sink, &GenerationStreamError{Err: streamErr})
	}
	m.observePhase("generate", genStart)
	if !statusCleared {
		// Empty completion. Still clear status so the consumer's
		// transient UI does not hang.
		if err := emit(sink, datatypes.TurnEvent{Kind: datatypes.EventClearStatus}); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.turns = append(m.turns, datatypes.TurnRecord{Role: datatypes.RoleAssistant, Text: answer.String()})
	m.history += answer.String() + "\n"
	m.mu.Unlock()

	// --- Phase 6: citations ---
	if len(citations) > 0 {
		if err := emit(sink, datatypes.CitationEvent("References: <br>")); err != nil {
			return err
		}
		for _, line := range uniqueLines(citations) {
			if err := emit(sink, datatypes.CitationEvent(line)); err != nil {
				return err
			}
		}
	}

	return emit(sink, datatypes.TurnEvent{Kind: datatypes.EventEnd})
}

// stageKeywords extracts this turn's candidate key phrases without
// committing them. Extraction failure degrades to the deterministic
// candidates (topics, short raw prompt) rather than failing the turn.
func (m *Machine) stageKeywords(ctx context.Context, prompt string, firstTurn bool, sink EventSink) []string {
	threshold := m.cfg.FollowupKeywordThreshold
	if firstTurn {
		threshold = m.cfg.FirstTurnKeywordThreshold
	}

	var candidates []string
	extracted, err := m.deps.Keywords.Extract(ctx, prompt, m.cfg.KeywordTopN, threshold)
	if err != nil {
		slog.Warn("keyword extraction failed, continuing without extracted phrases",
			"session_id", m.cfg.SessionID, "error", err)
		_ = emit(sink, datatypes.StatusEvent("Keyword extraction unavailable, continuing..."))
	} else {
		candidates = append(candidates, extracted...)
	}

	if firstTurn {
		m.mu.RLock()
		candidates = append(candidates, m.topics...)
		m.mu.RUnlock()
	}
	if len(strings.Fields(prompt)) < m.cfg.ShortPromptWords {
		candidates = append(candidates, prompt)
	}

	// Keep only phrases genuinely new to the session, deduplicated
	// within the batch.
	m.mu.RLock()
	defer m.mu.RUnlock()
	inBatch := make(map[string]struct{}, len(candidates))
	staged := make([]string, 0, len(candidates))
	for _, phrase := range candidates {
		if _, known := m.keySet[phrase]; known {
			continue
		}
		if _, dup := inBatch[phrase]; dup {
			continue
		}
		inBatch[phrase] = struct{}{}
		staged = append(staged, phrase)
	}
	return staged
}

// fetchAndStore fans out to the enabled sources for the staged queries
// and persists whatever arrived. Per-source failures degrade with a
// status event; a store failure is returned and fails the turn. Flags
// and filter are the turn's snapshot, so a concurrent upload cannot
// race the fan-out.
func (m *Machine) fetchAndStore(ctx context.Context, queries []string, firstTurn bool, flags datatypes.RetrievalFlags, filter datatypes.TopicFilter, sink EventSink) error {
	if len(queries) == 0 {
		return nil
	}
	statusMsg := "Fetching additional content for new keywords..."
	paperCap := m.cfg.FollowupPaperResults
	if firstTurn {
		statusMsg = "Fetching source content..."
		paperCap = m.cfg.FirstTurnPaperResults
	}
	if err := emit(sink, datatypes.StatusEvent(statusMsg)); err != nil {
		return err
	}

	fetchStart := time.Now()
	result := m.fetchSources(ctx, queries, paperCap, flags, filter)
	m.observePhase("fetch", fetchStart)
	for _, failure := range result.failures {
		slog.Warn("corpus source degraded",
			"session_id", m.cfg.SessionID,
			"source", failure.Source,
			"error", failure.Err)
		msg := fmt.Sprintf("Source %s unavailable, continuing without it.", failure.Source)
		if err := emit(sink, datatypes.StatusEvent(msg)); err != nil {
			return err
		}
	}
	if len(result.records) == 0 {
		return nil
	}

	msg := fmt.Sprintf("Storing %d passages...", len(result.records))
	if err := emit(sink, datatypes.StatusEvent(msg)); err != nil {
		return err
	}
	storeStart := time.Now()
	if err := m.deps.Store.Store(ctx, m.cfg.Namespace, m.cfg.SessionID,
		result.records, m.cfg.StoreBatchSize); err != nil {
		return &StoreError{Err: err}
	}
	m.observePhase("store", storeStart)
	m.countStored("fetch", len(result.records))
	return nil
}

// failTurn reports a fatal turn error on the stream and returns it.
// The failure event replaces end, so the consumer can distinguish an
// aborted turn from one that found nothing to cite.
func (m *Machine) failTurn(sink EventSink, turnErr error) error {
	slog.Error("turn failed",
		"session_id", m.cfg.SessionID, "error", turnErr)
	_ = sink(datatypes.TurnEvent{Kind: datatypes.EventFailure, Payload: turnErr.Error()})
	return turnErr
}

// observePhase records one phase duration when metrics are wired.
func (m *Machine) observePhase(phase string, start time.Time) {
	if m.deps.Metrics == nil {
		return
	}
	m.deps.Metrics.PhaseDurationSeconds.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// countStored counts passages written to the store by origin.
func (m *Machine) countStored(origin string, n int) {
	if m.deps.Metrics == nil {
		return
	}
	m.deps.Metrics.PassagesStoredTotal.WithLabelValues(origin).Add(float64(n))
}

// addKeyPhraseLocked adds a phrase to the monotone key-phrase set.
// Caller holds m.mu.
func (m *Machine) addKeyPhraseLocked(phrase string) {
	if phrase == "" {
		return
	}
	if _, ok := m.keySet[phrase]; ok {
		return
	}
	m.keySet[phrase] = struct{}{}
	m.keyPhrases = append(m.keyPhrases, phrase)
}

// emit forwards an event to the sink. Sink errors mean the consumer is
// gone; they propagate and abort the turn.
func emit(sink EventSink, event datatypes.TurnEvent) error {
	if err := sink(event); err != nil {
		return fmt.Errorf("event sink rejected %s event: %w", event.Kind, err)
	}
	return nil
}

// uniqueLines returns the distinct lines preserving first-seen order.
func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
