// Package session owns the per-visitor conversation state: the mapping
// from session id to threads, capacity enforcement, and the degrade-to-
// defaults loading semantics. It persists through a kvstore.Store so tests
// can substitute an in-memory adapter.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nuvora/concierge/internal/common"
	"github.com/nuvora/concierge/internal/kvstore"
	"github.com/nuvora/concierge/internal/logger"
)

var ErrThreadNotFound = errors.New("thread not found")

// Limits bounds the persisted footprint of one session.
type Limits struct {
	MaxBytes             int64
	MaxThreads           int
	MaxMessagesPerThread int
}

func DefaultLimits() Limits {
	return Limits{
		MaxBytes:             5 * 1024 * 1024,
		MaxThreads:           10,
		MaxMessagesPerThread: 50,
	}
}

// Store performs read-modify-write cycles on session blobs. All mutation
// goes through the mutex: there is no true parallel writer per deployment,
// but HTTP handlers do run concurrently.
type Store struct {
	kv     kvstore.Store
	limits Limits

	mu  sync.Mutex
	now func() time.Time
}

func NewStore(kv kvstore.Store, limits Limits) *Store {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits().MaxBytes
	}
	if limits.MaxThreads <= 0 {
		limits.MaxThreads = DefaultLimits().MaxThreads
	}
	if limits.MaxMessagesPerThread <= 0 {
		limits.MaxMessagesPerThread = DefaultLimits().MaxMessagesPerThread
	}
	return &Store{kv: kv, limits: limits, now: time.Now}
}

func storageKey(sessionID string) string { return "session:" + sessionID }

// Load returns the session, creating and persisting a default one when the
// record is absent or fails validation. It never returns a load error to
// the caller: the store is the first thing initialized on every page view
// and corruption must degrade, not crash.
func (st *Store) Load(ctx context.Context, sessionID string) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess := st.load(ctx, sessionID)
	return cloneSession(sess)
}

// CreateThread adds a new active thread of the given kind, seeded with its
// welcome message.
func (st *Store) CreateThread(ctx context.Context, sessionID string, kind ThreadKind) (Thread, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.load(ctx, sessionID)
	t := st.newThread(kind)
	for _, sib := range sess.Threads {
		sib.Active = false
	}
	t.Active = true
	sess.Threads = append(sess.Threads, t)
	sess.LastActivity = st.now()

	if err := st.save(ctx, sess); err != nil {
		return Thread{}, err
	}
	return cloneThread(t), nil
}

// SwitchActive flips the active flag. An unknown id — typically a stale id
// from a record loaded before an eviction — is a silent no-op.
func (st *Store) SwitchActive(ctx context.Context, sessionID, threadID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.load(ctx, sessionID)
	target := sess.thread(threadID)
	if target == nil {
		return nil
	}
	for _, t := range sess.Threads {
		t.Active = t.ID == threadID
	}
	sess.LastActivity = st.now()
	return st.save(ctx, sess)
}

// AppendMessage appends one immutable message, truncates to the per-thread
// cap (oldest dropped first), and derives the title from the first user
// message while the title is still the placeholder.
func (st *Store) AppendMessage(ctx context.Context, sessionID, threadID string, role Role, content string) (Message, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.load(ctx, sessionID)
	t := sess.thread(threadID)
	if t == nil {
		return Message{}, ErrThreadNotFound
	}

	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: st.now(),
	}
	t.Messages = append(t.Messages, msg)
	if n := len(t.Messages); n > st.limits.MaxMessagesPerThread {
		t.Messages = append([]Message(nil), t.Messages[n-st.limits.MaxMessagesPerThread:]...)
	}
	if role == RoleUser && t.Title == defaultTitle {
		t.Title = titleFrom(content)
	}
	t.LastActivity = msg.Timestamp
	sess.LastActivity = msg.Timestamp

	if err := st.save(ctx, sess); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DeleteThread removes a thread. If it was active, the most-recently-active
// survivor takes over; if nothing survives, a fresh default thread is
// created and seeded.
func (st *Store) DeleteThread(ctx context.Context, sessionID, threadID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.load(ctx, sessionID)
	var removed *Thread
	kept := sess.Threads[:0]
	for _, t := range sess.Threads {
		if t.ID == threadID {
			removed = t
			continue
		}
		kept = append(kept, t)
	}
	if removed == nil {
		return nil
	}
	sess.Threads = kept

	if len(sess.Threads) == 0 {
		t := st.newThread(KindGeneral)
		t.Active = true
		sess.Threads = append(sess.Threads, t)
	} else if removed.Active {
		next := sess.Threads[0]
		for _, t := range sess.Threads[1:] {
			if t.LastActivity.After(next.LastActivity) {
				next = t
			}
		}
		next.Active = true
	}
	sess.LastActivity = st.now()
	return st.save(ctx, sess)
}

// ClearAll wipes the backing record and recreates exactly one default
// thread.
func (st *Store) ClearAll(ctx context.Context, sessionID string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.kv.Remove(ctx, storageKey(sessionID)); err != nil {
		logger.L.Warn("clearing session record failed", "session_id", sessionID, "error", err)
	}
	sess := st.newDefaultSession(sessionID)
	if err := st.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return cloneSession(sess), nil
}

// StorageSize reports the total bytes held by the backing store across
// all records, for the operator stats surface.
func (st *Store) StorageSize(ctx context.Context) (int64, error) {
	return st.kv.SizeBytes(ctx)
}

// Thread returns a copy of one thread.
func (st *Store) Thread(ctx context.Context, sessionID, threadID string) (Thread, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.load(ctx, sessionID)
	t := sess.thread(threadID)
	if t == nil {
		return Thread{}, ErrThreadNotFound
	}
	return cloneThread(t), nil
}

func (st *Store) load(ctx context.Context, sessionID string) *Session {
	raw, ok := st.kv.Get(ctx, storageKey(sessionID))
	if !ok {
		sess := st.newDefaultSession(sessionID)
		if err := st.save(ctx, sess); err != nil {
			logger.L.Warn("persisting fresh session failed", "session_id", sessionID, "error", err)
		}
		return sess
	}
	sess, err := decodeSession(raw)
	if err != nil {
		logger.L.Warn("discarding corrupt session record", "session_id", sessionID, "error", err)
		sess = st.newDefaultSession(sessionID)
		if serr := st.save(ctx, sess); serr != nil {
			logger.L.Warn("persisting replacement session failed", "session_id", sessionID, "error", serr)
		}
	}
	return sess
}

// save enforces capacity and persists. Every mutating operation funnels
// through here, so appends and deletions keep the record under the
// ceiling the same way thread creation does.
func (st *Store) save(ctx context.Context, sess *Session) error {
	st.evict(sess)
	raw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	return st.kv.Set(ctx, storageKey(sess.ID), raw)
}

func (st *Store) newDefaultSession(sessionID string) *Session {
	now := st.now()
	t := st.newThread(KindGeneral)
	t.Active = true
	return &Session{
		ID:           sessionID,
		Threads:      []*Thread{t},
		CreatedAt:    now,
		LastActivity: now,
	}
}

func (st *Store) newThread(kind ThreadKind) *Thread {
	now := st.now()
	return &Thread{
		ID:    common.NewULID(),
		Kind:  kind,
		Title: defaultTitle,
		Messages: []Message{{
			ID:        uuid.NewString(),
			Role:      RoleAssistant,
			Content:   welcomeText(kind),
			Timestamp: now,
		}},
		LastActivity: now,
	}
}

// evict reclaims capacity: least-recently-active threads are dropped
// while the session is over its thread cap or its serialized record
// exceeds the byte ceiling; once no thread can be dropped, oldest
// messages are trimmed instead. The active thread is only ever evicted
// when nothing else remains to drop, and the last surviving thread is
// never dropped.
func (st *Store) evict(sess *Session) {
	for len(sess.Threads) > st.limits.MaxThreads {
		if !st.dropOldest(sess) {
			break
		}
	}
	for st.overCeiling(sess) {
		if st.dropOldest(sess) {
			continue
		}
		if !trimOldestMessage(sess) {
			logger.L.Warn("record over byte ceiling after eviction", "session_id", sess.ID)
			return
		}
	}
}

func (st *Store) overCeiling(sess *Session) bool {
	raw, err := encodeSession(sess)
	if err != nil {
		return false
	}
	return int64(len(storageKey(sess.ID))+len(raw)) > st.limits.MaxBytes
}

// trimOldestMessage drops the oldest message from the least-recently-
// active thread still holding more than one. A thread's most recent
// message is never trimmed.
func trimOldestMessage(sess *Session) bool {
	var victim *Thread
	for _, t := range sess.Threads {
		if len(t.Messages) <= 1 {
			continue
		}
		if victim == nil || t.LastActivity.Before(victim.LastActivity) {
			victim = t
		}
	}
	if victim == nil {
		return false
	}
	victim.Messages = append([]Message(nil), victim.Messages[1:]...)
	return true
}

func (st *Store) dropOldest(sess *Session) bool {
	if len(sess.Threads) <= 1 {
		return false
	}
	var victim *Thread
	for _, t := range sess.Threads {
		if t.Active {
			continue
		}
		if victim == nil || t.LastActivity.Before(victim.LastActivity) {
			victim = t
		}
	}
	if victim == nil {
		return false
	}
	kept := sess.Threads[:0]
	for _, t := range sess.Threads {
		if t != victim {
			kept = append(kept, t)
		}
	}
	sess.Threads = kept
	logger.L.Debug("evicted thread for capacity", "session_id", sess.ID, "thread_id", victim.ID)
	return true
}

func cloneThread(t *Thread) Thread {
	cp := *t
	cp.Messages = append([]Message(nil), t.Messages...)
	return cp
}

func cloneSession(s *Session) Session {
	cp := *s
	cp.Threads = make([]*Thread, len(s.Threads))
	for i, t := range s.Threads {
		tc := cloneThread(t)
		cp.Threads[i] = &tc
	}
	return cp
}
