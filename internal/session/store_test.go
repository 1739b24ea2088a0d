package session

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvora/concierge/internal/kvstore"
)

func newTestStore(limits Limits) (*Store, *kvstore.Memory) {
	kv := kvstore.NewMemory()
	st := NewStore(kv, limits)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	st.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return st, kv
}

func TestLoadCreatesDefaultSession(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	sess := st.Load(ctx, "visitor-1")
	require.Len(t, sess.Threads, 1)
	th := sess.Threads[0]
	assert.Equal(t, KindGeneral, th.Kind)
	assert.True(t, th.Active)
	require.Len(t, th.Messages, 1)
	assert.Equal(t, RoleAssistant, th.Messages[0].Role)
	assert.NotEmpty(t, th.Messages[0].Content)
}

func TestLoadDiscardsCorruptRecord(t *testing.T) {
	ctx := context.Background()
	corrupt := []string{
		`not json at all`,
		`{"id": 42, "threads": "nope"}`,
		`{"id":"visitor-1"}`,
		`{"id":"visitor-1","threads":[]}`,
		`{"id":"visitor-1","threads":[{"id":"t1","kind":"general","messages":[]}]}`,
		`{"id":"visitor-1","threads":[{"id":"t1","kind":"weird","messages":[{"id":"m","role":"user","content":"x","timestamp":"2025-06-01T00:00:00Z"}]}]}`,
		`{"id":"visitor-1","threads":[{"id":"t1","kind":"general","messages":[{"id":"m","role":"wizard","content":"x","timestamp":"2025-06-01T00:00:00Z"}]}]}`,
	}
	for _, raw := range corrupt {
		st, kv := newTestStore(Limits{})
		require.NoError(t, kv.Set(ctx, storageKey("visitor-1"), raw))

		sess := st.Load(ctx, "visitor-1")
		require.Len(t, sess.Threads, 1, "record %q should degrade to one default thread", raw)
		assert.Equal(t, KindGeneral, sess.Threads[0].Kind)
		require.Len(t, sess.Threads[0].Messages, 1)
	}
}

func TestAppendMessageOrderAndCap(t *testing.T) {
	st, _ := newTestStore(Limits{MaxMessagesPerThread: 5})
	ctx := context.Background()

	sess := st.Load(ctx, "v")
	tid := sess.Threads[0].ID

	for i := 0; i < 12; i++ {
		_, err := st.AppendMessage(ctx, "v", tid, RoleUser, string(rune('a'+i)))
		require.NoError(t, err)
	}

	th, err := st.Thread(ctx, "v", tid)
	require.NoError(t, err)
	require.Len(t, th.Messages, 5)
	// most recent kept, strict insertion order
	want := []string{"h", "i", "j", "k", "l"}
	for i, m := range th.Messages {
		assert.Equal(t, want[i], m.Content)
		if i > 0 {
			assert.False(t, m.Timestamp.Before(th.Messages[i-1].Timestamp))
		}
	}
}

func TestAppendMessageDerivesTitle(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	sess := st.Load(ctx, "v")
	tid := sess.Threads[0].ID

	first := "How does your pricing work for small teams exactly?"
	_, err := st.AppendMessage(ctx, "v", tid, RoleUser, first)
	require.NoError(t, err)

	th, err := st.Thread(ctx, "v", tid)
	require.NoError(t, err)
	assert.Equal(t, titleFrom(first), th.Title)
	assert.NotEqual(t, defaultTitle, th.Title)
	assert.LessOrEqual(t, len([]rune(th.Title)), 41)

	// a later user message must not overwrite the derived title
	_, err = st.AppendMessage(ctx, "v", tid, RoleUser, "something else")
	require.NoError(t, err)
	th, _ = st.Thread(ctx, "v", tid)
	assert.Equal(t, titleFrom(first), th.Title)
}

func TestCreateThreadActivatesNewAndDeactivatesSiblings(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	first := st.Load(ctx, "v").Threads[0]
	created, err := st.CreateThread(ctx, "v", KindStartup)
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.Equal(t, KindStartup, created.Kind)
	require.Len(t, created.Messages, 1)

	sess := st.Load(ctx, "v")
	require.Len(t, sess.Threads, 2)
	for _, th := range sess.Threads {
		if th.ID == first.ID {
			assert.False(t, th.Active)
		}
	}
}

func TestSwitchActiveUnknownIDIsNoOp(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	sess := st.Load(ctx, "v")
	require.NoError(t, st.SwitchActive(ctx, "v", "no-such-thread"))

	after := st.Load(ctx, "v")
	assert.Equal(t, sess.Threads[0].ID, after.ActiveThread().ID)
}

func TestDeleteThreadPromotesMostRecent(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	a := st.Load(ctx, "v").Threads[0]
	b, err := st.CreateThread(ctx, "v", KindStartup)
	require.NoError(t, err)
	c, err := st.CreateThread(ctx, "v", KindTechnical)
	require.NoError(t, err)

	// touch b so it is more recent than a
	_, err = st.AppendMessage(ctx, "v", b.ID, RoleUser, "hi")
	require.NoError(t, err)

	require.NoError(t, st.DeleteThread(ctx, "v", c.ID))
	sess := st.Load(ctx, "v")
	require.Len(t, sess.Threads, 2)
	assert.Equal(t, b.ID, sess.ActiveThread().ID)
	_ = a
}

func TestDeleteLastThreadRecreatesDefault(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	only := st.Load(ctx, "v").Threads[0]
	require.NoError(t, st.DeleteThread(ctx, "v", only.ID))

	sess := st.Load(ctx, "v")
	require.Len(t, sess.Threads, 1)
	fresh := sess.Threads[0]
	assert.NotEqual(t, only.ID, fresh.ID)
	assert.True(t, fresh.Active)
	require.Len(t, fresh.Messages, 1)
	assert.Equal(t, RoleAssistant, fresh.Messages[0].Role)
}

func TestClearAllRecreatesSingleDefaultThread(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	_, err := st.CreateThread(ctx, "v", KindStartup)
	require.NoError(t, err)
	_, err = st.CreateThread(ctx, "v", KindIntelligence)
	require.NoError(t, err)

	sess, err := st.ClearAll(ctx, "v")
	require.NoError(t, err)
	require.Len(t, sess.Threads, 1)
	assert.Equal(t, KindGeneral, sess.Threads[0].Kind)
}

func TestThreadCountEvictionDropsOldestFirst(t *testing.T) {
	st, _ := newTestStore(Limits{MaxThreads: 3})
	ctx := context.Background()

	first := st.Load(ctx, "v").Threads[0]
	second, err := st.CreateThread(ctx, "v", KindStartup)
	require.NoError(t, err)
	third, err := st.CreateThread(ctx, "v", KindTechnical)
	require.NoError(t, err)
	fourth, err := st.CreateThread(ctx, "v", KindIntelligence)
	require.NoError(t, err)

	sess := st.Load(ctx, "v")
	require.Len(t, sess.Threads, 3)
	ids := make(map[string]bool)
	for _, th := range sess.Threads {
		ids[th.ID] = true
	}
	assert.False(t, ids[first.ID], "oldest-by-activity thread should be evicted first")
	assert.True(t, ids[second.ID])
	assert.True(t, ids[third.ID])
	assert.True(t, ids[fourth.ID])
}

func TestSizeEvictionSparesActiveThread(t *testing.T) {
	// Ceiling low enough that holding several padded threads overflows it.
	st, _ := newTestStore(Limits{MaxBytes: 4096, MaxThreads: 10, MaxMessagesPerThread: 50})
	ctx := context.Background()

	pad := make([]byte, 900)
	for i := range pad {
		pad[i] = 'x'
	}

	oldest := st.Load(ctx, "v").Threads[0]
	_, err := st.AppendMessage(ctx, "v", oldest.ID, RoleUser, string(pad))
	require.NoError(t, err)

	var last Thread
	for i := 0; i < 4; i++ {
		th, err := st.CreateThread(ctx, "v", KindGeneral)
		require.NoError(t, err)
		_, err = st.AppendMessage(ctx, "v", th.ID, RoleUser, string(pad))
		require.NoError(t, err)
		last = th
	}

	sess := st.Load(ctx, "v")
	ids := make(map[string]bool)
	for _, th := range sess.Threads {
		ids[th.ID] = true
	}
	assert.False(t, ids[oldest.ID], "oldest thread should be reclaimed")
	assert.True(t, ids[last.ID], "active thread must survive eviction while alternatives exist")
	assert.True(t, sess.ActiveThread().ID == last.ID)
}

func TestAppendMessageEnforcesByteCeiling(t *testing.T) {
	st, kv := newTestStore(Limits{MaxBytes: 4096, MaxThreads: 10, MaxMessagesPerThread: 50})
	ctx := context.Background()

	idle := st.Load(ctx, "v").Threads[0]
	active, err := st.CreateThread(ctx, "v", KindGeneral)
	require.NoError(t, err)

	pad := strings.Repeat("x", 2048)
	for i := 0; i < 5; i++ {
		_, err := st.AppendMessage(ctx, "v", active.ID, RoleUser, pad)
		require.NoError(t, err)
	}

	raw, ok := kv.Get(ctx, storageKey("v"))
	require.True(t, ok)
	assert.LessOrEqual(t, int64(len(storageKey("v"))+len(raw)),
		int64(4096), "appends must keep the persisted record under the ceiling")

	sess := st.Load(ctx, "v")
	ids := make(map[string]bool)
	for _, th := range sess.Threads {
		ids[th.ID] = true
	}
	assert.False(t, ids[idle.ID], "idle thread should be reclaimed before messages are trimmed")
	require.True(t, ids[active.ID])

	// trimming drops oldest first; the most recent append always survives
	th, err := st.Thread(ctx, "v", active.ID)
	require.NoError(t, err)
	require.NotEmpty(t, th.Messages)
	assert.Equal(t, pad, th.Messages[len(th.Messages)-1].Content)
}

func TestCodecRoundTripsTimestamps(t *testing.T) {
	st, kv := newTestStore(Limits{})
	ctx := context.Background()

	sess := st.Load(ctx, "v")
	tid := sess.Threads[0].ID
	sent, err := st.AppendMessage(ctx, "v", tid, RoleUser, "hello")
	require.NoError(t, err)

	raw, ok := kv.Get(ctx, storageKey("v"))
	require.True(t, ok)

	decoded, err := decodeSession(raw)
	require.NoError(t, err)
	th := decoded.thread(tid)
	require.NotNil(t, th)
	got := th.Messages[len(th.Messages)-1]
	assert.True(t, got.Timestamp.Equal(sent.Timestamp), "timestamps must come back as instants, not strings")
	assert.False(t, got.Timestamp.IsZero())

	// and the wire form really is plain JSON text
	var wire map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &wire))
}

func TestUserMessageCountExcludesWelcomeAndAssistant(t *testing.T) {
	st, _ := newTestStore(Limits{})
	ctx := context.Background()

	sess := st.Load(ctx, "v")
	tid := sess.Threads[0].ID

	_, err := st.AppendMessage(ctx, "v", tid, RoleUser, "one")
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, "v", tid, RoleAssistant, "reply")
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, "v", tid, RoleUser, "two")
	require.NoError(t, err)

	th, err := st.Thread(ctx, "v", tid)
	require.NoError(t, err)
	assert.Equal(t, 2, UserMessageCount(&th))
}
