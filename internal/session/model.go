package session

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ThreadKind is the fixed set of conversation tabs the widget exposes.
type ThreadKind string

const (
	KindGeneral      ThreadKind = "general"
	KindStartup      ThreadKind = "startup"
	KindTechnical    ThreadKind = "technical"
	KindIntelligence ThreadKind = "intelligence"
)

// KindFromString maps arbitrary input to a known kind, defaulting to
// general so a stale client can never create an unroutable thread.
func KindFromString(s string) ThreadKind {
	switch ThreadKind(s) {
	case KindStartup, KindTechnical, KindIntelligence:
		return ThreadKind(s)
	default:
		return KindGeneral
	}
}

// Message is one conversation turn. Immutable once created; timestamps are
// serialized as RFC 3339 through the json tags rather than sniffed back out
// of strings on load.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is one independently scoped conversation within a session. The
// message slice is the literal prompt history; insertion order is
// meaningful.
type Thread struct {
	ID           string     `json:"id"`
	Kind         ThreadKind `json:"kind"`
	Title        string     `json:"title"`
	Active       bool       `json:"active"`
	Messages     []Message  `json:"messages"`
	LastActivity time.Time  `json:"last_activity"`
}

// Session is the durable per-visitor container. It always holds at least
// one thread, and every thread holds at least its welcome message.
type Session struct {
	ID           string    `json:"id"`
	Threads      []*Thread `json:"threads"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ActiveThread returns the active thread, falling back to the first one if
// the flag was lost (a loaded record is repaired rather than rejected for
// this).
func (s *Session) ActiveThread() *Thread {
	for _, t := range s.Threads {
		if t.Active {
			return t
		}
	}
	if len(s.Threads) > 0 {
		return s.Threads[0]
	}
	return nil
}

func (s *Session) thread(id string) *Thread {
	for _, t := range s.Threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// UserMessageCount counts user-role messages only. Seeded welcome messages
// carry the assistant role, so they are excluded by construction.
func UserMessageCount(t *Thread) int {
	n := 0
	for _, m := range t.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

const defaultTitle = "New conversation"

func welcomeText(kind ThreadKind) string {
	switch kind {
	case KindStartup:
		return "Hi! This is the startup corner. Tell me about your idea, your market, or the MVP you're sketching and I'll help you think it through."
	case KindTechnical:
		return "Hello! Ask me anything about our platform, integrations, or how the technology works under the hood."
	case KindIntelligence:
		return "Welcome to market intelligence. I can pull together public information about companies, websites, and trends for you."
	default:
		return "Hi there! I'm the Nuvora assistant. Ask me anything about what we do, or just tell me what brought you here."
	}
}

func titleFrom(content string) string {
	const max = 40
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
