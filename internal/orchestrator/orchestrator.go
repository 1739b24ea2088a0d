// Package orchestrator runs the per-thread control loop: it accepts a user
// utterance, runs the trigger detectors, optionally invokes the enrichment
// pipeline, calls the language-model backend, applies the post-response
// heuristics, and writes everything back to the session store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/nuvora/concierge/internal/enrich"
	"github.com/nuvora/concierge/internal/leads"
	"github.com/nuvora/concierge/internal/llm"
	"github.com/nuvora/concierge/internal/logger"
	"github.com/nuvora/concierge/internal/session"
	"github.com/nuvora/concierge/internal/trigger"
)

// ErrEmptyTurn rejects a turn with neither text nor artifacts.
var ErrEmptyTurn = errors.New("empty utterance and no artifacts")

// Turn lifecycle states.
var (
	stateIdle                  stateless.State = "idle"
	stateAwaitingEnrichment    stateless.State = "awaiting_enrichment"
	stateAwaitingModelResponse stateless.State = "awaiting_model_response"
)

var (
	triggerSend         stateless.Trigger = "send"
	triggerShortCircuit stateless.Trigger = "short_circuit"
	triggerEnriched     stateless.Trigger = "enriched"
	triggerModelDone    stateless.Trigger = "model_done"
)

// Pacing of scripted messages. Replies never land instantaneously: the
// short fixed delay before canned messages and the length-proportional
// typing delay keep the exchange feeling conversational.
const (
	scriptedDelay  = 800 * time.Millisecond
	typingDelayMin = 400 * time.Millisecond
	typingDelayMax = 2 * time.Second
	perCharDelay   = 8 * time.Millisecond
)

func typingDelay(replyLen int) time.Duration {
	d := typingDelayMin + time.Duration(replyLen)*perCharDelay
	if d > typingDelayMax {
		d = typingDelayMax
	}
	return d
}

// LeadPublisher receives lead-capture signals. A nil publisher disables
// them; publishing failures never block a turn.
type LeadPublisher interface {
	Publish(ctx context.Context, ev leads.Event) error
}

type Options struct {
	Model         string
	MaxTokens     int
	Temperature   float32
	ContextWindow int // K prior messages included in the prompt
}

type Orchestrator struct {
	sessions *session.Store
	pipeline *enrich.Pipeline
	client   llm.Client
	leads    LeadPublisher
	opts     Options

	// sleep is swapped out by tests; production uses time.Sleep.
	sleep func(time.Duration)

	// Monotonic per-thread turn counter. A turn that was superseded while
	// suspended on a network call discards its remaining appends instead of
	// interleaving with the newer turn.
	mu    sync.Mutex
	turns map[string]uint64
}

func New(sessions *session.Store, pipeline *enrich.Pipeline, client llm.Client, publisher LeadPublisher, opts Options) *Orchestrator {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 10
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 600
	}
	return &Orchestrator{
		sessions: sessions,
		pipeline: pipeline,
		client:   client,
		leads:    publisher,
		opts:     opts,
		sleep:    time.Sleep,
		turns:    make(map[string]uint64),
	}
}

// TurnResult is everything a turn produced: the optimistic user message,
// the assistant-side messages in append order, and UI side effects.
type TurnResult struct {
	UserMessage     session.Message
	Messages        []session.Message
	ShowContactForm bool
	UsedFallback    bool
	// Stale is set when a newer turn superseded this one while it was
	// suspended; its remaining output was discarded.
	Stale bool
}

type turnContext struct {
	utterance string
	effective string
	prompt    string
	prior     session.Thread
	priorUser int
	err       error
}

// ProcessTurn runs one full user turn against a thread.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, threadID, utterance string, art *enrich.Artifacts) (*TurnResult, error) {
	if strings.TrimSpace(utterance) == "" && art.Empty() {
		return nil, ErrEmptyTurn
	}

	prior, err := o.sessions.Thread(ctx, sessionID, threadID)
	if err != nil {
		return nil, err
	}
	seq := o.beginTurn(threadID)

	userMsg, err := o.sessions.AppendMessage(ctx, sessionID, threadID, session.RoleUser, displayContent(utterance, art))
	if err != nil {
		return nil, err
	}

	res := &TurnResult{UserMessage: userMsg}
	turn := &turnContext{
		utterance: utterance,
		effective: utterance,
		prior:     prior,
		priorUser: session.UserMessageCount(&prior),
	}

	fsm := stateless.NewStateMachine(stateIdle)

	fsm.Configure(stateIdle).
		Permit(triggerSend, stateAwaitingEnrichment)

	fsm.Configure(stateAwaitingEnrichment).
		OnEntry(func(ctx context.Context, _ ...any) error {
			// Contact requests short-circuit the whole turn: the model is
			// never called and the lead-capture form is surfaced instead.
			if trigger.IsContactRequest(turn.utterance) {
				o.sleep(scriptedDelay)
				if o.isStale(threadID, seq) {
					res.Stale = true
					return fsm.FireCtx(ctx, triggerShortCircuit)
				}
				msg, err := o.sessions.AppendMessage(ctx, sessionID, threadID, session.RoleAssistant, contactInvite)
				if err != nil {
					turn.err = err
					return fsm.FireCtx(ctx, triggerShortCircuit)
				}
				res.Messages = append(res.Messages, msg)
				res.ShowContactForm = true
				o.publishLead(ctx, sessionID, threadID, leads.KindContact, turn.utterance)
				return fsm.FireCtx(ctx, triggerShortCircuit)
			}

			pr := o.pipeline.Run(ctx, turn.utterance, art)
			turn.effective = pr.EffectiveUtterance
			turn.prompt = pr.Prompt()
			return fsm.FireCtx(ctx, triggerEnriched)
		}).
		Permit(triggerShortCircuit, stateIdle).
		Permit(triggerEnriched, stateAwaitingModelResponse)

	fsm.Configure(stateAwaitingModelResponse).
		OnEntry(func(ctx context.Context, _ ...any) error {
			reply, failed := o.callModel(ctx, turn)
			if failed {
				res.UsedFallback = true
			} else {
				o.sleep(typingDelay(len(reply)))
			}
			if o.isStale(threadID, seq) {
				res.Stale = true
				return fsm.FireCtx(ctx, triggerModelDone)
			}

			msg, err := o.sessions.AppendMessage(ctx, sessionID, threadID, session.RoleAssistant, reply)
			if err != nil {
				turn.err = err
				return fsm.FireCtx(ctx, triggerModelDone)
			}
			res.Messages = append(res.Messages, msg)

			o.applyHeuristics(ctx, sessionID, threadID, seq, turn, res)
			return fsm.FireCtx(ctx, triggerModelDone)
		}).
		Permit(triggerModelDone, stateIdle)

	if err := fsm.FireCtx(ctx, triggerSend); err != nil {
		return nil, fmt.Errorf("turn state machine: %w", err)
	}
	if turn.err != nil {
		return nil, turn.err
	}

	// Artifacts are consumed by exactly one turn.
	if art != nil {
		art.Document = nil
		art.Audio = nil
	}
	return res, nil
}

// callModel assembles the prompt and calls the backend. It always returns
// something presentable: on failure the reply is one of the canned
// fallbacks keyed by status class and failed is true.
func (o *Orchestrator) callModel(ctx context.Context, turn *turnContext) (reply string, failed bool) {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemInstruction(turn.prior.Kind),
	}}

	history := turn.prior.Messages
	if k := o.opts.ContextWindow; len(history) > k {
		history = history[len(history)-k:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleAssistant
		if m.Role == session.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		// Timestamps are deliberately stripped: the backend sees role and
		// content only.
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: turn.prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.opts.Model,
		Messages:    messages,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		logger.L.Error("model backend call failed", "error", err)
		return llm.Fallback(err), true
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		logger.L.Warn("model backend returned no content")
		return llm.FallbackGeneric, true
	}
	return resp.Choices[0].Message.Content, false
}

// applyHeuristics appends at most one scripted follow-up per turn, in
// fixed precedence order. The user-message count is the one observed when
// the turn began, before this turn's message was appended.
func (o *Orchestrator) applyHeuristics(ctx context.Context, sessionID, threadID string, seq uint64, turn *turnContext, res *TurnResult) {
	count := turn.priorUser

	var content string
	var lead leads.EventKind
	switch {
	case trigger.IsEscalationTopic(turn.effective):
		content = escalationOffer
		lead = leads.KindEscalation
	case (turn.prior.Kind == session.KindStartup || trigger.IsStartupTopic(turn.effective)) && count >= 4:
		content = startupNudge
	case count >= 3 && count%3 == 0:
		content = genericTip
	default:
		return
	}

	o.sleep(scriptedDelay)
	if o.isStale(threadID, seq) {
		res.Stale = true
		return
	}
	msg, err := o.sessions.AppendMessage(ctx, sessionID, threadID, session.RoleAssistant, content)
	if err != nil {
		logger.L.Warn("appending heuristic message failed", "error", err)
		return
	}
	res.Messages = append(res.Messages, msg)
	if lead != "" {
		o.publishLead(ctx, sessionID, threadID, lead, turn.effective)
	}
}

// CloseThread applies the goodbye rule when a thread view is closed: a
// farewell nudging the contact form is appended once the visitor has sent
// at least two messages there. The returned message is nil otherwise.
func (o *Orchestrator) CloseThread(ctx context.Context, sessionID, threadID string) (*session.Message, error) {
	th, err := o.sessions.Thread(ctx, sessionID, threadID)
	if err != nil {
		return nil, err
	}
	if session.UserMessageCount(&th) < 2 {
		return nil, nil
	}
	msg, err := o.sessions.AppendMessage(ctx, sessionID, threadID, session.RoleAssistant, farewell)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (o *Orchestrator) publishLead(ctx context.Context, sessionID, threadID string, kind leads.EventKind, utterance string) {
	if o.leads == nil {
		return
	}
	ev := leads.Event{
		SessionID: sessionID,
		ThreadID:  threadID,
		Kind:      kind,
		Utterance: utterance,
		CreatedAt: time.Now(),
	}
	if err := o.leads.Publish(ctx, ev); err != nil {
		logger.L.Warn("publishing lead event failed", "kind", kind, "error", err)
	}
}

func (o *Orchestrator) beginTurn(threadID string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turns[threadID]++
	return o.turns[threadID]
}

func (o *Orchestrator) isStale(threadID string, seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turns[threadID] != seq
}

// displayContent is what lands in the thread as the optimistic user
// message. Artifact-only turns get a placeholder so the exchange stays
// legible.
func displayContent(utterance string, art *enrich.Artifacts) string {
	if strings.TrimSpace(utterance) != "" {
		return utterance
	}
	if art != nil && len(art.Audio) > 0 {
		return "[voice message]"
	}
	if art != nil && art.Document != nil {
		return "[uploaded: " + art.Document.Name + "]"
	}
	return utterance
}
