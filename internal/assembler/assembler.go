// Package assembler consumes a host-supplied message stream and renders
// the ordered, LLM-facing context: a stable system/metadata-pool/chat
// prefix plus a volatile active-content block.
package assembler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vinayprograms/ctxmgr/internal/logging"
	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/resolver"
	"github.com/vinayprograms/ctxmgr/internal/session"
	"github.com/vinayprograms/ctxmgr/internal/store"
)

// Role discriminates the three event kinds a harness may append to its
// message array.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "toolResult"
)

// Message is one entry in the harness-supplied event stream.
type Message struct {
	Role Role

	// user / assistant
	Content string
	Model   string // assistant only

	// toolResult
	ToolCallID  string
	Tool        string
	Args        map[string]any
	ArgsDisplay string
	Status      string
}

// ConsumeResult reports what one Consume call did.
type ConsumeResult struct {
	Reset    bool
	Consumed int
}

// Assembler owns the monotonic cursor and local turn accumulation for
// one session. It is not safe to share across sessions.
type Assembler struct {
	mu sync.Mutex

	store    store.Client
	engine   *session.Engine
	resolver *resolver.Resolver
	log      *logging.Logger

	cursor int

	turns        []object.Turn
	toolCallRefs []string
}

// New builds an Assembler bound to one session's engine.
func New(client store.Client, engine *session.Engine, res *resolver.Resolver, log *logging.Logger) *Assembler {
	if log == nil {
		log = logging.Default
	}
	return &Assembler{
		store:    client,
		engine:   engine,
		resolver: res,
		log:      log.WithComponent("assembler").WithSession(engine.SessionID()),
	}
}

// Consume advances the cursor over messages[cursor:] and returns the
// number of events it processed, or reports a cursor reset if the
// harness replaced its message log.
//
// The only reset signal is length: len(messages) < cursor means the
// array the harness is handing us can no longer contain everything we
// already consumed, so it must have been replaced. A Go slice's
// backing array has no reference identity a caller can rely on —
// ordinary append-driven growth reallocates it routinely — so growth
// alone, even past the old capacity, is never treated as a reset.
func (a *Assembler) Consume(ctx context.Context, messages []Message) (ConsumeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(messages) < a.cursor {
		a.cursor = len(messages)
		return ConsumeResult{Reset: true}, nil
	}

	start := a.cursor
	for i := start; i < len(messages); i++ {
		if err := a.absorb(ctx, messages[i]); err != nil {
			return ConsumeResult{}, fmt.Errorf("assembler: absorb message %d: %w", i, err)
		}
	}
	a.cursor = len(messages)
	return ConsumeResult{Consumed: len(messages) - start}, nil
}

func (a *Assembler) absorb(ctx context.Context, msg Message) error {
	switch msg.Role {
	case RoleUser:
		a.turns = append(a.turns, object.Turn{User: msg.Content})
		return a.persistChat(ctx)

	case RoleAssistant:
		if len(a.turns) == 0 {
			a.turns = append(a.turns, object.Turn{})
		}
		last := &a.turns[len(a.turns)-1]
		last.Assistant = msg.Content
		last.Model = msg.Model
		return a.persistChat(ctx)

	case RoleToolResult:
		callID := msg.ToolCallID
		if callID == "" {
			// Not every provider guarantees a unique call id; mint one
			// rather than risk two unrelated results colliding on "".
			callID = uuid.NewString()
		}
		doc := object.NewToolCallDocument(callID, a.engine.ChatID(), msg.Tool, msg.Args, msg.ArgsDisplay, msg.Content, msg.Status)
		h, err := a.store.Put(ctx, doc)
		if err != nil {
			return fmt.Errorf("put toolcall %s: %w", doc.ID, err)
		}
		if err := a.store.AwaitTx(ctx, h); err != nil {
			return fmt.Errorf("await toolcall %s: %w", doc.ID, err)
		}

		if len(a.turns) == 0 {
			a.turns = append(a.turns, object.Turn{})
		}
		last := &a.turns[len(a.turns)-1]
		last.ToolCallIDs = append(last.ToolCallIDs, doc.ID)
		a.toolCallRefs = append(a.toolCallRefs, doc.ID)
		if err := a.persistChat(ctx); err != nil {
			return err
		}

		if _, err := a.engine.Encounter(ctx, doc.ID); err != nil {
			return err
		}
		if r, err := a.engine.PromoteToPool(ctx, doc.ID); err != nil {
			return err
		} else if !r.OK {
			return fmt.Errorf("promote toolcall %s: %s", doc.ID, r.Message)
		}
		if r, err := a.engine.Activate(ctx, doc.ID); err != nil {
			return err
		} else if !r.OK {
			return fmt.Errorf("activate toolcall %s: %s", doc.ID, r.Message)
		}
		if _, err := a.engine.RecomputeAutoCollapse(ctx, a.turns); err != nil {
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown message role: %q", msg.Role)
	}
}

func (a *Assembler) persistChat(ctx context.Context) error {
	empty := ""
	doc := &object.Document{
		ID:           a.engine.ChatID(),
		Type:         object.TypeChat,
		Content:      &empty,
		SessionRef:   a.engine.SessionDocID(),
		Turns:        append([]object.Turn(nil), a.turns...),
		TurnCount:    len(a.turns),
		ToolCallRefs: append([]string(nil), a.toolCallRefs...),
	}
	doc.RecomputeIdentityHash(doc.ID)
	doc.RecomputeContentHash()
	h, err := a.store.Put(ctx, doc)
	if err != nil {
		return fmt.Errorf("put chat: %w", err)
	}
	return a.store.AwaitTx(ctx, h)
}

// RenderedMessage is one entry in the ordered LLM-facing sequence.
type RenderedMessage struct {
	Role    string
	Content string
}

// Render produces the system/metadata-pool/chat-history stable prefix
// plus the volatile active-content block, in that order.
func (a *Assembler) Render(ctx context.Context) ([]RenderedMessage, error) {
	a.mu.Lock()
	turns := append([]object.Turn(nil), a.turns...)
	a.mu.Unlock()

	snap := a.engine.Snapshot()
	var out []RenderedMessage

	sysPrompt, err := a.store.Get(ctx, a.engine.SystemPromptID())
	if err != nil {
		return nil, fmt.Errorf("render: system prompt: %w", err)
	}
	out = append(out, RenderedMessage{Role: "system", Content: contentOf(sysPrompt)})

	poolDocs, err := a.store.Query(ctx, store.Query{IDs: snap.MetadataPool})
	if err != nil {
		return nil, fmt.Errorf("render: metadata pool: %w", err)
	}
	poolByID := indexByID(poolDocs)
	var poolLines []string
	for _, id := range snap.MetadataPool {
		doc, ok := poolByID[id]
		if !ok {
			continue
		}
		poolLines = append(poolLines, a.renderPoolLine(doc))
	}
	out = append(out, RenderedMessage{Role: "user", Content: strings.Join(poolLines, "\n")})

	toolRefDocs, err := a.store.Query(ctx, store.Query{IDs: collectToolCallIDs(turns)})
	if err != nil {
		return nil, fmt.Errorf("render: tool-call refs: %w", err)
	}
	toolByID := indexByID(toolRefDocs)
	for _, turn := range turns {
		out = append(out, RenderedMessage{Role: "user", Content: turn.User})
		if turn.Assistant != "" {
			out = append(out, RenderedMessage{Role: "assistant", Content: turn.Assistant})
		}
		for _, tcID := range turn.ToolCallIDs {
			tc, ok := toolByID[tcID]
			status := "unknown"
			tool := tcID
			if ok {
				status = tc.Status
				tool = tc.Tool
			}
			out = append(out, RenderedMessage{
				Role:    "tool",
				Content: fmt.Sprintf("toolcall_ref id=%s tool=%s status=%s", tcID, tool, status),
			})
		}
	}

	activeDocs, err := a.store.Query(ctx, store.Query{IDs: snap.ActiveSet})
	if err != nil {
		return nil, fmt.Errorf("render: active set: %w", err)
	}
	activeByID := indexByID(activeDocs)
	for _, id := range snap.ActiveSet {
		doc, ok := activeByID[id]
		if !ok || doc.Type.Infrastructure() {
			continue
		}
		out = append(out, RenderedMessage{
			Role:    "user",
			Content: fmt.Sprintf("ACTIVE_CONTENT id=%s\n%s", id, contentOf(doc)),
		})
	}

	return out, nil
}

func (a *Assembler) renderPoolLine(doc *object.Document) string {
	switch doc.Type {
	case object.TypeFile:
		if doc.IsStub() {
			return fmt.Sprintf("id=%s type=file path=%s [unread]", doc.ID, a.displayPath(doc))
		}
		return fmt.Sprintf("id=%s type=file path=%s file_type=%s char_count=%d",
			doc.ID, a.displayPath(doc), doc.FileType, doc.CharCount)
	case object.TypeToolCall:
		return fmt.Sprintf("id=%s type=toolcall tool=%s status=%s", doc.ID, doc.Tool, doc.Status)
	default:
		return fmt.Sprintf("id=%s type=%s", doc.ID, doc.Type)
	}
}

func (a *Assembler) displayPath(doc *object.Document) string {
	if doc.Source == nil {
		return ""
	}
	if a.resolver == nil {
		return doc.Source.Path
	}
	return a.resolver.ReverseResolve(doc.Source.Path)
}

func contentOf(doc *object.Document) string {
	if doc == nil || doc.Content == nil {
		return ""
	}
	return *doc.Content
}

func indexByID(docs []*object.Document) map[string]*object.Document {
	m := make(map[string]*object.Document, len(docs))
	for _, d := range docs {
		m[d.ID] = d
	}
	return m
}

func collectToolCallIDs(turns []object.Turn) []string {
	var ids []string
	for _, t := range turns {
		ids = append(ids, t.ToolCallIDs...)
	}
	return ids
}
