package assembler

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinayprograms/ctxmgr/internal/indexer"
	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/resolver"
	"github.com/vinayprograms/ctxmgr/internal/session"
	"github.com/vinayprograms/ctxmgr/internal/store"
)

func newFixture(t *testing.T) (*Assembler, store.Client, *session.Engine) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	c, err := store.NewBoltClient(store.BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	eng, err := session.CreateSession(context.Background(), c, nil, "s1", "be helpful")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	res := resolver.New("FS1", []resolver.Mount{
		{AgentPrefix: "/workspace", CanonicalPrefix: "/home/u/proj", FilesystemID: "FS1"},
	})
	return New(c, eng, res, nil), c, eng
}

func TestConsumeUserThenAssistant(t *testing.T) {
	a, _, _ := newFixture(t)
	ctx := context.Background()

	msgs := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello", Model: "test-model"},
	}
	r, err := a.Consume(ctx, msgs)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if r.Reset || r.Consumed != 2 {
		t.Fatalf("unexpected consume result: %+v", r)
	}
	if len(a.turns) != 1 || a.turns[0].Assistant != "hello" {
		t.Fatalf("unexpected turn state: %+v", a.turns)
	}
}

func TestConsumeToolResultActivates(t *testing.T) {
	a, _, eng := newFixture(t)
	ctx := context.Background()

	msgs := []Message{
		{Role: RoleUser, Content: "run it"},
		{Role: RoleToolResult, ToolCallID: "call-1", Tool: "read_file", Args: map[string]any{"path": "/x"}, ArgsDisplay: "/x", Content: "ok", Status: object.StatusOK},
	}
	if _, err := a.Consume(ctx, msgs); err != nil {
		t.Fatalf("consume: %v", err)
	}

	snap := eng.Snapshot()
	found := false
	for _, id := range snap.ActiveSet {
		if id == "call-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected call-1 active, got %+v", snap.ActiveSet)
	}
}

func TestConsumeIsIncremental(t *testing.T) {
	a, _, _ := newFixture(t)
	ctx := context.Background()

	full := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	}

	if _, err := a.Consume(ctx, full[:1]); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	r, err := a.Consume(ctx, full)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if r.Consumed != 2 {
		t.Fatalf("expected 2 new events consumed, got %d", r.Consumed)
	}
	if len(a.turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(a.turns))
	}
}

func TestConsumeSurvivesBackingArrayReallocation(t *testing.T) {
	a, _, _ := newFixture(t)
	ctx := context.Background()

	growing := make([]Message, 0, 1)
	growing = append(growing, Message{Role: RoleUser, Content: "a"})
	if _, err := a.Consume(ctx, growing); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	// Appending past capacity reallocates the backing array. A caller
	// that builds its message log this way must not look like a reset.
	growing = append(growing, Message{Role: RoleUser, Content: "b"}, Message{Role: RoleUser, Content: "c"})
	r, err := a.Consume(ctx, growing)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if r.Reset {
		t.Fatal("ordinary slice growth must not be treated as a reset")
	}
	if r.Consumed != 2 {
		t.Fatalf("expected 2 new events consumed, got %d", r.Consumed)
	}
	if len(a.turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(a.turns))
	}
}

func TestConsumeDetectsShorterArrayAsReset(t *testing.T) {
	a, _, _ := newFixture(t)
	ctx := context.Background()

	long := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleUser, Content: "c"},
	}
	if _, err := a.Consume(ctx, long); err != nil {
		t.Fatalf("consume: %v", err)
	}

	shorter := []Message{{Role: RoleUser, Content: "new"}}
	r, err := a.Consume(ctx, shorter)
	if err != nil {
		t.Fatalf("consume after reset: %v", err)
	}
	if !r.Reset {
		t.Fatal("expected cursor reset on a shorter replacement array")
	}
	if len(a.turns) != 3 {
		t.Fatal("reset must not replay into session state")
	}
}

func TestRenderProducesStablePrefixAndActiveBlock(t *testing.T) {
	a, c, eng := newFixture(t)
	ctx := context.Background()
	ix := indexer.New(c, nil)

	src := object.NewFileSource("FS1", "/home/u/proj/src/main.ts")
	_, doc, err := ix.IndexFile(ctx, src, []byte("console.log(1)"))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	eng.Encounter(ctx, doc.ID)
	eng.PromoteToPool(ctx, doc.ID)
	eng.Activate(ctx, doc.ID)

	msgs := []Message{{Role: RoleUser, Content: "look at main.ts"}}
	if _, err := a.Consume(ctx, msgs); err != nil {
		t.Fatalf("consume: %v", err)
	}

	rendered, err := a.Render(ctx)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(rendered) < 4 {
		t.Fatalf("expected at least system+pool+chat+active, got %d messages", len(rendered))
	}
	if rendered[0].Role != "system" || rendered[0].Content != "be helpful" {
		t.Fatalf("unexpected system block: %+v", rendered[0])
	}
	if !strings.Contains(rendered[1].Content, "path=/workspace/src/main.ts") {
		t.Fatalf("expected display path translated through the mount, got: %s", rendered[1].Content)
	}

	var sawActive bool
	for _, m := range rendered {
		if strings.HasPrefix(m.Content, "ACTIVE_CONTENT id="+doc.ID) {
			sawActive = true
		}
	}
	if !sawActive {
		t.Fatal("expected an ACTIVE_CONTENT block for the activated file")
	}
}
