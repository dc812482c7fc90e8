package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vinayprograms/ctxmgr/internal/resolver"
	"github.com/vinayprograms/ctxmgr/internal/session"
	"github.com/vinayprograms/ctxmgr/internal/store"
)

// debounceWindow mirrors the live pager's settle delay before re-reading
// a file that just changed.
const debounceWindow = 100 * time.Millisecond

// Model is a bubbletea program that re-renders a session's three tiers
// whenever the underlying store file changes on disk.
type Model struct {
	viewport viewport.Model
	ready    bool

	store     store.Client
	resolver  *resolver.Resolver
	sessionID string
	storePath string
	watcher   *fsnotify.Watcher

	content  string
	lastErr  error
	width    int
	height   int
}

// New builds a Model watching storePath for changes and rendering
// sessionID's current state on every change.
func New(client store.Client, res *resolver.Resolver, sessionID, storePath string) (*Model, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tui: new watcher: %w", err)
	}
	if err := watcher.Add(storePath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("tui: watch %s: %w", storePath, err)
	}
	return &Model{
		store:     client,
		resolver:  res,
		sessionID: sessionID,
		storePath: storePath,
		watcher:   watcher,
	}, nil
}

// Run starts the interactive inspector. Blocks until the user quits.
func (m *Model) Run() error {
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err := prog.Run()
	m.watcher.Close()
	return err
}

type refreshMsg struct {
	content string
	err     error
}

type fileChangedMsg struct{}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.watchFile())
}

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		content, err := m.render()
		return refreshMsg{content: content, err: err}
	}
}

func (m *Model) watchFile() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					time.Sleep(debounceWindow)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 2
		}
		m.viewport.SetContent(m.content)
		return m, nil

	case refreshMsg:
		m.lastErr = msg.err
		m.content = msg.content
		if m.ready {
			m.viewport.SetContent(m.content)
		}
		return m, nil

	case fileChangedMsg:
		return m, tea.Batch(m.refreshCmd(), m.watchFile())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if !m.ready {
		return "initializing...\n"
	}
	header := titleStyle.Render(fmt.Sprintf(" ctxmgr inspector — %s ", m.sessionID))
	footer := helpStyle.Render("q quit · r refresh")
	if m.lastErr != nil {
		footer = errorStyle.Render(m.lastErr.Error())
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m *Model) render() (string, error) {
	ctx := context.Background()
	eng, err := session.Resume(ctx, m.store, nil, m.sessionID)
	if err != nil {
		return "", err
	}
	snap := eng.Snapshot()
	chat, _ := m.store.Get(ctx, eng.ChatID())

	var b strings.Builder
	writeSet(&b, "session_index", snap.SessionIndex, dimStyle)
	writeSet(&b, "metadata_pool", snap.MetadataPool, dimStyle)
	writeSet(&b, "active_set", snap.ActiveSet, activeStyle)
	writeSet(&b, "pinned_set", snap.PinnedSet, pinnedStyle)

	if chat != nil {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("chat (%d turns)", chat.TurnCount)) + "\n\n")
	}

	width := m.width - 2
	if width <= 0 {
		width = 80
	}
	return wordwrap.String(b.String(), width), nil
}

func writeSet(b *strings.Builder, label string, ids []string, style interface{ Render(...string) string }) {
	b.WriteString(sectionStyle.Render(fmt.Sprintf("%s (%d)", label, len(ids))) + "\n")
	for _, id := range ids {
		b.WriteString(style.Render("  "+id) + "\n")
	}
	b.WriteString("\n")
}
