// Package ui implements the interactive port list. It talks to the port
// registry only through Children, Refresh, Kill, ToggleAutoRefresh and
// change subscriptions.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/palomafofana/port-watcher/internal/log"
	"github.com/palomafofana/port-watcher/internal/registry"
	"github.com/palomafofana/port-watcher/internal/scanner"
)

type (
	portsChangedMsg struct{}
	itemsMsg        []registry.Item
	refreshedMsg    struct{}
	killResultMsg   struct {
		port scanner.Port
		mode scanner.KillMode
		ok   bool
	}
)

type pendingKill struct {
	item registry.Item
	mode scanner.KillMode
}

// Model is the bubbletea model for the port list.
type Model struct {
	ctx         context.Context
	reg         *registry.Registry
	changes     chan struct{}
	unsubscribe func()
	defaultMode scanner.KillMode

	items     []registry.Item
	visible   []registry.Item
	cursor    int
	filter    textinput.Model
	filtering bool
	pending   *pendingKill
	status    string
	statusErr bool

	keys keyMap
	help help.Model
}

// New subscribes to reg and returns a model whose enter key kills with defaultMode.
// Call Close when the program exits.
func New(ctx context.Context, reg *registry.Registry, defaultMode scanner.KillMode) Model {
	changes := make(chan struct{}, 1)
	unsubscribe := reg.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default: // a reload is already queued
		}
	})

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "port, process or pid"

	return Model{
		ctx:         ctx,
		reg:         reg,
		changes:     changes,
		unsubscribe: unsubscribe,
		defaultMode: defaultMode,
		filter:      filter,
		keys:        defaultKeyMap(),
		help:        help.New(),
	}
}

// Close stops listening for registry changes.
func (m Model) Close() {
	m.unsubscribe()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.loadItems())
}

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return portsChangedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) loadItems() tea.Cmd {
	return func() tea.Msg {
		return itemsMsg(m.reg.Children(m.ctx))
	}
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		m.reg.Refresh(m.ctx)
		return refreshedMsg{}
	}
}

func (m Model) kill(p pendingKill) tea.Cmd {
	return func() tea.Msg {
		ok := m.reg.Kill(m.ctx, p.item.Port.PID, p.mode)
		return killResultMsg{port: p.item.Port, mode: p.mode, ok: ok}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case portsChangedMsg:
		return m, tea.Batch(m.loadItems(), m.waitForChange())

	case itemsMsg:
		m.items = msg
		m.applyFilter()
		return m, nil

	case refreshedMsg:
		m.setStatus("Ports refreshed", false)
		return m, nil

	case killResultMsg:
		if msg.ok {
			m.setStatus(fmt.Sprintf("Killed %s (PID %d) on port %d", msg.port.Process, msg.port.PID, msg.port.Port), false)
		} else {
			m.setStatus(fmt.Sprintf("Failed to kill process %d", msg.port.PID), true)
		}
		log.Debug(log.CatUI, "kill finished", "pid", msg.port.PID, "mode", msg.mode, "ok", msg.ok)
		return m, nil

	case tea.KeyMsg:
		switch {
		case m.pending != nil:
			return m.updateConfirm(msg)
		case m.filtering:
			return m.updateFilter(msg)
		default:
			return m.updateList(msg)
		}
	}

	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := *m.pending
	switch {
	case key.Matches(msg, m.keys.Confirm):
	case key.Matches(msg, m.keys.Graceful):
		p.mode = scanner.ModeGraceful
	case key.Matches(msg, m.keys.Force):
		p.mode = scanner.ModeForce
	case key.Matches(msg, m.keys.Cancel):
		m.pending = nil
		m.setStatus("Kill cancelled", false)
		return m, nil
	default:
		return m, nil
	}

	m.pending = nil
	m.setStatus(fmt.Sprintf("Killing PID %d (%s)…", p.item.Port.PID, p.mode), false)
	return m, m.kill(p)
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Kill):
		m.askKill(m.defaultMode)
	case key.Matches(msg, m.keys.Graceful):
		m.askKill(scanner.ModeGraceful)
	case key.Matches(msg, m.keys.Force):
		m.askKill(scanner.ModeForce)
	case key.Matches(msg, m.keys.Refresh):
		m.setStatus("Refreshing…", false)
		return m, m.refresh()
	case key.Matches(msg, m.keys.AutoRefresh):
		if m.reg.ToggleAutoRefresh() {
			m.setStatus(fmt.Sprintf("Auto refresh every %s", m.reg.Interval()), false)
		} else {
			m.setStatus("Auto refresh off", false)
		}
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) askKill(mode scanner.KillMode) {
	item, ok := m.selected()
	if !ok {
		return
	}
	m.pending = &pendingKill{item: item, mode: mode}
}

func (m Model) selected() (registry.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return registry.Item{}, false
	}
	return m.visible[m.cursor], true
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// itemSource adapts items for fuzzy matching.
type itemSource []registry.Item

func (s itemSource) String(i int) string {
	p := s[i].Port
	return fmt.Sprintf("%d %s %d %s", p.Port, p.Process, p.PID, p.Protocol)
}

func (s itemSource) Len() int { return len(s) }

func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filter.Value())
	if query == "" {
		m.visible = m.items
	} else {
		matches := fuzzy.FindFrom(query, itemSource(m.items))
		m.visible = make([]registry.Item, 0, len(matches))
		for _, match := range matches {
			m.visible = append(m.visible, m.items[match.Index])
		}
	}

	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

func (m Model) View() string {
	var b strings.Builder

	title := "Listening ports"
	if m.reg.AutoRefreshEnabled() {
		title += dimStyle.Render(fmt.Sprintf("  (auto refresh every %s)", m.reg.Interval()))
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		if len(m.items) == 0 {
			b.WriteString(dimStyle.Render("No listening ports found."))
		} else {
			b.WriteString(dimStyle.Render("No ports match the filter."))
		}
		b.WriteString("\n")
	}
	for i, item := range m.visible {
		line := portStyle.Render(item.Label) + " " + item.Description + " " + dimStyle.Render(item.Port.Protocol)
		if i == m.cursor {
			line = selectedStyle.Render("> " + item.Label + "  " + item.Description + "  " + item.Port.Protocol)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.filtering || m.filter.Value() != "" {
		b.WriteString("\n")
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	if m.pending != nil {
		p := m.pending.item.Port
		b.WriteString("\n")
		b.WriteString(confirmStyle.Render(fmt.Sprintf(
			"Kill process %s (PID: %d) on port %d? [y] %s  [g] graceful  [f] force  [n] cancel",
			p.Process, p.PID, p.Port, m.pending.mode)))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(successStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Run starts the interactive list and blocks until the user quits.
func Run(ctx context.Context, reg *registry.Registry, defaultMode scanner.KillMode) error {
	m := New(ctx, reg, defaultMode)
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
