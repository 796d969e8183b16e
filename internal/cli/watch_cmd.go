package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/rankcast/internal/cli/formatter"
	"github.com/alexanderramin/rankcast/internal/domain"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		every    time.Duration
		laneName string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of one lane's queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			lane, err := domain.ParseLane(laneName)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			m := newWatchModel(ctx, e, lane, every, app.now)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&every, "every", 30*time.Second, "Refresh interval")
	cmd.Flags().StringVarP(&laneName, "lane", "l", "standard", "Lane to show first")
	return cmd
}

type boardLoadedMsg struct {
	board *domain.Board
	err   error
}

type refreshTickMsg struct{}

type watchKeyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func defaultWatchKeys() watchKeyMap {
	return watchKeyMap{
		Next:    key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next lane")),
		Prev:    key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "prev lane")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// watchModel shows one lane as a bubbles table and reloads the board on
// an interval.
type watchModel struct {
	ctx    context.Context
	engine Engine
	lane   domain.Lane
	every  time.Duration
	now    func() time.Time
	keys   watchKeyMap

	board    *domain.Board
	table    table.Model
	err      error
	loadedAt time.Time
}

func newWatchModel(ctx context.Context, e Engine, lane domain.Lane, every time.Duration, now func() time.Time) watchModel {
	t := table.New(table.WithColumns(watchColumns()), table.WithFocused(true), table.WithHeight(20))
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(formatter.ColorHeader).Bold(true).
		BorderStyle(lipgloss.NormalBorder()).BorderForeground(formatter.ColorDim).BorderBottom(true)
	s.Selected = s.Selected.Foreground(formatter.ColorFg).Background(lipgloss.Color("#504945"))
	t.SetStyles(s)
	return watchModel{ctx: ctx, engine: e, lane: lane, every: every, now: now, keys: defaultWatchKeys(), table: t}
}

func watchColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "ID", Width: 8},
		{Title: "Title", Width: 36},
		{Title: "Projected", Width: 13},
		{Title: "In", Width: 18},
		{Title: "Chance", Width: 7},
		{Title: "", Width: 1},
	}
}

func (m watchModel) load() tea.Cmd {
	return func() tea.Msg {
		b, err := m.engine.Board(m.ctx)
		return boardLoadedMsg{board: b, err: err}
	}
}

func (m watchModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.every, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

func (m watchModel) Init() tea.Cmd {
	return m.load()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil

	case boardLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.board = msg.board
			m.loadedAt = m.now()
			m.table.SetRows(watchRows(m.board.Lane(m.lane), m.loadedAt))
		}
		return m, m.scheduleRefresh()

	case refreshTickMsg:
		return m, m.load()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			m.switchLane(1)
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.switchLane(-1)
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.load()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *watchModel) switchLane(delta int) {
	m.lane = domain.Lane((int(m.lane) + delta + domain.LaneCount) % domain.LaneCount)
	if m.board != nil {
		m.table.SetRows(watchRows(m.board.Lane(m.lane), m.now()))
	}
	m.table.SetCursor(0)
}

func (m watchModel) View() string {
	var b strings.Builder
	var tabs []string
	for l := domain.Lane(0); l < domain.LaneCount; l++ {
		name := strings.ToUpper(l.String())
		if l == m.lane {
			tabs = append(tabs, formatter.LaneStyle(l).Bold(true).Underline(true).Render(name))
		} else {
			tabs = append(tabs, formatter.Dim(name))
		}
	}
	b.WriteString(strings.Join(tabs, "  "))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(formatter.StyleRed.Render("error: " + m.err.Error()))
	case m.board == nil:
		b.WriteString(formatter.Dim("loading..."))
	default:
		b.WriteString(formatter.Dim(fmt.Sprintf("updated %s  ·  tab switch lane  ·  r refresh  ·  q quit",
			m.loadedAt.UTC().Format("15:04:05"))))
	}
	b.WriteString("\n")
	return b.String()
}

// watchRows builds unstyled cells; the table applies its own styles.
func watchRows(q *domain.LaneQueue, now time.Time) []table.Row {
	if q == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(q.Pending))
	for i, it := range q.Pending {
		projected, in, chance := "-", "-", "-"
		if it.PromoteTime != nil {
			projected = it.PromoteTime.UTC().Format("Jan 02 15:04")
			in = formatter.RelativeFrom(*it.PromoteTime, now)
		}
		if it.Probability != nil {
			chance = fmt.Sprintf("%.1f%%", *it.Probability*100)
		}
		flag := ""
		if it.HasOpenIssue {
			flag = formatter.FlagMarker
		}
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			strconv.FormatInt(it.ID, 10),
			formatter.Truncate(it.Artist+" - "+it.Title, 36),
			projected,
			in,
			chance,
			flag,
		})
	}
	return rows
}
