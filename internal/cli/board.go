package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mdboard/pkg/models"
)

type boardModel struct {
	column int
	row    int
	width  int
	height int

	// Data.
	boardName string
	columns   map[models.Status][]models.Task
	activity  *activitySnapshot

	// State.
	message string
	loading bool
	err     error
}

type activitySnapshot struct {
	created   int
	moved     int
	completed int
	deleted   int
}

// boardLoadedMsg carries loaded data back to the model.
type boardLoadedMsg struct {
	boardName string
	columns   map[models.Status][]models.Task
	activity  *activitySnapshot
	err       error
}

// taskMovedMsg reports the outcome of a move started from the board.
type taskMovedMsg struct {
	task *models.Task
	err  error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().Reverse(true)

	statusIdeation     = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusBacklog      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusPlanning     = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	statusImplementing = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusUAT          = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	statusDone         = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newBoardModel() boardModel {
	return boardModel{
		loading: true,
		columns: make(map[models.Status][]models.Task),
	}
}

func (m boardModel) Init() tea.Cmd {
	return loadBoard
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.column = (m.column + 1) % len(models.Statuses)
			m.row = 0
			return m, nil
		case "shift+tab", "left", "h":
			m.column = (m.column - 1 + len(models.Statuses)) % len(models.Statuses)
			m.row = 0
			return m, nil
		case "down", "j":
			if m.row < len(m.currentColumn())-1 {
				m.row++
			}
			return m, nil
		case "up", "k":
			if m.row > 0 {
				m.row--
			}
			return m, nil
		case ">", "]":
			return m, m.moveSelected(1)
		case "<", "[":
			return m, m.moveSelected(-1)
		case "r":
			m.loading = true
			return m, loadBoard
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.boardName = msg.boardName
		m.columns = msg.columns
		m.activity = msg.activity
		m.err = nil
		if n := len(m.currentColumn()); m.row >= n {
			m.row = max(n-1, 0)
		}
		return m, nil

	case taskMovedMsg:
		if msg.err != nil {
			m.message = msg.err.Error()
			return m, nil
		}
		m.message = fmt.Sprintf("Moved %q to %s", msg.task.Title, msg.task.Status)
		return m, loadBoard
	}

	return m, nil
}

func (m boardModel) currentStatus() models.Status {
	return models.Statuses[m.column]
}

func (m boardModel) currentColumn() []models.Task {
	return m.columns[m.currentStatus()]
}

// moveSelected returns a command moving the selected task one column in
// direction dir, appending it to the destination.
func (m boardModel) moveSelected(dir int) tea.Cmd {
	tasks := m.currentColumn()
	if len(tasks) == 0 || m.row >= len(tasks) {
		return nil
	}
	target := m.column + dir
	if target < 0 || target >= len(models.Statuses) {
		return nil
	}
	task := tasks[m.row]
	to := models.Statuses[target]
	return func() tea.Msg {
		if Board == nil {
			return taskMovedMsg{err: errNotInitialized("board")}
		}
		moved, err := Board.MoveTask(task.Status, task.Filename, to, nil)
		return taskMovedMsg{task: moved, err: err}
	}
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	name := m.boardName
	if name == "" {
		name = "Board"
	}
	title := titleStyle.Render(" " + name + " ")
	help := helpStyle.Render("tab/←/→: column | ↑/↓: task | </>: move task | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading board...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if colWidth := availableWidth / len(models.Statuses); colWidth >= 22 {
		// Horizontal layout: one panel per column.
		panels := make([]string, len(models.Statuses))
		for i := range models.Statuses {
			panels[i] = m.applyPanelStyle(i, m.renderColumn(i, colWidth-4), colWidth-4)
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, panels...)
	} else {
		// Narrow layout: the active column with a tab strip above it.
		panelWidth := max(availableWidth-4, 20)
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.renderTabs(),
			m.applyPanelStyle(m.column, m.renderColumn(m.column, panelWidth), panelWidth),
		)
	}

	footer := m.renderActivity()
	if m.message != "" {
		footer += "\n" + errorStyle.Render(m.message)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s", title, body, footer, help)
}

func (m boardModel) applyPanelStyle(column int, content string, width int) string {
	style := panelStyle
	if m.column == column {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m boardModel) renderTabs() string {
	tabs := make([]string, len(models.Statuses))
	for i, status := range models.Statuses {
		label := fmt.Sprintf(" %s %d ", status, len(m.columns[status]))
		if i == m.column {
			label = selectedStyle.Render(label)
		}
		tabs[i] = label
	}
	return strings.Join(tabs, "")
}

func (m boardModel) renderColumn(column, width int) string {
	status := models.Statuses[column]
	tasks := m.columns[status]

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", strings.ToUpper(string(status)), len(tasks))))
	b.WriteString("\n")

	if len(tasks) == 0 {
		b.WriteString(helpStyle.Render("empty"))
		return b.String()
	}

	for i, t := range tasks {
		line := truncate(t.Title, width)
		switch {
		case column == m.column && i == m.row:
			line = selectedStyle.Render(line)
		default:
			line = styleForStatus(status).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m boardModel) renderActivity() string {
	if m.activity == nil {
		return helpStyle.Render("No activity recorded.")
	}
	a := m.activity
	return fmt.Sprintf("Last 7 days: %d created, %d moved, %d completed, %d deleted",
		a.created, a.moved, a.completed, a.deleted)
}

func styleForStatus(status models.Status) lipgloss.Style {
	switch status {
	case models.StatusIdeation:
		return statusIdeation
	case models.StatusBacklog:
		return statusBacklog
	case models.StatusPlanning:
		return statusPlanning
	case models.StatusImplementing:
		return statusImplementing
	case models.StatusUAT:
		return statusUAT
	case models.StatusDone:
		return statusDone
	default:
		return lipgloss.NewStyle()
	}
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func loadBoard() tea.Msg {
	result := boardLoadedMsg{
		columns: make(map[models.Status][]models.Task),
	}

	if Board != nil {
		tasks, err := Board.ListTasks()
		if err != nil {
			result.err = fmt.Errorf("loading tasks: %w", err)
			return result
		}
		for _, t := range tasks {
			result.columns[t.Status] = append(result.columns[t.Status], t)
		}

		if cfg, err := Board.GetConfig(); err == nil {
			result.boardName = cfg.BoardName()
		}
	}

	if ActivityCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		activity, err := ActivityCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading activity: %w", err)
			return result
		}
		result.activity = &activitySnapshot{
			created:   activity.TasksCreated,
			moved:     activity.TasksMoved,
			completed: activity.TasksCompleted,
			deleted:   activity.TasksDeleted,
		}
	}

	return result
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interactive terminal view of the board",
	Long: `Launch an interactive terminal view of the current board with one panel
per column and a summary of the last week's activity.

Navigate columns with Tab or the arrow keys, select tasks with up/down, move
the selected task with < and >, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		p := tea.NewProgram(newBoardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
