package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("10")).Bold(true)
	descStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const logo = `
  ███████   ██████   ██████████
 ███░░░░░  ███░░███ ░░███░░░░███
░░█████   ░███ ░███  ░███   ░███
 ░░░░░███ ░███ ░███  ░██████████
 ███████  ░░██████   ░███ ░░███
░░░░░░░    ░░░░███   █████ ░░███
           ██████   ░░░░░   ░░░
          ░░░░░░
`

type menuEntry struct {
	command string
	desc    string
}

type MenuModel struct {
	entries  []menuEntry
	cursor   int
	selected string
	quitting bool
}

func NewMenuModel() MenuModel {
	return MenuModel{
		entries: []menuEntry{
			{"init", "create the database and import a seed"},
			{"generate", "generate the period's tasks"},
			{"list-tasks", "list tasks"},
			{"summary", "period totals by state and team"},
			{"absences", "reassign work for active absences"},
			{"risk", "sweep presented tasks for missing receipts"},
			{"serve", "start the HTTP API"},
			{"status", "current period at a glance"},
		},
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}

		case "enter":
			m.selected = m.entries[m.cursor].command
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n\n")

	for i, entry := range m.entries {
		line := fmt.Sprintf("%-12s", entry.command) + descStyle.Render(entry.desc)
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			s.WriteString(itemStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n(use arrow keys or j/k to navigate, enter to select, q to quit)\n")

	return s.String()
}

func (m MenuModel) Selected() string {
	return m.selected
}

func RunMenu() (string, error) {
	m := NewMenuModel()
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}
	return finalModel.(MenuModel).Selected(), nil
}
