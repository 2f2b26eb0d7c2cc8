// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CilekciGs/mycroft-gui-fixed/connection"
	"github.com/CilekciGs/mycroft-gui-fixed/skillview"
)

// Messages sent into the program from the connection and view
// signal subscriptions.
type (
	primaryStatusMsg connection.Status
	guiStatusMsg     connection.Status
	assistantMsg     connection.State
	skillListMsg     struct{}
	sessionMsg       struct{ skillID string }
	notUnderstoodMsg struct{}
	fallbackMsg      connection.FallbackText
	delegateEventMsg struct{ line string }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	statusUpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusDnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	skillStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	eventStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// maxEventLines bounds the event log pane.
const maxEventLines = 8

// model is the viewer's bubbletea model: a status header, the
// active-skill stack with the selected skill's session data, a short
// event log, and an utterance input line.
type model struct {
	manager *connection.Manager
	view    *skillview.View

	spinner  spinner.Model
	input    textinput.Model
	width    int
	height   int
	selected int

	primaryStatus connection.Status
	guiStatus     connection.Status
	assistant     connection.State
	events        []string
}

func newModel(manager *connection.Manager, view *skillview.View) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	input := textinput.New()
	input.Placeholder = "type an utterance and press enter"
	input.Prompt = "> "
	input.Focus()

	return model{
		manager: manager,
		view:    view,
		spinner: sp,
		input:   input,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		return m, nil

	case tea.KeyMsg:
		switch message.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down":
			if m.selected < m.view.ActiveSkills().Len()-1 {
				m.selected++
			}
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.manager.SendUtterance(text)
				m.input.Reset()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(message)
		return m, cmd

	case primaryStatusMsg:
		m.primaryStatus = connection.Status(message)
		return m, nil

	case guiStatusMsg:
		m.guiStatus = connection.Status(message)
		return m, nil

	case assistantMsg:
		m.assistant = connection.State(message)
		return m, nil

	case skillListMsg:
		if limit := m.view.ActiveSkills().Len() - 1; m.selected > limit {
			m.selected = max(0, limit)
		}
		return m, nil

	case sessionMsg:
		return m, nil

	case notUnderstoodMsg:
		return m.logEvent("assistant did not understand"), nil

	case fallbackMsg:
		text, _ := message.Data["utterance"].(string)
		if text == "" {
			text = fmt.Sprintf("%v", message.Data)
		}
		return m.logEvent("speak: " + text), nil

	case delegateEventMsg:
		return m.logEvent(message.line), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(message)
		return m, cmd
	}

	return m, nil
}

func (m model) logEvent(line string) model {
	m.events = append(m.events, line)
	if len(m.events) > maxEventLines {
		m.events = m.events[len(m.events)-maxEventLines:]
	}
	return m
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mycroft-viewer"))
	b.WriteString("  ")
	b.WriteString(m.renderStatus("core", m.primaryStatus))
	b.WriteString("  ")
	b.WriteString(m.renderStatus("gui", m.guiStatus))
	if m.assistant.IsListening {
		b.WriteString("  " + eventStyle.Render("listening"))
	}
	if m.assistant.IsSpeaking {
		b.WriteString("  " + eventStyle.Render("speaking"))
	}
	if m.assistant.CurrentSkillID != "" {
		b.WriteString("  " + dimStyle.Render("handler: "+m.assistant.CurrentSkillID))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderSkills())
	b.WriteString("\n")
	b.WriteString(m.renderEvents())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("up/down select skill · enter send · esc quit"))
	return b.String()
}

func (m model) renderStatus(label string, status connection.Status) string {
	text := label + ": " + status.String()
	if status == connection.StatusOpen {
		return statusUpStyle.Render(text)
	}
	if status == connection.StatusConnecting {
		return m.spinner.View() + statusDnStyle.Render(text)
	}
	return statusDnStyle.Render(text)
}

// renderSkills draws the active-skill stack, topmost first, with the
// selected skill's session properties inlined beneath it.
func (m model) renderSkills() string {
	skills := m.view.ActiveSkills().Skills()
	if len(skills) == 0 {
		return dimStyle.Render("  no active skills")
	}

	var b strings.Builder
	for i, skillID := range skills {
		marker := "  "
		style := skillStyle
		if i == m.selected {
			marker = "» "
			style = selectedStyle
		}
		b.WriteString(marker + style.Render(skillID))
		b.WriteString("\n")
		if i == m.selected {
			b.WriteString(m.renderSession(skillID))
		}
	}
	return b.String()
}

func (m model) renderSession(skillID string) string {
	data := m.view.Sessions().DataForSkill(skillID)
	if data == nil {
		return ""
	}
	properties := data.Properties()
	if len(properties) == 0 {
		return dimStyle.Render("      (no session data)") + "\n"
	}

	var b strings.Builder
	for _, property := range properties {
		value, _ := data.Value(property)
		b.WriteString(dimStyle.Render("      " + property + " = " + renderValue(value)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderValue flattens a session value to one line. Row collections
// render as their field schema and row count rather than full
// contents.
func renderValue(value any) string {
	switch value := value.(type) {
	case *skillview.RowModel:
		return fmt.Sprintf("[%d rows: %s]", value.Len(), strings.Join(value.Fields(), ", "))
	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%s: %v", key, value[key])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", value)
	}
}

func (m model) renderEvents() string {
	if len(m.events) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range m.events {
		b.WriteString(eventStyle.Render("· " + line))
		b.WriteString("\n")
	}
	return b.String()
}
