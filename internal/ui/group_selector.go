package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

const (
	groupListHeight       = 8
	groupDetailLabelWidth = 13
)

// GroupModel represents the bubbletea model for security group selection
type GroupModel struct {
	groups       []pkgtypes.Group
	filtered     []pkgtypes.Group
	cursor       int
	offset       int
	search       string
	selected     *pkgtypes.Group
	quitting     bool
	cancelled    bool
	termWidth    int
	contentWidth int
}

// NewGroupModel creates a new security group selector model
func NewGroupModel(groups []pkgtypes.Group) GroupModel {
	m := GroupModel{
		groups:    groups,
		filtered:  groups,
		termWidth: 80,
	}
	m.calculateWidth()
	return m
}

func (m *GroupModel) calculateWidth() {
	m.contentWidth = m.termWidth - 2
	if m.contentWidth < minWidth {
		m.contentWidth = minWidth
	}
	if m.contentWidth > maxWidth {
		m.contentWidth = maxWidth
	}
}

// Init implements tea.Model
func (m GroupModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update implements tea.Model
func (m GroupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.calculateWidth()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			m.cancelled = true
			return m, tea.Quit

		case tea.KeyEnter:
			if len(m.filtered) > 0 {
				m.selected = &m.filtered[m.cursor]
				m.quitting = true
				return m, tea.Quit
			}

		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}

		case tea.KeyDown:
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				if m.cursor >= m.offset+groupListHeight {
					m.offset = m.cursor - groupListHeight + 1
				}
			}

		case tea.KeyBackspace:
			if len(m.search) > 0 {
				m.search = m.search[:len(m.search)-1]
				m.filter()
			}

		case tea.KeyRunes:
			m.search += string(msg.Runes)
			m.filter()
		}
	}

	return m, nil
}

func (m *GroupModel) filter() {
	if m.search == "" {
		m.filtered = m.groups
	} else {
		query := strings.ToLower(m.search)
		m.filtered = nil
		for _, g := range m.groups {
			if strings.Contains(strings.ToLower(g.Name), query) ||
				strings.Contains(strings.ToLower(g.ID), query) ||
				strings.Contains(strings.ToLower(g.VPCID), query) {
				m.filtered = append(m.filtered, g)
			}
		}
	}
	if m.cursor >= len(m.filtered) {
		if len(m.filtered) > 0 {
			m.cursor = len(m.filtered) - 1
		} else {
			m.cursor = 0
		}
	}
	m.offset = 0
}

// View implements tea.Model
func (m GroupModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(boxTop(w))
	sb.WriteString(boxRow(NameStyle.Render(" > "+m.search), w))
	sb.WriteString(boxRow("", w))

	visibleEnd := m.offset + groupListHeight
	if visibleEnd > len(m.filtered) {
		visibleEnd = len(m.filtered)
	}
	for i := m.offset; i < visibleEnd; i++ {
		sb.WriteString(m.renderRow(i))
	}
	for i := len(m.filtered); i < m.offset+groupListHeight; i++ {
		sb.WriteString(boxRow("", w))
	}

	sb.WriteString(boxRow("", w))
	sb.WriteString(boxRule(w))
	sb.WriteString(m.renderDetails())
	sb.WriteString(boxBottom(w))

	count := fmt.Sprintf("  %d/%d security groups", len(m.filtered), len(m.groups))
	sb.WriteString(statusBar(w, count, "[Enter:select] [Esc:cancel]"))

	return sb.String()
}

func (m GroupModel) renderRow(idx int) string {
	g := m.filtered[idx]

	cursor := "   "
	if idx == m.cursor {
		cursor = " > "
	}

	line := cursor +
		IDStyle.Render(padRight(g.ID, 21)) + "  " +
		NameStyle.Render(padRight(g.Name, 26)) + "  " +
		MutedStyle.Render(padRight(g.VPCID, 14))

	return boxRow(line, m.contentWidth)
}

func (m GroupModel) renderDetails() string {
	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(boxRow(HeaderStyle.Render(" Security Group Details"), w))
	sb.WriteString(boxRow(MutedStyle.Render(" "+strings.Repeat("─", 20)), w))

	if len(m.filtered) == 0 {
		sb.WriteString(boxRow(MutedStyle.Render(" No security groups found"), w))
		for i := 0; i < 5; i++ {
			sb.WriteString(boxRow("", w))
		}
		sb.WriteString(boxRow("", w))
		return sb.String()
	}

	g := m.filtered[m.cursor]
	details := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"ID:", g.ID, IDStyle},
		{"Name:", g.Name, NameStyle},
		{"VPC:", g.VPCID, ValueStyle},
		{"Description:", g.Description, MutedStyle},
		{"Ingress:", fmt.Sprintf("%d grants", len(g.Ingress)), ValueStyle},
		{"Egress:", fmt.Sprintf("%d grants", len(g.Egress)), ValueStyle},
	}

	for _, d := range details {
		value := d.value
		maxValueWidth := w - 1 - groupDetailLabelWidth
		if runewidth.StringWidth(value) > maxValueWidth {
			value = runewidth.Truncate(value, maxValueWidth, "...")
		}
		line := MutedStyle.Render(" "+padRight(d.label, groupDetailLabelWidth)) + d.style.Render(value)
		sb.WriteString(boxRow(line, w))
	}

	sb.WriteString(boxRow("", w))
	return sb.String()
}

// SelectGroup displays an interactive selector for security groups and
// returns the chosen one.
func SelectGroup(groups []pkgtypes.Group) (*pkgtypes.Group, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("no security groups available")
	}

	m := NewGroupModel(groups)
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running selector: %w", err)
	}

	result := finalModel.(GroupModel)
	if result.cancelled {
		return nil, fmt.Errorf("selection cancelled")
	}

	return result.selected, nil
}
