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
	lbListHeight       = 8
	lbDetailLabelWidth = 12
)

// LBModel represents the bubbletea model for load balancer selection
type LBModel struct {
	lbs          []pkgtypes.LoadBalancer
	filtered     []pkgtypes.LoadBalancer
	cursor       int
	offset       int
	search       string
	selected     *pkgtypes.LoadBalancer
	quitting     bool
	cancelled    bool
	termWidth    int
	contentWidth int
}

// NewLBModel creates a new load balancer selector model
func NewLBModel(lbs []pkgtypes.LoadBalancer) LBModel {
	m := LBModel{
		lbs:       lbs,
		filtered:  lbs,
		termWidth: 80,
	}
	m.calculateWidth()
	return m
}

func (m *LBModel) calculateWidth() {
	m.contentWidth = m.termWidth - 2
	if m.contentWidth < minWidth {
		m.contentWidth = minWidth
	}
	if m.contentWidth > maxWidth {
		m.contentWidth = maxWidth
	}
}

// Init implements tea.Model
func (m LBModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update implements tea.Model
func (m LBModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
				if m.cursor >= m.offset+lbListHeight {
					m.offset = m.cursor - lbListHeight + 1
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

func (m *LBModel) filter() {
	if m.search == "" {
		m.filtered = m.lbs
	} else {
		query := strings.ToLower(m.search)
		m.filtered = nil
		for _, lb := range m.lbs {
			if strings.Contains(strings.ToLower(lb.Name), query) ||
				strings.Contains(strings.ToLower(lb.DNSName), query) {
				m.filtered = append(m.filtered, lb)
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
func (m LBModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(boxTop(w))
	sb.WriteString(boxRow(NameStyle.Render(" > "+m.search), w))
	sb.WriteString(boxRow("", w))

	visibleEnd := m.offset + lbListHeight
	if visibleEnd > len(m.filtered) {
		visibleEnd = len(m.filtered)
	}
	for i := m.offset; i < visibleEnd; i++ {
		sb.WriteString(m.renderRow(i))
	}
	for i := len(m.filtered); i < m.offset+lbListHeight; i++ {
		sb.WriteString(boxRow("", w))
	}

	sb.WriteString(boxRow("", w))
	sb.WriteString(boxRule(w))
	sb.WriteString(m.renderDetails())
	sb.WriteString(boxBottom(w))

	count := fmt.Sprintf("  %d/%d load balancers", len(m.filtered), len(m.lbs))
	sb.WriteString(statusBar(w, count, "[Enter:select] [Esc:cancel]"))

	return sb.String()
}

func (m LBModel) renderRow(idx int) string {
	lb := m.filtered[idx]

	cursor := "   "
	if idx == m.cursor {
		cursor = " > "
	}

	line := cursor +
		NameStyle.Render(padRight(lb.Name, 30)) + "  " +
		MutedStyle.Render(padRight(lb.Scheme, 16)) + "  " +
		ValueStyle.Render(padRight(fmt.Sprintf("%d instances", len(lb.InstanceIDs)), 14))

	return boxRow(line, m.contentWidth)
}

func (m LBModel) renderDetails() string {
	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(boxRow(HeaderStyle.Render(" Load Balancer Details"), w))
	sb.WriteString(boxRow(MutedStyle.Render(" "+strings.Repeat("─", 20)), w))

	if len(m.filtered) == 0 {
		sb.WriteString(boxRow(MutedStyle.Render(" No load balancers found"), w))
		for i := 0; i < 6; i++ {
			sb.WriteString(boxRow("", w))
		}
		sb.WriteString(boxRow("", w))
		return sb.String()
	}

	lb := m.filtered[m.cursor]
	listeners := make([]string, 0, len(lb.Listeners))
	for _, l := range lb.Listeners {
		listeners = append(listeners, fmt.Sprintf("%s %d->%d", l.Protocol, l.Port, l.InstancePort))
	}

	details := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"Name:", lb.Name, NameStyle},
		{"Scheme:", lb.Scheme, MutedStyle},
		{"DNS:", lb.DNSName, ValueStyle},
		{"VPC:", lb.VPCID, IDStyle},
		{"Zones:", strings.Join(lb.AvailabilityZones, ", "), ValueStyle},
		{"Instances:", strings.Join(lb.InstanceIDs, ", "), IDStyle},
		{"Listeners:", strings.Join(listeners, ", "), MutedStyle},
	}

	for _, d := range details {
		value := d.value
		maxValueWidth := w - 1 - lbDetailLabelWidth
		if runewidth.StringWidth(value) > maxValueWidth {
			value = runewidth.Truncate(value, maxValueWidth, "...")
		}
		line := MutedStyle.Render(" "+padRight(d.label, lbDetailLabelWidth)) + d.style.Render(value)
		sb.WriteString(boxRow(line, w))
	}

	sb.WriteString(boxRow("", w))
	return sb.String()
}

// SelectLoadBalancer displays an interactive selector for classic load
// balancers and returns the chosen one.
func SelectLoadBalancer(lbs []pkgtypes.LoadBalancer) (*pkgtypes.LoadBalancer, error) {
	if len(lbs) == 0 {
		return nil, fmt.Errorf("no load balancers available")
	}

	m := NewLBModel(lbs)
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running selector: %w", err)
	}

	result := finalModel.(LBModel)
	if result.cancelled {
		return nil, fmt.Errorf("selection cancelled")
	}

	return result.selected, nil
}
