package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

const profileListHeight = 10

// ProfileModel represents the bubbletea model for profile selection
type ProfileModel struct {
	profiles      []pkgtypes.AWSProfile
	filtered      []pkgtypes.AWSProfile
	cursor        int
	offset        int
	search        string
	selected      *pkgtypes.AWSProfile
	quitting      bool
	cancelled     bool
	termWidth     int
	contentWidth  int
	activeProfile string
}

// NewProfileModel creates a new profile selector model
func NewProfileModel(profiles []pkgtypes.AWSProfile, activeProfile string) ProfileModel {
	m := ProfileModel{
		profiles:      profiles,
		filtered:      profiles,
		termWidth:     80,
		activeProfile: activeProfile,
	}
	m.calculateWidth()
	return m
}

func (m *ProfileModel) calculateWidth() {
	m.contentWidth = m.termWidth - 2
	if m.contentWidth < minWidth {
		m.contentWidth = minWidth
	}
	if m.contentWidth > maxWidth {
		m.contentWidth = maxWidth
	}
}

// Init implements tea.Model
func (m ProfileModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update implements tea.Model
func (m ProfileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
				if m.cursor >= m.offset+profileListHeight {
					m.offset = m.cursor - profileListHeight + 1
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

func (m *ProfileModel) filter() {
	if m.search == "" {
		m.filtered = m.profiles
	} else {
		query := strings.ToLower(m.search)
		m.filtered = nil
		for _, p := range m.profiles {
			if strings.Contains(strings.ToLower(p.Name), query) ||
				strings.Contains(strings.ToLower(p.Region), query) {
				m.filtered = append(m.filtered, p)
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
func (m ProfileModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(boxTop(w))
	sb.WriteString(boxRow(HeaderStyle.Render(" Select AWS Profile"), w))
	sb.WriteString(boxRule(w))
	sb.WriteString(boxRow(NameStyle.Render(" > "+m.search), w))
	sb.WriteString(boxRow("", w))

	visibleEnd := m.offset + profileListHeight
	if visibleEnd > len(m.filtered) {
		visibleEnd = len(m.filtered)
	}
	for i := m.offset; i < visibleEnd; i++ {
		sb.WriteString(m.renderRow(i))
	}
	for i := len(m.filtered); i < m.offset+profileListHeight; i++ {
		sb.WriteString(boxRow("", w))
	}

	sb.WriteString(boxBottom(w))

	count := fmt.Sprintf("  %d/%d profiles", len(m.filtered), len(m.profiles))
	sb.WriteString(statusBar(w, count, "[Enter:select] [Esc:cancel]"))

	return sb.String()
}

func (m ProfileModel) renderRow(idx int) string {
	profile := m.filtered[idx]

	cursor := "   "
	if profile.Name == m.activeProfile {
		cursor = " ● "
	} else if idx == m.cursor {
		cursor = " > "
	}

	nameText := padRight(profile.Name, 30)
	name := NameStyle.Render(nameText)
	if profile.Name == m.activeProfile {
		name = OKStyle.Render(nameText)
	}

	region := profile.Region
	if region == "" {
		region = "-"
	}

	line := cursor + name + "  " +
		MutedStyle.Render(padRight(region, 20)) + "  " +
		HintStyle.Render(padRight(profile.Source, 12))

	return boxRow(line, m.contentWidth)
}

// SelectProfile displays an interactive selector for AWS profiles
func SelectProfile(profiles []pkgtypes.AWSProfile, activeProfile string) (*pkgtypes.AWSProfile, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles available")
	}

	m := NewProfileModel(profiles, activeProfile)
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running selector: %w", err)
	}

	result := finalModel.(ProfileModel)
	if result.cancelled {
		return nil, fmt.Errorf("selection cancelled")
	}

	return result.selected, nil
}

// PrintProfileTable prints profiles in a styled table, marking the active one
func PrintProfileTable(profiles []pkgtypes.AWSProfile, activeProfile string) {
	nameWidth := 4
	for _, p := range profiles {
		if len(p.Name) > nameWidth {
			nameWidth = len(p.Name)
		}
	}

	widths := []int{3, nameWidth, 20, 12}
	t := newTableWriter([]string{"", "Name", "Region", "Source"}, widths, nil)

	for _, profile := range profiles {
		t.sb.WriteString(BorderStyle.Render(Vertical))

		active := "   "
		if profile.Name == activeProfile {
			active = " ● "
		}
		t.sb.WriteString(OKStyle.Render(padRight(active, widths[0]+2)))
		t.sb.WriteString(BorderStyle.Render(Vertical))

		cell := " " + padRight(profile.Name, widths[1]) + " "
		if profile.Name == activeProfile {
			t.sb.WriteString(OKStyle.Render(cell))
		} else {
			t.sb.WriteString(NameStyle.Render(cell))
		}
		t.sb.WriteString(BorderStyle.Render(Vertical))

		region := profile.Region
		if region == "" {
			region = "-"
		}
		t.sb.WriteString(MutedStyle.Render(" " + padRight(region, widths[2]) + " "))
		t.sb.WriteString(BorderStyle.Render(Vertical))

		t.sb.WriteString(MutedStyle.Render(" " + padRight(profile.Source, widths[3]) + " "))
		t.sb.WriteString(BorderStyle.Render(Vertical))

		t.sb.WriteString("\n")
	}

	fmt.Print(t.String())
	fmt.Printf("  %d profiles\n", len(profiles))
}
