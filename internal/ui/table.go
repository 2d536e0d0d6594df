package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

// tableWriter accumulates a box-drawn table. Cells arrive as plain text; the
// writer pads, truncates and borders them, styling each cell by its column
// unless a row overrides the style.
type tableWriter struct {
	widths []int
	styles []lipgloss.Style
	sb     strings.Builder
}

func newTableWriter(headers []string, widths []int, styles []lipgloss.Style) *tableWriter {
	t := &tableWriter{widths: widths, styles: styles}
	t.border(TopLeft, TopT, TopRight)

	t.sb.WriteString(BorderStyle.Render(Vertical))
	for i, h := range headers {
		t.sb.WriteString(HeaderStyle.Render(" " + padRight(h, widths[i]) + " "))
		t.sb.WriteString(BorderStyle.Render(Vertical))
	}
	t.sb.WriteString("\n")

	t.border(LeftT, Cross, RightT)
	return t
}

func (t *tableWriter) border(left, mid, right string) {
	t.sb.WriteString(BorderStyle.Render(left))
	for i, w := range t.widths {
		t.sb.WriteString(BorderStyle.Render(strings.Repeat(Horizontal, w+2)))
		if i < len(t.widths)-1 {
			t.sb.WriteString(BorderStyle.Render(mid))
		}
	}
	t.sb.WriteString(BorderStyle.Render(right))
	t.sb.WriteString("\n")
}

// Row adds one row styled by column
func (t *tableWriter) Row(cells ...string) {
	t.sb.WriteString(BorderStyle.Render(Vertical))
	for i, w := range t.widths {
		var text string
		if i < len(cells) {
			text = cells[i]
		}
		t.sb.WriteString(t.styles[i].Render(" " + padRight(text, w) + " "))
		t.sb.WriteString(BorderStyle.Render(Vertical))
	}
	t.sb.WriteString("\n")
}

// StyledRow adds one row rendered entirely in the given style
func (t *tableWriter) StyledRow(style lipgloss.Style, cells ...string) {
	t.sb.WriteString(BorderStyle.Render(Vertical))
	for i, w := range t.widths {
		var text string
		if i < len(cells) {
			text = cells[i]
		}
		t.sb.WriteString(style.Render(" " + padRight(text, w) + " "))
		t.sb.WriteString(BorderStyle.Render(Vertical))
	}
	t.sb.WriteString("\n")
}

// String closes the table and returns it
func (t *tableWriter) String() string {
	t.border(BottomLeft, BottomT, BottomRight)
	return t.sb.String()
}

// PrintGroupTable prints security groups in a styled box table
func PrintGroupTable(groups []pkgtypes.Group) {
	t := newTableWriter(
		[]string{"ID", "Name", "VPC", "Ingress", "Egress", "Description"},
		[]int{20, 24, 14, 7, 6, 28},
		[]lipgloss.Style{IDStyle, NameStyle, MutedStyle, ValueStyle, ValueStyle, MutedStyle},
	)

	for _, g := range groups {
		t.Row(
			g.ID,
			g.Name,
			g.VPCID,
			fmt.Sprintf("%d", len(g.Ingress)),
			fmt.Sprintf("%d", len(g.Egress)),
			g.Description,
		)
	}

	fmt.Print(t.String())
	fmt.Printf("  %d security groups\n", len(groups))
}

// PrintDiffTable prints a rule diff as +/- rows, additions first
func PrintDiffTable(adds, removes []pkgtypes.Grant) {
	if len(adds) == 0 && len(removes) == 0 {
		fmt.Println(MutedStyle.Render("  no changes"))
		return
	}

	t := newTableWriter(
		[]string{"", "Direction", "Proto", "Ports", "Peer"},
		[]int{1, 9, 6, 11, 40},
		nil,
	)

	for _, g := range adds {
		t.StyledRow(OKStyle, "+", string(g.Direction), g.Protocol, g.PortRange(), g.Peer())
	}
	for _, g := range removes {
		t.StyledRow(BadStyle, "-", string(g.Direction), g.Protocol, g.PortRange(), g.Peer())
	}

	fmt.Print(t.String())

	var parts []string
	if len(adds) > 0 {
		parts = append(parts, OKStyle.Render(fmt.Sprintf("%d to add", len(adds))))
	}
	if len(removes) > 0 {
		parts = append(parts, BadStyle.Render(fmt.Sprintf("%d to remove", len(removes))))
	}
	fmt.Printf("  %s\n", strings.Join(parts, ", "))
}
