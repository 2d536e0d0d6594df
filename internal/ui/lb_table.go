package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

// PrintLoadBalancerTable prints classic load balancers in a styled box table
func PrintLoadBalancerTable(lbs []pkgtypes.LoadBalancer) {
	t := newTableWriter(
		[]string{"Name", "Scheme", "VPC", "Zones", "Instances", "DNS Name"},
		[]int{26, 16, 14, 22, 9, 42},
		[]lipgloss.Style{NameStyle, MutedStyle, IDStyle, ValueStyle, ValueStyle, MutedStyle},
	)

	for _, lb := range lbs {
		t.Row(
			lb.Name,
			lb.Scheme,
			lb.VPCID,
			strings.Join(lb.AvailabilityZones, ", "),
			fmt.Sprintf("%d", len(lb.InstanceIDs)),
			lb.DNSName,
		)
	}

	fmt.Print(t.String())
	fmt.Printf("  %d load balancers\n", len(lbs))
}

// HealthRow is one load balancer / instance health pairing for display
type HealthRow struct {
	LoadBalancer string
	InstanceID   string
	State        pkgtypes.HealthState
}

// PrintHealthTable prints per-binding instance health in a styled box table
func PrintHealthTable(rows []HealthRow) {
	widths := []int{26, 20, 16, 44}
	t := newTableWriter(
		[]string{"Load Balancer", "Instance", "State", "Description"},
		widths,
		nil,
	)

	for _, row := range rows {
		t.sb.WriteString(BorderStyle.Render(Vertical))

		cell := " " + padRight(row.LoadBalancer, widths[0]) + " "
		t.sb.WriteString(NameStyle.Render(cell))
		t.sb.WriteString(BorderStyle.Render(Vertical))

		cell = " " + padRight(row.InstanceID, widths[1]) + " "
		t.sb.WriteString(IDStyle.Render(cell))
		t.sb.WriteString(BorderStyle.Render(Vertical))

		t.sb.WriteString(formatHealthCell(row.State.Status, widths[2]))
		t.sb.WriteString(BorderStyle.Render(Vertical))

		cell = " " + padRight(row.State.Description, widths[3]) + " "
		t.sb.WriteString(MutedStyle.Render(cell))
		t.sb.WriteString(BorderStyle.Render(Vertical))

		t.sb.WriteString("\n")
	}

	fmt.Print(t.String())
	printHealthSummary(rows)
}

func formatHealthCell(status pkgtypes.HealthStatus, width int) string {
	var indicator string
	var style lipgloss.Style

	switch status {
	case pkgtypes.HealthInService:
		indicator = "●"
		style = OKStyle
	case pkgtypes.HealthOutOfService:
		indicator = "○"
		style = BadStyle
	default:
		indicator = "○"
		style = MutedStyle
	}

	text := indicator + " " + string(status)
	return style.Render(" " + padRight(text, width) + " ")
}

func printHealthSummary(rows []HealthRow) {
	counts := make(map[pkgtypes.HealthStatus]int)
	for _, row := range rows {
		counts[row.State.Status]++
	}

	var parts []string
	if c := counts[pkgtypes.HealthInService]; c > 0 {
		parts = append(parts, OKStyle.Render(fmt.Sprintf("%d in service", c)))
	}
	if c := counts[pkgtypes.HealthOutOfService]; c > 0 {
		parts = append(parts, BadStyle.Render(fmt.Sprintf("%d out of service", c)))
	}
	if c := counts[pkgtypes.HealthUnknown]; c > 0 {
		parts = append(parts, MutedStyle.Render(fmt.Sprintf("%d unknown", c)))
	}

	summary := fmt.Sprintf("  %d bindings", len(rows))
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	fmt.Println(summary)
}
