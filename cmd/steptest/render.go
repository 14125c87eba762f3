package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/steptest/internal/state"
	"github.com/ShayCichocki/steptest/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Width(5).
			Align(lipgloss.Right)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	arrowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// printStatus prints a colored status symbol followed by a message.
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// renderPlan renders a plan as styled step names joined by arrows.
func renderPlan(steps []string) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = stepStyle.Render(s)
	}
	return strings.Join(parts, " "+arrowStyle.Render("→")+" ")
}

// renderPlans renders a numbered plan listing under a header.
func renderPlans(title string, plans []models.Plan) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(plans))))
	b.WriteString("\n")
	for i, p := range plans {
		steps := make([]string, len(p))
		for j, ref := range p {
			steps[j] = ref.String()
		}
		b.WriteString(indexStyle.Render(fmt.Sprintf("%d.", i+1)))
		b.WriteString(" ")
		b.WriteString(renderPlan(steps))
		b.WriteString("\n")
	}
	return b.String()
}

// renderRuns prints one status line per journaled plan run.
func renderRuns(w io.Writer, runs []state.PlanRun) {
	for _, r := range runs {
		line := fmt.Sprintf("plan %d: %s", r.PlanIndex+1, renderPlan(r.Steps))
		if r.Status == state.PlanPassed {
			printStatus(w, "✓", line, color.FgGreen)
			continue
		}
		printStatus(w, "✗", line, color.FgRed)
		if r.FailedStep != "" {
			fmt.Fprintf(w, "    %s failed in %s: %s\n", r.FailedStep, r.Phase, r.Error)
		} else {
			fmt.Fprintf(w, "    %s\n", r.Error)
		}
	}
}

// renderSummary renders the session totals in a bordered box.
func renderSummary(s state.Summary, notRun int) string {
	lines := []string{
		headerStyle.Render("Session " + s.SessionID),
		fmt.Sprintf("Plans run: %d", s.Total),
		fmt.Sprintf("Passed:    %d", s.Passed),
		fmt.Sprintf("Failed:    %d", s.Failed),
	}
	if notRun > 0 {
		lines = append(lines, fmt.Sprintf("Not run:   %d", notRun))
	}
	lines = append(lines, fmt.Sprintf("Duration:  %s", s.Duration))
	return summaryStyle.Render(strings.Join(lines, "\n"))
}
