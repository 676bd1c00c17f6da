package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// printHeader prints a formatted section header.
func printHeader(title string) {
	fmt.Printf("\n%s%s%s\n", styleBoldCyan, title, colorReset)
	fmt.Println(colorDim + strings.Repeat("-", len(title)+2) + colorReset)
}

// printField prints a labeled field.
func printField(label, value string) {
	fmt.Printf("  %s%-16s%s %s\n", colorBold, label+":", colorReset, value)
}

// statusColor returns an ANSI color code for an agent status.
func statusColor(status string) string {
	switch strings.ToLower(status) {
	case "active":
		return colorGreen
	case "started":
		return colorCyan
	case "activating":
		return colorYellow
	case "inactive":
		return colorDim
	default:
		return colorWhite
	}
}

// statusBadge returns a colored status badge.
func statusBadge(status string) string {
	return fmt.Sprintf("%s[%s]%s", statusColor(status), status, colorReset)
}

// formatAge renders a timestamp as a compact relative age.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// printTable prints rows with aligned columns.
func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println(colorDim + "  (none)" + colorReset)
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				// Strip ANSI codes for width calculation
				stripped := termtext.StripAnsi(cell)
				if len(stripped) > widths[i] {
					widths[i] = len(stripped)
				}
			}
		}
	}

	headerLine := "  "
	for i, h := range headers {
		headerLine += fmt.Sprintf("%s%-*s%s", colorBold, widths[i]+2, h, colorReset)
	}
	fmt.Println(headerLine)

	sepLine := "  " + colorDim
	for _, w := range widths {
		sepLine += strings.Repeat("-", w) + "  "
	}
	fmt.Println(sepLine + colorReset)

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				pad := widths[i] + 2 - len(termtext.StripAnsi(cell))
				if pad < 0 {
					pad = 0
				}
				line += cell + strings.Repeat(" ", pad)
			}
		}
		fmt.Println(line)
	}
}
