package eval

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mikeboe/deep-leads/pkg/leads"
)

var (
	colorGreen  = lipgloss.Color("#50FA7B")
	colorRed    = lipgloss.Color("#FF5555")
	colorOrange = lipgloss.Color("#FFB86C")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorMuted  = lipgloss.Color("#6272A4")

	titleStyle = lipgloss.NewStyle().Bold(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
	ruleStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

const na = "N/A"

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return na
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// RenderComparison draws the summary panel, the field comparison of matched
// leads and the missing and extra tables.
func RenderComparison(c Comparison) string {
	var summary strings.Builder
	summary.WriteString(titleStyle.Render("LEAD COMPARISON SUMMARY") + "\n\n")
	summary.WriteString(lipgloss.NewStyle().Foreground(colorYellow).Render(fmt.Sprintf("Expected Leads: %d", c.Expected)) + "\n")
	summary.WriteString(lipgloss.NewStyle().Foreground(colorCyan).Render(fmt.Sprintf("Actual Leads: %d", c.Actual)) + "\n")
	summary.WriteString(lipgloss.NewStyle().Foreground(colorGreen).Render(fmt.Sprintf("✓ Matches: %d", len(c.Matches))) + "\n")
	summary.WriteString(lipgloss.NewStyle().Foreground(colorRed).Render(fmt.Sprintf("✗ Missing: %d", len(c.Missing))) + "\n")
	summary.WriteString(lipgloss.NewStyle().Foreground(colorOrange).Render(fmt.Sprintf("⚠ Extra: %d", len(c.Extra))))
	if c.Expected > 0 {
		summary.WriteString("\n\n" + titleStyle.Render(fmt.Sprintf("Recall: %.1f%%", c.Recall())))
	}

	blocks := []string{panelStyle.Render(summary.String())}
	if len(c.Matches) > 0 {
		blocks = append(blocks, matchTable(c.Matches))
	}

	var side []string
	if len(c.Missing) > 0 {
		side = append(side, leadTable(c.Missing, fmt.Sprintf("✗ MISSING LEADS (%d)", len(c.Missing)), colorRed))
	}
	if len(c.Extra) > 0 {
		side = append(side, leadTable(c.Extra, fmt.Sprintf("⚠ EXTRA LEADS (%d)", len(c.Extra)), colorOrange))
	}
	if len(side) > 0 {
		blocks = append(blocks, lipgloss.JoinHorizontal(lipgloss.Top, side...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func leadTable(ls []leads.Lead, title string, color lipgloss.Color) string {
	rows := make([][]string, len(ls))
	for i, l := range ls {
		rows[i] = []string{orNA(l.Name), clip(orNA(l.Title), 25), clip(orNA(l.Email), 30), clip(orNA(l.Phone), 15), clip(orNA(l.Website), 30)}
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(color)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(color)).
		Headers("Name", "Title", "Email", "Phone", "Website").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header.Padding(0, 1)
			}
			if col == 0 {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return lipgloss.JoinVertical(lipgloss.Left, header.Render(title), t.String())
}

func matchTable(pairs []LeadPair) string {
	var rows [][]string
	for _, p := range pairs {
		rows = append(rows, []string{strings.Repeat("─", 12), "", "", ""})
		rows = append(rows, []string{p.Actual.Name, "", "", ""})
		for _, f := range []struct{ name, actual, expected string }{
			{"Name", p.Actual.Name, p.Expected.Name},
			{"Title", p.Actual.Title, p.Expected.Title},
			{"Email", p.Actual.Email, p.Expected.Email},
			{"Phone", p.Actual.Phone, p.Expected.Phone},
			{"Website", p.Actual.Website, p.Expected.Website},
		} {
			mark := "✗"
			if FieldsAgree(f.actual, f.expected) {
				mark = "✓"
			}
			rows = append(rows, []string{f.name, clip(orNA(f.actual), 30), clip(orNA(f.expected), 30), mark})
		}
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorGreen)).
		Headers("Field", "Actual", "Expected", "Match").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return header.Padding(0, 1)
			}
			switch col {
			case 1:
				return base.Foreground(colorCyan)
			case 2:
				return base.Foreground(colorYellow)
			case 3:
				if row >= 0 && row < len(rows) && rows[row][3] == "✓" {
					return base.Foreground(colorGreen)
				}
				return base.Foreground(colorRed)
			}
			return base.Bold(true)
		})
	return lipgloss.JoinVertical(lipgloss.Left, header.Render("✓ MATCHED LEADS - COMPARISON"), t.String())
}

// RenderSample draws the report of one evaluated sample.
func RenderSample(index int, r SampleResult) string {
	rule := ruleStyle.Render(strings.Repeat("─", 80))
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n%s\n", rule, titleStyle.Render(fmt.Sprintf("Sample %d", index+1)), strings.TrimSpace(r.Query))
	if r.Failed() {
		b.WriteString(lipgloss.NewStyle().Foreground(colorRed).Render("Failed: "+r.Error) + "\n")
		return b.String()
	}
	b.WriteString(RenderComparison(r.Comparison) + "\n")
	fmt.Fprintf(&b, "Embedding match: precision %.1f%%  recall %.1f%%  F1 %.1f%%  (TP %d, FP %d, FN %d)\n",
		r.Score.Precision, r.Score.Recall, r.Score.F1, r.Score.TruePositives, r.Score.FalsePositives, r.Score.FalseNegatives)
	if r.Verdict != nil {
		status := lipgloss.NewStyle().Foreground(colorGreen).Render("PASS")
		if !r.Verdict.Passed {
			status = lipgloss.NewStyle().Foreground(colorRed).Render("FAIL")
		}
		fmt.Fprintf(&b, "Correctness: %.2f %s  %s\n", r.Verdict.Score, status, r.Verdict.Reason)
	}
	return b.String()
}

// RenderSummary draws the aggregate panel.
func RenderSummary(s Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EVALUATION SUMMARY") + "\n\n")
	fmt.Fprintf(&b, "Samples: %d (failed %d)\n", s.Samples, s.Failed)
	fmt.Fprintf(&b, "Mean precision: %.1f%%\n", s.MeanPrecision)
	fmt.Fprintf(&b, "Mean recall: %.1f%%\n", s.MeanRecall)
	fmt.Fprintf(&b, "Mean F1: %.1f%%", s.MeanF1)
	if s.Judged > 0 {
		fmt.Fprintf(&b, "\nCorrectness: mean %.2f, pass rate %.1f%% (%d judged)", s.MeanJudge, s.JudgePassRate, s.Judged)
	}
	return panelStyle.Render(b.String())
}
