package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"CrossSentinel/internal/model"
	"CrossSentinel/internal/notifier"
	"CrossSentinel/internal/runner"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	buyStyle   = cellStyle.Foreground(lipgloss.Color("#10B981")).Bold(true)
	sellStyle  = cellStyle.Foreground(lipgloss.Color("#EF4444")).Bold(true)
	mutedStyle = cellStyle.Foreground(lipgloss.Color("#6B7280"))
)

var analysisHeaders = []string{"Symbol", "Signal", "Price", "SMA50", "SMA200", "RSI", "Volume", "Avg Vol", "Cross"}

// signalColumn is the index of the "Signal" column.
const signalColumn = 1

func analysisRow(o runner.Outcome) []string {
	if o.Status != runner.StatusOK {
		return []string{o.Symbol, string(o.Status), "-", "-", "-", "-", "-", "-", o.Err.Error()}
	}
	r := o.Result
	d := r.Details
	cross := "-"
	switch {
	case d.GoldenCross:
		cross = "golden"
	case d.DeathCross:
		cross = "death"
	}
	return []string{
		r.Symbol,
		string(r.Kind),
		notifier.FormatPrice(r.Price),
		fmt.Sprintf("%.2f", d.LastSMA50),
		fmt.Sprintf("%.2f", d.LastSMA200),
		fmt.Sprintf("%.2f", d.LastRSI),
		fmt.Sprintf("%.0f", d.LastVolume),
		fmt.Sprintf("%.0f", d.LastAvgVolume),
		cross,
	}
}

// renderAnalysis renders the outcomes as a styled table.
func renderAnalysis(outcomes []runner.Outcome) string {
	rows := make([][]string, len(outcomes))
	for i, o := range outcomes {
		rows[i] = analysisRow(o)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))).
		Headers(analysisHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != signalColumn || row < 0 || row >= len(rows) {
				return cellStyle
			}
			switch rows[row][signalColumn] {
			case string(model.SignalBuy):
				return buyStyle
			case string(model.SignalSell):
				return sellStyle
			case string(model.SignalNone):
				return cellStyle
			default:
				return mutedStyle
			}
		})

	return titleStyle.Render("CrossSentinel analysis") + "\n" + t.Render()
}
