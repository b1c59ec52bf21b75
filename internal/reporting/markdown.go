package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Execution Training Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d\n\n", r.RunCount))

	// Training runs
	sb.WriteString("## Training Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Run | Created | Status | Episodes | Objective | LR | Gamma | Batch |\n")
		sb.WriteString("|-----|---------|--------|----------|-----------|----|-------|-------|\n")
		for _, row := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.4f | %.2e | %.4f | %d |\n",
				row.RunID, row.CreatedAt.Format(time.RFC3339), row.Status,
				row.EpisodesRun, row.Objective, row.LR, row.Gamma, row.BatchSize))
		}
	} else {
		sb.WriteString("No training runs recorded.\n")
	}
	sb.WriteString("\n")

	// Evaluations
	sb.WriteString("## Evaluation vs TWAP\n\n")
	if len(r.Evaluations) > 0 {
		sb.WriteString("| Run | Episodes | Agent IS | TWAP IS | Savings | Savings (bps) | Win Rate | IR | VaR95 |\n")
		sb.WriteString("|-----|----------|----------|---------|---------|---------------|----------|----|-------|\n")
		for _, row := range r.Evaluations {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f | %.2f | %.4f | %.4f | %.4f |\n",
				row.RunID, row.Episodes, row.MeanAgentIS, row.MeanTWAPIS,
				row.MeanSavings, row.MeanSavingsBps, row.WinRate,
				row.InformationRatio, row.SavingsVaR95))
		}
	} else {
		sb.WriteString("No evaluations recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
