package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders evaluation aggregates as CSV string.
func RenderCSV(rows []EvaluationRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,episodes,mean_agent_is,mean_twap_is,mean_savings,")
	sb.WriteString("mean_savings_bps,win_rate,information_ratio,savings_var95\n")

	// Rows
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			row.RunID,
			row.Episodes,
			row.MeanAgentIS,
			row.MeanTWAPIS,
			row.MeanSavings,
			row.MeanSavingsBps,
			row.WinRate,
			row.InformationRatio,
			row.SavingsVaR95,
		))
	}

	return sb.String()
}
