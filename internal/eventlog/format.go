package eventlog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a Result as a human-readable text timeline.
func FormatTimeline(result *Result) string {
	if len(result.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder

	s := result.Summary
	b.WriteString(fmt.Sprintf("Transactions: %d | %s–%s UTC\n",
		s.Total, formatDateRange(s.FirstTimestamp), formatTimeOnly(s.LastTimestamp)))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		status := strings.ToUpper(e.Status)
		if !e.Committed() {
			status += " " + e.Reason
		}
		b.WriteString(fmt.Sprintf("%-10s #%-6d %-10s %-24s %-12s %s\n",
			formatTimeOnly(e.Timestamp), e.Block, e.From.Short(), truncate(e.Method, 24), e.To.Short(), status))
		if len(e.Events) > 0 {
			b.WriteString(fmt.Sprintf("%20s└ %s\n", "", strings.Join(e.Events, ", ")))
		}
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(s))
	return b.String()
}

// FormatJSON renders a Result as indented JSON.
func FormatJSON(result *Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal event log result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	parts := []string{fmt.Sprintf("%d committed", s.Committed)}
	if s.Reverted > 0 {
		reasons := make([]string, 0, len(s.Reasons))
		for r, n := range s.Reasons {
			reasons = append(reasons, fmt.Sprintf("%s×%d", r, n))
		}
		sort.Strings(reasons)
		parts = append(parts, fmt.Sprintf("%d reverted (%s)", s.Reverted, strings.Join(reasons, ", ")))
	}
	return fmt.Sprintf("Summary: %s | %d events\n", strings.Join(parts, ", "), s.Events)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
