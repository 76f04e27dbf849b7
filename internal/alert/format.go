package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	title := fmt.Sprintf("chainkernel: %s", event.Name)
	if event.Type == TypeRevert {
		title = fmt.Sprintf("chainkernel: revert %s", event.Reason)
	}

	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Contract:* %s", event.Contract)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Method:* %s", event.Method)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*From:* %s", event.From)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Block:* %d", event.Block)},
	}
	for _, f := range event.Fields {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*%s:* %s", f.Name, f.Value)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": title,
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	severity := severityFor(event)
	summary := fmt.Sprintf("chainkernel %s on %s", event.Name, event.Contract)
	if event.Type == TypeRevert {
		summary = fmt.Sprintf("chainkernel revert %s: %s", event.Reason, event.Method)
	}

	details := map[string]any{
		"tx_id":    event.TxID,
		"block":    event.Block,
		"method":   event.Method,
		"contract": event.Contract,
	}
	for _, f := range event.Fields {
		details[f.Name] = f.Value
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":        summary,
			"severity":       severity,
			"source":         "chainkernel",
			"custom_details": details,
		},
	}
	return json.Marshal(payload)
}

// severityFor maps kill-switch severities to pagerduty levels. Reverts
// are errors, everything else informational.
func severityFor(event AlertEvent) string {
	if event.Type == TypeRevert {
		return "error"
	}
	for _, f := range event.Fields {
		if f.Name != "severity" {
			continue
		}
		switch f.Value {
		case "critical":
			return "critical"
		case "high":
			return "error"
		case "mid", "low":
			return "warning"
		}
	}
	return "info"
}
