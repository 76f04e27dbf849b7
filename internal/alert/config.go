package alert

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["ChangeSeverity", "SetPermission", "revert"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// TypeRevert is the alert type of a reverted transaction.
const TypeRevert = "revert"

// AlertField is one rendered event field.
type AlertField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AlertEvent is the payload sent to webhook endpoints: either one event
// emitted by a committed transaction or a reverted transaction.
type AlertEvent struct {
	Timestamp string       `json:"timestamp"`
	TxID      string       `json:"tx_id"`
	Block     uint64       `json:"block"`
	From      string       `json:"from"`
	Method    string       `json:"method"`
	Contract  string       `json:"contract,omitempty"`
	Name      string       `json:"name,omitempty"`
	Fields    []AlertField `json:"fields,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Type      string       `json:"type"` // "event" or "revert"
}
