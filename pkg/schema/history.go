package schema

// EditHistoryEntry records one model-assisted rewrite of a chapter selection.
type EditHistoryEntry struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt"`
	Rules     string `json:"rules,omitempty"`
	Original  string `json:"original"`
	Result    string `json:"result"`
	CreatedAt string `json:"created_at"`
}
