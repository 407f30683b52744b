// Package prompts provides prompt management with embedded defaults and
// on-disk overrides.
//
// Resolution order for a key:
//  1. <override dir>/<key>.tmpl, if an override directory is configured and the file exists
//  2. Embedded default (from .tmpl files in code)
//
// Every resolved prompt carries a content hash (CID) that is recorded with
// each model call, linking outputs to the exact prompt version used.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: question.user
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// ResolvedPrompt is the result of resolving a prompt key.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Source     string   `json:"source,omitempty"` // Override file path
	CID        string   `json:"cid"`
}

// Rendered is an executed system/user prompt pair.
type Rendered struct {
	System string
	User   string
	// CID hashes both template texts, not the rendered output.
	CID string
}
