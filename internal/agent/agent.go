// Package agent holds the agent-facing pieces of an execution attempt: the
// model identifier table and the prompt rendered from a task and its comment
// history.
package agent

// Name is the agent author name used on audit comments.
const Name = "taskforge"

// DefaultModel is the model used when a task selects no model or an unknown
// one. Unknown identifiers fall back instead of failing the execution.
const DefaultModel = "sonnet"

// models maps the closed set of task-selectable model identifiers to
// provider-qualified model strings.
var models = map[string]string{
	"sonnet": "anthropic/claude-sonnet-4-5",
	"opus":   "anthropic/claude-opus-4-1",
	"haiku":  "anthropic/claude-haiku-4-5",
	"gpt":    "openai/gpt-5",
	"gemini": "google/gemini-2.5-pro",
}

// ResolveModel maps a task's model identifier to the provider-qualified
// model string, falling back to the default for empty or unknown values.
func ResolveModel(id string) string {
	if s, ok := models[id]; ok {
		return s
	}
	return models[DefaultModel]
}
