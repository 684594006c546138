package agent

import (
	"fmt"
	"strings"

	"github.com/taskforge/taskforge/internal/model"
)

// BuildPrompt renders the agent prompt for a task: title, description when
// present, then the comment transcript in ascending creation order. Comment
// authorship decides the transcript prefix, so the agent can tell user
// feedback apart from previous agent reports.
func BuildPrompt(task model.Task, comments []model.Comment, instructions string) string {
	var b strings.Builder

	b.WriteString(task.Title)
	b.WriteString("\n")

	if task.Description != "" {
		b.WriteString("\n")
		b.WriteString(task.Description)
		b.WriteString("\n")
	}

	if instructions != "" {
		b.WriteString("\nProject instructions:\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}

	if len(comments) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, c := range comments {
			if c.IsAgent() {
				fmt.Fprintf(&b, "Agent (%s): %s\n", c.AgentName, c.Content)
			} else {
				fmt.Fprintf(&b, "User: %s\n", c.Content)
			}
		}
	}

	return b.String()
}
