// Package history projects the shared multi-agent conversation history
// down to one agent's private view, so each agent sees its own prior
// answers as ordinary bot turns and never sees a sibling's.
package history

import (
	"fmt"
	"strings"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

// Filter keeps user entries as-is and rewrites bot entries to carry only
// the named agent's answer. Bot entries where that agent did not answer
// are dropped entirely.
func Filter(entries []contractx.HistoryEntry, agentName string) []contractx.HistoryEntry {
	filtered := make([]contractx.HistoryEntry, 0, len(entries))

	for _, entry := range entries {
		if entry.Role != contractx.RoleBot {
			filtered = append(filtered, entry)
			continue
		}
		answer, ok := entry.Agents[agentName]
		if !ok {
			continue
		}
		filtered = append(filtered, contractx.HistoryEntry{
			Role:    contractx.RoleBot,
			Content: answer,
		})
	}

	return filtered
}

// Transcript renders history entries into "role: content" lines for prompt
// interpolation.
func Transcript(entries []contractx.HistoryEntry) string {
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", entry.Role, entry.Content))
	}
	return strings.Join(lines, "\n")
}
