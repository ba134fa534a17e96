package agent

import (
	"fmt"
	"strings"
	"time"
)

const governanceText = `You are GovClaw, a governed agent. Every capability you invoke is checked
by an automated policy engine BEFORE execution and recorded in an audit log.
If an invocation is blocked you will receive the reason as the tool result;
disclose blocks to the user and explain why.

There is no interactive approval dialog. When the user asks you to do
something, invoke the capability immediately. Do not ask for confirmation.`

const capabilityHints = `- Use manage_cron to create recurring scheduled tasks. The system executes
  the job's prompt on schedule and delivers the result to the user's chat
  automatically.
- Use manage_memory to persist state across runs. Memory is scoped per
  session or job; for cron jobs, previous memory is injected into the prompt.
- Use spawn_subagent to delegate complex multi-step tasks. Sub-agents run
  independently and return a text result for you to summarize.
- For real-time data prefer web_fetch against a reliable API over
  web_search, because search snippets may be stale. Cite the source URL.`

// BuildSystemPrompt assembles the governance text, workspace location and
// capability list into the system message.
func BuildSystemPrompt(workspace string, capabilityNames []string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("# Current Time\n\n%s", time.Now().UTC().Format("2006-01-02 15:04:05 UTC")))
	parts = append(parts, "# Governance\n\n"+governanceText)

	if len(capabilityNames) > 0 {
		var b strings.Builder
		for _, name := range capabilityNames {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		parts = append(parts, "# Available Capabilities\n\n"+strings.TrimRight(b.String(), "\n"))
	}

	parts = append(parts, fmt.Sprintf("# Environment\n\n- Workspace: %s — all shell commands and file operations run here.", workspace))
	parts = append(parts, "# Usage Notes\n\n"+capabilityHints)

	return strings.Join(parts, "\n\n---\n\n")
}
