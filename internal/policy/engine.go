// Package policy provides capability execution authorization.
package policy

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/GovClaw/GovClaw/internal/store"
)

// Request holds information about a pending capability invocation.
// The caller resolves the capability's approval status from the store
// before evaluation; the engine itself never touches the database.
type Request struct {
	Capability string
	Arguments  map[string]any
	Status     store.CapabilityStatus
	PathParams []string // argument keys whose values are filesystem paths
	Workspace  string
	TraceID    string
}

// Verdict is the result of a policy evaluation.
type Verdict struct {
	Allowed bool
	Reason  string
	Ts      time.Time
	TraceID string
}

// Engine evaluates whether a capability invocation should proceed.
type Engine interface {
	Evaluate(req Request) Verdict
}

// Rule is one dangerous-pattern entry: a case-insensitive regex matched
// against the JSON-serialized arguments, with a human-readable reason.
type Rule struct {
	Pattern string
	Reason  string
}

// DefaultRules block destructive commands regardless of approval status.
// Order matters: the first matching rule's reason is reported.
var DefaultRules = []Rule{
	{`rm\s+-[rf]+\s+/`, "recursive delete of the filesystem root"},
	{`rm\s+-[rf]+\s+~`, "recursive delete of the home directory"},
	{`rm\s+--no-preserve-root`, "recursive delete with root preservation disabled"},
	{`mkfs\.`, "filesystem format command"},
	{`dd\s+(if|of)=`, "raw disk copy via dd"},
	{`:\(\)\s*\{.*:\|:&\s*\}`, "shell fork bomb"},
	{`DROP\s+TABLE`, "destructive SQL: DROP TABLE"},
	{`DROP\s+DATABASE`, "destructive SQL: DROP DATABASE"},
	{`TRUNCATE\s+TABLE`, "destructive SQL: TRUNCATE TABLE"},
	{`shutdown\s+-[hH]`, "system shutdown command"},
	{`\bhalt\b`, "system halt command"},
	{`\bpoweroff\b`, "system poweroff command"},
	{`\breboot\b`, "system reboot command"},
	{`format\s+[A-Za-z]:`, "Windows drive format"},
	{`del\s+/[Ss]\s+/[Qq]`, "Windows recursive silent delete"},
	{`chmod\s+-R\s+777\s+/`, "recursive world-writable permissions on root"},
	{`chown\s+-R\s+.*\s+/`, "recursive ownership change on root"},
	{`>\s*/dev/sd[a-z]`, "write to a raw block device"},
	{`curl.*\|\s*(ba)?sh`, "piping a download into a shell"},
	{`wget.*\|\s*(ba)?sh`, "piping a download into a shell"},
	{`base64\s+-d.*\|\s*(ba)?sh`, "piping decoded data into a shell"},
}

type compiledRule struct {
	re     *regexp.Regexp
	reason string
}

// DefaultEngine applies approval status, the dangerous-pattern table, and the
// workspace path boundary, in that order.
type DefaultEngine struct {
	rules     []compiledRule
	workspace string
}

// NewDefaultEngine compiles the default rules plus any extra config-supplied
// rules. Invalid extra patterns are rejected so a typo cannot silently
// disable a rule.
func NewDefaultEngine(workspace string, extra ...Rule) (*DefaultEngine, error) {
	e := &DefaultEngine{workspace: filepath.Clean(workspace)}
	for _, r := range append(append([]Rule{}, DefaultRules...), extra...) {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid rule pattern %q: %w", r.Pattern, err)
		}
		e.rules = append(e.rules, compiledRule{re: re, reason: r.Reason})
	}
	return e, nil
}

// Evaluate runs the rule chain and returns the first verdict that matches.
func (e *DefaultEngine) Evaluate(req Request) Verdict {
	v := Verdict{Ts: time.Now(), TraceID: req.TraceID}

	// 1. Approval status. Unknown capabilities are treated as not approved.
	switch req.Status {
	case store.StatusApproved:
	case store.StatusBanned:
		v.Reason = fmt.Sprintf("capability %q is banned", req.Capability)
		return v
	default:
		v.Reason = fmt.Sprintf("capability %q is not approved", req.Capability)
		return v
	}

	// 2. Dangerous patterns, matched against the serialized arguments so
	// nested values are covered too.
	argsJSON, err := json.Marshal(req.Arguments)
	if err != nil {
		v.Reason = "arguments could not be serialized for inspection"
		return v
	}
	for _, r := range e.rules {
		if r.re.Match(argsJSON) {
			v.Reason = fmt.Sprintf("dangerous pattern: %s", r.reason)
			return v
		}
	}

	// 3. Declared path arguments must stay inside the workspace.
	if e.workspace != "" && e.workspace != "." {
		for _, key := range req.PathParams {
			raw, ok := req.Arguments[key].(string)
			if !ok || raw == "" {
				continue
			}
			if isURL(raw) {
				continue
			}
			if !e.withinWorkspace(raw) {
				v.Reason = fmt.Sprintf("path %q is outside the workspace", truncate(raw, 200))
				return v
			}
		}
	}

	v.Allowed = true
	v.Reason = "approved"
	return v
}

func (e *DefaultEngine) withinWorkspace(raw string) bool {
	p := raw
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.workspace, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(e.workspace, p)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func isURL(s string) bool {
	for _, scheme := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
