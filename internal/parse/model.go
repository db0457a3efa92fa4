package parse

import (
	"sort"
	"strings"
	"time"
)

// SentinelSessionID is used when a session's identity cannot be recovered
// from its log (empty input, unreadable metadata).
const SentinelSessionID = "unknown-session"

const titleMaxRunes = 80

// Session is one normalized conversation, regardless of which tool logged it.
type Session struct {
	ID        string           `json:"id" yaml:"id"`
	Title     string           `json:"title,omitempty" yaml:"title,omitempty"`
	CreatedAt time.Time        `json:"createdAt" yaml:"createdAt"`
	Requests  []SessionRequest `json:"requests" yaml:"requests"`
	Source    string           `json:"source" yaml:"source"`     // "copilot", "claude" or "codex"
	Provider  string           `json:"provider" yaml:"provider"` // "github", "anthropic" or "openai"
}

// SessionRequest is one turn: one prompt and the generated response.
type SessionRequest struct {
	ID              string           `json:"id" yaml:"id"`
	Timestamp       time.Time        `json:"timestamp" yaml:"timestamp"`
	AgentID         string           `json:"agentId,omitempty" yaml:"agentId,omitempty"`
	CustomAgentName string           `json:"customAgentName,omitempty" yaml:"customAgentName,omitempty"`
	ModelID         string           `json:"modelId,omitempty" yaml:"modelId,omitempty"`
	Prompt          string           `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	FirstProgressMs int64            `json:"firstProgressMs,omitempty" yaml:"firstProgressMs,omitempty"`
	TotalElapsedMs  int64            `json:"totalElapsedMs,omitempty" yaml:"totalElapsedMs,omitempty"`
	Usage           Usage            `json:"usage" yaml:"usage"`
	Tools           []ToolInvocation `json:"tools,omitempty" yaml:"tools,omitempty"`
	SkillsAvailable []SkillReference `json:"skillsAvailable,omitempty" yaml:"skillsAvailable,omitempty"`
	SkillsLoaded    []string         `json:"skillsLoaded,omitempty" yaml:"skillsLoaded,omitempty"`
	IsDelegated     bool             `json:"isDelegated,omitempty" yaml:"isDelegated,omitempty"`
}

// Usage holds token counters for one turn. Counters are never negative.
type Usage struct {
	PromptTokens        int64 `json:"promptTokens" yaml:"promptTokens"`
	CompletionTokens    int64 `json:"completionTokens" yaml:"completionTokens"`
	CacheReadTokens     int64 `json:"cacheReadTokens,omitempty" yaml:"cacheReadTokens,omitempty"`
	CacheCreationTokens int64 `json:"cacheCreationTokens,omitempty" yaml:"cacheCreationTokens,omitempty"`
}

// ToolInvocation is one tool call. Delegating calls (sub-agent runs) carry
// a description and the calls made inside the sub-run as Children, so the
// tree can nest to arbitrary depth.
type ToolInvocation struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	ServerLabel string           `json:"serverLabel,omitempty" yaml:"serverLabel,omitempty"`
	Children    []ToolInvocation `json:"children,omitempty" yaml:"children,omitempty"`
}

// SkillReference names a skill and the file that declares it.
type SkillReference struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Logger is the optional reporting capability parsers accept. The host's
// logging singleton is adapted to it; nil is always allowed.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// ensureLogger returns log, or a silent logger when log is nil.
func ensureLogger(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}

// sortRequests orders requests ascending by timestamp. The sort is stable:
// requests sharing a timestamp keep their emission order.
func sortRequests(reqs []SessionRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].Timestamp.Before(reqs[j].Timestamp)
	})
}

// deriveTitle trims s and caps it at 80 runes, appending an ellipsis when
// something was cut. An 80-rune title comes back verbatim.
func deriveTitle(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= titleMaxRunes {
		return s
	}
	return string(runes[:titleMaxRunes]) + "…"
}

// clampTokens converts a possibly negative counter to a non-negative one.
func clampTokens(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	// try RFC3339
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// try RFC3339Nano
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// try ISO8601 without timezone
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

// millisToTime converts an epoch-milliseconds value to a time. Zero maps to
// the zero time, not to the epoch.
func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}
