package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	exact := strings.Repeat("a", 80)
	long := strings.Repeat("b", 81)
	// Truncation counts runes, not bytes.
	wide := strings.Repeat("日", 81)

	tests := []struct {
		name, in, want string
	}{
		{"short", "hello", "hello"},
		{"trimmed", "  hello  ", "hello"},
		{"exactly 80 preserved", exact, exact},
		{"81 truncated", long, strings.Repeat("b", 80) + "…"},
		{"multibyte runes", wide, strings.Repeat("日", 80) + "…"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveTitle(tt.in))
		})
	}
}

func TestSortRequestsStable(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reqs := []SessionRequest{
		{ID: "c", Timestamp: ts.Add(time.Second)},
		{ID: "a", Timestamp: ts},
		{ID: "b", Timestamp: ts},
	}

	sortRequests(reqs)

	assert.Equal(t, "a", reqs[0].ID)
	assert.Equal(t, "b", reqs[1].ID)
	assert.Equal(t, "c", reqs[2].ID)
}

func TestClampTokens(t *testing.T) {
	assert.Equal(t, int64(0), clampTokens(-7))
	assert.Equal(t, int64(0), clampTokens(0))
	assert.Equal(t, int64(42), clampTokens(42))
}

func TestMillisToTime(t *testing.T) {
	assert.True(t, millisToTime(0).IsZero())
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), millisToTime(1700000000000))
}

func TestAgentNameFromMode(t *testing.T) {
	tests := []struct {
		name string
		mode any
		want string
	}{
		{"agent file", map[string]any{"id": ".github/agents/planner.agent.md"}, "planner"},
		{"plain md file", map[string]any{"id": "docs/reviewer.md"}, "reviewer"},
		{"windows path", map[string]any{"id": `agents\architect.agent.md`}, "architect"},
		{"bare string id", "helpers/fixer.agent.md", "fixer"},
		{"builtin agent", map[string]any{"id": "agent"}, ""},
		{"builtin ask", map[string]any{"id": "ask"}, ""},
		{"nil", nil, ""},
		{"wrong shape", 42, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agentNameFromMode(tt.mode))
		})
	}
}
