package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Format
	}{
		{"copilot init", `{"kind":0,"v":{"sessionId":"s"}}`, FormatCopilot},
		{"copilot append", `{"kind":2,"k":["requests"],"v":[]}`, FormatCopilot},
		{"codex meta", `{"timestamp":"2024-06-01T09:00:00Z","type":"session_meta","payload":{"id":"x"}}`, FormatCodex},
		{"codex event", `{"timestamp":"2024-06-01T09:00:00Z","type":"event_msg","payload":{}}`, FormatCodex},
		{"claude user", `{"type":"user","sessionId":"s","uuid":"u","message":{}}`, FormatClaude},
		{"claude summary", `{"type":"summary","summary":"t"}`, FormatClaude},
		{"claude by fields", `{"uuid":"u","message":{}}`, FormatClaude},
		{"empty", "", FormatUnknown},
		{"blank lines only", "\n\n  \n", FormatUnknown},
		{"not json", "hello world", FormatUnknown},
		{"unrecognized object", `{"foo":"bar"}`, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat([]byte(tt.input)))
		})
	}
}

func TestDetectActiveAgent(t *testing.T) {
	text := "intro\n<activeAgent file=\".github/agents/planner.agent.md\">planner</activeAgent>\nrest"
	assert.Equal(t, "planner", detectActiveAgent(text))

	assert.Equal(t, "tester", detectActiveAgent("<activeAgent>tester</activeAgent>"))
	assert.Equal(t, "", detectActiveAgent("no marker here"))
}

func TestDetectAvailableSkills(t *testing.T) {
	text := `Skills you can load:
<skill name="db-migrate" file="skills/db-migrate/SKILL.md"/>
<skill name="profiling" file="skills/profiling/SKILL.md"/>`

	skills := detectAvailableSkills(text)
	assert.Equal(t, []SkillReference{
		{Name: "db-migrate", Path: "skills/db-migrate/SKILL.md"},
		{Name: "profiling", Path: "skills/profiling/SKILL.md"},
	}, skills)

	assert.Nil(t, detectAvailableSkills("nothing declared"))
}

func TestDetectLoadedSkills(t *testing.T) {
	args := []string{
		`{"path":"skills/profiling/SKILL.md"}`,
		`{"path":"src/main.go"}`,
		`{"path":"skills/profiling/SKILL.md"}`,
		`{"path":"C:\\repo\\skills\\db-migrate\\SKILL.md"}`,
	}

	// Duplicates collapse; both path separators are recognized.
	assert.Equal(t, []string{"profiling", "db-migrate"}, detectLoadedSkills(args))
	assert.Nil(t, detectLoadedSkills(nil))
}
