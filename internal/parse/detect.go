package parse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"regexp"
)

// Shared detection helpers: regex extraction of agent and skill markers
// from free text (rendered system prompts, tool-call arguments).

var (
	activeAgentRe = regexp.MustCompile(`<activeAgent(?:\s+file="[^"]*")?>\s*([^<\n]+?)\s*</activeAgent>`)
	skillEntryRe  = regexp.MustCompile(`<skill\s+name="([^"]+)"\s+file="([^"]+)"\s*/?>`)
	// Argument strings are raw JSON, so Windows separators appear doubled.
	skillFileRe = regexp.MustCompile(`(?i)skills[/\\]+([^/\\"]+)[/\\]+SKILL\.md`)
)

// detectActiveAgent pulls the active custom-agent name out of a rendered
// system prompt, or returns "" when no marker is present.
func detectActiveAgent(text string) string {
	m := activeAgentRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// detectAvailableSkills extracts the skills a system prompt declares
// available, as name/file pairs in declaration order.
func detectAvailableSkills(text string) []SkillReference {
	var skills []SkillReference
	for _, m := range skillEntryRe.FindAllStringSubmatch(text, -1) {
		skills = append(skills, SkillReference{Name: m[1], Path: m[2]})
	}
	return skills
}

// detectLoadedSkills reports which skills were actually loaded, judged by
// tool-call arguments reading a skill-definition file. Duplicate reads of
// the same skill count once.
func detectLoadedSkills(argTexts []string) []string {
	var loaded []string
	seen := map[string]bool{}
	for _, args := range argTexts {
		for _, m := range skillFileRe.FindAllStringSubmatch(args, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				loaded = append(loaded, m[1])
			}
		}
	}
	return loaded
}

// Format identifies which log encoding a file uses.
type Format string

const (
	FormatUnknown Format = ""
	FormatCopilot Format = "copilot"
	FormatClaude  Format = "claude"
	FormatCodex   Format = "codex"
)

// DetectFormat classifies raw log text by the shape of its first parseable
// line. Unknown or empty input yields FormatUnknown.
func DetectFormat(data []byte) Format {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var probe map[string]any
		if err := json.Unmarshal(line, &probe); err != nil {
			return FormatUnknown
		}
		if _, ok := probe["kind"].(float64); ok {
			return FormatCopilot
		}
		switch asString(probe["type"]) {
		case "session_meta", "response_item", "event_msg", "turn_context":
			return FormatCodex
		case "user", "assistant", "summary", "system", "progress":
			return FormatClaude
		}
		if _, ok := probe["sessionId"]; ok {
			return FormatClaude
		}
		if _, ok := probe["uuid"]; ok {
			return FormatClaude
		}
		if _, ok := probe["message"]; ok {
			return FormatClaude
		}
		return FormatUnknown
	}
	return FormatUnknown
}
