package parse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

// The Task tool result embeds the sub-conversation id in free text, e.g.
// "agentId: abc123 (for resuming the conversation)". The id can be
// referenced more than once; the canonical one is appended last.
var agentIDRe = regexp.MustCompile(`agentId:\s*([0-9A-Za-z_-]+)`)

const compactionPrefix = "compact"

type claudeRecord struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"sessionId"`
	UUID        string          `json:"uuid"`
	ParentUUID  *string         `json:"parentUuid"`
	IsSidechain bool            `json:"isSidechain"`
	IsMeta      bool            `json:"isMeta"`
	AgentID     string          `json:"agentId"`
	Timestamp   string          `json:"timestamp"`
	Message     json.RawMessage `json:"message"`
	Summary     string          `json:"summary"` // for type="summary" records
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *claudeUsage    `json:"usage"`
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`   // tool_use
	Name      string          `json:"name"` // tool_use
	Input     map[string]any  `json:"input"`
	ToolUseID string          `json:"tool_use_id"` // tool_result
	Content   json.RawMessage `json:"content"`     // tool_result payload
}

// ParseClaude parses a Claude Code transcript: independent typed records,
// with delegated sub-conversations flagged as sidechains and correlated to
// their Task invocation through the result text. The result is never nil.
func ParseClaude(data []byte, log Logger) *Session {
	log = ensureLogger(log)

	session := &Session{
		ID:       SentinelSessionID,
		Source:   "claude",
		Provider: "anthropic",
		Requests: []SessionRequest{},
	}

	records := decodeClaudeRecords(data, log)
	if len(records) == 0 {
		return session
	}

	summaryTitle := ""
	for _, rec := range records {
		if session.ID == SentinelSessionID && rec.SessionID != "" {
			session.ID = rec.SessionID
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = parseTimestamp(rec.Timestamp)
		}
		if rec.Type == "summary" && rec.Summary != "" && summaryTitle == "" {
			summaryTitle = rec.Summary
		}
	}

	// Main conversation: everything not belonging to a sidechain.
	var main []claudeRecord
	for _, rec := range records {
		if !rec.IsSidechain {
			main = append(main, rec)
		}
	}
	session.Requests = claudeTurns(main, "", "")

	// Delegated conversations run concurrently with the main one, so the
	// timeline is re-sorted after the merge rather than assumed from
	// input order.
	typeByAgent := correlateDelegations(records)
	for _, group := range sidechainGroups(records) {
		name := typeByAgent[group.id]
		if name == "" {
			name = fallbackAgentName(group.id)
		}
		turns := claudeTurns(group.records, group.id, name)
		session.Requests = append(session.Requests, turns...)
	}
	sortRequests(session.Requests)

	if summaryTitle != "" {
		session.Title = summaryTitle
	} else {
		for _, req := range session.Requests {
			if req.Prompt != "" {
				session.Title = deriveTitle(req.Prompt)
				break
			}
		}
	}

	return session
}

func decodeClaudeRecords(data []byte, log Logger) []claudeRecord {
	var records []claudeRecord

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec claudeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Debugf("claude: skipping line %d: %v", lineNum, err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// claudeTurns runs the turn logic over one conversation's records: user
// records overwrite the pending prompt, each assistant record emits one
// request carrying it. agentID and customName tag delegated conversations;
// both are empty for the main pass.
func claudeTurns(records []claudeRecord, agentID, customName string) []SessionRequest {
	var requests []SessionRequest
	pending := ""

	for _, rec := range records {
		if rec.IsMeta {
			continue
		}
		var msg claudeMessage
		if err := json.Unmarshal(rec.Message, &msg); err != nil {
			continue
		}

		switch rec.Type {
		case "user":
			pending = collapseText(msg.Content)

		case "assistant":
			req := SessionRequest{
				ID:              rec.UUID,
				Timestamp:       parseTimestamp(rec.Timestamp),
				AgentID:         agentID,
				CustomAgentName: customName,
				ModelID:         msg.Model,
				Prompt:          pending,
				Tools:           claudeToolUses(msg.Content),
				IsDelegated:     agentID != "",
			}
			if msg.Usage != nil {
				req.Usage = Usage{
					PromptTokens:        clampTokens(msg.Usage.InputTokens),
					CompletionTokens:    clampTokens(msg.Usage.OutputTokens),
					CacheReadTokens:     clampTokens(msg.Usage.CacheReadInputTokens),
					CacheCreationTokens: clampTokens(msg.Usage.CacheCreationInputTokens),
				}
			}
			requests = append(requests, req)
			pending = ""
		}
	}
	return requests
}

// correlateDelegations binds sub-conversation ids to declared sub-agent
// types: a Task tool_use declares the type, the matching tool_result's text
// carries the id. The LAST id match in the result text is authoritative.
func correlateDelegations(records []claudeRecord) map[string]string {
	typeByToolUse := map[string]string{}
	typeByAgent := map[string]string{}

	for _, rec := range records {
		var msg claudeMessage
		if err := json.Unmarshal(rec.Message, &msg); err != nil {
			continue
		}
		for _, block := range contentBlocks(msg.Content) {
			switch block.Type {
			case "tool_use":
				if block.Name != "Task" {
					continue
				}
				if subType := asString(block.Input["subagent_type"]); subType != "" {
					typeByToolUse[block.ID] = subType
				}
			case "tool_result":
				subType, ok := typeByToolUse[block.ToolUseID]
				if !ok {
					continue
				}
				matches := agentIDRe.FindAllStringSubmatch(resultText(block), -1)
				if len(matches) == 0 {
					continue
				}
				typeByAgent[matches[len(matches)-1][1]] = subType
			}
		}
	}
	return typeByAgent
}

type sidechainGroup struct {
	id      string
	records []claudeRecord
}

// sidechainGroups collects sidechain records into per-conversation groups,
// keyed by agent id (session id when the record carries none), preserving
// first-appearance order.
func sidechainGroups(records []claudeRecord) []sidechainGroup {
	var groups []sidechainGroup
	byID := map[string]int{}

	for _, rec := range records {
		if !rec.IsSidechain {
			continue
		}
		id := rec.AgentID
		if id == "" {
			id = rec.SessionID
		}
		i, ok := byID[id]
		if !ok {
			i = len(groups)
			byID[id] = i
			groups = append(groups, sidechainGroup{id: id})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}

// fallbackAgentName labels a sub-conversation whose id never resolved to a
// declared type. Compaction runs get their own label.
func fallbackAgentName(id string) string {
	if strings.HasPrefix(id, compactionPrefix) {
		return "Compaction"
	}
	return fmt.Sprintf("Subagent (%s)", id)
}

// collapseText joins the text blocks of a message content value, which is
// either a plain string or an array of typed blocks.
func collapseText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []string
	for _, block := range contentBlocks(raw) {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func claudeToolUses(raw json.RawMessage) []ToolInvocation {
	var tools []ToolInvocation
	for _, block := range contentBlocks(raw) {
		if block.Type != "tool_use" {
			continue
		}
		inv := ToolInvocation{ID: block.ID, Name: block.Name}
		if block.Name == "Task" {
			inv.Description = asString(block.Input["description"])
		}
		tools = append(tools, inv)
	}
	return tools
}

func contentBlocks(raw json.RawMessage) []claudeContentBlock {
	var blocks []claudeContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

// resultText flattens a tool_result payload, which is either a string or an
// array of content blocks.
func resultText(block claudeContentBlock) string {
	var s string
	if err := json.Unmarshal(block.Content, &s); err == nil {
		return s
	}
	var parts []string
	for _, b := range contentBlocks(block.Content) {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
