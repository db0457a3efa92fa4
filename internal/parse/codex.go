package parse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Codex rollouts are typed envelope streams with explicit turn boundaries.
// Token counters are cumulative session totals, so per-turn usage is
// recovered by diffing successive snapshots.

// The IDE integration wraps the typed prompt in a context block; only the
// text after this marker is the actual request.
const ideRequestMarker = "## My request for Codex:"

// Context injected as user messages before the first real turn.
var contextPreambles = []string{
	"<environment_context>",
	"<user_instructions>",
}

// Top-level envelope in a Codex rollout.
type codexEnvelope struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexSessionMeta struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Cwd       string `json:"cwd"`
}

// event_msg payload (flat, not nested)
type codexEventPayload struct {
	Type    string          `json:"type"`
	Message string          `json:"message"` // for user_message
	Info    json.RawMessage `json:"info"`    // for token_count
}

// response_item payload
type codexResponsePayload struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Name    string `json:"name"`    // function_call
	CallID  string `json:"call_id"` // function_call
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type codexTokenInfo struct {
	TotalTokenUsage struct {
		InputTokens       int64 `json:"input_tokens"`
		CachedInputTokens int64 `json:"cached_input_tokens"`
		OutputTokens      int64 `json:"output_tokens"`
	} `json:"total_token_usage"`
}

// codexUsage is one cumulative usage snapshot as reported by token_count.
type codexUsage struct {
	input, cached, output int64
}

// codexTurn accumulates one open turn.
type codexTurn struct {
	id        string
	openedAt  time.Time
	prompt    string
	model     string
	tools     []ToolInvocation
	sawOutput bool
	cum       *codexUsage // last-seen cumulative snapshot, nil when none arrived
}

type codexState struct {
	log          Logger
	session      *Session
	turn         *codexTurn
	model        string // running default from turn_context
	prev         codexUsage
	sawTurnStart bool
	seq          int
}

// ParseCodex parses a Codex rollout stream. The first envelope must be
// session metadata; anything else yields an empty session, since session
// identity cannot be trusted without it. The result is never nil.
func ParseCodex(data []byte, log Logger) *Session {
	log = ensureLogger(log)

	session := &Session{
		ID:       SentinelSessionID,
		Source:   "codex",
		Provider: "openai",
		Requests: []SessionRequest{},
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	st := &codexState{log: log, session: session}

	first := true
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var env codexEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			if first {
				// No trustworthy identity: no partial recovery.
				log.Warnf("codex: unreadable first line, returning empty session")
				return session
			}
			log.Debugf("codex: skipping line %d: %v", lineNum, err)
			continue
		}

		if first {
			first = false
			var meta codexSessionMeta
			if env.Type != "session_meta" || json.Unmarshal(env.Payload, &meta) != nil || meta.ID == "" {
				log.Warnf("codex: first envelope is not session metadata, returning empty session")
				return session
			}
			session.ID = meta.ID
			session.CreatedAt = parseTimestamp(env.Timestamp)
			if session.CreatedAt.IsZero() {
				session.CreatedAt = parseTimestamp(meta.Timestamp)
			}
			continue
		}

		ts := parseTimestamp(env.Timestamp)

		switch env.Type {
		case "event_msg":
			var evt codexEventPayload
			if err := json.Unmarshal(env.Payload, &evt); err != nil {
				continue
			}
			st.handleEvent(evt, ts)

		case "response_item":
			var item codexResponsePayload
			if err := json.Unmarshal(env.Payload, &item); err != nil {
				continue
			}
			st.handleResponseItem(item, ts)

		case "turn_context":
			var ctx map[string]any
			if err := json.Unmarshal(env.Payload, &ctx); err != nil {
				continue
			}
			if model := getString(ctx, "model"); model != "" {
				st.model = model
				if st.turn != nil {
					st.turn.model = model
				}
			}
		}
	}

	// End of input closes any turn still open, even mid-tool-call.
	st.finalize()
	sortRequests(session.Requests)

	for _, req := range session.Requests {
		if req.Prompt != "" {
			session.Title = deriveTitle(ideRequestText(req.Prompt))
			break
		}
	}

	return session
}

func (st *codexState) handleEvent(evt codexEventPayload, ts time.Time) {
	switch evt.Type {
	case "task_started":
		st.sawTurnStart = true
		st.finalize()
		st.open(ts)

	case "task_complete", "turn_aborted":
		st.finalize()

	case "user_message":
		st.userSignal(evt.Message, ts)

	case "token_count":
		var info codexTokenInfo
		if err := json.Unmarshal(evt.Info, &info); err != nil {
			return
		}
		if st.turn == nil {
			st.log.Debugf("codex: token_count outside a turn, ignored")
			return
		}
		// Later snapshots supersede earlier ones within the same turn.
		st.turn.cum = &codexUsage{
			input:  info.TotalTokenUsage.InputTokens,
			cached: info.TotalTokenUsage.CachedInputTokens,
			output: info.TotalTokenUsage.OutputTokens,
		}
	}
}

func (st *codexState) handleResponseItem(item codexResponsePayload, ts time.Time) {
	switch item.Type {
	case "message":
		var parts []string
		for _, c := range item.Content {
			if (c.Type == "input_text" || c.Type == "output_text" || c.Type == "text") && c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			return
		}
		if item.Role == "user" {
			st.userSignal(text, ts)
		} else if st.turn != nil {
			st.turn.sawOutput = true
		}

	case "function_call":
		if st.turn == nil {
			st.open(ts)
		}
		id := item.CallID
		if id == "" {
			id = item.ID
		}
		st.turn.tools = append(st.turn.tools, ToolInvocation{ID: id, Name: item.Name})
		st.turn.sawOutput = true
	}
}

// userSignal handles a user message from either encoding. Pre-turn context
// injection is dropped; in legacy streams without boundary events, a user
// message segments a new turn once the prior one produced output.
func (st *codexState) userSignal(text string, ts time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !st.sawTurnStart && isContextPreamble(text) {
		return
	}
	if !st.sawTurnStart && st.turn != nil && st.turn.sawOutput {
		st.finalize()
	}
	if st.turn == nil {
		st.open(ts)
	}
	st.turn.prompt = text
}

func (st *codexState) open(ts time.Time) {
	st.seq++
	st.turn = &codexTurn{
		id:       fmt.Sprintf("turn-%d", st.seq),
		openedAt: ts,
		model:    st.model,
	}
}

// finalize emits the open turn as a request. Partial turns (aborted
// mid-tool-call) are still emitted.
func (st *codexState) finalize() {
	if st.turn == nil {
		return
	}
	turn := st.turn
	st.turn = nil

	req := SessionRequest{
		ID:        turn.id,
		Timestamp: turn.openedAt,
		ModelID:   turn.model,
		Prompt:    turn.prompt,
		Tools:     turn.tools,
	}
	if turn.cum != nil {
		// Counters are session totals; the turn's share is the delta
		// against the previous snapshot, clamped if totals regressed.
		req.Usage = Usage{
			PromptTokens:     clampTokens(turn.cum.input - st.prev.input),
			CompletionTokens: clampTokens(turn.cum.output - st.prev.output),
			CacheReadTokens:  clampTokens(turn.cum.cached - st.prev.cached),
		}
		st.prev = *turn.cum
	}
	st.session.Requests = append(st.session.Requests, req)
}

func isContextPreamble(text string) bool {
	for _, prefix := range contextPreambles {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// ideRequestText strips the IDE context wrapper from a prompt, keeping only
// the text after the request marker when one is present.
func ideRequestText(prompt string) string {
	if i := strings.Index(prompt, ideRequestMarker); i != -1 {
		return strings.TrimSpace(prompt[i+len(ideRequestMarker):])
	}
	return prompt
}
