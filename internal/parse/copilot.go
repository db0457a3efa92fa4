package parse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

// Copilot chat sessions are logged as an incremental patch stream: each
// line either replaces the whole session state, sets a value at a path, or
// appends items to an array at a path. The session is recovered by
// replaying every operation, in order, against one working-state object.

const (
	opInit   = 0 // v replaces the entire state
	opSet    = 1 // v is written at path k
	opAppend = 2 // v (an array) is appended to the array at path k
)

type copilotOp struct {
	Kind *int  `json:"kind"`
	K    []any `json:"k"`
	V    any   `json:"v"`
}

// ParseCopilot replays a Copilot chat-session patch stream and returns the
// normalized session. Malformed lines are skipped; the result is never nil.
func ParseCopilot(data []byte, log Logger) *Session {
	log = ensureLogger(log)

	session := &Session{
		ID:       SentinelSessionID,
		Source:   "copilot",
		Provider: "github",
		Requests: []SessionRequest{},
	}

	state := map[string]any{}
	currentAgent := ""
	// Custom agent names sampled at the moment each request entered the
	// requests array. Mode changes and request appends are interleaved in
	// the stream, so the name cannot be read off the final state.
	var agentNames []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var op copilotOp
		if err := json.Unmarshal(line, &op); err != nil || op.Kind == nil {
			log.Debugf("copilot: skipping line %d: bad operation", lineNum)
			continue
		}

		switch *op.Kind {
		case opInit:
			st := asMap(op.V)
			if st == nil {
				log.Debugf("copilot: line %d: init without object state", lineNum)
				continue
			}
			state = st
			currentAgent = agentNameFromMode(lookupPath(state, "inputState", "mode"))
			agentNames = make([]string, len(getSlice(state, "requests")))
			for i := range agentNames {
				agentNames[i] = currentAgent
			}

		case opSet:
			if len(op.K) == 0 {
				continue
			}
			if next := asMap(setIn(state, op.K, op.V)); next != nil {
				state = next
			}
			if pathIs(op.K, "inputState", "mode") {
				currentAgent = agentNameFromMode(op.V)
			}

		case opAppend:
			items := asSlice(op.V)
			if len(op.K) == 0 || items == nil {
				continue
			}
			if next := asMap(appendIn(state, op.K, items)); next != nil {
				state = next
			}
			if pathIs(op.K, "requests") {
				for range items {
					agentNames = append(agentNames, currentAgent)
				}
			}

		default:
			log.Debugf("copilot: line %d: unknown op kind %d", lineNum, *op.Kind)
		}
	}

	if id := getString(state, "sessionId"); id != "" {
		session.ID = id
	}
	session.CreatedAt = millisToTime(getInt64(state, "creationDate"))

	for i, raw := range getSlice(state, "requests") {
		req := asMap(raw)
		if req == nil {
			continue
		}
		name := ""
		if i < len(agentNames) {
			name = agentNames[i]
		}
		session.Requests = append(session.Requests, buildCopilotRequest(req, name))
	}
	sortRequests(session.Requests)

	if title := getString(state, "customTitle"); title != "" {
		session.Title = title
	} else if title := getString(state, "title"); title != "" {
		session.Title = title
	} else if len(session.Requests) > 0 {
		session.Title = deriveTitle(session.Requests[0].Prompt)
	}

	return session
}

// buildCopilotRequest extracts one normalized request from a raw request
// object. customAgent is the mode-derived name stamped at append time; when
// it is empty the rendered system prompt is scanned as a fallback.
func buildCopilotRequest(raw map[string]any, customAgent string) SessionRequest {
	req := SessionRequest{
		ID:              getString(raw, "requestId"),
		Timestamp:       millisToTime(getInt64(raw, "timestamp")),
		CustomAgentName: customAgent,
		ModelID:         getString(raw, "modelId"),
	}

	if agent := getMap(raw, "agent"); agent != nil {
		req.AgentID = getString(agent, "id")
	}

	if msg := getMap(raw, "message"); msg != nil {
		req.Prompt = getString(msg, "text")
	} else {
		req.Prompt = getString(raw, "message")
	}

	if timings := getMap(raw, "timings"); timings != nil {
		req.FirstProgressMs = getInt64(timings, "firstProgress")
		req.TotalElapsedMs = getInt64(timings, "totalElapsed")
	}

	if usage := getMap(raw, "usage"); usage != nil {
		req.Usage = Usage{
			PromptTokens:        clampTokens(getInt64(usage, "promptTokens")),
			CompletionTokens:    clampTokens(getInt64(usage, "completionTokens")),
			CacheReadTokens:     clampTokens(getInt64(usage, "cacheReadTokens")),
			CacheCreationTokens: clampTokens(getInt64(usage, "cacheCreationTokens")),
		}
	}

	metadata := getMap(getMap(raw, "result"), "metadata")

	var flat []ToolInvocation
	var argTexts []string
	for _, r := range getSlice(metadata, "rounds") {
		for _, c := range getSlice(asMap(r), "toolCalls") {
			call := asMap(c)
			if call == nil {
				continue
			}
			flat = append(flat, ToolInvocation{
				ID:   getString(call, "id"),
				Name: getString(call, "name"),
			})
			if args := getString(call, "arguments"); args != "" {
				argTexts = append(argTexts, args)
			}
		}
	}
	req.Tools = enrichToolCalls(flat, getSlice(raw, "toolInvocations"))

	// The mode-based name wins; the system-prompt scan is only consulted
	// when mode attribution yielded nothing, and a disagreement between the
	// two is never reconciled.
	if customAgent == "" {
		prompt := getString(metadata, "renderedSystemPrompt")
		if prompt != "" {
			req.CustomAgentName = detectActiveAgent(prompt)
			req.SkillsAvailable = detectAvailableSkills(prompt)
		}
	}
	req.SkillsLoaded = detectLoadedSkills(argTexts)

	return req
}

// enrichToolCalls merges the richer toolInvocations array into the flat
// round-derived list. Delegating invocations replace their flat entries,
// carrying the task description and the child invocations grouped by owning
// id; external-server labels are then attached by tool name, since one name
// maps to one server within a session.
func enrichToolCalls(flat []ToolInvocation, enrichments []any) []ToolInvocation {
	if len(enrichments) == 0 {
		return flat
	}

	serverByName := map[string]string{}
	childrenOf := map[string][]ToolInvocation{}
	type delegation struct {
		id, name, description string
	}
	var delegations []delegation

	for _, e := range enrichments {
		entry := asMap(e)
		if entry == nil {
			continue
		}
		id := getString(entry, "id")
		name := getString(entry, "name")

		if src := getMap(entry, "source"); src != nil && getString(src, "type") == "mcp" {
			if label := getString(src, "label"); label != "" && name != "" {
				serverByName[name] = label
			}
		}
		if owner := getString(entry, "ownerId"); owner != "" {
			childrenOf[owner] = append(childrenOf[owner], ToolInvocation{ID: id, Name: name})
		}
		if task := getMap(entry, "task"); task != nil {
			delegations = append(delegations, delegation{
				id:          id,
				name:        name,
				description: getString(task, "description"),
			})
		}
	}

	tools := flat
	if len(delegations) > 0 {
		delegated := map[string]bool{}
		flatName := map[string]string{}
		for _, d := range delegations {
			delegated[d.id] = true
		}

		insertAt := -1
		tools = nil
		for _, inv := range flat {
			if delegated[inv.ID] {
				if insertAt == -1 {
					insertAt = len(tools)
				}
				flatName[inv.ID] = inv.Name
				continue
			}
			tools = append(tools, inv)
		}
		if insertAt == -1 {
			// No flat counterparts: keep the delegations anyway, at the end.
			insertAt = len(tools)
		}

		var replacements []ToolInvocation
		for _, d := range delegations {
			name := d.name
			if name == "" {
				name = flatName[d.id]
			}
			replacements = append(replacements, ToolInvocation{
				ID:          d.id,
				Name:        name,
				Description: d.description,
				Children:    childrenOf[d.id],
			})
		}
		tools = append(tools[:insertAt], append(replacements, tools[insertAt:]...)...)
	}

	if len(serverByName) > 0 {
		labelByName(tools, serverByName)
	}
	return tools
}

func labelByName(tools []ToolInvocation, serverByName map[string]string) {
	for i := range tools {
		if label, ok := serverByName[tools[i].Name]; ok {
			tools[i].ServerLabel = label
		}
		labelByName(tools[i].Children, serverByName)
	}
}

// agentNameFromMode derives a custom agent name from the current input
// mode. Only modes backed by a markdown agent file produce a name; builtin
// mode ids (agent, ask, edit) do not.
func agentNameFromMode(mode any) string {
	id := asString(mode)
	if id == "" {
		id = getString(asMap(mode), "id")
	}
	if !strings.HasSuffix(id, ".md") {
		return ""
	}
	base := id
	if i := strings.LastIndexAny(base, "/\\"); i != -1 {
		base = base[i+1:]
	}
	if name := strings.TrimSuffix(base, ".agent.md"); name != base {
		return name
	}
	return strings.TrimSuffix(base, ".md")
}

func pathIs(path []any, want ...string) bool {
	if len(path) != len(want) {
		return false
	}
	for i, p := range path {
		if asString(p) != want[i] {
			return false
		}
	}
	return true
}

// lookupPath walks string keys through nested objects.
func lookupPath(state map[string]any, keys ...string) any {
	var cur any = state
	for _, k := range keys {
		m := asMap(cur)
		if m == nil {
			return nil
		}
		cur = m[k]
	}
	return cur
}

// setIn writes v at path inside container, creating intermediate objects
// and growing arrays as needed, and returns the (possibly new) container.
func setIn(container any, path []any, v any) any {
	if len(path) == 0 {
		return v
	}
	head, rest := path[0], path[1:]
	if key, ok := head.(string); ok {
		m := asMap(container)
		if m == nil {
			m = map[string]any{}
		}
		m[key] = setIn(m[key], rest, v)
		return m
	}
	idx := int(asInt64(head))
	if idx < 0 {
		return container
	}
	s := asSlice(container)
	for len(s) <= idx {
		s = append(s, nil)
	}
	s[idx] = setIn(s[idx], rest, v)
	return s
}

// appendIn appends items to the array at path, creating it when absent.
func appendIn(container any, path []any, items []any) any {
	if len(path) == 0 {
		s := asSlice(container)
		if s == nil && container != nil {
			// Target exists but is not an array; leave it untouched.
			return container
		}
		return append(s, items...)
	}
	head, rest := path[0], path[1:]
	if key, ok := head.(string); ok {
		m := asMap(container)
		if m == nil {
			m = map[string]any{}
		}
		m[key] = appendIn(m[key], rest, items)
		return m
	}
	idx := int(asInt64(head))
	if idx < 0 {
		return container
	}
	s := asSlice(container)
	for len(s) <= idx {
		s = append(s, nil)
	}
	s[idx] = appendIn(s[idx], rest, items)
	return s
}
