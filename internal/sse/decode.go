package sse

import (
	"encoding/json"
	"fmt"

	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// envelope captures the metadata fields common to every event plus the raw
// payload map, so per-kind decoding can pick the fields (and aliases) it
// needs without a second unmarshal pass.
type envelope struct {
	Meta
	raw map[string]any
}

func decodeEnvelope(raw string) (envelope, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return envelope{}, err
	}
	env := envelope{raw: m}
	env.Meta.Seq = int64(asNumber(m["seq"]))
	env.Meta.Timestamp, _ = m["timestamp"].(string)
	env.Meta.SessionID, _ = m["session_id"].(string)
	env.Meta.ThreadID, _ = m["thread_id"].(string)
	return env, nil
}

func asNumber(v any) float64 {
	f, _ := v.(float64)
	return f
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// firstString returns the first non-empty string found among the given
// top-level keys, falling back to a nested "delta" object's matching keys.
// This mirrors the field-name drift seen across streaming providers (plain
// "text"/"content"/"data" vs. an OpenAI-style nested delta object).
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	if delta := asMap(m["delta"]); delta != nil {
		for _, k := range keys {
			if s := asString(delta[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

// typeFromPayload reads the JSON body's own "type" field for frames that
// arrive without an "event:" line, per the backend's flattened shape where
// the event kind travels inside the payload instead of the SSE field.
func typeFromPayload(raw string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return "", err
	}
	t, _ := m["type"].(string)
	if t == "" {
		return "", spoqerr.ErrUnknownEventType
	}
	return t, nil
}

// decode parses a completed SSE frame's JSON body into its typed Event.
func decode(eventType, raw string) (*Event, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, spoqerr.New(spoqerr.KindClient, fmt.Sprintf("event type %s", eventType), fmt.Errorf("%w: %v", spoqerr.ErrInvalidEventPayload, err))
	}
	m := env.raw

	kind := EventKind(eventType)
	var payload any

	switch kind {
	case KindContent:
		payload = ContentPayload{Text: firstString(m, "text", "data", "content")}
	case KindReasoning:
		payload = ReasoningPayload{Text: firstString(m, "text", "content", "data")}
	case KindThreadInfo:
		payload = ThreadInfoPayload{ThreadID: asString(m["thread_id"]), Title: asString(m["title"])}
	case KindMessageInfo:
		payload = MessageInfoPayload{MessageID: int64(asNumber(m["message_id"]))}
	case KindDone:
		payload = DonePayload{}
	case KindCancelled:
		payload = CancelledPayload{}
	case KindError:
		payload = ErrorPayload{Message: asString(m["message"]), Code: asString(m["code"])}
	case KindPing:
		payload = PingPayload{}
	case KindSkillsInjected:
		payload = SkillsInjectedPayload{Skills: toStringSlice(m["skills"])}
	case KindOAuthConsent:
		payload = OAuthConsentPayload{Provider: asString(m["provider"]), URL: asString(m["url"])}
	case KindContextCompacted:
		payload = ContextCompactedPayload{
			TokensBefore: int(asNumber(m["tokens_before"])),
			TokensAfter:  int(asNumber(m["tokens_after"])),
		}
	case KindToolCallStart:
		payload = ToolCallStartPayload{
			CallID:       asString(m["id"]),
			FunctionName: firstString(m, "function", "function_name", "tool_name"),
			DisplayName:  asString(m["display_name"]),
		}
	case KindToolCallArgument:
		payload = ToolCallArgumentPayload{
			CallID: asString(m["id"]),
			Chunk:  firstString(m, "chunk", "argument_chunk"),
		}
	case KindToolExecuting:
		payload = ToolExecutingPayload{CallID: asString(m["id"]), DisplayName: asString(m["display_name"])}
	case KindToolResult:
		payload = ToolResultPayload{
			CallID:  asString(m["id"]),
			Result:  resultToString(m["result"]),
			IsError: asBool(m["is_error"]),
		}
	case KindPermissionRequest:
		raw, _ := json.Marshal(m["tool_input"])
		payload = PermissionRequestPayload{
			PermissionID: asString(m["permission_id"]),
			ToolName:     asString(m["tool_name"]),
			Description:  asString(m["description"]),
			ToolInput:    raw,
		}
	case KindTodosUpdated:
		payload = TodosUpdatedPayload{Todos: decodeTodos(m["todos"])}
	case KindSubagentStarted:
		payload = SubagentStartedPayload{SubagentID: asString(m["subagent_id"]), Name: asString(m["name"])}
	case KindSubagentProgress:
		payload = SubagentProgressPayload{SubagentID: asString(m["subagent_id"]), Message: asString(m["message"])}
	case KindSubagentCompleted:
		payload = SubagentCompletedPayload{
			SubagentID: asString(m["subagent_id"]),
			Summary:    asString(m["summary"]),
			IsError:    asBool(m["is_error"]),
		}
	case KindThreadUpdated:
		payload = ThreadUpdatedPayload{Title: asString(m["title"]), Description: asString(m["description"])}
	case KindUsage:
		payload = UsagePayload{TokensUsed: int(asNumber(m["tokens_used"])), TokensLimit: int(asNumber(m["tokens_limit"]))}
	case KindPlanningStarted:
		payload = PlanningStartedPayload{}
	case KindPlanSummary:
		payload = PlanSummaryPayload{Summary: asString(m["summary"])}
	case KindPlanApprovalResult:
		payload = PlanApprovalResultPayload{Approved: asBool(m["approved"])}
	default:
		return nil, spoqerr.New(spoqerr.KindClient, eventType, spoqerr.ErrUnknownEventType)
	}

	return &Event{Kind: kind, Meta: env.Meta, Payload: payload}, nil
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, asString(e))
	}
	return out
}

// resultToString accepts a tool result that may arrive as a JSON string or
// as an arbitrary JSON value, and always returns the result's string form.
func resultToString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeTodos(v any) []TodoItemPayload {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]TodoItemPayload, 0, len(arr))
	for _, e := range arr {
		item := asMap(e)
		if item == nil {
			continue
		}
		content := asString(item["content"])
		activeForm := asString(item["active_form"])
		if activeForm == "" {
			activeForm = content
		}
		status := asString(item["status"])
		if !isKnownTodoStatus(status) {
			status = "pending"
		}
		out = append(out, TodoItemPayload{Content: content, ActiveForm: activeForm, Status: status})
	}
	return out
}

func isKnownTodoStatus(s string) bool {
	switch s {
	case "pending", "in_progress", "completed":
		return true
	default:
		return false
	}
}
