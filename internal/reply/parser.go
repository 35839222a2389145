// Package reply extracts a machine-readable directive and a conversational
// utterance from an assistant's raw text reply.
//
// Assistant replies conventionally end with one directive line of the form
//
//	COMMAND: action=device.set; room=kitchen; device=light; value=on; say=Done!
//
// but models drift: the directive may arrive as a JSON object, wrapped in code
// fences, or not at all. Parsing is an ordered chain of strategies tried in
// sequence; the first one that produces a payload wins, and anything left over
// is cleaned so machine syntax never reaches the user.
package reply

import (
	"encoding/json"
	"regexp"
	"strings"

	"homeflow/internal/model"
)

// Result is the outcome of parsing one assistant reply. Payload is nil when
// no directive could be recovered.
type Result struct {
	Payload   *model.ReplyPayload
	Remainder string
}

var (
	directiveLineRe = regexp.MustCompile("(?i)^\\s*`*\\s*command:\\s*(.+)$")
	quotedPairRe    = regexp.MustCompile(`"([A-Za-z_]+)"\s*:\s*"([^"]*)"`)
	fenceLineRe     = regexp.MustCompile("^\\s*`{3,}\\s*(?i:json)?\\s*$")
)

type strategy func(text string) (*model.ReplyPayload, string, bool)

var strategies = []strategy{parseDirectiveLine, parseJSONObject, parseLoosePairs}

// Parse never panics; any internal parse failure degrades to the next
// strategy and ultimately to a payload-free result.
func Parse(raw string) Result {
	for _, s := range strategies {
		if payload, remainder, ok := s(raw); ok {
			return Result{Payload: payload, Remainder: stripArtifacts(remainder)}
		}
	}
	if hasDirectiveMarker(raw) {
		// Something machine-shaped is present but unparseable. Hide it.
		return Result{Remainder: stripArtifacts(raw)}
	}
	return Result{
		Payload:   &model.ReplyPayload{Action: string(model.ActionNone), Say: strings.TrimSpace(raw)},
		Remainder: "",
	}
}

// Utterance picks the user-facing message for a parsed reply: the cleaned
// remainder, then the payload's own say field, then the raw text when it did
// not open with machine syntax, and finally a bare acknowledgement.
func Utterance(raw string, res Result) string {
	if s := strings.TrimSpace(res.Remainder); s != "" {
		return s
	}
	if res.Payload != nil && strings.TrimSpace(res.Payload.Say) != "" {
		return strings.TrimSpace(res.Payload.Say)
	}
	if s := strings.TrimSpace(raw); s != "" && !startsWithDirective(s) {
		return s
	}
	return "Okay."
}

// parseDirectiveLine scans from the last non-empty line backward for a
// COMMAND: line, removes it and decodes its key=value pairs.
func parseDirectiveLine(text string) (*model.ReplyPayload, string, bool) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		m := directiveLineRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		payload, ok := decodePairs(m[1])
		if !ok {
			continue
		}
		remainder := strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
		return payload, remainder, true
	}
	return nil, "", false
}

var directiveKeys = map[string]bool{
	"action": true,
	"room":   true,
	"device": true,
	"value":  true,
	"door":   true,
	"say":    true,
}

// splitPairs splits a directive body on semicolons, folding segments that do
// not start a known key back into the preceding value. Free text in say may
// itself contain semicolons and must survive intact.
func splitPairs(s string) []string {
	parts := strings.Split(s, ";")
	merged := make([]string, 0, len(parts))
	for _, part := range parts {
		k, _, found := strings.Cut(part, "=")
		if found && directiveKeys[strings.ToLower(strings.TrimSpace(k))] {
			merged = append(merged, part)
			continue
		}
		if len(merged) == 0 {
			merged = append(merged, part)
			continue
		}
		merged[len(merged)-1] += ";" + part
	}
	return merged
}

func decodePairs(s string) (*model.ReplyPayload, bool) {
	fields := map[string]string{}
	for _, part := range splitPairs(s) {
		k, v, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		value := strings.TrimSpace(v)
		if key != "say" {
			value = strings.ToLower(value)
		}
		fields[key] = value
	}
	if len(fields) == 0 {
		return nil, false
	}
	return payloadFromFields(fields), true
}

// parseJSONObject looks for the last brace-delimited object in the text whose
// content mentions an action key, tolerating stray code fences or a leading
// "json" token around it.
func parseJSONObject(text string) (*model.ReplyPayload, string, bool) {
	start, end := lastJSONObject(text)
	if start < 0 {
		return nil, "", false
	}
	body := text[start : end+1]
	if !strings.Contains(body, `"action"`) {
		return nil, "", false
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, "", false
	}
	fields := map[string]string{}
	for k, v := range decoded {
		s, isString := v.(string)
		if !isString {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		if key != "say" {
			s = strings.ToLower(strings.TrimSpace(s))
		}
		fields[key] = s
	}
	if len(fields) == 0 {
		return nil, "", false
	}
	return payloadFromFields(fields), text[:start] + text[end+1:], true
}

// lastJSONObject returns the bounds of the last balanced {...} in s, or -1.
func lastJSONObject(s string) (int, int) {
	end := strings.LastIndexByte(s, '}')
	if end < 0 {
		return -1, -1
	}
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return i, end
			}
		}
	}
	return -1, -1
}

// parseLoosePairs salvages quoted "key": "value" pairs from the last
// non-empty line. Accepted only when an action or say field comes out of it.
func parseLoosePairs(text string) (*model.ReplyPayload, string, bool) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		matches := quotedPairRe.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			return nil, "", false
		}
		fields := map[string]string{}
		for _, m := range matches {
			key := strings.ToLower(m[1])
			value := m[2]
			if key != "say" {
				value = strings.ToLower(value)
			}
			fields[key] = value
		}
		if fields["action"] == "" && fields["say"] == "" {
			return nil, "", false
		}
		remainder := strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
		return payloadFromFields(fields), remainder, true
	}
	return nil, "", false
}

func payloadFromFields(fields map[string]string) *model.ReplyPayload {
	p := &model.ReplyPayload{
		Action: fields["action"],
		Room:   fields["room"],
		Device: fields["device"],
		Value:  fields["value"],
		Door:   fields["door"],
		Say:    fields["say"],
	}
	if p.Action == "" {
		p.Action = string(model.ActionNone)
	}
	return p
}

func hasDirectiveMarker(s string) bool {
	if strings.Contains(strings.ToLower(s), "command:") {
		return true
	}
	start, end := lastJSONObject(s)
	return start >= 0 && strings.Contains(s[start:end+1], `"action"`)
}

func startsWithDirective(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(lower, "command:") ||
		strings.HasPrefix(lower, "{") ||
		strings.HasPrefix(lower, "```")
}

// stripArtifacts removes machine-syntax leftovers so the conversational
// message stays clean: code fences, stray directive remnants and bare JSON
// bodies.
func stripArtifacts(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case fenceLineRe.MatchString(trimmed):
			continue
		case strings.EqualFold(trimmed, "json"):
			continue
		case directiveLineRe.MatchString(trimmed):
			continue
		case strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}"):
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}
