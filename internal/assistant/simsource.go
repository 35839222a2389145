package assistant

import (
	"context"
	"strings"

	"homeflow/internal/model"
	"homeflow/internal/reply"
)

// SimulatedSource is a rule-based stand-in for a real language model. It
// recognizes the household phrasings the app cares about and answers in the
// same shape a model is prompted to use: a short sentence plus a COMMAND
// directive line.
type SimulatedSource struct{}

func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{}
}

func (s *SimulatedSource) Reply(ctx context.Context, transcript string) (string, error) {
	t := strings.ToLower(transcript)

	switch {
	case strings.Contains(t, "lock") && mentionsAll(t):
		payload := model.ReplyPayload{Action: string(model.ActionLockAll), Say: "Locking every door."}
		if strings.Contains(t, "unlock") {
			payload = model.ReplyPayload{Action: string(model.ActionUnlockAll), Say: "Unlocking every door."}
		}
		return reply.FormatDirective(payload), nil

	case strings.Contains(t, "unlock"):
		return reply.FormatDirective(model.ReplyPayload{
			Action: string(model.ActionUnlock),
			Door:   transcript,
		}), nil

	case strings.Contains(t, "lock"):
		return reply.FormatDirective(model.ReplyPayload{
			Action: string(model.ActionLock),
			Door:   transcript,
		}), nil

	case strings.Contains(t, "turn on"), strings.Contains(t, "switch on"),
		strings.Contains(t, "turn off"), strings.Contains(t, "switch off"):
		value := "on"
		if strings.Contains(t, "off") {
			value = "off"
		}
		return reply.FormatDirective(model.ReplyPayload{
			Action: string(model.ActionDeviceSet),
			Room:   transcript,
			Device: deviceWord(t),
			Value:  value,
		}), nil

	default:
		return "I can control the lights, fans, AC and door locks. Try \"turn on the kitchen light\".", nil
	}
}

func mentionsAll(t string) bool {
	for _, kw := range []string{"all", "every", "everything", "whole house"} {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func deviceWord(t string) string {
	switch {
	case strings.Contains(t, "fan"):
		return "fan"
	case strings.Contains(t, "ac"), strings.Contains(t, "air"):
		return "ac"
	default:
		return "light"
	}
}
