package reply

import (
	"strings"

	"homeflow/internal/model"
)

// FormatDirective renders a payload back into the COMMAND: grammar. Empty
// fields are omitted; say goes last so free text cannot shadow other keys.
func FormatDirective(p model.ReplyPayload) string {
	var b strings.Builder
	b.WriteString("COMMAND: ")
	pairs := []struct{ key, value string }{
		{"action", p.Action},
		{"room", p.Room},
		{"device", p.Device},
		{"value", p.Value},
		{"door", p.Door},
		{"say", p.Say},
	}
	first := true
	for _, pair := range pairs {
		if pair.value == "" {
			continue
		}
		if !first {
			b.WriteString("; ")
		}
		first = false
		b.WriteString(pair.key)
		b.WriteString("=")
		b.WriteString(pair.value)
	}
	return b.String()
}
