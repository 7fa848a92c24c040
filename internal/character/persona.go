package character

import (
	"strings"
	"unicode/utf8"
)

// Dialogue is one prior conversation line used for the recap.
type Dialogue struct {
	Role string
	Text string
}

const (
	maxRecapTurns    = 12
	maxRecapLineLen  = 200
	recapIntro       = "Earlier conversation, oldest first:"
	ambienceGuidance = "You can shape the scene with the controlAmbientSound function; use it sparingly and only when it fits the moment."
)

// BuildInstructions renders the system instruction for a session: the card
// persona, the house rules for ambience, and a compact recap of the most
// recent dialogue turns.
func BuildInstructions(card Card, recent []Dialogue) string {
	persona := strings.TrimSpace(card.Persona)
	if persona == "" {
		persona = "You are " + card.Name + ", a warm voice companion."
	}

	var b strings.Builder
	b.WriteString(persona)

	b.WriteString("\n\n")
	b.WriteString(ambienceGuidance)

	if card.Greeting != "" {
		b.WriteString("\n\nWhen the conversation opens, greet the user in your own words, along the lines of: ")
		b.WriteString(strings.TrimSpace(card.Greeting))
	}

	if len(recent) > 0 {
		if len(recent) > maxRecapTurns {
			recent = recent[len(recent)-maxRecapTurns:]
		}
		b.WriteString("\n\n")
		b.WriteString(recapIntro)
		for _, turn := range recent {
			line := strings.TrimSpace(turn.Text)
			if line == "" {
				continue
			}
			if len(line) > maxRecapLineLen {
				cut := maxRecapLineLen
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				line = line[:cut] + "…"
			}
			b.WriteString("\n- ")
			b.WriteString(turn.Role)
			b.WriteString(": ")
			b.WriteString(line)
		}
	}
	return b.String()
}
