package illustration

import (
	"context"
	"fmt"
	"strings"
)

// ConceptInstruction is the system prompt used to turn a spell into a one
// sentence visual concept.
const ConceptInstruction = "You are an expert magical illustrator. Based on the name and description of a " +
	"Dungeons & Dragons spell, write a concise visual concept prompt that describes only the magical " +
	"effect caused by the spell. Format your result in a single English sentence suitable for an image model."

// Style carries the theme fragments composed into every image prompt.
type Style struct {
	Style        string
	Constraints  string
	BasePrompt   string
	LargeContext string
}

// Fallback returns the base prompt with the spell name substituted.
func (s Style) Fallback(name string) string {
	return strings.ReplaceAll(s.BasePrompt, "{name}", name)
}

// BuildPrompt joins the style fragments and the concept. The large variant
// also gets the scene context.
func BuildPrompt(style Style, concept string, variant Variant) string {
	parts := make([]string, 0, 4)
	if style.Style != "" {
		parts = append(parts, "Style: "+style.Style+".")
	}
	if style.Constraints != "" {
		parts = append(parts, style.Constraints)
	}
	if variant == Large && style.LargeContext != "" {
		parts = append(parts, style.LargeContext)
	}
	if concept != "" {
		parts = append(parts, concept)
	}
	return strings.Join(parts, " ")
}

// Chatter is the text model call used for concepts. aiconnectors.Connector
// satisfies it.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// ConceptWriter produces the visual concept for a spell.
type ConceptWriter interface {
	Concept(ctx context.Context, name, description string) (string, error)
}

// TextConceptWriter asks a text model for the concept.
type TextConceptWriter struct {
	model       Chatter
	constraints string
}

func NewTextConceptWriter(model Chatter, constraints string) *TextConceptWriter {
	return &TextConceptWriter{model: model, constraints: constraints}
}

func (w *TextConceptWriter) Concept(ctx context.Context, name, description string) (string, error) {
	user := fmt.Sprintf("Spell name: %s\nDescription: %s\nStylistic constraints: %s", name, description, w.constraints)
	return w.model.Chat(ctx, ConceptInstruction, user)
}
