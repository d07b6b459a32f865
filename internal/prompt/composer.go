package prompt

import (
	"embed"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"text/template"

	"livepage/internal/capabilities"
	"livepage/internal/dom"
	"livepage/internal/models"
)

// embeddedPrompts holds the built-in prompt templates so packaged executables
// can load them without needing access to the source tree.
//
//go:embed prompts/*
var embeddedPrompts embed.FS

var (
	systemPrompt    = mustRead("prompts/system.txt")
	requestTemplate = template.Must(template.New("request").Parse(mustRead("prompts/request.tmpl")))
)

func mustRead(name string) string {
	data, err := embeddedPrompts.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn sent to the provider.
type Message struct {
	Role    string
	Content string
}

// Payload is the provider-neutral request: a system prompt followed by the
// conversation, the last message being the composed request.
type Payload struct {
	System   string
	Messages []Message
}

// Input is everything the composer needs besides the annotated document.
type Input struct {
	Message    string
	PriorTurns []models.ChatMessage
	Snapshot   capabilities.Snapshot
}

// GenerationContext is the immutable view of one request. Accessors hand out
// copies.
type GenerationContext struct {
	markup       string
	message      string
	priorTurns   []models.ChatMessage
	theme        map[string]string
	connectors   []capabilities.Connector
	agents       []capabilities.Agent
	scripts      []string
	instructions []string
}

func (g GenerationContext) Markup() string  { return g.markup }
func (g GenerationContext) Message() string { return g.message }

func (g GenerationContext) PriorTurns() []models.ChatMessage {
	return slices.Clone(g.priorTurns)
}

func (g GenerationContext) Theme() map[string]string {
	return maps.Clone(g.theme)
}

func (g GenerationContext) Connectors() []capabilities.Connector {
	return slices.Clone(g.connectors)
}

func (g GenerationContext) Agents() []capabilities.Agent {
	return slices.Clone(g.agents)
}

func (g GenerationContext) Scripts() []string {
	return slices.Clone(g.scripts)
}

func (g GenerationContext) Instructions() []string {
	return slices.Clone(g.instructions)
}

type themeVar struct {
	Name  string
	Value string
}

// Compose builds the generation context and the payload for it. It performs
// no I/O; identical inputs give identical payloads.
func Compose(ann *dom.Annotated, in Input) (GenerationContext, Payload, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return GenerationContext{}, Payload{}, fmt.Errorf("message is required")
	}
	markup, err := ann.Render()
	if err != nil {
		return GenerationContext{}, Payload{}, err
	}

	gc := GenerationContext{
		markup:       markup,
		message:      message,
		priorTurns:   slices.Clone(in.PriorTurns),
		theme:        maps.Clone(in.Snapshot.Theme),
		connectors:   slices.Clone(in.Snapshot.Connectors),
		agents:       slices.Clone(in.Snapshot.Agents),
		scripts:      slices.Clone(in.Snapshot.Scripts),
		instructions: slices.Clone(in.Snapshot.Instructions),
	}

	var b strings.Builder
	err = requestTemplate.Execute(&b, map[string]any{
		"Markup":       gc.markup,
		"Theme":        sortedTheme(gc.theme),
		"Connectors":   gc.connectors,
		"Agents":       gc.agents,
		"Scripts":      gc.scripts,
		"Instructions": gc.instructions,
		"Message":      gc.message,
	})
	if err != nil {
		return GenerationContext{}, Payload{}, fmt.Errorf("render request prompt: %w", err)
	}

	history := normalizeConversationHistory(gc.priorTurns)
	messages := mergeConsecutive(append(history, Message{Role: RoleUser, Content: b.String()}))

	return gc, Payload{System: systemPrompt, Messages: messages}, nil
}

func sortedTheme(theme map[string]string) []themeVar {
	vars := make([]themeVar, 0, len(theme))
	for name, value := range theme {
		vars = append(vars, themeVar{Name: strings.TrimPrefix(strings.TrimSpace(name), "--"), Value: value})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

// normalizeConversationHistory keeps prior turns in order, maps unknown roles
// to user and drops empty turns. Providers reject histories that open with an
// assistant turn, so those leading turns are dropped too.
func normalizeConversationHistory(turns []models.ChatMessage) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := RoleUser
		if strings.EqualFold(strings.TrimSpace(t.Role), RoleAssistant) {
			role = RoleAssistant
		}
		if len(out) == 0 && role == RoleAssistant {
			continue
		}
		out = append(out, Message{Role: role, Content: content})
	}
	return out
}

// mergeConsecutive joins neighbouring turns of the same role so roles
// alternate.
func mergeConsecutive(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
