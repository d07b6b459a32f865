package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livepage/internal/capabilities"
	"livepage/internal/dom"
	"livepage/internal/models"
)

func msg(role, content string) models.ChatMessage {
	return models.ChatMessage{Role: role, Content: content}
}

func fullInput() Input {
	return Input{
		Message: "  make the title blue  ",
		Snapshot: capabilities.Snapshot{
			Theme:        map[string]string{"--primary": "#0af", "font-body": "Inter"},
			Connectors:   []capabilities.Connector{{Name: "calendar", Description: "reads events"}},
			Agents:       []capabilities.Agent{{Name: "researcher", Description: "finds sources"}},
			Scripts:      []string{"charts.js", "widgets/clock.js"},
			Instructions: []string{"keep it short"},
		},
	}
}

func TestCompose_SectionsInFixedOrder(t *testing.T) {
	ann := dom.Annotate(dom.MustParse(`<h1>Title</h1>`))

	gc, payload, err := Compose(ann, fullInput())
	require.NoError(t, err)

	assert.Equal(t, systemPrompt, payload.System)
	require.Len(t, payload.Messages, 1)
	body := payload.Messages[0].Content
	assert.Equal(t, RoleUser, payload.Messages[0].Role)

	order := []string{
		"## Document",
		`<h1 data-node-id="1">Title</h1>`,
		"## Theme",
		"- --font-body: Inter",
		"- --primary: #0af",
		"## Capabilities",
		"- calendar: reads events",
		"- researcher: finds sources",
		"- charts.js",
		"- widgets/clock.js",
		"## Instructions",
		"- keep it short",
		"## Request",
		"make the title blue",
	}
	last := -1
	for _, part := range order {
		idx := strings.Index(body, part)
		require.GreaterOrEqual(t, idx, 0, "missing %q", part)
		assert.Greater(t, idx, last, "%q out of order", part)
		last = idx
	}

	assert.Equal(t, "make the title blue", gc.Message())
	assert.Equal(t, `<h1 data-node-id="1">Title</h1>`, gc.Markup())
}

func TestCompose_IsReproducible(t *testing.T) {
	ann := dom.Annotate(dom.MustParse(`<div><p>a</p></div>`))
	in := fullInput()
	in.Snapshot.Theme = map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}

	_, first, err := Compose(ann, in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, again, err := Compose(ann, in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompose_EmptySectionsStayVisible(t *testing.T) {
	ann := dom.Annotate(dom.MustParse(`<p>x</p>`))

	_, payload, err := Compose(ann, Input{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(payload.Messages[0].Content, "(none)"))
}

func TestCompose_RequiresMessage(t *testing.T) {
	_, _, err := Compose(dom.Annotate(dom.MustParse(`<p>x</p>`)), Input{Message: " \n"})
	assert.Error(t, err)
}

func TestCompose_ContextIsImmutable(t *testing.T) {
	in := fullInput()
	in.PriorTurns = []models.ChatMessage{msg("user", "earlier")}
	gc, _, err := Compose(dom.Annotate(dom.MustParse(`<p>x</p>`)), in)
	require.NoError(t, err)

	in.Snapshot.Theme["--primary"] = "red"
	in.Snapshot.Scripts[0] = "changed.js"
	in.PriorTurns[0].Content = "changed"
	theme := gc.Theme()
	theme["--primary"] = "green"

	assert.Equal(t, "#0af", gc.Theme()["--primary"])
	assert.Equal(t, "charts.js", gc.Scripts()[0])
	assert.Equal(t, "earlier", gc.PriorTurns()[0].Content)
}

func TestCompose_PriorTurnsPrecedeRequest(t *testing.T) {
	in := fullInput()
	in.PriorTurns = []models.ChatMessage{
		msg("user", "add a footer"),
		msg("assistant", `[{"action":"insert","parentId":"1","html":"<footer></footer>"}]`),
	}

	_, payload, err := Compose(dom.Annotate(dom.MustParse(`<p>x</p>`)), in)
	require.NoError(t, err)
	require.Len(t, payload.Messages, 3)
	assert.Equal(t, "add a footer", payload.Messages[0].Content)
	assert.Equal(t, RoleAssistant, payload.Messages[1].Role)
	assert.Equal(t, RoleUser, payload.Messages[2].Role)
	assert.Contains(t, payload.Messages[2].Content, "## Request")
}

func TestNormalizeConversationHistory_PreservesValidHistory(t *testing.T) {
	result := normalizeConversationHistory([]models.ChatMessage{
		msg("user", "first"),
		msg("assistant", "reply"),
	})

	assert.Equal(t, []Message{{RoleUser, "first"}, {RoleAssistant, "reply"}}, result)
}

func TestNormalizeConversationHistory_DropsLeadingAssistant(t *testing.T) {
	result := normalizeConversationHistory([]models.ChatMessage{
		msg("assistant", "intro"),
		msg("user", "question"),
		msg("assistant", "answer"),
	})

	require.Len(t, result, 2)
	assert.Equal(t, RoleUser, result[0].Role)
	assert.Equal(t, "question", result[0].Content)
}

func TestNormalizeConversationHistory_DropsEmptyAndMapsRoles(t *testing.T) {
	result := normalizeConversationHistory([]models.ChatMessage{
		msg("system", "treated as user"),
		msg("assistant", "   "),
		msg("ASSISTANT", "ok"),
	})

	assert.Equal(t, []Message{{RoleUser, "treated as user"}, {RoleAssistant, "ok"}}, result)
}

func TestMergeConsecutive(t *testing.T) {
	result := mergeConsecutive([]Message{{RoleUser, "a"}, {RoleUser, "b"}, {RoleAssistant, "c"}})
	assert.Equal(t, []Message{{RoleUser, "a\n\nb"}, {RoleAssistant, "c"}}, result)
}
