package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResultMessage(t *testing.T) {
	raw := json.RawMessage(`{"kind":"message","messageId":"m1","role":"agent",
		"parts":[{"kind":"text","text":"{\"categories\":[]}"},{"kind":"data","data":{"categories":["Market Risk"]}}]}`)
	res, err := DecodeResult(raw)
	require.NoError(t, err)
	require.NotNil(t, res.Message)
	assert.Equal(t, `{"categories":[]}`, res.Message.Text())

	data, ok := FirstData(res.Parts())
	require.True(t, ok)
	assert.Equal(t, []any{"Market Risk"}, data["categories"])
}

func TestDecodeResultTaskCollectsArtifactsThenStatus(t *testing.T) {
	raw := json.RawMessage(`{"kind":"task","id":"t1","contextId":"c1",
		"status":{"state":"completed","message":{"kind":"message","messageId":"m2","role":"agent","parts":[{"kind":"text","text":"status"}]}},
		"artifacts":[{"artifactId":"a1","parts":[{"kind":"text","text":"artifact"}]}]}`)
	res, err := DecodeResult(raw)
	require.NoError(t, err)
	require.NotNil(t, res.Task)
	assert.True(t, res.Task.Status.State.Terminal())
	assert.Equal(t, "artifact\nstatus", JoinText(res.Parts()))
}

func TestDecodeResultRejectsUnknownKind(t *testing.T) {
	_, err := DecodeResult(json.RawMessage(`{"kind":"banana"}`))
	assert.Error(t, err)
	_, err = DecodeResult(json.RawMessage(`[1]`))
	assert.Error(t, err)
}

func TestStatusAndEvents(t *testing.T) {
	st := NewStatus(TaskStateWorking, "Task 1/3")
	require.NotNil(t, st.Message)
	assert.Equal(t, RoleAgent, st.Message.Role)
	assert.False(t, st.State.Terminal())

	ev := NewStatusEvent("t", "c", st, false)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"status-update"`)

	art := NewArtifactEvent("t", "c", Artifact{ArtifactID: "a", Parts: []Part{TextPart("x")}})
	assert.True(t, art.LastChunk)
}

func TestNewTextMessageHasID(t *testing.T) {
	msg := NewTextMessage(RoleUser, "hello")
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, "message", msg.Kind)
	assert.Equal(t, "hello", msg.Text())
}
