package model_test

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eva-chat/backend/internal/model"
)

func TestNewMessageID_SortsByCreationTime(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	ids := []string{
		model.NewMessageID(base.Add(3 * time.Second)),
		model.NewMessageID(base),
		model.NewMessageID(base.Add(time.Millisecond)),
		model.NewMessageID(base.Add(time.Minute)),
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	assert.Equal(t, []string{ids[1], ids[2], ids[0], ids[3]}, sorted)
}

func TestMessageTime_RoundTrip(t *testing.T) {
	created := time.Date(2025, 7, 1, 12, 0, 0, 123456789, time.UTC)
	id := model.NewMessageID(created)

	assert.True(t, created.Equal(model.MessageTime(id)))
}

func TestMessageTime_MalformedID(t *testing.T) {
	assert.True(t, model.MessageTime("not-a-message-id").IsZero())
	assert.True(t, model.MessageTime("MESSAGE#garbage#uuid").IsZero())
	assert.True(t, model.MessageTime("").IsZero())
}

func TestPart_Resolved(t *testing.T) {
	t.Run("text parts are always resolved", func(t *testing.T) {
		p := model.Part{Type: model.PartText, Text: "hello"}
		assert.True(t, p.Resolved())
	})

	t.Run("tool part without terminal result is unresolved", func(t *testing.T) {
		for _, state := range []model.ToolState{model.ToolStatePartialCall, model.ToolStateCall} {
			p := model.Part{
				Type:           model.PartToolInvocation,
				ToolInvocation: &model.ToolInvocation{ToolName: "search_samples", State: state},
			}
			assert.False(t, p.Resolved(), "state %s", state)
		}
	})

	t.Run("tool part with result is resolved", func(t *testing.T) {
		p := model.Part{
			Type: model.PartToolInvocation,
			ToolInvocation: &model.ToolInvocation{
				ToolName: "search_samples",
				State:    model.ToolStateResult,
				Result:   json.RawMessage(`{"count":3}`),
			},
		}
		assert.True(t, p.Resolved())
	})

	t.Run("tool part missing its invocation is unresolved", func(t *testing.T) {
		p := model.Part{Type: model.PartToolInvocation}
		assert.False(t, p.Resolved())
	})
}

func TestMessage_StripUnresolved(t *testing.T) {
	msg := model.Message{
		ID:   model.NewMessageID(time.Now()),
		Role: model.RoleAssistant,
		Parts: []model.Part{
			{Type: model.PartText, Text: "Looking that up."},
			{Type: model.PartToolInvocation, ToolInvocation: &model.ToolInvocation{
				ToolName: "plot_expression", State: model.ToolStateResult,
			}},
			{Type: model.PartToolInvocation, ToolInvocation: &model.ToolInvocation{
				ToolName: "search_samples", State: model.ToolStateCall,
			}},
		},
	}

	stripped := msg.StripUnresolved()

	require.Len(t, stripped.Parts, 2)
	assert.Equal(t, "Looking that up.", stripped.Parts[0].Text)
	assert.Equal(t, "plot_expression", stripped.Parts[1].ToolInvocation.ToolName)

	// The original message is untouched.
	assert.Len(t, msg.Parts, 3)
}

func TestMessage_StripUnresolved_AllTextSurvives(t *testing.T) {
	msg := model.Message{
		Role:  model.RoleUser,
		Parts: []model.Part{{Type: model.PartText, Text: "what is TP53?"}},
	}
	assert.Equal(t, msg.Parts, msg.StripUnresolved().Parts)
}
