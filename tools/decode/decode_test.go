package decode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type roomPayload struct {
	ConversationID string `json:"conversationId"`
	Limit          int    `json:"limit"`
}

func TestMapDecodesByJSONTag(t *testing.T) {
	out, err := Map[roomPayload](map[string]any{"conversationId": "conv1", "limit": 5})
	require.NoError(t, err)
	require.Equal(t, "conv1", out.ConversationID)
	require.Equal(t, 5, out.Limit)
}

func TestMapWeakTyping(t *testing.T) {
	// json numbers arrive as float64; weak decoding folds them into ints
	out, err := Map[roomPayload](map[string]any{"limit": float64(7)})
	require.NoError(t, err)
	require.Equal(t, 7, out.Limit)
}

func TestMapNilInput(t *testing.T) {
	_, err := Map[roomPayload](nil)
	require.Error(t, err)
}

func TestMapIgnoresUnknownKeys(t *testing.T) {
	out, err := Map[roomPayload](map[string]any{"conversationId": "conv1", "extra": true})
	require.NoError(t, err)
	require.Equal(t, "conv1", out.ConversationID)
}
