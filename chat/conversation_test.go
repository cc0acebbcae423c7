package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/poiesic/sibyl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(role core.Role, text string) core.Message {
	return core.Message{Role: role, Text: text}
}

func texts(messages []core.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Text
	}
	return out
}

func TestTruncate_KeepsSystemAndNewest(t *testing.T) {
	messages := []core.Message{
		msg(core.RoleSystem, "sys"),
		msg(core.RoleUser, "u1"),
		msg(core.RoleAssistant, "a1"),
		msg(core.RoleUser, "u2"),
		msg(core.RoleAssistant, "a2"),
	}

	got := Truncate(messages, 2, 0)
	assert.Equal(t, []string{"sys", "u2", "a2"}, texts(got))

	got = Truncate(messages, 10, 0)
	assert.Len(t, got, 5)
}

func TestTruncate_TokenBudget(t *testing.T) {
	long := strings.Repeat("x", 400) // 100 tokens
	messages := []core.Message{
		msg(core.RoleSystem, long),
		msg(core.RoleUser, long),
		msg(core.RoleAssistant, "short"),
		msg(core.RoleUser, long),
	}

	got := Truncate(messages, 0, 220)
	assert.Equal(t, []string{long, "short", long}, texts(got))

	// the newest message survives even when it alone exceeds the budget
	got = Truncate(messages, 0, 10)
	assert.Equal(t, []string{long, long}, texts(got))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("héllo"))
}

func TestConversationStore(t *testing.T) {
	store := NewConversationStore(time.Minute, 4, 0)

	assert.Empty(t, store.History("c1"))
	_, err := store.Get("c1")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	for i := 0; i < 3; i++ {
		store.Append("c1", msg(core.RoleUser, "q"), msg(core.RoleAssistant, "a"))
	}
	conv, err := store.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Len(t, conv.Messages, 4)
	assert.Equal(t, 1, store.Count())

	// returned history is a copy
	history := store.History("c1")
	history[0].Text = "changed"
	assert.Equal(t, "q", store.History("c1")[0].Text)

	require.NoError(t, store.Delete("c1"))
	assert.ErrorIs(t, store.Delete("c1"), ErrConversationNotFound)
	assert.Empty(t, store.History("c1"))
}

func TestConversationStore_Expires(t *testing.T) {
	store := NewConversationStore(20*time.Millisecond, 4, 0)
	store.Append("c1", msg(core.RoleUser, "q"))

	assert.Eventually(t, func() bool {
		_, err := store.Get("c1")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
