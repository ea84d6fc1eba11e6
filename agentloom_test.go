package agentloom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloom/agent"
	"github.com/hupe1980/agentloom/model"
	"github.com/hupe1980/agentloom/session"
)

func TestAgentLoom_SendTextSync(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	llm.QueueTextResponse("hello back")

	loom := New("demo-app", agent.NewModelAgent("assistant", llm))

	reply, err := loom.SendTextSync(context.Background(), "user-1", "sess-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello back", reply)
}

func TestAgentLoom_SessionsAccessor(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	llm.QueueTextResponse("ok")

	store := session.NewInMemoryStore()
	loom := New("demo-app", agent.NewModelAgent("assistant", llm), func(o *Options) {
		o.SessionStore = store
	})

	_, err := loom.SendTextSync(context.Background(), "user-1", "sess-1", "hi")
	require.NoError(t, err)

	ids, err := loom.Sessions().List("demo-app", "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, ids)
}
