package agent

import (
	"github.com/hupe1980/agentloom/core"
)

// BeforeAgentCallback runs before the agent's flow starts. Returning a
// non-nil Content skips the run entirely; the content is emitted as the
// agent's final response for this turn. Returning an error aborts the run.
type BeforeAgentCallback func(cc *core.CallbackContext) (*core.Content, error)

// AfterAgentCallback runs after the agent's flow has completed. Returning a
// non-nil Content emits an additional final event appended after the flow's
// own output. Returning an error fails the run.
type AfterAgentCallback func(cc *core.CallbackContext) (*core.Content, error)
