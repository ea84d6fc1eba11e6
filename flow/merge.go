package flow

import (
	"strings"

	"github.com/hupe1980/agentloom/core"
)

// mergeFunctionResponseEvents combines the per-call response events of one
// tool batch into a single event, keeping the response parts in call order.
// State and artifact deltas are unioned (later calls win on key conflicts);
// transfer and escalate signals survive from whichever call raised them.
func mergeFunctionResponseEvents(runID, author string, events []core.Event) core.Event {
	if len(events) == 1 {
		return events[0]
	}

	merged := core.NewEvent(runID, author)
	content := core.Content{Role: "tool"}

	var errMsgs []string

	for _, ev := range events {
		if ev.Content != nil {
			content.Parts = append(content.Parts, ev.Content.Parts...)
		}

		if ev.ErrorMessage != nil {
			errMsgs = append(errMsgs, *ev.ErrorMessage)
		}

		if len(ev.Actions.StateDelta) > 0 {
			if merged.Actions.StateDelta == nil {
				merged.Actions.StateDelta = map[string]any{}
			}
			for k, v := range ev.Actions.StateDelta {
				merged.Actions.StateDelta[k] = v
			}
		}

		if len(ev.Actions.ArtifactDelta) > 0 {
			if merged.Actions.ArtifactDelta == nil {
				merged.Actions.ArtifactDelta = map[string]int{}
			}
			for k, v := range ev.Actions.ArtifactDelta {
				merged.Actions.ArtifactDelta[k] = v
			}
		}

		if ev.Actions.TransferToAgent != nil {
			merged.Actions.TransferToAgent = ev.Actions.TransferToAgent
		}
		if ev.Actions.Escalate != nil {
			merged.Actions.Escalate = ev.Actions.Escalate
		}
		if ev.Actions.SkipSummarization != nil {
			merged.Actions.SkipSummarization = ev.Actions.SkipSummarization
		}
	}

	merged.Content = &content

	if len(errMsgs) > 0 {
		msg := strings.Join(errMsgs, "; ")
		merged.ErrorMessage = &msg
	}

	return merged
}
