package orchestrator

import (
	"context"

	"github.com/adalundhe/parley/core/events"
	"github.com/adalundhe/parley/core/skills"
)

const skillEventsHook = "publish_skill_events"

// PublishSkillEvents installs a post-execute hook on reg that reports every
// skill execution to bus. Installing it twice replaces the first hook.
func PublishSkillEvents(reg *skills.Registry, bus *events.Bus) {
	reg.Hooks().RegisterPostExecuteHook(skillEventsHook, skills.HookPriorityLow,
		func(_ context.Context, data *skills.HookData) skills.HookResult {
			res := data.Result
			if res == nil {
				return skills.HookResult{Continue: true}
			}
			payload := map[string]any{
				"skill_id":       data.SkillID,
				"kind":           string(data.Kind),
				"execution_time": res.ExecutionTime.String(),
			}
			eventType := events.EventSkillExecuted
			if !res.Success {
				eventType = events.EventSkillFailed
				payload["error"] = res.Error
				payload["error_kind"] = res.ErrorKind.String()
			}
			bus.Publish(events.NewEvent(eventType, data.Exec.UserID, payload).WithAgent(data.Exec.AgentID))
			return skills.HookResult{Continue: true}
		})
}
