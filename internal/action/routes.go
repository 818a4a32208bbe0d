package action

import (
	"encoding/json"
	"fmt"
)

// Route maps an action ID from the client protocol onto a plugin action.
type Route struct {
	Plugin string
	Action string
	Params json.RawMessage
}

// DefaultRoutes returns the routing table for the built-in action IDs
// understood by the bundled plugins.
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		"volumeup":   {Plugin: "media-keys", Action: "volume-up"},
		"volumedown": {Plugin: "media-keys", Action: "volume-down"},
		"volumemute": {Plugin: "media-keys", Action: "volume-mute"},
		"playpause":  {Plugin: "media-keys", Action: "media-play-pause"},
		"nexttrack":  {Plugin: "media-keys", Action: "media-next"},
		"prevtrack":  {Plugin: "media-keys", Action: "media-prev"},
		"enter":      {Plugin: "media-keys", Action: "press-enter"},
		"chrome":     {Plugin: "launcher", Action: "launch", Params: json.RawMessage(`{"app":"chrome"}`)},
	}
}

// PluginRunner resolves action IDs through a routing table and executes
// them via the plugin executor.
type PluginRunner struct {
	manager *Manager
	exec    *Executor
	routes  map[string]Route
}

// NewPluginRunner creates a PluginRunner. A nil routes map falls back to
// DefaultRoutes.
func NewPluginRunner(manager *Manager, exec *Executor, routes map[string]Route) *PluginRunner {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &PluginRunner{manager: manager, exec: exec, routes: routes}
}

// Execute resolves and runs one action ID.
func (r *PluginRunner) Execute(actionID string) error {
	route, ok := r.routes[actionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}

	plugin, err := r.manager.Get(route.Plugin)
	if err != nil {
		return fmt.Errorf("action %q: %w", actionID, err)
	}

	resp, err := r.exec.Execute(plugin, &Request{Action: route.Action, Params: route.Params})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("action %q: plugin reported: %s", actionID, resp.Error)
	}
	return nil
}
