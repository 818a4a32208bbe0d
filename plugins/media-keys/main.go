// Package main provides the media-keys plugin for macOS.
// It handles volume, media playback, and key press actions via
// AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// keyCodes maps actions to the macOS virtual key code they press.
var keyCodes = map[string]int{
	"media-play-pause": 100,
	"media-next":       101,
	"media-prev":       98,
	"press-enter":      36,
}

// volumeScripts maps volume actions to the AppleScript that performs
// them. Volume steps are 10% of the output range.
var volumeScripts = map[string]string{
	"volume-up":   `set volume output volume ((output volume of (get volume settings)) + 10)`,
	"volume-down": `set volume output volume ((output volume of (get volume settings)) - 10)`,
	"volume-mute": `set volume output muted (not (output muted of (get volume settings)))`,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("failed to decode request: %v", err))
		return
	}
	respond(perform(req.Action))
}

// perform dispatches the action to the matching AppleScript.
func perform(action string) error {
	if script, ok := volumeScripts[action]; ok {
		return osascript(script)
	}
	if code, ok := keyCodes[action]; ok {
		return pressKey(code)
	}
	return fmt.Errorf("unknown action: %s", action)
}

// pressKey sends a virtual key code through System Events.
func pressKey(code int) error {
	return osascript(fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code))
}

// osascript runs an AppleScript snippet and returns any error.
func osascript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// respond writes the plugin response for the given outcome to stdout.
func respond(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
