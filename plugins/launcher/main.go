// Package main provides the launcher plugin for macOS.
// It opens applications by a short name carried in the request params.
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

type launchParams struct {
	App string `json:"app"`
}

// appNames maps short app identifiers to macOS application names.
var appNames = map[string]string{
	"chrome":   "Google Chrome",
	"safari":   "Safari",
	"finder":   "Finder",
	"terminal": "Terminal",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "launch" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var params launchParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to decode params: %v", err))
			return
		}
	}
	if params.App == "" {
		writeErrorResponse("missing app parameter")
		return
	}

	name, ok := appNames[params.App]
	if !ok {
		// Unmapped identifiers are treated as literal application names.
		name = params.App
	}

	if err := launch(name); err != nil {
		writeErrorResponse(fmt.Sprintf("launch %s failed: %v", name, err))
		return
	}

	writeSuccessResponse()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

// launch opens the named application.
func launch(name string) error {
	cmd := exec.Command("open", "-a", name)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
