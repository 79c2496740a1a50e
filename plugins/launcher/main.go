// Command launcher is the stock selection plugin. It opens a URL or an
// application, or sends a media command, for the icon that was pinched.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request mirrors plugin.Request.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	IconID  string          `json:"icon_id,omitempty"`
	Icon    string          `json:"icon"`
	Config  json.RawMessage `json:"config,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response mirrors plugin.Response.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type params struct {
	URL string `json:"url"`
	App string `json:"app"`
}

type handler func(p params) error

var handlers = map[string]handler{
	"open-url":         openURL,
	"open-app":         openApp,
	"media-play-pause": media("play-pause", 100),
	"media-next":       media("next", 101),
	"media-prev":       media("previous", 98),
	"volume-up":        volume("+10%", `set volume output volume ((output volume of (get volume settings)) + 10)`),
	"volume-down":      volume("-10%", `set volume output volume ((output volume of (get volume settings)) - 10)`),
	"volume-mute":      volume("toggle", `set volume output muted (not (output muted of (get volume settings)))`),
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("decoding request: %w", err))
		return
	}

	h, ok := handlers[req.Action]
	if !ok {
		respond(fmt.Errorf("unknown action: %s", req.Action))
		return
	}

	var p params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			respond(fmt.Errorf("decoding params: %w", err))
			return
		}
	}

	if err := h(p); err != nil {
		respond(fmt.Errorf("%s for %q: %w", req.Action, req.Icon, err))
		return
	}
	respond(nil)
}

func respond(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

func openURL(p params) error {
	if p.URL == "" {
		return errors.New("missing url")
	}
	switch runtime.GOOS {
	case "darwin":
		return run("open", p.URL)
	case "windows":
		return run("rundll32", "url.dll,FileProtocolHandler", p.URL)
	default:
		return run("xdg-open", p.URL)
	}
}

func openApp(p params) error {
	if p.App == "" {
		return errors.New("missing app")
	}
	switch runtime.GOOS {
	case "darwin":
		return run("open", "-a", p.App)
	case "windows":
		return run("cmd", "/c", "start", "", p.App)
	default:
		// Detach so the plugin can exit while the app keeps running.
		return exec.Command(p.App).Start()
	}
}

// media sends a playback command through playerctl on Linux or the media
// key with the given key code on macOS.
func media(command string, keyCode int) handler {
	return func(params) error {
		switch runtime.GOOS {
		case "darwin":
			return run("osascript", "-e", fmt.Sprintf("tell application \"System Events\" to key code %d", keyCode))
		case "linux":
			return run("playerctl", command)
		default:
			return fmt.Errorf("media control unsupported on %s", runtime.GOOS)
		}
	}
}

// volume adjusts output volume with pactl on Linux or AppleScript on macOS.
func volume(pactl, appleScript string) handler {
	return func(params) error {
		switch runtime.GOOS {
		case "darwin":
			return run("osascript", "-e", appleScript)
		case "linux":
			if pactl == "toggle" {
				return run("pactl", "set-sink-mute", "@DEFAULT_SINK@", "toggle")
			}
			return run("pactl", "set-sink-volume", "@DEFAULT_SINK@", pactl)
		default:
			return fmt.Errorf("volume control unsupported on %s", runtime.GOOS)
		}
	}
}
