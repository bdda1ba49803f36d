//go:build darwin

package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"aura/internal/types"
)

// frontmostWindowMethod asks System Events for the frontmost process.
// Requires the host to grant automation permission; failures surface as
// permission errors so the chain can continue.
func frontmostWindowMethod() DetectionMethod {
	return DetectionMethod{
		Name:       "applescript_frontmost",
		Confidence: 0.9,
		Timeout:    time.Second,
		Probe: func(ctx context.Context) (types.ApplicationInfo, error) {
			out, err := exec.CommandContext(ctx, "osascript", "-e",
				`tell application "System Events" to get name of first application process whose frontmost is true`).Output()
			if err != nil {
				return types.ApplicationInfo{}, fmt.Errorf("osascript probe: %w", err)
			}
			return types.ApplicationInfo{Name: strings.TrimSpace(string(out))}, nil
		},
	}
}

// processListMethod scans running processes for an extractable app.
func processListMethod() DetectionMethod {
	return DetectionMethod{
		Name:       "process_list",
		Confidence: 0.4,
		Timeout:    time.Second,
		Probe: func(ctx context.Context) (types.ApplicationInfo, error) {
			out, err := exec.CommandContext(ctx, "ps", "-eo", "comm=").Output()
			if err != nil {
				return types.ApplicationInfo{}, fmt.Errorf("ps probe: %w", err)
			}
			if app, ok := pickExtractableProcess(strings.Split(string(out), "\n")); ok {
				return app, nil
			}
			return types.ApplicationInfo{}, fmt.Errorf("no extractable process found")
		},
	}
}

// pasteChord is the platform paste combination.
func pasteChord() ([]Modifier, string) {
	return []Modifier{ModCmd}, "v"
}

// captureCommand builds the screencapture invocation. -x mutes the
// shutter sound; audio feedback owns all sounds.
func captureCommand(path string) (string, []string) {
	return "screencapture", []string{"-x", path}
}

func clickCommand(p types.Point, button MouseButton, count int) (string, []string) {
	verb := "c"
	switch {
	case button == ButtonRight:
		verb = "rc"
	case count >= 2:
		verb = "dc"
	}
	return "cliclick", []string{fmt.Sprintf("%s:%d,%d", verb, p.X, p.Y)}
}

func typeCommand(text string) (string, []string) {
	return "cliclick", []string{"t:" + text}
}

// scrollCommand has no wheel primitive in cliclick; page up/down key codes
// through System Events are the closest equivalent.
func scrollCommand(p types.Point, dx, dy int) (string, []string) {
	code := "121" // page down
	if dy < 0 {
		code = "116" // page up
	}
	return "osascript", []string{"-e",
		fmt.Sprintf(`tell application "System Events" to key code %s`, code)}
}

func keyCommand(mods []Modifier, key string) (string, []string) {
	args := make([]string, 0, len(mods)*2+1)
	for _, m := range mods {
		args = append(args, "kd:"+string(m))
	}
	args = append(args, "t:"+key)
	for i := len(mods) - 1; i >= 0; i-- {
		args = append(args, "ku:"+string(mods[i]))
	}
	return "cliclick", args
}

// pointerCommand queries the pointer via cliclick ("123,456").
func pointerCommand() (string, []string, func(string) (types.Point, error)) {
	parse := func(out string) (types.Point, error) {
		out = strings.TrimSpace(out)
		if i := strings.LastIndex(out, " "); i >= 0 {
			out = out[i+1:]
		}
		var p types.Point
		if _, err := fmt.Sscanf(out, "%d,%d", &p.X, &p.Y); err != nil {
			return p, fmt.Errorf("unexpected cliclick output %q", out)
		}
		return p, nil
	}
	return "cliclick", []string{"p"}, parse
}
