//go:build linux

package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"aura/internal/types"
)

// frontmostWindowMethod reads the active window title through xdotool.
// The title usually ends with the application name ("... - Google Chrome").
func frontmostWindowMethod() DetectionMethod {
	return DetectionMethod{
		Name:       "window_title",
		Confidence: 0.8,
		Timeout:    time.Second,
		Probe: func(ctx context.Context) (types.ApplicationInfo, error) {
			out, err := exec.CommandContext(ctx, "xdotool", "getactivewindow", "getwindowname").Output()
			if err != nil {
				return types.ApplicationInfo{}, fmt.Errorf("xdotool probe: %w", err)
			}
			title := strings.TrimSpace(string(out))
			if title == "" {
				return types.ApplicationInfo{}, fmt.Errorf("empty window title")
			}
			// Take the segment after the last separator as the app name.
			name := title
			if idx := strings.LastIndex(title, " - "); idx >= 0 {
				name = title[idx+3:]
			}
			return types.ApplicationInfo{Name: strings.TrimSpace(name)}, nil
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
	return []Modifier{ModCtrl}, "v"
}

// captureCommand builds the scrot screenshot invocation.
func captureCommand(path string) (string, []string) {
	return "scrot", []string{"-o", path}
}

func clickCommand(p types.Point, button MouseButton, count int) (string, []string) {
	btn := "1"
	if button == ButtonRight {
		btn = "3"
	}
	return "xdotool", []string{
		"mousemove", fmt.Sprint(p.X), fmt.Sprint(p.Y),
		"click", "--repeat", fmt.Sprint(count), btn,
	}
}

func typeCommand(text string) (string, []string) {
	return "xdotool", []string{"type", "--delay", "12", "--", text}
}

// scrollCommand maps dy onto wheel button presses (4 up, 5 down) and dx
// onto the horizontal wheel (6 left, 7 right).
func scrollCommand(p types.Point, dx, dy int) (string, []string) {
	args := []string{"mousemove", fmt.Sprint(p.X), fmt.Sprint(p.Y)}
	if dy != 0 {
		btn := "5"
		n := dy
		if dy < 0 {
			btn = "4"
			n = -dy
		}
		args = append(args, "click", "--repeat", fmt.Sprint(n), btn)
	} else if dx != 0 {
		btn := "7"
		n := dx
		if dx < 0 {
			btn = "6"
			n = -dx
		}
		args = append(args, "click", "--repeat", fmt.Sprint(n), btn)
	}
	return "xdotool", args
}

func keyCommand(mods []Modifier, key string) (string, []string) {
	parts := make([]string, 0, len(mods)+1)
	for _, m := range mods {
		parts = append(parts, string(m))
	}
	parts = append(parts, key)
	return "xdotool", []string{"key", strings.Join(parts, "+")}
}

// pointerCommand queries the pointer via xdotool --shell output
// ("X=123\nY=456\n...").
func pointerCommand() (string, []string, func(string) (types.Point, error)) {
	parse := func(out string) (types.Point, error) {
		var p types.Point
		found := 0
		for _, line := range strings.Split(out, "\n") {
			if v, ok := strings.CutPrefix(line, "X="); ok {
				if _, err := fmt.Sscanf(v, "%d", &p.X); err == nil {
					found++
				}
			}
			if v, ok := strings.CutPrefix(line, "Y="); ok {
				if _, err := fmt.Sscanf(v, "%d", &p.Y); err == nil {
					found++
				}
			}
		}
		if found < 2 {
			return p, fmt.Errorf("unexpected xdotool output %q", out)
		}
		return p, nil
	}
	return "xdotool", []string{"getmouselocation", "--shell"}, parse
}
