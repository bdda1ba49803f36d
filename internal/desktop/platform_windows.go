//go:build windows

package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"aura/internal/types"
)

// frontmostWindowMethod reads the foreground window title via PowerShell.
func frontmostWindowMethod() DetectionMethod {
	return DetectionMethod{
		Name:       "window_title",
		Confidence: 0.8,
		Timeout:    2 * time.Second,
		Probe: func(ctx context.Context) (types.ApplicationInfo, error) {
			out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
				`(Get-Process | Where-Object {$_.MainWindowTitle -ne ''} | Select-Object -First 1).ProcessName`).Output()
			if err != nil {
				return types.ApplicationInfo{}, fmt.Errorf("powershell probe: %w", err)
			}
			name := strings.TrimSpace(string(out))
			if name == "" {
				return types.ApplicationInfo{}, fmt.Errorf("no window with a title")
			}
			return types.ApplicationInfo{Name: name}, nil
		},
	}
}

// processListMethod scans running processes for an extractable app.
func processListMethod() DetectionMethod {
	return DetectionMethod{
		Name:       "process_list",
		Confidence: 0.4,
		Timeout:    2 * time.Second,
		Probe: func(ctx context.Context) (types.ApplicationInfo, error) {
			out, err := exec.CommandContext(ctx, "tasklist", "/fo", "csv", "/nh").Output()
			if err != nil {
				return types.ApplicationInfo{}, fmt.Errorf("tasklist probe: %w", err)
			}
			var names []string
			for _, line := range strings.Split(string(out), "\n") {
				fields := strings.SplitN(line, ",", 2)
				if len(fields) > 0 {
					names = append(names, strings.Trim(fields[0], `" `))
				}
			}
			if app, ok := pickExtractableProcess(names); ok {
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

func powershell(script string) (string, []string) {
	return "powershell", []string{"-NoProfile", "-Command", script}
}

// captureCommand screenshots the primary screen through System.Drawing.
func captureCommand(path string) (string, []string) {
	return powershell(fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms,System.Drawing; `+
		`$b = [System.Windows.Forms.Screen]::PrimaryScreen.Bounds; `+
		`$bmp = New-Object System.Drawing.Bitmap($b.Width, $b.Height); `+
		`$g = [System.Drawing.Graphics]::FromImage($bmp); `+
		`$g.CopyFromScreen($b.Location, [System.Drawing.Point]::Empty, $b.Size); `+
		`$bmp.Save('%s', [System.Drawing.Imaging.ImageFormat]::Png)`, path))
}

func clickCommand(p types.Point, button MouseButton, count int) (string, []string) {
	down, up := "0x0002", "0x0004" // left
	if button == ButtonRight {
		down, up = "0x0008", "0x0010"
	}
	return powershell(fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms; `+
		`Add-Type -MemberDefinition '[DllImport("user32.dll")] public static extern void mouse_event(uint f, uint x, uint y, uint d, uint e);' -Name M -Namespace W; `+
		`[System.Windows.Forms.Cursor]::Position = New-Object System.Drawing.Point(%d, %d); `+
		`1..%d | ForEach-Object { [W.M]::mouse_event(%s,0,0,0,0); [W.M]::mouse_event(%s,0,0,0,0) }`,
		p.X, p.Y, count, down, up))
}

func typeCommand(text string) (string, []string) {
	escaped := strings.ReplaceAll(text, "'", "''")
	return powershell(fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms; `+
		`[System.Windows.Forms.SendKeys]::SendWait('%s')`, escaped))
}

func scrollCommand(p types.Point, dx, dy int) (string, []string) {
	// Wheel delta: 120 units per notch, positive scrolls up.
	return powershell(fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms; `+
		`Add-Type -MemberDefinition '[DllImport("user32.dll")] public static extern void mouse_event(uint f, uint x, uint y, int d, uint e);' -Name M -Namespace W; `+
		`[System.Windows.Forms.Cursor]::Position = New-Object System.Drawing.Point(%d, %d); `+
		`[W.M]::mouse_event(0x0800,0,0,%d,0)`, p.X, p.Y, -dy*120))
}

func keyCommand(mods []Modifier, key string) (string, []string) {
	chord := ""
	for _, m := range mods {
		switch m {
		case ModCtrl, ModCmd:
			chord += "^"
		case ModAlt:
			chord += "%"
		case ModShift:
			chord += "+"
		}
	}
	return powershell(fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms; `+
		`[System.Windows.Forms.SendKeys]::SendWait('%s%s')`, chord, key))
}

// pointerCommand queries the cursor position ("123,456").
func pointerCommand() (string, []string, func(string) (types.Point, error)) {
	parse := func(out string) (types.Point, error) {
		var p types.Point
		if _, err := fmt.Sscanf(strings.TrimSpace(out), "%d,%d", &p.X, &p.Y); err != nil {
			return p, fmt.Errorf("unexpected cursor output %q", out)
		}
		return p, nil
	}
	name, args := powershell(`Add-Type -AssemblyName System.Windows.Forms; ` +
		`$p = [System.Windows.Forms.Cursor]::Position; "$($p.X),$($p.Y)"`)
	return name, args, parse
}
