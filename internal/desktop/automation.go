package desktop

import (
	"context"
	"os/exec"
	"strings"

	"aura/internal/types"
)

// ShellAutomation drives input through the host automation tool (xdotool
// on Linux, cliclick on macOS). It is the default low-level injector;
// production deployments replace it with a native one. Type carries no
// internal timeout: long text runs until done or the caller cancels.
type ShellAutomation struct{}

func (ShellAutomation) run(ctx context.Context, name string, args []string) error {
	if name == "" {
		return types.NewError(types.ErrModuleUnavailable, "no input automation tool on this platform")
	}
	if _, err := exec.LookPath(name); err != nil {
		return types.WrapError(types.ErrModuleUnavailable, err, "automation tool %s not installed", name)
	}
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if strings.Contains(strings.ToLower(msg), "permission") || strings.Contains(strings.ToLower(msg), "not authorized") {
			return types.WrapError(types.ErrPermissionDenied, err, "input injection denied: %s", msg).
				WithHint("grant the assistant accessibility permission in system settings")
		}
		return types.WrapError(types.ErrInternal, err, "automation command %s failed: %s", name, msg)
	}
	return nil
}

// Click presses a mouse button count times at p.
func (s ShellAutomation) Click(ctx context.Context, p types.Point, button MouseButton, count int) error {
	if count <= 0 {
		count = 1
	}
	name, args := clickCommand(p, button, count)
	return s.run(ctx, name, args)
}

// Type enters text key by key.
func (s ShellAutomation) Type(ctx context.Context, text string) error {
	name, args := typeCommand(text)
	return s.run(ctx, name, args)
}

// Paste falls back to typing; ClipboardAutomation decorates this with a
// real clipboard paste.
func (s ShellAutomation) Paste(ctx context.Context, text string) error {
	return s.Type(ctx, text)
}

// Scroll scrolls at p by dx, dy wheel notches.
func (s ShellAutomation) Scroll(ctx context.Context, p types.Point, dx, dy int) error {
	name, args := scrollCommand(p, dx, dy)
	return s.run(ctx, name, args)
}

// Key sends a modifier chord.
func (s ShellAutomation) Key(ctx context.Context, mods []Modifier, key string) error {
	name, args := keyCommand(mods, key)
	return s.run(ctx, name, args)
}

// PointerLocation reports the current pointer position, used by hosts that
// turn a manual trigger into a placement point.
func PointerLocation(ctx context.Context) (types.Point, error) {
	name, args, parse := pointerCommand()
	if name == "" {
		return types.Point{}, types.NewError(types.ErrModuleUnavailable, "no pointer query tool on this platform")
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return types.Point{}, types.WrapError(types.ErrModuleUnavailable, err, "pointer query failed")
	}
	p, err := parse(strings.TrimSpace(string(out)))
	if err != nil {
		return types.Point{}, types.WrapError(types.ErrInternal, err, "pointer query output unparseable")
	}
	return p, nil
}
