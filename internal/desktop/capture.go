package desktop

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"aura/internal/types"
)

// CommandCapturer implements ScreenCapturer with the host screenshot tool
// (screencapture, scrot, or PowerShell depending on platform). Captures go
// through a temp file because none of the tools stream reliably.
type CommandCapturer struct{}

// CaptureScreen grabs the full screen as PNG bytes.
func (CommandCapturer) CaptureScreen(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "aura-capture-*")
	if err != nil {
		return nil, fmt.Errorf("capture temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "screen.png")
	name, args := captureCommand(path)
	if name == "" {
		return nil, types.NewError(types.ErrModuleUnavailable, "no screen capture tool on this platform")
	}
	if err := exec.CommandContext(ctx, name, args...).Run(); err != nil {
		return nil, types.WrapError(types.ErrModuleUnavailable, err, "screen capture command %s failed", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		return nil, types.NewError(types.ErrExtractionFailed, "screen capture produced an empty image")
	}
	return data, nil
}
