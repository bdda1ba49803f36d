package desktop

import (
	"context"
	"sync"

	"golang.design/x/clipboard"

	"aura/internal/types"
)

// ClipboardAutomation decorates a base Automation with a real Paste:
// write the text to the system clipboard, then send the platform paste
// chord through the base. Multi-line placement goes through here so long
// content lands in one keystroke instead of a character-by-character type.
type ClipboardAutomation struct {
	base Automation

	initOnce sync.Once
	initErr  error
}

// NewClipboardAutomation wraps base. The clipboard is initialized lazily
// on first paste because init requires a display connection.
func NewClipboardAutomation(base Automation) *ClipboardAutomation {
	return &ClipboardAutomation{base: base}
}

func (c *ClipboardAutomation) init() error {
	c.initOnce.Do(func() {
		c.initErr = clipboard.Init()
	})
	return c.initErr
}

// Paste copies text to the clipboard and sends the paste combination.
// No timeout is imposed; the caller owns cancellation.
func (c *ClipboardAutomation) Paste(ctx context.Context, text string) error {
	if err := c.init(); err != nil {
		return types.WrapError(types.ErrModuleUnavailable, err, "clipboard unavailable")
	}

	clipboard.Write(clipboard.FmtText, []byte(text))

	mods, key := pasteChord()
	if err := c.base.Key(ctx, mods, key); err != nil {
		return types.WrapError(types.ErrInternal, err, "paste keystroke failed")
	}
	return nil
}

// Click delegates to the base automation.
func (c *ClipboardAutomation) Click(ctx context.Context, p types.Point, button MouseButton, count int) error {
	return c.base.Click(ctx, p, button, count)
}

// Type delegates to the base automation.
func (c *ClipboardAutomation) Type(ctx context.Context, text string) error {
	return c.base.Type(ctx, text)
}

// Scroll delegates to the base automation.
func (c *ClipboardAutomation) Scroll(ctx context.Context, p types.Point, dx, dy int) error {
	return c.base.Scroll(ctx, p, dx, dy)
}

// Key delegates to the base automation.
func (c *ClipboardAutomation) Key(ctx context.Context, mods []Modifier, key string) error {
	return c.base.Key(ctx, mods, key)
}
