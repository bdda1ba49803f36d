package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// CommandSynth is the default Sink: it shells out to the host speech
// synthesizer and sound player. Which commands run is a per-platform
// decision (synth_*.go); the façade above it owns queuing and priorities,
// so each call here is a single blocking playback.
type CommandSynth struct {
	// Voice names a synthesizer voice; empty uses the platform default.
	Voice string
}

// NewCommandSynth creates the platform synthesizer sink.
func NewCommandSynth(voice string) *CommandSynth {
	return &CommandSynth{Voice: voice}
}

// DefaultSink returns the platform synthesizer when its command is on PATH,
// and a BeepSink otherwise so feedback degrades to text instead of erroring
// on every message.
func DefaultSink(voice string) Sink {
	if name, _ := speakCommand(voice, "probe"); name != "" {
		if _, err := exec.LookPath(name); err == nil {
			return NewCommandSynth(voice)
		}
	}
	return BeepSink{}
}

// Speak synthesizes text, blocking until playback finishes or ctx ends.
func (s *CommandSynth) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	name, args := speakCommand(s.Voice, text)
	if name == "" {
		return fmt.Errorf("no speech synthesizer on this platform")
	}
	if err := exec.CommandContext(ctx, name, args...).Run(); err != nil {
		return fmt.Errorf("speech command %s: %w", name, err)
	}
	return nil
}

// Play plays one catalog sound effect.
func (s *CommandSynth) Play(ctx context.Context, sound Sound) error {
	if sound == SoundNone {
		return nil
	}
	name, args := playCommand(sound)
	if name == "" {
		return fmt.Errorf("no sound player on this platform")
	}
	if err := exec.CommandContext(ctx, name, args...).Run(); err != nil {
		return fmt.Errorf("sound command %s: %w", name, err)
	}
	return nil
}

// BeepSink is a degraded Sink for hosts with no synthesizer: spoken text is
// written to Out and sounds become a terminal bell. Out defaults to stderr.
type BeepSink struct {
	Out io.Writer
}

func (b BeepSink) out() io.Writer {
	if b.Out != nil {
		return b.Out
	}
	return os.Stderr
}

func (b BeepSink) Speak(ctx context.Context, text string) error {
	_, err := fmt.Fprintf(b.out(), "[aura] %s\n", text)
	return err
}

func (b BeepSink) Play(ctx context.Context, sound Sound) error {
	if sound == SoundNone {
		return nil
	}
	_, err := fmt.Fprint(b.out(), "\a")
	return err
}
