//go:build darwin

package audio

// speakCommand builds the macOS `say` invocation.
func speakCommand(voice, text string) (string, []string) {
	args := []string{}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return "say", append(args, text)
}

// playCommand maps catalog sounds onto the stock system sound set.
func playCommand(sound Sound) (string, []string) {
	file := map[Sound]string{
		SoundThinking: "/System/Library/Sounds/Tink.aiff",
		SoundSuccess:  "/System/Library/Sounds/Glass.aiff",
		SoundFailure:  "/System/Library/Sounds/Basso.aiff",
		SoundAlert:    "/System/Library/Sounds/Ping.aiff",
	}[sound]
	if file == "" {
		return "", nil
	}
	return "afplay", []string{file}
}
