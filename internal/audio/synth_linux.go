//go:build linux

package audio

// speakCommand builds the espeak invocation.
func speakCommand(voice, text string) (string, []string) {
	args := []string{}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return "espeak", append(args, text)
}

// playCommand maps catalog sounds onto the freedesktop sound theme.
func playCommand(sound Sound) (string, []string) {
	file := map[Sound]string{
		SoundThinking: "/usr/share/sounds/freedesktop/stereo/message.oga",
		SoundSuccess:  "/usr/share/sounds/freedesktop/stereo/complete.oga",
		SoundFailure:  "/usr/share/sounds/freedesktop/stereo/dialog-error.oga",
		SoundAlert:    "/usr/share/sounds/freedesktop/stereo/bell.oga",
	}[sound]
	if file == "" {
		return "", nil
	}
	return "paplay", []string{file}
}
