//go:build windows

package audio

import "fmt"

// speakCommand builds a PowerShell SAPI invocation. The text is passed as a
// single-quoted PowerShell literal with quotes doubled.
func speakCommand(voice, text string) (string, []string) {
	escaped := ""
	for _, r := range text {
		if r == '\'' {
			escaped += "''"
			continue
		}
		escaped += string(r)
	}
	script := fmt.Sprintf(
		"Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; $s.Speak('%s')",
		escaped)
	return "powershell", []string{"-NoProfile", "-Command", script}
}

// playCommand maps catalog sounds onto the stock Windows media set.
func playCommand(sound Sound) (string, []string) {
	file := map[Sound]string{
		SoundThinking: `C:\Windows\Media\Windows Navigation Start.wav`,
		SoundSuccess:  `C:\Windows\Media\Windows Notify.wav`,
		SoundFailure:  `C:\Windows\Media\Windows Critical Stop.wav`,
		SoundAlert:    `C:\Windows\Media\Windows Exclamation.wav`,
	}[sound]
	if file == "" {
		return "", nil
	}
	script := fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", file)
	return "powershell", []string{"-NoProfile", "-Command", script}
}
