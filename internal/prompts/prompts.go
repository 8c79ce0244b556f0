// Package prompts composes the system prompt sent with each request.
package prompts

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// base is the default persona when the user configures nothing.
const base = `You are a helpful, direct assistant in a terminal chat.
Answer concisely. Use markdown for structure and code blocks for code.`

// Build composes the effective system prompt: the user's configured prompt
// when present, the default persona otherwise, always followed by runtime
// context the model cannot know on its own.
func Build(custom string) string {
	var sb strings.Builder

	if strings.TrimSpace(custom) != "" {
		sb.WriteString(strings.TrimSpace(custom))
	} else {
		sb.WriteString(base)
	}

	sb.WriteString("\n\n")
	sb.WriteString(environment())
	return sb.String()
}

// environment describes the runtime the user is chatting from.
func environment() string {
	osName := runtime.GOOS
	switch osName {
	case "darwin":
		osName = "macOS"
	case "linux":
		osName = "Linux"
	case "windows":
		osName = "Windows"
	}

	return fmt.Sprintf("Environment: %s terminal. Today's date: %s.",
		osName, time.Now().Format("2006-01-02"))
}
