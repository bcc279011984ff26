// Package prompt builds the user prompt sent to the completion API.
package prompt

import (
	"fmt"
	"strings"
)

// Limerick returns the fixed limerick prompt for topic. An empty topic falls
// back to defaultTopic.
func Limerick(topic string) string {
	topic = sanitizeTopic(topic)
	if topic == "" {
		topic = defaultTopic
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a whimsical five-line limerick about “%s”.\n", topic))
	sb.WriteString("Each line should rhyme in AABBA pattern.")
	return sb.String()
}

const defaultTopic = "AI Hallucinations"

// sanitizeTopic keeps the topic single-line and trimmed.
func sanitizeTopic(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.Join(strings.Fields(value), " ")
}
