package llm

import (
	"fmt"
	"strings"
)

// SystemPrompt frames chat-style models. Completion-style models get the
// instructions inline.
const SystemPrompt = "You are a meeting note-taking assistant. Output only the requested notes, nothing else."

const (
	structureInstruction = "Please structure and format the following meeting transcription into clear, organized notes with proper headings and bullet points:"
	summaryInstruction   = "Please create a concise summary of the following meeting notes:"
)

// BuildStructurePrompt generates the prompt that turns a raw transcription
// into structured notes.
func BuildStructurePrompt(text, customPrompt string, keywords []string) string {
	var b strings.Builder

	if customPrompt != "" {
		b.WriteString(customPrompt)
	} else {
		b.WriteString(structureInstruction)
	}

	if len(keywords) > 0 {
		fmt.Fprintf(&b, "\n(Context keywords, use correct spelling for these terms: %s)", strings.Join(keywords, ", "))
	}

	b.WriteString("\n\n")
	b.WriteString(text)
	return b.String()
}

func BuildSummaryPrompt(notes string) string {
	return summaryInstruction + "\n\n" + notes
}
