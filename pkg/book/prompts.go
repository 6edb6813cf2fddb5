package book

import (
	"fmt"
	"strings"
)

// NoSummary is returned for chapters with no content and when the
// summarization backend fails. It is never persisted, so writing
// content or a recovered backend triggers a real summarization.
const NoSummary = "No summary available"

const summaryAck = "I will use the previous to answer any future questions"

func summarizePrompt(content string) string {
	return "Summarize the following chapter. Only include the summary in the response: " + content
}

func summarizeSegmentPrompt(segment string) string {
	return "The following is a segment of a chapter. Summarize, in 200 words or fewer, what happens in it. Only include the summary in the response: " + segment
}

func summarizeJoinedPrompt(joined string) string {
	return "Summarize the following: " + joined
}

func extractCharactersPrompt(content string, known []string) string {
	var b strings.Builder
	b.WriteString("List the main characters that appear in the following chapter. ")
	b.WriteString("Respond with a json string array of character names and nothing else.")
	if len(known) > 0 {
		b.WriteString(" The known characters are: ")
		b.WriteString(strings.Join(known, ", "))
		b.WriteString(". When a name matches a known character by first or last name, use the known character's name.")
	}
	b.WriteString("\n\n")
	b.WriteString(content)
	return b.String()
}

func characterPriorPrompt(name, prior string) string {
	return fmt.Sprintf(
		"You are a literature professor. For the character %s, the following describes everything known about them so far:\n\n%s",
		name, prior)
}

func characterFirstPrompt(name string) string {
	return fmt.Sprintf(
		"You are a literature professor. The character %s appears for the first time in the chapter that follows.",
		name)
}

func characterFoldPrompt(name, content string) string {
	return fmt.Sprintf(
		"Describe everything known about %s after the following chapter, in third person limited. "+
			"Combine it with what was known before. Do not speculate about future events. "+
			"Only include the description in the response:\n\n%s",
		name, content)
}

func describePriorPrompt(name, prior string) string {
	return fmt.Sprintf(
		"You are a literature professor. The character %s has been described so far as follows:\n\n%s",
		name, prior)
}

func describeFoldPrompt(name, content string) string {
	return fmt.Sprintf(
		"Describe %s as they present after the following chapter, in third person limited. "+
			"Fold in how they were described before. Do not speculate about future events. "+
			"Only include the description in the response:\n\n%s",
		name, content)
}

func expertisePrompt(name, description string) string {
	return fmt.Sprintf(
		"Based on the following description of %s, list their areas of expertise as short bullet points. "+
			"Only include the list in the response:\n\n%s",
		name, description)
}

func visualPrompt(name, description string) string {
	return fmt.Sprintf(
		"Based on the following description of %s, write a concise visual description of their appearance "+
			"suitable as an image generation prompt. Only include the description in the response:\n\n%s",
		name, description)
}

func technicalEvalInstruction() string {
	return "Evaluate the technical plausibility of the chapter above given each character's expertise. " +
		"Respond with a json object holding a \"score\" from 0 to 100 and a \"comments\" array of " +
		"negative findings ordered by importance. Respond with the json object and nothing else."
}

func entertainmentEvalInstruction() string {
	return "Evaluate how entertaining the chapter above is in the context of the story so far. " +
		"Respond with a json object holding a \"score\" from 0 to 100 and a \"comments\" array of " +
		"negative findings ordered by importance. Respond with the json object and nothing else."
}

func expertiseFraming(name, expertise string) string {
	return fmt.Sprintf("The character %s has expertise in the following:\n%s", name, expertise)
}

func editPrompt(prompt, rules, selection string) string {
	var b strings.Builder
	b.WriteString("Rewrite the passage below. ")
	b.WriteString(prompt)
	if rules != "" {
		b.WriteString("\nFollow these style rules:\n")
		b.WriteString(rules)
	}
	b.WriteString("\nOnly include the rewritten passage in the response:\n\n")
	b.WriteString(selection)
	return b.String()
}
