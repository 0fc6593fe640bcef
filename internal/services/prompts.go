package services

import "fmt"

// DefaultSystemPrompt frames the model as a video summarizer.
const DefaultSystemPrompt = "You are a helpful assistant that creates comprehensive summaries of video transcriptions. " +
	"Your summaries should be informative and well-structured, capturing both the key points and the deeper context."

const sectionFormat = `Please provide a comprehensive summary of this video transcription in the following format:

## Key Highlights
- [3-5 bullet points of the most important takeaways]

## Main Points
- [Detailed bullet points covering the major topics and arguments]

## Detailed Summary
[A few paragraphs providing a narrative summary of the content]

`

func summaryPrompt(transcript string) string {
	return sectionFormat + "Transcription:\n" + transcript
}

func summaryFromNotesPrompt(notes string) string {
	return sectionFormat +
		"The transcription was too long to send at once. Below are notes taken from each consecutive part of it, in order. " +
		"Summarize the whole video, not just the last part.\n\nNotes:\n" + notes
}

func chunkNotesPrompt(part, total int, chunk string) string {
	return fmt.Sprintf("This is part %d of %d of a video transcription. "+
		"Write concise notes covering every topic, argument, name and figure mentioned in this part. "+
		"Use plain bullet points and do not add a conclusion.\n\nTranscription part %d:\n%s", part, total, part, chunk)
}
