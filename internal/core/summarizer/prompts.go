package summarizer

import (
	"fmt"

	"github.com/markdave123-py/ragdesk/internal/core"
)

const extractSystem = "You extract facts from documents. Reply with bullet points only, no preamble."

var (
	extractParams  = core.DecodingParams{Temperature: 0.2, TopP: 0.9, MaxTokens: 400, RepeatPenalty: 1.2}
	compressParams = core.DecodingParams{Temperature: 0.2, TopP: 0.9, MaxTokens: 600, RepeatPenalty: 1.2}
)

func sectionPrompt(i, total int, text string) string {
	return fmt.Sprintf(`Summarize section %d of %d of a document as 5-8 concise bullets.
Keep concrete facts only: numbers, names, dates, decisions and outcomes. Do not repeat information.

Section:
%s

Bullets:
-`, i, total, text)
}

func compressPrompt(notes string) string {
	return fmt.Sprintf(`The notes below were taken section by section from one document.
Merge them into fewer bullets. Drop duplicates, keep every distinct fact, number and name.

Notes:
%s

Merged bullets:
-`, notes)
}

func finalPrompt(notes string, targetWords int) string {
	return fmt.Sprintf(`Write a summary of the document described by these notes in about %d words.
Use exactly this structure:

Overview:
2-4 sentences on what the document is and its main conclusion.

Key Points:
8-14 bullets with the most important facts.

Actionable Notes/Risks:
3-6 bullets. Include this part only if the document contains actions, deadlines or risks.

Notes:
%s
`, targetWords, notes)
}
