package relation

import (
	"fmt"
	"strings"

	"github.com/siherrmann/docgrapher/model"
)

const judgmentSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "description": {"type": "string"},
    "bidirectional": {"type": "boolean"}
  },
  "required": ["type", "confidence", "description", "bidirectional"],
  "additionalProperties": false
}`

const systemPromptTemplate = `You characterize the relationship between a source document and a related target.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble,
explanation or markdown. Start your response directly with the opening brace { and end with the
closing brace }. Your output must exactly follow this schema:

%s

Rules:
- "type" must be exactly one of the allowed types listed in the request.
- "confidence" is a number from 0 (unrelated) to 1 (certain).
- "description" is one short sentence explaining the relationship.
- "bidirectional" is true only if the relationship also holds from the target to the source.
- No trailing commas, no extra keys and no text outside the object.`

const userPromptTemplate = `Source document: %s
Summary: %s

Source content:
%s

Target (%s): %s
Discovered by: %s (score %.3f)
Evidence: %s

Allowed types: %s`

// BuildSystemPrompt returns the instructions shared by all characterization requests.
func BuildSystemPrompt() string {
	return fmt.Sprintf(systemPromptTemplate, judgmentSchema)
}

// BuildUserPrompt renders the request for one candidate.
func BuildUserPrompt(prompt PromptContext) string {
	summary := prompt.DocumentSummary
	if summary == "" {
		summary = "(none)"
	}
	evidence := prompt.Candidate.Evidence
	if evidence == "" {
		evidence = "(none)"
	}
	title := prompt.Candidate.TargetTitle
	if title == "" {
		title = prompt.Candidate.TargetID.String()
	}

	allowed := make([]string, len(prompt.AllowedTypes))
	for i, t := range prompt.AllowedTypes {
		allowed[i] = string(t)
	}

	return fmt.Sprintf(userPromptTemplate,
		prompt.DocumentTitle,
		summary,
		prompt.DocumentPreview,
		prompt.Candidate.Category,
		title,
		prompt.Candidate.Source,
		prompt.Candidate.Score,
		evidence,
		strings.Join(allowed, ", "),
	)
}

// NewPromptContext assembles the context of one candidate. The preview is the
// first maxChars runes of the content.
func NewPromptContext(doc *model.Document, analysis *model.Analysis, candidate *model.Candidate, maxChars int) PromptContext {
	preview := doc.Content
	if maxChars > 0 {
		runes := []rune(preview)
		if len(runes) > maxChars {
			preview = string(runes[:maxChars])
		}
	}

	summary := ""
	if analysis != nil {
		summary = analysis.Summary
	}

	return PromptContext{
		DocumentTitle:   doc.Title,
		DocumentSummary: summary,
		DocumentPreview: preview,
		Candidate:       candidate,
		AllowedTypes:    model.Vocabulary(candidate.Category),
	}
}
