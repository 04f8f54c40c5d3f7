package relation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/siherrmann/docgrapher/model"
)

var (
	featureReferencePattern = regexp.MustCompile(`(?i)\bfeature\s*#\s*(\d+)`)
	roadmapReferencePattern = regexp.MustCompile(`(?i)\broadmap\s+item\s*#\s*(\d+)`)
	titleReferencePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsee\s+(?:the\s+)?documentation\s+on\s+'([^'\n]+)'`),
		regexp.MustCompile(`(?i)\bsee\s+the\s+"([^"\n]+)"\s+document`),
	}
)

// Reference is an explicit textual reference found in a document.
// Either ExternalID (with Category) or Title is set.
type Reference struct {
	Category   model.Category
	ExternalID string
	Title      string
	Text       string
	Position   int
}

// FindReferences returns the explicit references of content ordered by position.
// Repeated references to the same target are reported once, at their first position.
func FindReferences(content string) []Reference {
	references := []Reference{}
	seen := map[string]bool{}

	add := func(r Reference) {
		key := string(r.Category) + ":" + r.ExternalID + ":" + model.NormalizeName(r.Title)
		if seen[key] {
			return
		}
		seen[key] = true
		references = append(references, r)
	}

	for _, m := range featureReferencePattern.FindAllStringSubmatchIndex(content, -1) {
		add(Reference{
			Category:   model.CategoryFeature,
			ExternalID: content[m[2]:m[3]],
			Text:       content[m[0]:m[1]],
			Position:   m[0],
		})
	}
	for _, m := range roadmapReferencePattern.FindAllStringSubmatchIndex(content, -1) {
		add(Reference{
			Category:   model.CategoryRoadmapItem,
			ExternalID: content[m[2]:m[3]],
			Text:       content[m[0]:m[1]],
			Position:   m[0],
		})
	}
	for _, pattern := range titleReferencePatterns {
		for _, m := range pattern.FindAllStringSubmatchIndex(content, -1) {
			title := strings.TrimSpace(content[m[2]:m[3]])
			if title == "" {
				continue
			}
			add(Reference{
				Title:    title,
				Text:     content[m[0]:m[1]],
				Position: m[0],
			})
		}
	}

	sort.SliceStable(references, func(i, j int) bool {
		return references[i].Position < references[j].Position
	})

	return references
}
