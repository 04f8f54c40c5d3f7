package convert

import (
	"regexp"
	"strings"

	"github.com/siherrmann/docgrapher/model"
)

var (
	atxHeading = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?(?:[ \t]+#+)?[ \t]*$`)
	imageLink  = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
)

// MarkdownConverter extracts ATX headings and images from markdown.
// The content is kept as is, heading offsets point at the start of the heading line.
type MarkdownConverter struct{}

// Convert normalizes line endings and collects the heading structure.
// Headings inside fenced code blocks are ignored.
func (MarkdownConverter) Convert(raw []byte) (*Converted, error) {
	content := normalizeText(raw)

	converted := &Converted{
		Content:   content,
		Structure: []model.Heading{},
		Assets:    []model.Asset{},
	}

	fence := ""
	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		lineStart := offset
		offset += len(line)
		trimmed := strings.TrimRight(line, "\n")

		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(marker, fence):
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}

		if match := atxHeading.FindStringSubmatch(trimmed); match != nil {
			converted.Structure = append(converted.Structure, model.Heading{
				Title:  strings.TrimSpace(match[2]),
				Level:  len(match[1]),
				Offset: lineStart,
			})
			continue
		}

		for _, image := range imageLink.FindAllStringSubmatch(trimmed, -1) {
			converted.Assets = append(converted.Assets, model.Asset{
				Name:      image[1],
				MediaType: "image",
				URI:       image[2],
			})
		}
	}

	return converted, nil
}

// fenceMarker returns the fence characters opening or closing a code block, or "".
func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return ""
	}
	for _, c := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, c) {
			n := len(trimmed) - len(strings.TrimLeft(trimmed, c[:1]))
			return strings.Repeat(c[:1], n)
		}
	}
	return ""
}
