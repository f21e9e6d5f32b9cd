package docs

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hubenschmidt/go-docsrag/core"
)

const bom = "\ufeff"

var openMarkers = []string{"---", "= yaml ="}

// ParseFrontMatter splits raw into YAML metadata and body.
//
// The block must start on the first line with "---" or "= yaml =" and end
// at the first later line holding the same marker or "...". One newline
// after the closing marker is consumed. Without a complete block the
// metadata is empty and the body is raw unchanged. A block holding valid
// YAML that is not a mapping also yields empty metadata.
func ParseFrontMatter(raw string) (core.ParsedDocument, error) {
	noFrontMatter := core.ParsedDocument{Metadata: map[string]any{}, Body: raw}

	text := strings.TrimPrefix(raw, bom)
	first, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return noFrontMatter, nil
	}
	marker := strings.TrimSuffix(first, "\r")
	if !isOpenMarker(marker) {
		return noFrontMatter, nil
	}

	block, body, ok := splitAtClose(rest, marker)
	if !ok {
		return noFrontMatter, nil
	}

	var value any
	if err := yaml.Unmarshal([]byte(block), &value); err != nil {
		return core.ParsedDocument{}, fmt.Errorf("malformed front matter: %w", err)
	}
	metadata, ok := value.(map[string]any)
	if !ok {
		metadata = map[string]any{}
	}
	return core.ParsedDocument{Metadata: metadata, Body: body}, nil
}

func isOpenMarker(line string) bool {
	for _, m := range openMarkers {
		if line == m {
			return true
		}
	}
	return false
}

// splitAtClose finds the closing line in text and returns the YAML block
// before it and the body after it.
func splitAtClose(text, marker string) (block, body string, ok bool) {
	offset := 0
	for {
		line, next, more := strings.Cut(text[offset:], "\n")
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == marker || trimmed == "..." {
			block = text[:offset]
			if more {
				body = text[offset+len(line)+1:]
			}
			return block, body, true
		}
		if !more {
			return "", "", false
		}
		offset = len(text) - len(next)
	}
}
