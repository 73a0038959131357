package wiki

import (
	"fmt"
	"strings"

	"github.com/ErikNovak/wikipedia-dump-parsing/pkg/wikitext"
)

// Link is an internal cross reference found in a sentence.
type Link struct {
	Page     string `json:"page"`
	Text     string `json:"text"`
	Language string `json:"language"`
	// URL is empty when either Page or Language is missing.
	URL string `json:"url"`
}

func NewLink(node wikitext.LinkNode, language string) Link {
	return Link{
		Page:     node.Page,
		Text:     node.Text,
		Language: language,
		URL:      PageURL(language, node.Page),
	}
}

// PageURL returns https://{language}.wikipedia.org/wiki/{title} with spaces
// replaced by underscores, or "" if either part is missing.
func PageURL(language, title string) string {
	if language == "" || title == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", language, strings.ReplaceAll(title, " ", "_"))
}

// PageID is the storage identity of a page: "{title}"@{language}. The title
// is taken verbatim, quotes and backslashes are not escaped.
func PageID(title, language string) string {
	return `"` + title + `"@` + language
}

// uniqueLinks concatenates the groups and keeps the first link per URL.
// Links without a URL collapse into a single entry as well.
func uniqueLinks(groups ...[]Link) []Link {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	seen := make(map[string]struct{}, total)
	out := make([]Link, 0, total)
	for _, g := range groups {
		for _, l := range g {
			if _, ok := seen[l.URL]; ok {
				continue
			}
			seen[l.URL] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
