package wikitext

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	reRedirect = regexp.MustCompile(`(?i)^\s*#REDIRECT\s*:?\s*\[\[([^\]|#]+)`)
	reComment  = regexp.MustCompile(`<!--[\s\S]*?-->`)
	reCategory = regexp.MustCompile(`(?i)\[\[\s*(?:Category|Kategorija|Kategorie)\s*:\s*([^\]|]+)(?:\|[^\]]*)?\]\]`)
	reCoord    = regexp.MustCompile(`(?i)\{\{\s*coord\s*\|([^{}]*)\}\}`)
	reHeading  = regexp.MustCompile(`^(={2,6})\s*(.+?)\s*={2,6}\s*$`)
	reRefEmpty = regexp.MustCompile(`<ref\b([^>]*?)/>`)
	reRef      = regexp.MustCompile(`<ref\b([^>]*)>([\s\S]*?)</ref>`)
	reRefName  = regexp.MustCompile(`name\s*=\s*(?:"([^"]*)"|([^\s">]+))`)
	reTemplate = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	reTable    = regexp.MustCompile(`(?s)\{\|.*?\|\}`)
	reLink     = regexp.MustCompile(`\[\[([^\[\]|]*)(?:\|([^\[\]]*))?\]\]`)
	reExtLink  = regexp.MustCompile(`\[https?://[^\s\]]+(?:\s([^\]]*))?\]`)
	reHTML     = regexp.MustCompile(`<[^>]+>`)
	reEmphasis = regexp.MustCompile(`'{2,}`)
	reSpaces   = regexp.MustCompile(`\s+`)
	reListItem = regexp.MustCompile(`^[*#]+\s*`)
	reIndent   = regexp.MustCompile(`^[:;]+\s*`)
	reImage    = regexp.MustCompile(`(?i)\[\[\s*(?:file|image|slika|datei)\s*:`)
)

var imageOptions = map[string]struct{}{
	"thumb": {}, "thumbnail": {}, "frame": {}, "frameless": {}, "border": {},
	"left": {}, "right": {}, "center": {}, "centre": {}, "none": {},
	"upright": {}, "baseline": {}, "middle": {}, "top": {}, "bottom": {},
}

// MarkupParser is a best effort MediaWiki markup parser. It understands
// redirects, headings, paragraphs, bullet and numbered lists, internal links,
// file embeds, references, categories and {{coord}} templates. Everything
// else (templates, tables, HTML) is stripped.
type MarkupParser struct{}

func NewMarkupParser() *MarkupParser {
	return &MarkupParser{}
}

func (p *MarkupParser) Parse(markup string) (*Document, error) {
	doc := &Document{
		Type:        TypePage,
		Categories:  []string{},
		Coordinates: []Coordinate{},
		Sections:    []SectionNode{},
	}

	if m := reRedirect.FindStringSubmatch(markup); m != nil {
		doc.Type = TypeRedirect
		doc.RedirectTo = &Redirect{Page: strings.TrimSpace(m[1])}
		return doc, nil
	}

	text := reComment.ReplaceAllString(markup, "")
	for _, m := range reCategory.FindAllStringSubmatch(text, -1) {
		doc.Categories = append(doc.Categories, strings.TrimSpace(m[1]))
	}
	text = reCategory.ReplaceAllString(text, "")

	for _, m := range reCoord.FindAllStringSubmatch(text, -1) {
		if c, ok := parseCoord(m[1]); ok {
			doc.Coordinates = append(doc.Coordinates, c)
		}
	}

	depth, title := 0, ""
	var body []string
	for _, line := range strings.Split(text, "\n") {
		if m := reHeading.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			doc.Sections = append(doc.Sections, parseSection(depth, title, body))
			depth, title, body = len(m[1])-2, cleanText(m[2]), nil
			continue
		}
		body = append(body, line)
	}
	doc.Sections = append(doc.Sections, parseSection(depth, title, body))

	return doc, nil
}

func parseSection(depth int, title string, lines []string) SectionNode {
	body := strings.Join(lines, "\n")
	data := &SectionData{
		Title:      title,
		Paragraphs: []ParagraphNode{},
		References: []ReferenceNode{},
	}

	for _, m := range reRefEmpty.FindAllStringSubmatch(body, -1) {
		data.References = append(data.References, reference(m[1], ""))
	}
	body = reRefEmpty.ReplaceAllString(body, "")
	for _, m := range reRef.FindAllStringSubmatch(body, -1) {
		data.References = append(data.References, reference(m[1], m[2]))
	}
	body = reRef.ReplaceAllString(body, "")
	body = stripTemplates(body)
	body = reTable.ReplaceAllString(body, "")

	for _, block := range strings.Split(body, "\n\n") {
		if para, ok := parseParagraph(block); ok {
			data.Paragraphs = append(data.Paragraphs, para)
		}
	}

	return SectionNode{Depth: depth, Data: data}
}

func reference(attrs, content string) ReferenceNode {
	payload := struct {
		Name    string `json:"name,omitempty"`
		Content string `json:"content,omitempty"`
	}{Content: strings.TrimSpace(content)}
	if m := reRefName.FindStringSubmatch(attrs); m != nil {
		payload.Name = strings.TrimSpace(m[1] + m[2])
	}
	raw, _ := json.Marshal(payload)
	return ReferenceNode{Data: raw}
}

func stripTemplates(s string) string {
	for {
		next := reTemplate.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

func parseParagraph(block string) (ParagraphNode, bool) {
	data := &ParagraphData{
		Sentences: []SentenceNode{},
		Lists:     []ListNode{},
		Images:    []ImageNode{},
	}

	var prose []string
	var items []SentenceNode
	flushList := func() {
		if len(items) > 0 {
			data.Lists = append(data.Lists, ListNode{Data: items})
			items = nil
		}
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		images, rest := extractImages(line)
		data.Images = append(data.Images, images...)
		rest = strings.TrimSpace(rest)
		if rest == "" || strings.HasPrefix(rest, "|") || strings.HasPrefix(rest, "!") {
			continue
		}
		if reListItem.MatchString(rest) {
			if s, ok := sentence(reListItem.ReplaceAllString(rest, "")); ok {
				items = append(items, s)
			}
			continue
		}
		flushList()
		prose = append(prose, reIndent.ReplaceAllString(rest, ""))
	}
	flushList()

	for _, raw := range splitSentences(strings.Join(prose, " ")) {
		if s, ok := sentence(raw); ok {
			data.Sentences = append(data.Sentences, s)
		}
	}

	if len(data.Sentences) == 0 && len(data.Lists) == 0 && len(data.Images) == 0 {
		return ParagraphNode{}, false
	}
	return ParagraphNode{Data: data}, true
}

func sentence(raw string) (SentenceNode, bool) {
	links := []LinkNode{}
	for _, m := range reLink.FindAllStringSubmatch(raw, -1) {
		page := m[1]
		if i := strings.IndexByte(page, '#'); i >= 0 {
			page = page[:i]
		}
		page = strings.TrimSpace(page)
		display := strings.TrimSpace(m[2])
		if display == "" {
			display = strings.TrimSpace(m[1])
		}
		links = append(links, LinkNode{Page: page, Text: display})
	}

	text := cleanText(raw)
	if text == "" {
		return SentenceNode{}, false
	}
	return SentenceNode{Data: &SentenceData{Text: text, Links: links}}, true
}

// cleanText reduces inline markup to its visible text.
func cleanText(s string) string {
	s = reLink.ReplaceAllStringFunc(s, func(m string) string {
		parts := reLink.FindStringSubmatch(m)
		if parts[2] != "" {
			return parts[2]
		}
		return parts[1]
	})
	s = reExtLink.ReplaceAllString(s, "$1")
	s = reHTML.ReplaceAllString(s, "")
	s = reEmphasis.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// extractImages removes [[File:...]] and [[Image:...]] embeds from line.
// Captions may contain nested links, so brackets are matched by depth.
func extractImages(line string) ([]ImageNode, string) {
	var images []ImageNode
	var rest strings.Builder

	for {
		start := imageStart(line)
		if start < 0 {
			rest.WriteString(line)
			break
		}
		end := matchBrackets(line, start)
		if end < 0 {
			rest.WriteString(line)
			break
		}
		rest.WriteString(line[:start])
		images = append(images, image(line[start+2:end-2]))
		line = line[end:]
	}
	return images, rest.String()
}

func imageStart(s string) int {
	loc := reImage.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// matchBrackets returns the index just past the "]]" closing the "[[" at start.
func matchBrackets(s string, start int) int {
	depth := 0
	for i := start; i+1 < len(s); i++ {
		switch {
		case s[i] == '[' && s[i+1] == '[':
			depth++
			i++
		case s[i] == ']' && s[i+1] == ']':
			depth--
			i++
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func image(inner string) ImageNode {
	parts := splitTopLevel(inner)
	file := parts[0]
	if i := strings.IndexByte(file, ':'); i >= 0 {
		file = file[i+1:]
	}

	caption := ""
	if len(parts) > 1 {
		last := strings.TrimSpace(parts[len(parts)-1])
		if !isImageOption(last) {
			caption = cleanText(last)
		}
	}

	return ImageNode{Data: &ImageData{
		File:    strings.TrimSpace(file),
		Caption: &CaptionNode{Data: &CaptionData{Caption: caption}},
	}}
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "[["):
			depth++
			i++
		case strings.HasPrefix(s[i:], "]]"):
			depth--
			i++
		case s[i] == '|' && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}

func isImageOption(s string) bool {
	lower := strings.ToLower(s)
	if _, ok := imageOptions[lower]; ok {
		return true
	}
	if strings.HasSuffix(lower, "px") || strings.Contains(lower, "=") {
		return true
	}
	return false
}

// splitSentences cuts after ".", "!" or "?" when followed by whitespace and
// an upper case letter, a digit or a quote. Link targets are never cut.
func splitSentences(s string) []string {
	runes := []rune(s)
	var out []string
	start, depth := 0, 0
	for i := 0; i < len(runes); i++ {
		if i+1 < len(runes) && runes[i] == '[' && runes[i+1] == '[' {
			depth++
			continue
		}
		if i+1 < len(runes) && runes[i] == ']' && runes[i+1] == ']' && depth > 0 {
			depth--
			continue
		}
		if depth > 0 || (runes[i] != '.' && runes[i] != '!' && runes[i] != '?') {
			continue
		}
		j := i + 1
		if j >= len(runes) || !unicode.IsSpace(runes[j]) {
			continue
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j < len(runes) && (unicode.IsUpper(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '"' || runes[j] == '\'') {
			out = append(out, strings.TrimSpace(string(runes[start:i+1])))
			start = j
			i = j - 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// parseCoord understands decimal ("46.05|14.51") and degree/minute/second
// forms with hemisphere letters ("46|3|N|14|30|E").
func parseCoord(params string) (Coordinate, bool) {
	var nums []float64
	var lat, lon float64
	var haveLat, haveLon bool

	dms := func() float64 {
		v := 0.0
		for i, n := range nums {
			switch i {
			case 0:
				v = n
			case 1:
				v += n / 60
			case 2:
				v += n / 3600
			}
		}
		nums = nil
		return v
	}

	for _, field := range strings.Split(params, "|") {
		field = strings.TrimSpace(field)
		if field == "" || strings.Contains(field, "=") || strings.Contains(field, ":") {
			continue
		}
		switch strings.ToUpper(field) {
		case "N", "S":
			lat, haveLat = dms(), true
			if strings.EqualFold(field, "S") {
				lat = -lat
			}
			continue
		case "E", "W":
			lon, haveLon = dms(), true
			if strings.EqualFold(field, "W") {
				lon = -lon
			}
			continue
		}
		if n, err := strconv.ParseFloat(field, 64); err == nil {
			nums = append(nums, n)
		}
	}

	if haveLat && haveLon {
		return Coordinate{Lat: lat, Lon: lon}, true
	}
	if !haveLat && !haveLon && len(nums) >= 2 {
		return Coordinate{Lat: nums[0], Lon: nums[1]}, true
	}
	return Coordinate{}, false
}
