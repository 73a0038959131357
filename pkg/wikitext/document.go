// Package wikitext defines the structured tree produced by a wikitext parser
// and ships a small regex based parser for MediaWiki markup.
//
// The tree mirrors the JSON shape emitted by common wikitext parsers: every
// node keeps its payload under "data", so a tree decoded from an external
// parser may legitimately be missing nested objects. Consumers must validate.
package wikitext

import (
	"encoding/json"
	"fmt"
)

const (
	TypePage     = "page"
	TypeRedirect = "redirect"
)

// Parser converts raw article markup into a Document.
type Parser interface {
	Parse(markup string) (*Document, error)
}

type Document struct {
	Type        string        `json:"type"`
	Categories  []string      `json:"categories"`
	Coordinates []Coordinate  `json:"coordinates"`
	RedirectTo  *Redirect     `json:"redirectTo,omitempty"`
	Sections    []SectionNode `json:"sections"`
}

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Redirect struct {
	Page string `json:"page"`
}

type SectionNode struct {
	Depth int          `json:"depth"`
	Data  *SectionData `json:"data"`
}

type SectionData struct {
	Title      string          `json:"title"`
	Paragraphs []ParagraphNode `json:"paragraphs"`
	References []ReferenceNode `json:"references"`
}

type ParagraphNode struct {
	Data *ParagraphData `json:"data"`
}

type ParagraphData struct {
	Sentences []SentenceNode `json:"sentences"`
	Lists     []ListNode     `json:"lists"`
	Images    []ImageNode    `json:"images"`
}

// ListNode carries its sentences directly under "data".
type ListNode struct {
	Data []SentenceNode `json:"data"`
}

type SentenceNode struct {
	Data *SentenceData `json:"data"`
}

type SentenceData struct {
	Text  string     `json:"text"`
	Links []LinkNode `json:"links"`
}

type LinkNode struct {
	Page string `json:"page"`
	Text string `json:"text"`
}

type ImageNode struct {
	Data *ImageData `json:"data"`
}

type ImageData struct {
	File    string       `json:"file"`
	Caption *CaptionNode `json:"caption"`
}

type CaptionNode struct {
	Data *CaptionData `json:"data"`
}

type CaptionData struct {
	Caption string `json:"caption"`
}

// ReferenceNode payloads are passed through untouched.
type ReferenceNode struct {
	Data json.RawMessage `json:"data"`
}

// DecodeDocument reads a tree serialized by an external parser.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode wikitext document: %w", err)
	}
	return &doc, nil
}
