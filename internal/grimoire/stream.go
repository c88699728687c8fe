package grimoire

import (
	"io"

	"github.com/grimoire/internal/theme"
)

// BlockKind identifies an abstract content block.
type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockSubtitle
	BlockHeading
	BlockTOCEntry
	BlockSpellTitle
	BlockSummary
	BlockInfo
	BlockLabel
	BlockParagraph
	BlockImage
	BlockPageBreak
)

var blockNames = map[BlockKind]string{
	BlockTitle:      "title",
	BlockSubtitle:   "subtitle",
	BlockHeading:    "heading",
	BlockTOCEntry:   "toc_entry",
	BlockSpellTitle: "spell_title",
	BlockSummary:    "summary",
	BlockInfo:       "info",
	BlockLabel:      "label",
	BlockParagraph:  "paragraph",
	BlockImage:      "image",
	BlockPageBreak:  "page_break",
}

func (k BlockKind) String() string {
	if name, ok := blockNames[k]; ok {
		return name
	}
	return "unknown"
}

// Block is one element of the content stream.
//
//	Title, Subtitle, Heading, Label, Paragraph: Text
//	TOCEntry: Marker ("R" or the unchecked box) and Text
//	SpellTitle: Text and an optional inline Image
//	Summary: Rows of header/value cells
//	Info: Label and Text
//	Image: Image, full width
type Block struct {
	Kind   BlockKind
	Text   string
	Label  string
	Marker string
	Image  string
	Rows   [][]string
}

// Stream is the ordered content handed to the paginator.
type Stream []Block

// Count returns how many blocks of kind k the stream holds.
func (s Stream) Count(k BlockKind) int {
	n := 0
	for _, b := range s {
		if b.Kind == k {
			n++
		}
	}
	return n
}

// Document is everything a paginator needs to render a grimoire.
type Document struct {
	Title  string
	Colors map[string]string
	Fonts  theme.Fonts
	Stream Stream
}

// Paginator lays a document out into pages and writes the result to w.
type Paginator interface {
	Render(w io.Writer, doc Document) error
}
