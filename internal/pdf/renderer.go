// Package pdf renders a grimoire content stream to an A5 PDF with go-pdf/fpdf.
package pdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"

	"github.com/grimoire/internal/grimoire"
)

const (
	marginX      = 10.0
	marginY      = 8.0
	titleSize    = 20.0
	headingSize  = 14.0
	subtitleSize = 12.0
	bodySize     = 11.0
	tableSize    = 10.0
	lineHeight   = 5.0
	thumbSize    = 25.0

	coreFont    = "Times"
	bodyFamily  = "grimoire-body"
	titleFamily = "grimoire-title"
)

// Renderer is the fpdf paginator. Fonts named by the document are read from
// fontsDir; when they are missing the core Times font is used.
type Renderer struct {
	fontsDir string
}

func NewRenderer(fontsDir string) *Renderer {
	return &Renderer{fontsDir: fontsDir}
}

type page struct {
	pdf     *fpdf.Fpdf
	body    string
	title   string
	tr      func(string) string
	colors  map[string]RGB
	pending bool
	started bool
}

// Render lays doc out and writes the PDF to w.
func (r *Renderer) Render(w io.Writer, doc grimoire.Document) error {
	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(marginX, marginY, marginX)
	pdf.SetAutoPageBreak(true, marginY)
	pdf.SetTitle(doc.Title, true)

	p := &page{pdf: pdf, colors: resolveColors(doc.Colors)}
	p.body, p.title = r.loadFonts(pdf, doc)
	// Core fonts are cp1252: translate and replace the glyphs it lacks.
	cp1252 := pdf.UnicodeTranslatorFromDescriptor("")
	p.tr = func(s string) string {
		return cp1252(strings.ReplaceAll(s, grimoire.UncheckedBox, "[ ]"))
	}

	for _, block := range doc.Stream {
		if block.Kind == grimoire.BlockPageBreak {
			p.pending = true
			continue
		}
		p.ensurePage()
		p.draw(block)
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("block %s %q: %w", block.Kind, block.Text, err)
		}
	}
	if !p.started {
		pdf.AddPage()
	}
	return pdf.Output(w)
}

// loadFonts registers the document fonts and returns the family names to use
// for body text and titles.
func (r *Renderer) loadFonts(pdf *fpdf.Fpdf, doc grimoire.Document) (body, title string) {
	body, title = coreFont, coreFont
	if r.loadFont(pdf, bodyFamily, doc.Fonts.Body) {
		body, title = bodyFamily, bodyFamily
	}
	if r.loadFont(pdf, titleFamily, doc.Fonts.Title) {
		title = titleFamily
	}
	return body, title
}

func (r *Renderer) loadFont(pdf *fpdf.Fpdf, family, file string) bool {
	if file == "" {
		return false
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.fontsDir, file)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("font", path).Msg("Font not found, using core font")
		return false
	}
	// An unparsable file is dropped silently; SetFont surfaces it.
	pdf.AddUTF8FontFromBytes(family, "", data)
	if pdf.Ok() {
		pdf.SetFont(family, "", bodySize)
	}
	if err := pdf.Error(); err != nil {
		log.Warn().Err(err).Str("font", path).Msg("Unusable font, using core font")
		pdf.ClearError()
		return false
	}
	return true
}

func resolveColors(roles map[string]string) map[string]RGB {
	out := make(map[string]RGB, len(roles))
	for role, value := range roles {
		c, err := ParseColor(value)
		if err != nil {
			log.Warn().Err(err).Str("role", role).Msg("Ignoring color")
			continue
		}
		out[role] = c
	}
	return out
}

func (p *page) ensurePage() {
	if !p.started || p.pending {
		p.pdf.AddPage()
		p.started = true
		p.pending = false
	}
}

func (p *page) color(role string) {
	c := p.colors[role]
	p.pdf.SetTextColor(c.R, c.G, c.B)
}

func (p *page) text(family string, s string) string {
	if family == coreFont {
		return p.tr(s)
	}
	return s
}

func (p *page) contentWidth() float64 {
	w, _ := p.pdf.GetPageSize()
	return w - 2*marginX
}

func (p *page) draw(b grimoire.Block) {
	pdf := p.pdf
	switch b.Kind {
	case grimoire.BlockTitle:
		pdf.SetFont(p.title, "", titleSize)
		p.color(grimoire.ColorTitle)
		pdf.MultiCell(0, 9, p.text(p.title, b.Text), "", "C", false)
		pdf.Ln(4)

	case grimoire.BlockSubtitle:
		pdf.SetFont(p.body, "", subtitleSize)
		p.color(grimoire.ColorSubtitle)
		pdf.MultiCell(0, 6, p.text(p.body, b.Text), "", "C", false)
		pdf.Ln(3)

	case grimoire.BlockHeading:
		pdf.Ln(2)
		pdf.SetFont(p.title, "", headingSize)
		p.color(grimoire.ColorTitle)
		pdf.MultiCell(0, 7, p.text(p.title, b.Text), "", "L", false)

	case grimoire.BlockTOCEntry:
		pdf.SetFont(p.body, "", bodySize)
		p.color(grimoire.ColorBody)
		pdf.CellFormat(8, 6, p.text(p.body, b.Marker), "", 0, "C", false, 0, "")
		pdf.CellFormat(0, 6, p.text(p.body, b.Text), "", 1, "L", false, 0, "")

	case grimoire.BlockSpellTitle:
		p.spellTitle(b)

	case grimoire.BlockSummary:
		pdf.SetFont(p.body, "", tableSize)
		col := p.contentWidth() / 3
		for i, row := range b.Rows {
			if i%2 == 0 {
				p.color(grimoire.ColorSubtitle)
			} else {
				p.color(grimoire.ColorBody)
			}
			for _, cell := range row {
				pdf.CellFormat(col, 6, p.text(p.body, cell), "", 0, "C", false, 0, "")
			}
			pdf.Ln(6)
		}
		pdf.Ln(3)

	case grimoire.BlockInfo:
		pdf.SetFont(p.body, "", bodySize)
		p.color(grimoire.ColorSubtitle)
		pdf.Write(lineHeight, p.text(p.body, b.Label+" : "))
		p.color(grimoire.ColorBody)
		pdf.Write(lineHeight, p.text(p.body, b.Text))
		pdf.Ln(lineHeight + 1)

	case grimoire.BlockLabel:
		pdf.Ln(2)
		pdf.SetFont(p.body, "", subtitleSize)
		p.color(grimoire.ColorSubtitle)
		pdf.MultiCell(0, 6, p.text(p.body, b.Text), "", "L", false)

	case grimoire.BlockParagraph:
		pdf.SetFont(p.body, "", bodySize)
		p.color(grimoire.ColorBody)
		pdf.MultiCell(0, lineHeight, p.text(p.body, b.Text), "", "L", false)
		pdf.Ln(1)

	case grimoire.BlockImage:
		width := p.contentWidth()
		opts := fpdf.ImageOptions{ReadDpi: true}
		pdf.ImageOptions(b.Image, marginX, pdf.GetY(), width, 0, true, opts, 0, "")
		pdf.Ln(2)
	}
}

func (p *page) spellTitle(b grimoire.Block) {
	pdf := p.pdf
	pdf.SetFont(p.title, "", titleSize)
	p.color(grimoire.ColorTitle)

	if b.Image == "" {
		pdf.MultiCell(0, 9, p.text(p.title, b.Text), "", "L", false)
		pdf.Ln(3)
		return
	}

	top := pdf.GetY()
	right, _ := pdf.GetPageSize()
	pdf.ImageOptions(b.Image, right-marginX-thumbSize, top, thumbSize, thumbSize, false,
		fpdf.ImageOptions{ReadDpi: true}, 0, "")
	pdf.SetXY(marginX, top+(thumbSize-9)/2)
	pdf.MultiCell(p.contentWidth()-thumbSize-2, 9, p.text(p.title, b.Text), "", "L", false)
	if y := top + thumbSize + 3; pdf.GetY() < y {
		pdf.SetY(y)
	}
}
