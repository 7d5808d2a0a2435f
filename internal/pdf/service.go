package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Masthead colors: black band, gold rule
var (
	goldR, goldG, goldB = 250, 225, 0
)

// Service renders compiled newsletters to branded PDF documents.
type Service struct {
	masthead string
	logger   arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Renderer = (*Service)(nil)

// NewService creates a new PDF rendering service. The masthead is the
// two-word brand drawn in the header band; the first word is set in gold,
// the rest in white.
func NewService(masthead string, logger arbor.ILogger) *Service {
	if masthead == "" {
		masthead = "Folio Diligence"
	}
	return &Service{
		masthead: masthead,
		logger:   logger,
	}
}

// RenderNewsletter renders the compiled newsletter to PDF bytes. An empty
// body renders a "no relevant stories" document, never an error.
func (s *Service) RenderNewsletter(newsletter *models.CompiledNewsletter) ([]byte, error) {
	body := newsletter.Body
	if strings.TrimSpace(body) == "" {
		body = "_No relevant stories in this edition._"
	}

	var md strings.Builder
	if newsletter.Title != "" {
		md.WriteString("## " + newsletter.Title + "\n\n")
	}
	md.WriteString(body)

	return s.renderMarkdown(md.String())
}

// RenderSections renders per-ticker sections to PDF bytes. Each story is laid
// out in the ticker/title/body/explanation/confidence shape.
func (s *Service) RenderSections(title string, sections []models.TickerSection) ([]byte, error) {
	var md strings.Builder
	if title != "" {
		md.WriteString("## " + title + "\n\n")
	}

	if len(sections) == 0 {
		md.WriteString("_No relevant stories in this edition._\n")
		return s.renderMarkdown(md.String())
	}

	for i, section := range sections {
		for _, story := range section.Stories {
			md.WriteString(fmt.Sprintf("**%s:** *%s*\n\n", section.Ticker, story.Title))
			md.WriteString(story.Body + "\n\n")
			if story.Explanation != "" {
				md.WriteString(fmt.Sprintf("*Explanation:* %s\n\n", story.Explanation))
			}
			md.WriteString(fmt.Sprintf("*Confidence:* %d%%\n\n", story.Confidence))
		}
		if i < len(sections)-1 {
			md.WriteString("---\n\n")
		}
	}

	return s.renderMarkdown(md.String())
}

// renderMarkdown lays the markdown body out under the branded header band.
func (s *Service) renderMarkdown(markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(72, 72, 72)
	pdf.SetAutoPageBreak(true, 72)
	pdf.AddPage()

	s.drawHeader(pdf)

	pdf.SetY(160)
	pdf.SetFont("Times", "", 12)
	pdf.SetTextColor(0, 0, 0)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &bodyRenderer{
		pdf:    pdf,
		source: source,
		font:   "Times",
		size:   12,
	}

	if err := renderer.render(doc); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render newsletter body")
		return nil, fmt.Errorf("failed to render newsletter body: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("Newsletter PDF generated")
	return buf.Bytes(), nil
}

// drawHeader paints the first-page masthead: black band, gold rule, brand in
// gold and white Times.
func (s *Service) drawHeader(pdf *fpdf.Fpdf) {
	width, _ := pdf.GetPageSize()

	pdf.SetFillColor(0, 0, 0)
	pdf.Rect(0, 0, width, 120, "F")

	pdf.SetFillColor(goldR, goldG, goldB)
	pdf.Rect(0, 120, width, 2, "F")

	words := strings.SplitN(s.masthead, " ", 2)

	pdf.SetFont("Times", "BI", 36)
	pdf.SetTextColor(goldR, goldG, goldB)
	pdf.Text(72, 80, words[0])

	if len(words) > 1 {
		offset := 72 + pdf.GetStringWidth(words[0]) + 12
		pdf.SetFont("Times", "", 36)
		pdf.SetTextColor(255, 255, 255)
		pdf.Text(offset, 80, words[1])
	}
}

// bodyRenderer walks the goldmark AST and writes it into the PDF.
type bodyRenderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	font   string
	size   float64
	bold   bool
	italic bool
	inList bool
}

func (r *bodyRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *bodyRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *bodyRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering {
			r.pdf.Ln(18)
		}
	case ast.KindText:
		if entering {
			r.pdf.Write(16, string(n.Text(r.source)))
		}
	case ast.KindEmphasis:
		if n.(*ast.Emphasis).Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case ast.KindList:
		r.inList = entering
		if !entering {
			r.pdf.Ln(6)
		}
	case ast.KindListItem:
		if entering {
			r.pdf.Ln(16)
			r.pdf.SetX(86)
			r.pdf.Write(16, "- ")
		}
	case ast.KindThematicBreak:
		if entering {
			width, _ := r.pdf.GetPageSize()
			r.pdf.Ln(8)
			r.pdf.SetDrawColor(goldR, goldG, goldB)
			r.pdf.Line(72, r.pdf.GetY(), width-72, r.pdf.GetY())
			r.pdf.SetDrawColor(0, 0, 0)
			r.pdf.Ln(8)
		}
	}
	return ast.WalkContinue, nil
}

func (r *bodyRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(10)
		size := 18.0
		switch n.Level {
		case 1:
			size = 20
		case 2:
			size = 18
		case 3:
			size = 15
		default:
			size = 13
		}
		r.pdf.SetFont(r.font, "B", size)
	} else {
		r.pdf.Ln(20)
		r.updateFont()
	}
	return ast.WalkContinue, nil
}
