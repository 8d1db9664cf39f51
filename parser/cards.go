package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CardSource splits one catalogue page into per-product markup blocks.
// Implementations must return blocks in document order.
type CardSource interface {
	Cards(rawHTML string) ([]string, error)
}

// productCardBlock captures a card up to the third consecutive closing div. It
// assumes the upstream card nests exactly two div levels deep.
var productCardBlock = regexp.MustCompile(`(?is)<div class="card product-card">.*?</div>\s*</div>\s*</div>`)

// RegexCardSource matches cards with a fixed-nesting-depth pattern.
type RegexCardSource struct{}

// NewRegexCardSource returns the pattern based card source.
func NewRegexCardSource() RegexCardSource {
	return RegexCardSource{}
}

// Cards returns every non-overlapping card block in rawHTML.
func (RegexCardSource) Cards(rawHTML string) ([]string, error) {
	return productCardBlock.FindAllString(rawHTML, -1), nil
}

// DOMCardSource walks the parsed HTML tree and returns the outer HTML of each
// element matching Selector, whatever its nesting depth.
type DOMCardSource struct {
	Selector string
}

// NewDOMCardSource returns a tree based card source for product cards.
func NewDOMCardSource() DOMCardSource {
	return DOMCardSource{Selector: "div.card.product-card"}
}

// Cards parses rawHTML and renders each matching card back to markup.
func (s DOMCardSource) Cards(rawHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		blocks   []string
		firstErr error
	)
	doc.Find(s.Selector).Each(func(_ int, sel *goquery.Selection) {
		block, err := goquery.OuterHtml(sel)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		blocks = append(blocks, block)
	})
	if len(blocks) == 0 && firstErr != nil {
		return nil, fmt.Errorf("render card: %w", firstErr)
	}
	return blocks, nil
}

// NewCardSource returns the card source registered under name.
func NewCardSource(name string) (CardSource, error) {
	switch name {
	case "", "regex":
		return NewRegexCardSource(), nil
	case "dom":
		return NewDOMCardSource(), nil
	default:
		return nil, fmt.Errorf("unknown card source %q", name)
	}
}
