package crawler

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DetailSelectors locates auxiliary fields on a job detail page.
type DetailSelectors struct {
	Title    string
	Employer string
	Location string
	WorkType string
	Salary   string
	Posted   string
}

// Detail is the parsed content of a job detail page.
type Detail struct {
	Text   string
	Fields JobFields
	Misses []error
}

// DetailParser turns detail page HTML into visible text and job fields.
type DetailParser struct {
	selectors DetailSelectors
	location  *time.Location
}

var (
	postedAgoRe = regexp.MustCompile(`(?i)\bposted\s+(\d+)\s*(\+)?\s*(d|h|m)\s+ago\b`)
	whitespace  = regexp.MustCompile(`\s+`)
	hiddenTags  = "script, style, noscript, template, svg, head"

	// inlineTags do not break words; every other element is a word boundary.
	inlineTags = map[string]bool{
		"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "cite": true,
		"code": true, "data": true, "dfn": true, "em": true, "i": true, "kbd": true,
		"mark": true, "q": true, "s": true, "samp": true, "small": true, "span": true,
		"strong": true, "sub": true, "sup": true, "time": true, "u": true, "var": true,
	}
)

// NewDetailParser builds a parser. Posting dates are computed in loc (UTC when nil).
func NewDetailParser(selectors DetailSelectors, loc *time.Location) *DetailParser {
	if loc == nil {
		loc = time.UTC
	}
	return &DetailParser{selectors: selectors, location: loc}
}

// Text parses body and returns only its visible text.
func (p *DetailParser) Text(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return VisibleText(doc), nil
}

// Parse extracts visible text and, when withFields is set, every auxiliary
// field. Per-field failures are collected in Detail.Misses.
func (p *DetailParser) Parse(body []byte, fetchedAt time.Time, withFields bool) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Detail{}, fmt.Errorf("parse html: %w", err)
	}
	detail := Detail{Text: VisibleText(doc)}
	if !withFields {
		return detail, nil
	}

	collect := func(name string) func(*string, error) *string {
		return func(value *string, err error) *string {
			if err != nil {
				detail.Misses = append(detail.Misses, fmt.Errorf("%s: %w", name, err))
				return nil
			}
			return value
		}
	}
	detail.Fields.Title = collect("title")(selectText(doc, p.selectors.Title, false))
	detail.Fields.Employer = collect("employer")(selectFirstText(doc, p.selectors.Employer))
	detail.Fields.Location = collect("location")(selectText(doc, p.selectors.Location, true))
	detail.Fields.WorkType = collect("work_type")(selectText(doc, p.selectors.WorkType, true))
	detail.Fields.Salary = collect("salary")(selectText(doc, p.selectors.Salary, false))

	postedText := detail.Text
	if p.selectors.Posted != "" {
		if sel := doc.Find(p.selectors.Posted).First(); sel.Length() > 0 {
			postedText = spacedText(sel)
		}
	}
	posted, err := PostingDate(postedText, fetchedAt.In(p.location))
	if err != nil {
		detail.Misses = append(detail.Misses, fmt.Errorf("posting_date: %w", err))
	} else {
		detail.Fields.PostingDate = &posted
	}
	return detail, nil
}

// VisibleText returns the whitespace-collapsed text a reader would see.
func VisibleText(doc *goquery.Document) string {
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	root = root.Clone()
	root.Find(hiddenTags).Remove()
	return collapse(spacedText(root))
}

// spacedText concatenates the text under sel, separating block-level elements
// with a space so that "<li>Python</li><li>Django</li>" reads as two words.
func spacedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			switch name := goquery.NodeName(node); {
			case name == "#text":
				b.WriteString(node.Text())
			case strings.HasPrefix(name, "#"):
			case inlineTags[name]:
				walk(node)
			default:
				b.WriteByte(' ')
				walk(node)
				b.WriteByte(' ')
			}
		})
	}
	walk(sel)
	return b.String()
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// PostingDate converts a relative "Posted 5d ago" marker into a calendar date
// relative to now. Hours and minutes map to the current day; "30+d" is read
// as 30 days. The result is midnight UTC of the computed local date.
func PostingDate(text string, now time.Time) (time.Time, error) {
	m := postedAgoRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: no posting age found", ErrExtractionMiss)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: posting age %q: %v", ErrExtractionMiss, m[1], err)
	}
	days := 0
	if strings.EqualFold(m[3], "d") {
		days = n
	}
	y, mo, d := now.Date()
	return time.Date(y, mo, d-days, 0, 0, 0, 0, time.UTC), nil
}

func selectText(doc *goquery.Document, selector string, preferLink bool) (*string, error) {
	sel, err := findFirst(doc, selector)
	if err != nil {
		return nil, err
	}
	if preferLink {
		if a := sel.Find("a").First(); a.Length() > 0 {
			return nonEmpty(spacedText(a))
		}
	}
	return nonEmpty(spacedText(sel))
}

// selectFirstText returns the first non-blank text node directly under the
// selection, so nested badges or links do not leak into the value.
func selectFirstText(doc *goquery.Document, selector string) (*string, error) {
	sel, err := findFirst(doc, selector)
	if err != nil {
		return nil, err
	}
	var first string
	sel.Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if goquery.NodeName(node) != "#text" {
			return true
		}
		if t := strings.TrimSpace(node.Text()); t != "" {
			first = t
			return false
		}
		return true
	})
	if first != "" {
		return &first, nil
	}
	return nonEmpty(spacedText(sel))
}

func findFirst(doc *goquery.Document, selector string) (*goquery.Selection, error) {
	if selector == "" {
		return nil, fmt.Errorf("%w: no selector configured", ErrExtractionMiss)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %q not found", ErrExtractionMiss, selector)
	}
	return sel, nil
}

func nonEmpty(s string) (*string, error) {
	s = collapse(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrExtractionMiss)
	}
	return &s, nil
}
