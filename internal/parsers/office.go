package parsers

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// xmlRules drive extractXML for one office dialect. Names are local XML names.
type xmlRules struct {
	text map[string]bool   // character data is kept only inside these
	open map[string]string // written when the element starts
	end  map[string]string // written when the element ends
	page string            // ending this element closes a page
}

var (
	docxRules = xmlRules{
		text: set("t"),
		open: map[string]string{"tab": "\t", "br": "\n", "cr": "\n"},
		end:  map[string]string{"p": "\n", "tc": "\t", "tr": "\n"},
	}
	pptxRules = xmlRules{
		text: set("t"),
		open: map[string]string{"br": "\n"},
		end:  map[string]string{"p": "\n"},
	}
	odtRules = xmlRules{
		text: set("p", "h"),
		open: map[string]string{"tab": "\t", "s": " ", "line-break": "\n"},
		end:  map[string]string{"p": "\n", "h": "\n"},
	}
	odpRules = xmlRules{
		text: odtRules.text,
		open: odtRules.open,
		end:  odtRules.end,
		page: "page",
	}
	odsRules = xmlRules{
		text: set("p"),
		open: map[string]string{"s": " "},
		end:  map[string]string{"table-cell": "\t", "table-row": "\n", "table": "\n"},
		page: "table",
	}
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// extractXML walks an XML part and returns its text, one entry per page.
// Without a page rule the whole part is one page.
func extractXML(r io.Reader, rules xmlRules) ([]string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var (
		pages  []string
		b      strings.Builder
		inText int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if rules.text[t.Name.Local] {
				inText++
			}
			b.WriteString(rules.open[t.Name.Local])
		case xml.EndElement:
			if rules.text[t.Name.Local] && inText > 0 {
				inText--
			}
			b.WriteString(rules.end[t.Name.Local])
			if rules.page != "" && t.Name.Local == rules.page {
				pages = append(pages, tidy(b.String()))
				b.Reset()
			}
		case xml.CharData:
			if inText > 0 {
				b.Write(t)
			}
		}
	}
	if rules.page == "" || strings.TrimSpace(b.String()) != "" {
		pages = append(pages, tidy(b.String()))
	}
	return pages, nil
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// tidy trims trailing blanks from every line and squeezes blank line runs.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func openZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return zr, nil
}

func zipPart(zr *zip.Reader, name string, rules xmlRules) ([]string, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return extractXML(rc, rules)
	}
	return nil, fmt.Errorf("archive has no %s", name)
}

func parseDOCX(data []byte) ([]string, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	return zipPart(zr, "word/document.xml", docxRules)
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// parsePPTX returns one page per slide in slide order.
func parsePPTX(data []byte) ([]string, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}

	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideName.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, name: f.Name})
		}
	}
	if len(slides) == 0 {
		return nil, errors.New("presentation has no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	pages := make([]string, 0, len(slides))
	for _, s := range slides {
		text, err := zipPart(zr, s.name, pptxRules)
		if err != nil {
			return nil, err
		}
		pages = append(pages, strings.Join(text, "\n"))
	}
	return pages, nil
}

func parseODF(data []byte, rules xmlRules) ([]string, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	return zipPart(zr, "content.xml", rules)
}
