package parsers

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/local/docuglean/internal/pdftest"
)

func zipOf(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> report</w:t></w:r></w:p>
<w:p><w:r><w:t>Total</w:t><w:tab/><w:t>42</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestParseDOCX(t *testing.T) {
	data := zipOf(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   docxBody,
	}, "[Content_Types].xml", "word/document.xml")

	res, err := New().Parse(context.Background(), "report.docx", data)
	require.NoError(t, err)
	assert.Equal(t, KindDOCX, res.Kind)
	assert.Equal(t, "Quarterly report\nTotal\t42", res.Text)
}

func TestParsePPTXSlideOrder(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	data := zipOf(t, map[string]string{
		"[Content_Types].xml":    `<Types/>`,
		"ppt/slides/slide10.xml": slide("ten"),
		"ppt/slides/slide2.xml":  slide("two"),
		"ppt/slides/slide1.xml":  slide("one"),
	}, "[Content_Types].xml", "ppt/slides/slide10.xml", "ppt/slides/slide2.xml", "ppt/slides/slide1.xml")

	res, err := New().Parse(context.Background(), "deck.pptx", data)
	require.NoError(t, err)
	assert.Equal(t, KindPPTX, res.Kind)
	assert.Equal(t, []string{"one", "two", "ten"}, res.Pages)
}

func TestParseODT(t *testing.T) {
	data := zipOf(t, map[string]string{
		"content.xml": `<office:document-content xmlns:office="o" xmlns:text="t"><office:body><office:text>
<text:h>Title</text:h>
<text:p>Hello<text:s/>there <text:span>friend</text:span></text:p>
</office:text></office:body></office:document-content>`,
	}, "content.xml")

	res, err := New().Parse(context.Background(), "letter.odt", data)
	require.NoError(t, err)
	assert.Equal(t, KindODT, res.Kind)
	assert.Equal(t, "Title\nHello there friend", res.Text)
}

func TestParseODS(t *testing.T) {
	data := zipOf(t, map[string]string{
		"content.xml": `<office:document-content xmlns:office="o" xmlns:table="tb" xmlns:text="t"><office:body><office:spreadsheet>
<table:table table:name="A">
<table:table-row><table:table-cell><text:p>name</text:p></table:table-cell><table:table-cell><text:p>qty</text:p></table:table-cell></table:table-row>
<table:table-row><table:table-cell><text:p>bolt</text:p></table:table-cell><table:table-cell><text:p>3</text:p></table:table-cell></table:table-row>
</table:table>
<table:table table:name="B"><table:table-row><table:table-cell><text:p>x</text:p></table:table-cell></table:table-row></table:table>
</office:spreadsheet></office:body></office:document-content>`,
	}, "content.xml")

	res, err := New().Parse(context.Background(), "stock.ods", data)
	require.NoError(t, err)
	assert.Equal(t, KindODS, res.Kind)
	assert.Equal(t, []string{"name\tqty\nbolt\t3", "x"}, res.Pages)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "item"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "price"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "pen"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 2))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	res, err := New().Parse(context.Background(), "prices.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, KindXLSX, res.Kind)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "=== Sheet: Sheet1 ===\nitem\tprice\npen\t2", res.Pages[0])
}

func TestParseCSV(t *testing.T) {
	res, err := New().Parse(context.Background(), "rows.csv", []byte("a,b\n\"c, d\",e\nf\n"))
	require.NoError(t, err)
	assert.Equal(t, KindCSV, res.Kind)
	assert.Equal(t, "a\tb\nc, d\te\nf", res.Text)
}

func TestParsePlainText(t *testing.T) {
	res, err := New().Parse(context.Background(), "notes.txt", []byte("  just some notes\n"))
	require.NoError(t, err)
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "just some notes", res.Text)
}

func TestParsePDF(t *testing.T) {
	res, err := New().Parse(context.Background(), "scan.pdf", pdftest.Build("first page", "second page"))
	require.NoError(t, err)
	assert.Equal(t, KindPDF, res.Kind)
	require.Len(t, res.Pages, 2)
	assert.Contains(t, res.Pages[0], "first page")
	assert.Contains(t, res.Pages[1], "second page")
}

func TestParseFile(t *testing.T) {
	path := pdftest.WriteFile(t, "doc.pdf", pdftest.Numbered(3))
	res, err := New().ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Pages, 3)

	_, err = New().ParseFile(context.Background(), path+".missing")
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	p := &Parser{}
	ctx := context.Background()

	_, err := p.Parse(ctx, "empty.txt", nil)
	assert.Error(t, err)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err = p.Parse(ctx, "photo.png", png)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = p.Parse(ctx, "blob.bin", []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = p.Parse(ctx, "old.rtf", []byte(`{\rtf1\ansi hello}`))
	assert.ErrorIs(t, err, ErrUnsupported, "legacy formats need a converter")
}

func TestDetectOverridesContainers(t *testing.T) {
	plainZip := zipOf(t, map[string]string{"content.xml": "<x/>"}, "content.xml")

	assert.Equal(t, KindODT, Detect("a.odt", plainZip).Kind)
	assert.Equal(t, KindODP, Detect("a.ODP", plainZip).Kind)
	assert.Equal(t, KindUnsupported, Detect("a.zip", plainZip).Kind)
	assert.Equal(t, KindPDF, Detect("whatever.bin", pdftest.Build("x")).Kind)
	assert.Equal(t, KindCSV, Detect("a.csv", []byte("x,y\n1,2\n")).Kind)
}

func TestTidy(t *testing.T) {
	assert.Equal(t, "a\n\nb", tidy("  a  \n\n\n\nb\t\n"))
}
