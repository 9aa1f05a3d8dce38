package parsers

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the parser family a document is routed to.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindDOCX        Kind = "docx"
	KindPPTX        Kind = "pptx"
	KindXLSX        Kind = "xlsx"
	KindODT         Kind = "odt"
	KindODP         Kind = "odp"
	KindODS         Kind = "ods"
	KindCSV         Kind = "csv"
	KindText        Kind = "text"
	KindLegacy      Kind = "legacy"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeODT  = "application/vnd.oasis.opendocument.text"
	mimeODS  = "application/vnd.oasis.opendocument.spreadsheet"
	mimeODP  = "application/vnd.oasis.opendocument.presentation"
)

// Info describes a sniffed document.
type Info struct {
	MIME      string
	Extension string
	Kind      Kind
}

// zip and OLE containers are ambiguous by content alone, so the filename
// extension decides between the office formats they carry.
var (
	zipByExt = map[string]string{
		".docx": mimeDOCX,
		".xlsx": mimeXLSX,
		".pptx": mimePPTX,
		".odt":  mimeODT,
		".ods":  mimeODS,
		".odp":  mimeODP,
	}
	oleByExt = map[string]string{
		".doc": "application/msword",
		".xls": "application/vnd.ms-excel",
		".ppt": "application/vnd.ms-powerpoint",
	}
)

// Detect sniffs data with magic bytes and falls back to the extension of name
// for container formats.
func Detect(name string, data []byte) Info {
	mt := mimetype.Detect(data)
	mime := mt.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	info := Info{MIME: mime, Extension: mt.Extension()}
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case mime == "application/zip" || mime == "application/x-zip-compressed":
		if m, ok := zipByExt[ext]; ok {
			log.Debug().Str("original", mime).Str("override", m).Msg("overriding zip detection by extension")
			info.MIME, info.Extension = m, ext
		}
	case mime == "application/x-ole-storage" || mime == "application/x-cfb":
		if m, ok := oleByExt[ext]; ok {
			info.MIME, info.Extension = m, ext
		}
	case ext == ".csv" && strings.HasPrefix(mime, "text/"):
		info.MIME, info.Extension = "text/csv", ext
	}

	info.Kind = kindOf(info.MIME)
	return info
}

func kindOf(mime string) Kind {
	switch mime {
	case "application/pdf":
		return KindPDF
	case mimeDOCX:
		return KindDOCX
	case mimePPTX:
		return KindPPTX
	case mimeXLSX:
		return KindXLSX
	case mimeODT:
		return KindODT
	case mimeODP:
		return KindODP
	case mimeODS:
		return KindODS
	case "text/csv":
		return KindCSV
	case "application/msword", "application/vnd.ms-excel", "application/vnd.ms-powerpoint", "application/rtf", "text/rtf":
		return KindLegacy
	case "application/json", "application/xml":
		return KindText
	}
	switch {
	case strings.HasPrefix(mime, "text/"):
		return KindText
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	}
	return KindUnsupported
}
