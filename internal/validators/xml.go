package validators

import (
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"strings"
)

// extractText pulls character data out of an XML stream, ignoring
// markup. Office stores body text as w:t runs, so concatenated chardata
// is exactly what the placeholder and signature scans need.
func extractText(r io.Reader, limit int) string {
	dec := xml.NewDecoder(io.LimitReader(r, int64(limit)))
	var buf bytes.Buffer
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			buf.Write(cd)
			buf.WriteByte(' ')
		}
		if buf.Len() >= limit {
			break
		}
	}
	return buf.String()
}

// relationship is one entry of an OOXML relationships part.
type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationshipsDoc struct {
	Relationships []relationship `xml:"Relationship"`
}

func parseRelationships(data []byte) ([]relationship, error) {
	var doc relationshipsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Relationships, nil
}

// isExternal reports whether the relationship points outside the
// package rather than at another part.
func (r relationship) isExternal() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// resolveTarget turns a relationship target into a package part name.
// relsPart is the relationships part that declared it, e.g.
// "word/_rels/document.xml.rels" resolves relative to "word/".
func resolveTarget(relsPart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	base := path.Dir(path.Dir(relsPart)) // strip "_rels" and the filename
	return strings.TrimPrefix(path.Clean(path.Join(base, target)), "/")
}

// isRelsPart reports whether name is a relationships part.
func isRelsPart(name string) bool {
	return strings.HasSuffix(name, ".rels") && strings.Contains(name, "_rels/")
}

// contentTypes is the parsed [Content_Types].xml manifest.
type contentTypes struct {
	defaults  map[string]string // extension (lowercase) -> type
	overrides map[string]string // part name -> type
}

type contentTypesDoc struct {
	Defaults []struct {
		Extension   string `xml:"Extension,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Default"`
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

func parseContentTypes(data []byte) (*contentTypes, error) {
	var doc contentTypesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	ct := &contentTypes{
		defaults:  make(map[string]string, len(doc.Defaults)),
		overrides: make(map[string]string, len(doc.Overrides)),
	}
	for _, d := range doc.Defaults {
		ct.defaults[strings.ToLower(d.Extension)] = d.ContentType
	}
	for _, o := range doc.Overrides {
		ct.overrides[strings.TrimPrefix(o.PartName, "/")] = o.ContentType
	}
	return ct, nil
}

// typeOf returns the declared content type for a part, or "".
func (ct *contentTypes) typeOf(part string) string {
	if t, ok := ct.overrides[part]; ok {
		return t
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(part)), ".")
	return ct.defaults[ext]
}
