package validators

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/types"
)

// docxPart is one entry of a synthetic test document.
type docxPart struct {
	name string
	body []byte
}

const benignContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const benignRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const benignDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p><w:r><w:t>Quarterly statement for our valued customer.</w:t></w:r></w:p></w:body>
</w:document>`

// benignParts is a minimal well-formed wordprocessing package.
func benignParts() []docxPart {
	return []docxPart{
		{"[Content_Types].xml", []byte(benignContentTypes)},
		{"_rels/.rels", []byte(benignRootRels)},
		{"word/document.xml", []byte(benignDocument)},
	}
}

// buildArtifact assembles parts into a zip and opens it as an Artifact.
func buildArtifact(t *testing.T, parts []docxPart) *container.Artifact {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	a, err := container.Open(buf.Bytes(), container.DefaultLimits())
	require.NoError(t, err)
	return a
}

// withPart replaces or appends one part.
func withPart(parts []docxPart, name string, body string) []docxPart {
	for i, p := range parts {
		if p.name == name {
			out := append([]docxPart{}, parts...)
			out[i].body = []byte(body)
			return out
		}
	}
	return append(parts, docxPart{name, []byte(body)})
}

// findingCodes extracts the codes of a finding list, in order.
func findingCodes(fs []types.Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Code
	}
	return out
}
