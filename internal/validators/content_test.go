package validators

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgate/docgate/internal/rules"
	"github.com/docgate/docgate/internal/types"
)

func TestContent_BenignDocument(t *testing.T) {
	a := buildArtifact(t, benignParts())
	c := &Content{Rules: rules.Default()}
	fs, err := c.Run(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestContent_UnresolvedPlaceholder(t *testing.T) {
	doc := strings.Replace(benignDocument, "Quarterly statement", "Dear {{customer.name}}, your statement", 1)
	a := buildArtifact(t, withPart(benignParts(), "word/document.xml", doc))

	c := &Content{Rules: rules.Default()}
	fs, err := c.Run(context.Background(), a)
	require.NoError(t, err)

	require.Len(t, fs, 1)
	assert.Equal(t, "unresolved_placeholder", fs[0].Code)
	assert.Equal(t, types.SevHigh, fs[0].Severity)
	assert.Equal(t, "{{customer.name}}", fs[0].Evidence)
	assert.Equal(t, "word/document.xml", fs[0].Part)
}

func TestContent_PlaceholderOnlyInBodyParts(t *testing.T) {
	// Placeholder syntax in a non-body part is not broken output.
	parts := append(benignParts(), docxPart{"customXml/item1.xml", []byte("<item>{{raw}}</item>")})
	a := buildArtifact(t, parts)

	c := &Content{Rules: rules.Default()}
	fs, err := c.Run(context.Background(), a)
	require.NoError(t, err)
	assert.NotContains(t, findingCodes(fs), "unresolved_placeholder")
}

func TestContent_TextRuleMatch(t *testing.T) {
	doc := strings.Replace(benignDocument, "Quarterly statement", "DDEAUTO c:\\windows\\system32\\cmd.exe", 1)
	a := buildArtifact(t, withPart(benignParts(), "word/document.xml", doc))

	c := &Content{Rules: rules.Default()}
	fs, err := c.Run(context.Background(), a)
	require.NoError(t, err)

	var hit *types.Finding
	for i := range fs {
		if fs[i].Code == "signature_match" && strings.HasPrefix(fs[i].Evidence, "dde-auto-field:") {
			hit = &fs[i]
		}
	}
	require.NotNil(t, hit)
	assert.Equal(t, types.SevCritical, hit.Severity)
}

func TestContent_BinaryRuleMatch(t *testing.T) {
	pe := append([]byte{0x4d, 0x5a, 0x90, 0x00}, make([]byte, 64)...)
	parts := append(benignParts(), docxPart{"word/embeddings/obj1.bin", pe})
	a := buildArtifact(t, parts)

	c := &Content{Rules: rules.Default()}
	fs, err := c.Run(context.Background(), a)
	require.NoError(t, err)

	var hit *types.Finding
	for i := range fs {
		if strings.HasPrefix(fs[i].Evidence, "mz-executable:") {
			hit = &fs[i]
		}
	}
	require.NotNil(t, hit)
	assert.Equal(t, types.SevCritical, hit.Severity)
	assert.Equal(t, int64(0), hit.Offset)
	assert.Equal(t, "word/embeddings/obj1.bin", hit.Part)
}

func TestContent_RuleSeverityComesFromRule(t *testing.T) {
	rs, err := rules.Parse([]byte(`
version: test-1
rules:
  - id: marker
    description: test marker string
    severity: low
    kind: text
    pattern: 'MARKER-[0-9]+'
`))
	require.NoError(t, err)

	doc := strings.Replace(benignDocument, "Quarterly statement", "MARKER-42", 1)
	a := buildArtifact(t, withPart(benignParts(), "word/document.xml", doc))

	c := &Content{Rules: rs}
	fs, err := c.Run(context.Background(), a)
	require.NoError(t, err)

	require.Len(t, fs, 1)
	assert.Equal(t, types.SevLow, fs[0].Severity)
}

func TestContent_PartScopedRule(t *testing.T) {
	rs, err := rules.Parse([]byte(`
version: test-1
rules:
  - id: scoped
    description: only applies under docProps
    severity: medium
    kind: text
    pattern: 'SCOPED'
    parts:
      - 'docProps/**'
`))
	require.NoError(t, err)

	doc := strings.Replace(benignDocument, "Quarterly statement", "SCOPED", 1)
	a := buildArtifact(t, withPart(benignParts(), "word/document.xml", doc))

	fs, err := (&Content{Rules: rs}).Run(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, fs, "rule scoped to docProps must not match word parts")
}

func TestContent_NoRuleSetIsAnError(t *testing.T) {
	a := buildArtifact(t, benignParts())
	_, err := (&Content{}).Run(context.Background(), a)
	assert.Error(t, err)
}

func TestContent_PartTimeoutEmitsFinding(t *testing.T) {
	a := buildArtifact(t, benignParts())
	c := &Content{Rules: rules.Default(), PartTimeout: time.Nanosecond}
	fs, err := c.Run(context.Background(), a)
	require.NoError(t, err)
	assert.Contains(t, findingCodes(fs), "scan_timeout")
}
