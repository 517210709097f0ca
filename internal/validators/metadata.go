package validators

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/types"
)

const MetadataID = "metadata"

// knownPropertyNamespaces are the namespaces custom properties normally
// live in; anything else warrants a look.
var knownPropertyNamespaces = map[string]bool{
	"http://schemas.openxmlformats.org/officeDocument/2006/custom-properties": true,
	"http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes":    true,
}

// Metadata inspects the declared document property parts. It never
// touches OLE structures; property parts are plain XML.
type Metadata struct {
	// AuthorAllowlist and CompanyAllowlist constrain who generated
	// documents may claim to come from. Empty list allows anything.
	AuthorAllowlist  []string
	CompanyAllowlist []string
	// MaxPartBytes bounds each properties part; a metadata part many
	// times larger than typical is itself suspicious.
	MaxPartBytes int64
}

func (m *Metadata) ID() string { return MetadataID }

const defaultMaxMetadataBytes = 1 << 20

func (m *Metadata) Run(ctx context.Context, a *container.Artifact) ([]types.Finding, error) {
	maxBytes := m.MaxPartBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxMetadataBytes
	}

	var out []types.Finding
	propParts := []string{"docProps/core.xml", "docProps/app.xml", "docProps/custom.xml"}
	for _, name := range propParts {
		if !a.Has(name) {
			continue
		}
		for _, e := range a.Entries() {
			if e.Name == name && int64(e.UncompressedSize) > maxBytes {
				out = append(out, finding(MetadataID, types.SevMedium, "oversized_metadata",
					fmt.Sprintf("properties part %q declares %d bytes, expected at most %d", name, e.UncompressedSize, maxBytes), name))
			}
		}
	}

	out = append(out, m.checkCore(a)...)
	out = append(out, m.checkApp(a)...)
	out = append(out, m.checkCustom(a)...)
	return out, ctx.Err()
}

type coreProps struct {
	Creator        string `xml:"creator"`
	LastModifiedBy string `xml:"lastModifiedBy"`
}

func (m *Metadata) checkCore(a *container.Artifact) []types.Finding {
	const part = "docProps/core.xml"
	if !a.Has(part) || len(m.AuthorAllowlist) == 0 {
		return nil
	}
	data, err := a.ReadPart(part)
	if err != nil {
		return nil
	}
	var p coreProps
	if err := xml.Unmarshal(data, &p); err != nil {
		return []types.Finding{finding(MetadataID, types.SevLow, "malformed_metadata",
			"core properties are not valid XML: "+err.Error(), part)}
	}
	var out []types.Finding
	for _, author := range []string{p.Creator, p.LastModifiedBy} {
		if author == "" || allowed(author, m.AuthorAllowlist) {
			continue
		}
		hit := finding(MetadataID, types.SevLow, "unexpected_author",
			fmt.Sprintf("author %q is not in the allow-list", author), part)
		hit.Evidence = author
		out = append(out, hit)
	}
	return out
}

type appProps struct {
	Company     string `xml:"Company"`
	Application string `xml:"Application"`
}

func (m *Metadata) checkApp(a *container.Artifact) []types.Finding {
	const part = "docProps/app.xml"
	if !a.Has(part) || len(m.CompanyAllowlist) == 0 {
		return nil
	}
	data, err := a.ReadPart(part)
	if err != nil {
		return nil
	}
	var p appProps
	if err := xml.Unmarshal(data, &p); err != nil {
		return []types.Finding{finding(MetadataID, types.SevLow, "malformed_metadata",
			"extended properties are not valid XML: "+err.Error(), part)}
	}
	if p.Company == "" || allowed(p.Company, m.CompanyAllowlist) {
		return nil
	}
	hit := finding(MetadataID, types.SevLow, "unexpected_company",
		fmt.Sprintf("company %q is not in the allow-list", p.Company), part)
	hit.Evidence = p.Company
	return []types.Finding{hit}
}

// checkCustom walks custom.xml start elements and reports namespaces
// outside the custom-properties schema.
func (m *Metadata) checkCustom(a *container.Artifact) []types.Finding {
	const part = "docProps/custom.xml"
	if !a.Has(part) {
		return nil
	}
	rc, err := a.Open(part)
	if err != nil {
		return nil
	}
	defer rc.Close()

	var out []types.Finding
	reported := make(map[string]bool)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		ns := se.Name.Space
		if ns == "" || knownPropertyNamespaces[ns] || reported[ns] {
			continue
		}
		reported[ns] = true
		hit := finding(MetadataID, types.SevLow, "unexpected_custom_namespace",
			fmt.Sprintf("custom properties use unrecognized namespace %q", ns), part)
		hit.Evidence = ns
		out = append(out, hit)
	}
	return out
}

func allowed(value string, allowlist []string) bool {
	for _, a := range allowlist {
		if strings.EqualFold(strings.TrimSpace(value), a) {
			return true
		}
	}
	return false
}
