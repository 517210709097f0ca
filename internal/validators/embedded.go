package validators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/types"
)

const EmbeddedID = "embedded"

// embeddingGlobs locate embedded object payload parts.
var embeddingGlobs = []string{
	"word/embeddings/**",
	"xl/embeddings/**",
	"ppt/embeddings/**",
}

// Embedded scans the three embedded-content vectors: OLE embedded
// objects, external relationship targets, and auto-load template
// references. Each vector runs on its own so a corrupt relationships
// part cannot suppress detection of embedded objects.
type Embedded struct{}

func (v *Embedded) ID() string { return EmbeddedID }

func (v *Embedded) Run(ctx context.Context, a *container.Artifact) ([]types.Finding, error) {
	var out []types.Finding
	var errs []error

	f, err := v.scanEmbeddedObjects(a)
	out = append(out, f...)
	if err != nil {
		errs = append(errs, fmt.Errorf("embedded objects: %w", err))
	}

	f, err = v.scanExternalTargets(a)
	out = append(out, f...)
	if err != nil {
		errs = append(errs, fmt.Errorf("external targets: %w", err))
	}

	f, err = v.scanAutoLoadTemplates(a)
	out = append(out, f...)
	if err != nil {
		errs = append(errs, fmt.Errorf("auto-load templates: %w", err))
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

// scanEmbeddedObjects flags embedded object payloads, with severity
// scaled by the declared content type of the part.
func (v *Embedded) scanEmbeddedObjects(a *container.Artifact) ([]types.Finding, error) {
	var ct *contentTypes
	if a.Has("[Content_Types].xml") {
		data, err := a.ReadPart("[Content_Types].xml")
		if err == nil {
			ct, _ = parseContentTypes(data)
		}
	}

	var out []types.Finding
	for _, e := range a.Entries() {
		matched := false
		for _, g := range embeddingGlobs {
			if ok, _ := doublestar.Match(g, e.Name); ok {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		declared := ""
		if ct != nil {
			declared = ct.typeOf(e.Name)
		}
		sev := classifyObjectType(declared, e.Name)
		hit := finding(EmbeddedID, sev, "embedded_object",
			fmt.Sprintf("part %q is an embedded object (%s)", e.Name, orUnknown(declared)), e.Name)
		hit.Evidence = declared
		out = append(out, hit)
	}
	return out, nil
}

// classifyObjectType maps a declared content type (or, failing that,
// the part extension) onto a severity.
func classifyObjectType(contentType, name string) types.Severity {
	t := strings.ToLower(contentType)
	n := strings.ToLower(name)
	switch {
	case strings.Contains(t, "msdownload"), strings.Contains(t, "x-executable"),
		strings.Contains(t, "octet-stream"),
		strings.HasSuffix(n, ".exe"), strings.HasSuffix(n, ".dll"), strings.HasSuffix(n, ".scr"):
		return types.SevCritical
	case strings.Contains(t, "officedocument"), strings.Contains(t, "msword"),
		strings.Contains(t, "ms-excel"), strings.Contains(t, "oleobject"),
		strings.HasSuffix(n, ".bin"), strings.HasSuffix(n, ".doc"), strings.HasSuffix(n, ".xls"):
		return types.SevMedium
	default:
		return types.SevLow
	}
}

// scanExternalTargets flags TargetMode=External relationships pointing
// at network-reachable locations, which enable remote content fetch at
// open time.
func (v *Embedded) scanExternalTargets(a *container.Artifact) ([]types.Finding, error) {
	var errs []error
	var out []types.Finding
	for _, e := range a.Entries() {
		if !isRelsPart(e.Name) {
			continue
		}
		data, err := a.ReadPart(e.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rels, err := parseRelationships(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		for _, r := range rels {
			if !r.isExternal() || !isRemoteTarget(r.Target) {
				continue
			}
			// Plain hyperlinks are an expected external reference shape;
			// anything else fetching remote content at open time is not.
			if strings.HasSuffix(r.Type, "/hyperlink") {
				continue
			}
			hit := finding(EmbeddedID, types.SevHigh, "remote_reference",
				fmt.Sprintf("relationship %s references remote target %q", r.ID, r.Target), e.Name)
			hit.Evidence = r.Target
			out = append(out, hit)
		}
	}
	return out, errors.Join(errs...)
}

// isRemoteTarget reports whether target reaches off-host: a URL scheme
// that fetches, or a UNC path.
func isRemoteTarget(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(t, "http://") ||
		strings.HasPrefix(t, "https://") ||
		strings.HasPrefix(t, "ftp://") ||
		strings.HasPrefix(t, "file://") ||
		strings.HasPrefix(t, "mhtml:") ||
		strings.HasPrefix(t, `\\`)
}

// scanAutoLoadTemplates flags attachedTemplate and frame relationships,
// which Word resolves automatically at open: a remote attached template
// is the classic template-injection primitive.
func (v *Embedded) scanAutoLoadTemplates(a *container.Artifact) ([]types.Finding, error) {
	const relsPart = "word/_rels/settings.xml.rels"
	if !a.Has(relsPart) {
		return nil, nil
	}
	data, err := a.ReadPart(relsPart)
	if err != nil {
		return nil, err
	}
	rels, err := parseRelationships(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", relsPart, err)
	}
	var out []types.Finding
	for _, r := range rels {
		if !strings.HasSuffix(r.Type, "/attachedTemplate") && !strings.HasSuffix(r.Type, "/frame") {
			continue
		}
		sev := types.SevMedium
		code := "auto_load_reference"
		msg := fmt.Sprintf("settings relationship %s auto-loads %q", r.ID, r.Target)
		if r.isExternal() && isRemoteTarget(r.Target) {
			sev = types.SevCritical
			code = "remote_template"
			msg = fmt.Sprintf("attached template is fetched from remote target %q at open time", r.Target)
		}
		hit := finding(EmbeddedID, sev, code, msg, relsPart)
		hit.Evidence = r.Target
		out = append(out, hit)
	}
	return out, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "undeclared type"
	}
	return s
}
