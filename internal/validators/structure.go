package validators

import (
	"context"
	"fmt"
	"path"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/types"
)

const StructureID = "structure"

// requiredParts must exist in every wordprocessing package we accept.
var requiredParts = []string{
	"[Content_Types].xml",
	"_rels/.rels",
	"word/document.xml",
}

// defaultPartAllowlist matches the parts a templating pipeline
// legitimately emits. Anything outside it is reported, not rejected.
var defaultPartAllowlist = []string{
	"[Content_Types].xml",
	"_rels/**",
	"word/**",
	"docProps/**",
	"customXml/**",
}

// Structure checks the archive and OOXML part layout: mandatory parts,
// relationship integrity, content-type coverage, and the duplicate
// entry name trick.
type Structure struct {
	// PartAllowlist overrides the built-in expected-part globs.
	PartAllowlist []string
}

func (s *Structure) ID() string { return StructureID }

func (s *Structure) Run(ctx context.Context, a *container.Artifact) ([]types.Finding, error) {
	var out []types.Finding

	// Duplicate names first: readers disagree about which copy wins, so
	// every other check below may be looking at the wrong bytes.
	for _, name := range a.DuplicateNames() {
		out = append(out, finding(StructureID, types.SevCritical, "duplicate_entry_name",
			fmt.Sprintf("entry %q occurs more than once in the archive", name), name))
	}

	for _, req := range requiredParts {
		if !a.Has(req) {
			out = append(out, finding(StructureID, types.SevCritical, "missing_required_part",
				fmt.Sprintf("mandatory part %q is absent", req), req))
		}
	}

	out = append(out, s.checkContentTypes(a)...)
	out = append(out, s.checkRelationships(a)...)
	out = append(out, s.checkUnexpectedParts(a)...)
	return out, ctx.Err()
}

func (s *Structure) checkContentTypes(a *container.Artifact) []types.Finding {
	if !a.Has("[Content_Types].xml") {
		return nil // already reported as missing_required_part
	}
	data, err := a.ReadPart("[Content_Types].xml")
	if err != nil {
		return []types.Finding{finding(StructureID, types.SevHigh, "unreadable_part",
			"content types manifest could not be read: "+err.Error(), "[Content_Types].xml")}
	}
	ct, err := parseContentTypes(data)
	if err != nil {
		return []types.Finding{finding(StructureID, types.SevHigh, "malformed_content_types",
			"content types manifest is not valid XML: "+err.Error(), "[Content_Types].xml")}
	}

	var out []types.Finding
	seenExt := make(map[string]bool)
	for _, e := range a.Entries() {
		if e.Name == "[Content_Types].xml" || strings.HasSuffix(e.Name, "/") {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(e.Name)), ".")
		if ext != "" && seenExt[ext] {
			continue
		}
		if ct.typeOf(e.Name) == "" {
			out = append(out, finding(StructureID, types.SevMedium, "undeclared_content_type",
				fmt.Sprintf("no content type declared for %q", e.Name), e.Name))
		}
		if ext != "" && ct.defaults[ext] != "" {
			seenExt[ext] = true
		}
	}
	return out
}

// checkRelationships verifies that every internal relationship target
// resolves to an existing entry. External targets are legitimate here;
// whether they are dangerous is the embedded content scanner's call.
func (s *Structure) checkRelationships(a *container.Artifact) []types.Finding {
	var out []types.Finding
	for _, e := range a.Entries() {
		if !isRelsPart(e.Name) {
			continue
		}
		data, err := a.ReadPart(e.Name)
		if err != nil {
			out = append(out, finding(StructureID, types.SevMedium, "unreadable_part",
				"relationships part could not be read: "+err.Error(), e.Name))
			continue
		}
		rels, err := parseRelationships(data)
		if err != nil {
			out = append(out, finding(StructureID, types.SevMedium, "malformed_relationships",
				"relationships part is not valid XML: "+err.Error(), e.Name))
			continue
		}
		for _, r := range rels {
			if r.isExternal() {
				continue
			}
			target := resolveTarget(e.Name, r.Target)
			if !a.Has(target) {
				f := finding(StructureID, types.SevMedium, "dangling_relationship",
					fmt.Sprintf("relationship %s targets %q which does not exist", r.ID, target), e.Name)
				f.Evidence = r.Target
				out = append(out, f)
			}
		}
	}
	return out
}

func (s *Structure) checkUnexpectedParts(a *container.Artifact) []types.Finding {
	allow := s.PartAllowlist
	if len(allow) == 0 {
		allow = defaultPartAllowlist
	}
	var out []types.Finding
	for _, e := range a.Entries() {
		if strings.HasSuffix(e.Name, "/") {
			continue
		}
		expected := false
		for _, g := range allow {
			if ok, _ := doublestar.Match(g, e.Name); ok {
				expected = true
				break
			}
		}
		if !expected {
			out = append(out, finding(StructureID, types.SevInfo, "unexpected_part",
				fmt.Sprintf("part %q is outside the expected package layout", e.Name), e.Name))
		}
	}
	return out
}
