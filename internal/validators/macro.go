package validators

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"www.velocidex.com/golang/oleparse"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/types"
)

const MacroID = "macro"

// Macro detects VBA project storage anywhere in the archive. Candidates
// are located by the OLE compound file magic, never by file name alone:
// a document can carry macro-capable storage while named as a macro-free
// type. Any confirmed project is critical and fail-closed; we do not
// attempt to judge what the macro does.
type Macro struct{}

func (m *Macro) ID() string { return MacroID }

func (m *Macro) Run(ctx context.Context, a *container.Artifact) ([]types.Finding, error) {
	var out []types.Finding
	for _, e := range a.Entries() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if e.UncompressedSize < uint64(len(oleparse.OLE_SIGNATURE)) {
			continue
		}
		data, err := a.ReadPart(e.Name)
		if err != nil {
			continue // unreadable entries are the structure validator's finding
		}
		signed := bytes.HasPrefix(data, []byte(oleparse.OLE_SIGNATURE))
		named := oleparse.BINFILE_NAME.MatchString(e.Name)
		if !signed && !named {
			continue
		}
		if !signed {
			// Declared as macro storage but not an OLE compound file:
			// suspicious, not silent.
			out = append(out, finding(MacroID, types.SevMedium, "ole_unreadable",
				fmt.Sprintf("part %q is named as macro storage but is not an OLE compound file", e.Name), e.Name))
			continue
		}

		modules, err := oleparse.ParseBuffer(data)
		switch {
		case len(modules) > 0:
			hit := finding(MacroID, types.SevCritical, "macro_present",
				fmt.Sprintf("part %q contains a VBA project", e.Name), e.Name)
			hit.Evidence = strings.Join(moduleNames(modules), ",")
			out = append(out, hit)
		case named:
			// A vbaProject stream is macro storage by definition, even
			// when module extraction yields nothing.
			out = append(out, finding(MacroID, types.SevCritical, "macro_present",
				fmt.Sprintf("part %q is a VBA project container", e.Name), e.Name))
		case err != nil:
			out = append(out, finding(MacroID, types.SevMedium, "ole_unreadable",
				fmt.Sprintf("part %q has an OLE signature but could not be parsed: %v", e.Name, err), e.Name))
		}
	}
	return out, nil
}

func moduleNames(modules []*oleparse.VBAModule) []string {
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		out = append(out, m.ModuleName)
	}
	return out
}
