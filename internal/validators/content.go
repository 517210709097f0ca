package validators

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	doublestar "github.com/bmatcuk/doublestar/v4"

	"github.com/docgate/docgate/internal/container"
	"github.com/docgate/docgate/internal/rules"
	"github.com/docgate/docgate/internal/types"
)

const ContentID = "content"

// bodyPartGlobs are the textual content streams checked for unresolved
// template placeholders.
var bodyPartGlobs = []string{
	"word/document.xml",
	"word/header*.xml",
	"word/footer*.xml",
	"word/footnotes.xml",
	"word/endnotes.xml",
}

const maxTextExtract = 4 << 20

// Content evaluates the compiled rule set against every part: binary
// rules over raw bytes, text rules and placeholder patterns over
// extracted character data. The rule set is process-wide immutable
// state, safe to share across concurrent runs.
type Content struct {
	Rules *rules.RuleSet
	// PartTimeout bounds rule evaluation per part so a pathological
	// part cannot stall the run. Zero means no bound.
	PartTimeout time.Duration
}

func (c *Content) ID() string { return ContentID }

func (c *Content) Run(ctx context.Context, a *container.Artifact) ([]types.Finding, error) {
	if c.Rules == nil {
		return nil, fmt.Errorf("no rule set configured")
	}
	var out []types.Finding
	for _, e := range a.Entries() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if strings.HasSuffix(e.Name, "/") {
			continue
		}
		out = append(out, c.scanPart(a, e.Name)...)
	}
	return out, nil
}

func (c *Content) scanPart(a *container.Artifact, name string) []types.Finding {
	data, err := a.ReadPart(name)
	if err != nil {
		return nil // unreadable parts are the structure validator's finding
	}

	var deadline time.Time
	if c.PartTimeout > 0 {
		deadline = time.Now().Add(c.PartTimeout)
	}

	var out []types.Finding
	var text string
	textual := isTextualPart(name)
	if textual {
		text = extractText(bytes.NewReader(data), maxTextExtract)
	}

	if textual && isBodyPart(name) {
		out = append(out, c.scanPlaceholders(name, text)...)
	}

	for _, r := range c.Rules.Rules {
		if !deadline.IsZero() && time.Now().After(deadline) {
			out = append(out, finding(ContentID, types.SevInfo, "scan_timeout",
				fmt.Sprintf("rule evaluation for part %q exceeded its time budget; remaining rules skipped", name), name))
			break
		}
		if !r.AppliesTo(name) {
			continue
		}
		var off int64
		var excerpt string
		var ok bool
		switch r.Kind {
		case rules.KindBinary:
			off, excerpt, ok = r.Match(data)
		case rules.KindText:
			if !textual {
				continue
			}
			_, excerpt, ok = r.Match([]byte(text))
			off = -1
		}
		if !ok {
			continue
		}
		hit := types.Finding{
			ValidatorID: ContentID,
			Severity:    r.Severity,
			Code:        "signature_match",
			Message:     fmt.Sprintf("rule %s matched: %s", r.ID, r.Description),
			Part:        name,
			Evidence:    r.ID + ": " + excerpt,
		}
		if off >= 0 {
			hit.Offset = off
		}
		out = append(out, hit)
	}
	return out
}

// scanPlaceholders reports unresolved template placeholder syntax in a
// body part: a placeholder reaching a recipient is broken output at
// best and an information leak at worst.
func (c *Content) scanPlaceholders(name, text string) []types.Finding {
	var out []types.Finding
	for _, re := range c.Rules.Placeholders {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		hit := finding(ContentID, types.SevHigh, "unresolved_placeholder",
			fmt.Sprintf("part %q contains unresolved template placeholder %q", name, m), name)
		hit.Evidence = m
		out = append(out, hit)
	}
	return out
}

func isBodyPart(name string) bool {
	for _, g := range bodyPartGlobs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

func isTextualPart(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".xml") || strings.HasSuffix(n, ".rels") || strings.HasSuffix(n, ".txt")
}
