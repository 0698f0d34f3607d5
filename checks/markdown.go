package checks

import (
	"fmt"
	"strings"

	"github.com/c360studio/writegate/policy"
)

// heading is a markdown heading identified by level and title. Comparison
// is order-insensitive: only presence of the (level, title) pair matters.
type heading struct {
	level int
	title string
}

// SectionPreservation flags second-level markdown headings removed by the
// mutation. When the rule lists protected sections, only those titles are
// checked; otherwise every section in the old text is protected.
func SectionPreservation(r policy.Rule, view View, prior string, hasPrior bool) []policy.Violation {
	protected := make(map[string]struct{}, len(r.ProtectedSections))
	for _, title := range r.ProtectedSections {
		protected[title] = struct{}{}
	}

	var violations []policy.Violation
	for _, pair := range view.comparisons(prior, hasPrior) {
		kept := make(map[string]struct{})
		for _, title := range sectionTitles(pair.NewText) {
			kept[title] = struct{}{}
		}
		for _, title := range sectionTitles(pair.OldText) {
			if len(protected) > 0 {
				if _, ok := protected[title]; !ok {
					continue
				}
			}
			if _, ok := kept[title]; ok {
				continue
			}
			violations = append(violations, policy.Violation{
				Check:   policy.CheckSectionPreservation,
				Tier:    r.Tier,
				Message: fmt.Sprintf("Section would be removed: ## %s", title),
			})
		}
	}
	return violations
}

// HeadingStructure flags headings whose (level, title) pair disappears in a
// full replacement. Partial edits are skipped because the check needs the
// complete new document.
func HeadingStructure(r policy.Rule, view View, prior string, hasPrior bool) []policy.Violation {
	if !view.Full || !hasPrior {
		return nil
	}

	kept := make(map[heading]struct{})
	for _, h := range headings(view.Content) {
		kept[h] = struct{}{}
	}

	var violations []policy.Violation
	for _, h := range headings(prior) {
		if _, ok := kept[h]; ok {
			continue
		}
		violations = append(violations, policy.Violation{
			Check:   policy.CheckHeadingStructure,
			Tier:    r.Tier,
			Message: headingRemovedMessage(h),
		})
	}
	return violations
}

// headingRemovedMessage names a removed heading. Level-two headings use the
// section wording so the same removal found by both markdown checks
// collapses to a single violation.
func headingRemovedMessage(h heading) string {
	if h.level == 2 {
		return fmt.Sprintf("Section would be removed: ## %s", h.title)
	}
	return fmt.Sprintf("Heading would be removed: %s %s", strings.Repeat("#", h.level), h.title)
}

// FrontmatterPreservation flags removal of a leading frontmatter block and
// changes to fields the rule locks. Fields absent from the lock list may
// change freely.
func FrontmatterPreservation(r policy.Rule, view View, prior string, hasPrior bool) []policy.Violation {
	var violations []policy.Violation
	for _, pair := range view.comparisons(prior, hasPrior) {
		oldFields, oldOK := parseFrontmatter(pair.OldText)
		if !oldOK {
			continue
		}
		newFields, newOK := parseFrontmatter(pair.NewText)
		if !newOK {
			where := "in edit"
			if view.Full {
				where = "entirely"
			}
			violations = append(violations, policy.Violation{
				Check:   policy.CheckFrontmatter,
				Tier:    r.Tier,
				Message: "frontmatter would be removed " + where,
			})
			continue
		}
		for _, field := range r.LockedFields {
			oldVal, ok := oldFields[field]
			if !ok {
				continue
			}
			newVal, ok := newFields[field]
			if !ok {
				newVal = "(removed)"
			}
			if newVal == oldVal {
				continue
			}
			violations = append(violations, policy.Violation{
				Check:   policy.CheckFrontmatter,
				Tier:    r.Tier,
				Message: fmt.Sprintf("locked field %q would change from %q to %q", field, oldVal, newVal),
			})
		}
	}
	return violations
}

// sectionTitles extracts second-level heading titles in first-seen order.
func sectionTitles(text string) []string {
	var titles []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		title := strings.TrimSpace(strings.TrimPrefix(line, "## "))
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}
	return titles
}

// headings extracts every markdown heading as a (level, title) pair in
// first-seen order.
func headings(text string) []heading {
	var hs []heading
	seen := make(map[heading]struct{})
	for _, line := range strings.Split(text, "\n") {
		h, ok := parseHeading(line)
		if !ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		hs = append(hs, h)
	}
	return hs
}

// parseHeading reads a heading line of one to six hash characters followed
// by whitespace and a title.
func parseHeading(line string) (heading, bool) {
	level := 0
	for _, ch := range line {
		if ch != '#' {
			break
		}
		level++
	}
	if level < 1 || level > 6 {
		return heading{}, false
	}
	rest := line[level:]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return heading{}, false
	}
	title := strings.TrimSpace(rest)
	if title == "" {
		return heading{}, false
	}
	return heading{level: level, title: title}, true
}

// parseFrontmatter reads a leading block delimited by "---" lines as flat
// key: value pairs. The first colon splits key from value and both sides are
// trimmed. The second return is false when no complete block is present.
func parseFrontmatter(text string) (map[string]string, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return nil, false
	}
	fields := make(map[string]string)
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "---" {
			return fields, true
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(parts[1])
	}
	return nil, false
}
