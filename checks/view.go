// Package checks implements the structural and content comparisons applied
// to proposed file mutations. Each check is a pure function over an edit
// view plus, where comparison is needed, the prior on-disk content.
package checks

// View is the normalized form of a proposed mutation. Exactly one variant
// is active: a full replacement carrying the complete new content, or a
// sequence of partial region edits.
type View struct {
	// Content is the complete new file content for a full replacement.
	Content string
	// Edits are the old/new region pairs for a partial edit.
	Edits []Edit
	// Full reports which variant is active.
	Full bool
}

// Edit is one find/replace region within an existing file.
type Edit struct {
	OldText string
	NewText string
}

// FullReplacement builds the view for a mutation that supplies entire file
// content.
func FullReplacement(content string) View {
	return View{Content: content, Full: true}
}

// PartialEdits builds the view for a mutation expressed as one or more
// region substitutions.
func PartialEdits(edits []Edit) View {
	return View{Edits: edits}
}

// NewTexts returns every proposed text fragment: the full content for a
// replacement, or each edit's new region.
func (v View) NewTexts() []string {
	if v.Full {
		return []string{v.Content}
	}
	texts := make([]string, 0, len(v.Edits))
	for _, e := range v.Edits {
		texts = append(texts, e.NewText)
	}
	return texts
}

// comparisons returns the old/new text pairs a structural check inspects.
// A full replacement compares prior on-disk content against the new content
// and produces nothing when no prior content exists, so checks silently
// skip newly created files.
func (v View) comparisons(prior string, hasPrior bool) []Edit {
	if v.Full {
		if !hasPrior {
			return nil
		}
		return []Edit{{OldText: prior, NewText: v.Content}}
	}
	return v.Edits
}
