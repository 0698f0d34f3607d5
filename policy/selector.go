package policy

import "sort"

// SelectRules returns the rules whose pattern matches path, ordered most
// specific first. The sort is stable so equally specific rules keep their
// configuration order, making selection deterministic. Selection is
// additive: every returned rule's checks run, not just the top match.
func SelectRules(rules []Rule, path string) []Rule {
	var matched []Rule
	for _, r := range rules {
		if Match(r.Pattern, path) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return Specificity(matched[i].Pattern) > Specificity(matched[j].Pattern)
	})

	return matched
}
