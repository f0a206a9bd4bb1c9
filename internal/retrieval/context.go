package retrieval

// BuildContext assembles the context window from ranked results.
//
// Passages are accepted in ranking order until the next one would push the
// cumulative length past maxChars. The first passage is always included,
// even when it alone exceeds the budget: an oversized context beats an empty
// one.
func BuildContext(results []SearchResult, maxChars int) []string {
	if len(results) == 0 {
		return nil
	}

	passages := make([]string, 0, len(results))
	total := 0
	for _, r := range results {
		if len(passages) > 0 && total+len(r.Text) > maxChars {
			break
		}
		passages = append(passages, r.Text)
		total += len(r.Text)
	}
	return passages
}
