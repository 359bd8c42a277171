package search

import (
	"fmt"
	"strings"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

// FormatContext renders search results as the reference text a conversation
// can be started with.
func FormatContext(resp *model.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", resp.Query)
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "   Source: %s\n", r.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
