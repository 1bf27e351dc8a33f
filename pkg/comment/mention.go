package comment

import (
	"regexp"
	"strings"
)

var mentionRe = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9][A-Za-z0-9_.-]{0,38})`)

// Mentions returns the distinct usernames referenced as @name in content,
// in order of first appearance. Trailing dots are not part of a name.
func Mentions(content string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range mentionRe.FindAllStringSubmatch(content, -1) {
		name := strings.TrimRight(m[1], ".")
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}
