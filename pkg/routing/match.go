package routing

// matchPattern reports whether name matches a shell-style pattern using only
// the two glob metacharacters spec.md defines for provider model entries:
// '*' (any run of characters, including none) and '?' (exactly one
// character). Implemented by hand rather than path.Match because
// path.Match's '*' and '?' never match '/', while model identifiers
// routinely contain slashes (e.g. "*-8b" must match "meta/llama-3-8b").
func matchPattern(pattern, name string) bool {
	return matchHere(pattern, name)
}

func matchHere(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive '*' and try every possible split point.
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchHere(pattern, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		default:
			if len(name) == 0 || pattern[0] != name[0] {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}
