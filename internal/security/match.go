package security

import "strings"

// matchToken reports whether the operation text matches a policy token.
// Tokens containing '*' are wildcard patterns tested against the whole
// operation and against each whitespace-delimited field (so "*.internal"
// matches a host buried in a URL argument list); plain tokens match as
// case-insensitive substrings.
func matchToken(operation, token string) bool {
	if token == "" {
		return false
	}
	op := strings.ToLower(operation)
	tok := strings.ToLower(token)

	if !strings.Contains(tok, "*") {
		return strings.Contains(op, tok)
	}
	if matchWildcard(op, tok) {
		return true
	}
	for _, field := range strings.Fields(op) {
		if matchWildcard(field, tok) {
			return true
		}
	}
	return false
}

// matchWildcard matches s against a pattern containing * wildcards.
func matchWildcard(s, pattern string) bool {
	parts := strings.Split(pattern, "*")
	pos := 0

	for i, part := range parts {
		if part == "" {
			continue
		}

		if i == 0 {
			if !strings.HasPrefix(s, part) {
				return false
			}
			pos = len(part)
			continue
		}

		if i == len(parts)-1 && !strings.HasSuffix(pattern, "*") {
			if !strings.HasSuffix(s, part) {
				return false
			}
			continue
		}

		idx := strings.Index(s[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}

	return true
}

// screen checks the operation against the policy's token lists. It returns
// the blocked token that matched, or a non-empty reason when the allow list
// rejected the operation. Both empty means the operation passed.
func screen(p Policy, operation string) (blockedToken, reason string) {
	for _, tok := range p.BlockedTokens {
		if matchToken(operation, tok) {
			return tok, ""
		}
	}
	if len(p.AllowedTokens) > 0 {
		for _, tok := range p.AllowedTokens {
			if matchToken(operation, tok) {
				return "", ""
			}
		}
		return "", "operation matches no allow-list entry"
	}
	return "", ""
}
