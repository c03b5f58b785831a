package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is how the transaction loop treats one client line.
type Kind int

const (
	// KindEnd ends the session (empty line).
	KindEnd Kind = iota
	// KindComment is dropped: not hashed, not forwarded, no output.
	KindComment
	// KindExit is forwarded and then ends the session.
	KindExit
	// KindPush opens a scope and is forwarded.
	KindPush
	// KindPop closes a scope and is forwarded.
	KindPop
	// KindCacheable is a result-producing query answered from the cache when possible.
	KindCacheable
	// KindCommand is any other line: hashed and forwarded.
	KindCommand
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	names := []string{"end", "comment", "exit", "push", "pop", "cacheable", "command"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Recognised line prefixes. Matching is exact and case-sensitive at the
// start of the line; the trailing space on eval and get-value keeps longer
// identifiers from matching.
const (
	CommentPrefix = ";"
	ExitLine      = "(exit)"
	PushPrefix    = "(push"
	PopPrefix     = "(pop"
)

// CacheablePrefixes are the commands whose reply depends only on the
// session's logical state.
var CacheablePrefixes = []string{"(check", "(eval ", "(get-value "}

// DefaultReplyPrefixes are the commands that produce a reply when the
// solver is not in print-success mode.
var DefaultReplyPrefixes = []string{"(check", "(eval ", "(get-", "(echo ", "(simplify "}

// ScopeMode controls how a numeric argument to push/pop is interpreted.
type ScopeMode string

const (
	// ScopeModeSingle counts every push/pop line as exactly one level.
	ScopeModeSingle ScopeMode = "single"

	// ScopeModeLiteral honours the argument: (push 3) opens three scopes.
	ScopeModeLiteral ScopeMode = "literal"
)

// ValidateScopeMode checks if mode is a valid scope mode.
func ValidateScopeMode(mode string) error {
	switch ScopeMode(mode) {
	case ScopeModeSingle, ScopeModeLiteral, "":
		return nil
	default:
		return fmt.Errorf("invalid scope mode %q: must be single or literal", mode)
	}
}

// Rules decides which lines the solver answers.
//
// The zero value is usable: print-success off, DefaultReplyPrefixes,
// single-level scopes.
type Rules struct {
	// PrintSuccess means the solver acknowledges every command with one line.
	PrintSuccess bool

	// ReplyPrefixes overrides DefaultReplyPrefixes when non-nil.
	ReplyPrefixes []string

	// ScopeMode defaults to ScopeModeSingle.
	ScopeMode ScopeMode
}

// Classify returns the kind of line. Rules are checked in precedence order:
// end, comment, exit, push, pop, cacheable, command.
func Classify(line string) Kind {
	switch {
	case line == "":
		return KindEnd
	case strings.HasPrefix(line, CommentPrefix):
		return KindComment
	case line == ExitLine:
		return KindExit
	case strings.HasPrefix(line, PushPrefix):
		return KindPush
	case strings.HasPrefix(line, PopPrefix):
		return KindPop
	case hasAnyPrefix(line, CacheablePrefixes):
		return KindCacheable
	default:
		return KindCommand
	}
}

// ExpectsReply reports whether the solver writes exactly one line in
// response to a forwarded line of the given kind.
func (r Rules) ExpectsReply(line string, kind Kind) bool {
	switch kind {
	case KindEnd, KindComment, KindExit:
		return false
	case KindCacheable:
		return true
	}
	if r.PrintSuccess {
		return true
	}
	if kind != KindCommand {
		return false
	}
	prefixes := r.ReplyPrefixes
	if prefixes == nil {
		prefixes = DefaultReplyPrefixes
	}
	return hasAnyPrefix(line, prefixes)
}

// ScopeLevels returns how many scopes a push or pop line opens or closes.
//
// In single mode the answer is always 1. In literal mode the first
// argument is parsed; a missing or unparsable argument counts as 1, and
// "(push 0)" counts as 0.
func (r Rules) ScopeLevels(line string) int {
	if r.ScopeMode != ScopeModeLiteral {
		return 1
	}
	var rest string
	switch {
	case strings.HasPrefix(line, PushPrefix):
		rest = line[len(PushPrefix):]
	case strings.HasPrefix(line, PopPrefix):
		rest = line[len(PopPrefix):]
	default:
		return 1
	}
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ")"))
	if rest == "" {
		return 1
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 1
	}
	return n
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
