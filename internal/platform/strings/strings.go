// Package strings provides text helpers shared by the feed and persona packages
package strings

import (
	std "strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// IfEmpty returns def if in is empty, otherwise returns in
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// FirstNonEmpty returns the first argument with non whitespace content
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if std.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// chains are not safe for concurrent use; pool fresh ones
var contentPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)), // zero width joiners, BOM
			width.Fold,
		)
	},
}

// NormalizeContent prepares user text for posting
// Invalid UTF-8 is dropped, hangul is composed (NFC, so ㅋㅋ survives), format chars are removed,
// fullwidth ASCII is folded, CRLF becomes LF, and surrounding whitespace is trimmed
func NormalizeContent(s string) string {
	if s == "" {
		return ""
	}
	s = std.ToValidUTF8(s, "")
	tr := contentPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	contentPool.Put(tr)
	if err != nil {
		out = s
	}
	out = std.ReplaceAll(out, "\r\n", "\n")
	return std.TrimSpace(out)
}
