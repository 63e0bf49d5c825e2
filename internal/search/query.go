// Package search implements the query-string filter language and
// full-text lookup described in spec.md §4.6, layered over
// internal/cachestore's FTS5 index.
package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParsedQuery is the result of parsing a raw query string into field
// constraints and a free-text residue, per spec.md §4.6.
type ParsedQuery struct {
	ProvidersIn    []string
	ProvidersOut   []string
	Streams        []string
	TitleWords     []string
	ContentWords   []string
	Types          []string
	IsRead         *bool
	IsSaved        *bool
	SinceCutoff    *time.Time // nil means no lower bound
	RequirePublish bool       // true once any since:/date: constraint is present
	DateFrom       *time.Time
	DateTo         *time.Time

	Residue string // free-text terms and quoted phrases, AND-joined
}

var tokenPattern = regexp.MustCompile(`[^\s"]*"[^"]*"|\S+`)

// Parse splits raw into recognized field constraints and a free-text
// residue. Unknown field prefixes are NOT errors; per spec.md §4.6 they
// fall through to the residue untouched.
func Parse(raw string) ParsedQuery {
	var pq ParsedQuery
	var residueTerms []string

	for _, tok := range tokenPattern.FindAllString(raw, -1) {
		if tok == "" {
			continue
		}

		quoted := strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2
		unquoted := tok
		if quoted {
			unquoted = tok[1 : len(tok)-1]
		}

		if !quoted {
			if handled := parseField(&pq, unquoted); handled {
				continue
			}
		}

		residueTerms = append(residueTerms, tok)
	}

	pq.Residue = strings.Join(residueTerms, " ")
	return pq
}

func parseField(pq *ParsedQuery, tok string) bool {
	switch {
	case strings.HasPrefix(tok, "-provider:"):
		pq.ProvidersOut = append(pq.ProvidersOut, strings.TrimPrefix(tok, "-provider:"))
		return true
	case strings.HasPrefix(tok, "provider:"):
		pq.ProvidersIn = append(pq.ProvidersIn, strings.TrimPrefix(tok, "provider:"))
		return true
	case strings.HasPrefix(tok, "in:"):
		pq.Streams = append(pq.Streams, strings.TrimPrefix(tok, "in:"))
		return true
	case strings.HasPrefix(tok, "stream:"):
		pq.Streams = append(pq.Streams, strings.TrimPrefix(tok, "stream:"))
		return true
	case strings.HasPrefix(tok, "title:"):
		pq.TitleWords = append(pq.TitleWords, trimQuotes(strings.TrimPrefix(tok, "title:")))
		return true
	case strings.HasPrefix(tok, "content:"):
		pq.ContentWords = append(pq.ContentWords, trimQuotes(strings.TrimPrefix(tok, "content:")))
		return true
	case strings.HasPrefix(tok, "type:"):
		pq.Types = append(pq.Types, strings.TrimPrefix(tok, "type:"))
		return true
	case tok == "is:read":
		v := true
		pq.IsRead = &v
		return true
	case tok == "is:unread":
		v := false
		pq.IsRead = &v
		return true
	case tok == "is:saved", tok == "is:starred", tok == "is:favorite":
		v := true
		pq.IsSaved = &v
		return true
	case strings.HasPrefix(tok, "since:"):
		parseSince(pq, strings.TrimPrefix(tok, "since:"))
		return true
	case strings.HasPrefix(tok, "date:"):
		parseDate(pq, strings.TrimPrefix(tok, "date:"))
		return true
	}
	return false
}

func trimQuotes(s string) string {
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

var sinceRelativePattern = regexp.MustCompile(`^(\d+)([dwm])$`)

// parseSince computes a cutoff timestamp relative to the current instant.
// N=0 means "no lower bound" (any item with a published timestamp
// matches), per spec.md §8's boundary property: "since:0d matches all
// items with a published timestamp."
func parseSince(pq *ParsedQuery, spec string) {
	m := sinceRelativePattern.FindStringSubmatch(spec)
	if m == nil {
		return
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return
	}

	pq.RequirePublish = true
	if n == 0 {
		pq.SinceCutoff = nil
		return
	}

	var unit time.Duration
	switch m[2] {
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	case "m":
		unit = 30 * 24 * time.Hour
	}

	cutoff := timeNow().Add(-time.Duration(n) * unit)
	pq.SinceCutoff = &cutoff
}

func parseDate(pq *ParsedQuery, spec string) {
	pq.RequirePublish = true

	if parts := strings.SplitN(spec, "..", 2); len(parts) == 2 {
		from, errFrom := time.Parse("2006-01-02", parts[0])
		to, errTo := time.Parse("2006-01-02", parts[1])
		if errFrom == nil {
			pq.DateFrom = &from
		}
		if errTo == nil {
			toEnd := to.Add(24 * time.Hour)
			pq.DateTo = &toEnd
		}
		return
	}

	if day, err := time.Parse("2006-01-02", spec); err == nil {
		end := day.Add(24 * time.Hour)
		pq.DateFrom = &day
		pq.DateTo = &end
	}
}

// timeNow is a var for testability.
var timeNow = time.Now
