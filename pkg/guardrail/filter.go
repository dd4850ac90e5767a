// Package guardrail redacts personal data from text crossing the agent
// boundary and applies the advisory per-thread usage threshold.
package guardrail

import (
	"regexp"
	"sort"
	"strings"

	"site-research-be/internal/pkg/logger"
)

const DefaultUsageLimit = 20

type Category string

const (
	CategoryEmail      Category = "EMAIL"
	CategoryPhone      Category = "PHONE"
	CategoryCreditCard Category = "CREDIT_CARD"
)

// Placeholder returns the redaction tag for a category, e.g. [REDACTED_EMAIL].
func (c Category) Placeholder() string {
	return "[REDACTED_" + string(c) + "]"
}

type rule struct {
	category Category
	pattern  *regexp.Regexp
	// digitBounded rejects matches that touch another digit, so a number
	// glued to letters still counts while a slice of a longer digit run
	// does not.
	digitBounded bool
}

var defaultRules = []rule{
	{CategoryEmail, regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)+`), false},
	{CategoryCreditCard, regexp.MustCompile(`\d{13,16}|\d{4}(?:[ -]\d{4}){3}`), true},
	{CategoryPhone, regexp.MustCompile(`\+\d{7,15}|\d{10,12}|\+?\d{1,3}[ .-]\(?\d{2,4}\)?[ .-]\d{3,4}[ .-]\d{3,4}|\(?\d{3}\)?[ .-]?\d{3}[ .-]\d{4}`), true},
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func standsAlone(text string, start, end int) bool {
	return (start == 0 || !isDigit(text[start-1])) && (end == len(text) || !isDigit(text[end]))
}

type Filter struct {
	rules  []rule
	logger logger.ILogger
}

func New(log logger.ILogger) *Filter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Filter{rules: defaultRules, logger: log}
}

// SanitizeInput redacts PII from a user query. It never fails.
func (f *Filter) SanitizeInput(text string) string {
	return f.redact(text, "input")
}

// SanitizeOutput redacts PII from a composed answer. It never fails.
func (f *Filter) SanitizeOutput(text string) string {
	return f.redact(text, "output")
}

type span struct {
	start, end int
	category   Category
}

// redact repeats redactOnce until the text stops changing. Every rule needs a
// digit or '@' and placeholders carry neither, so the loop terminates.
func (f *Filter) redact(text, direction string) string {
	counts := make(map[Category]int)
	for {
		next, changed := f.redactOnce(text, counts)
		if !changed {
			break
		}
		text = next
	}

	if len(counts) > 0 {
		details := map[string]interface{}{"direction": direction}
		for c, n := range counts {
			details[strings.ToLower(string(c))] = n
		}
		f.logger.Info("Guardrail", "PII redacted", details)
	}
	return text
}

// redactOnce matches every rule against the same text, then resolves
// overlaps leftmost-first and longest-second so rule order never changes
// the result.
func (f *Filter) redactOnce(text string, counts map[Category]int) (string, bool) {
	var spans []span
	for _, r := range f.rules {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			if r.digitBounded && !standsAlone(text, loc[0], loc[1]) {
				continue
			}
			spans = append(spans, span{start: loc[0], end: loc[1], category: r.category})
		}
	}
	if len(spans) == 0 {
		return text, false
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		li, lj := spans[i].end-spans[i].start, spans[j].end-spans[j].start
		if li != lj {
			return li > lj
		}
		return spans[i].category < spans[j].category
	})

	var b strings.Builder
	cursor := 0
	for _, s := range spans {
		if s.start < cursor {
			continue
		}
		b.WriteString(text[cursor:s.start])
		b.WriteString(s.category.Placeholder())
		cursor = s.end
		counts[s.category]++
	}
	b.WriteString(text[cursor:])
	return b.String(), true
}

// ExceedsUsageThreshold reports whether a thread's history is longer than
// limit (DefaultUsageLimit when limit <= 0). Advisory only.
func (f *Filter) ExceedsUsageThreshold(threadID string, historyLength, limit int) bool {
	if limit <= 0 {
		limit = DefaultUsageLimit
	}
	if historyLength > limit {
		f.logger.Warn("Guardrail", "Usage threshold exceeded", map[string]interface{}{
			"thread_id":      threadID,
			"history_length": historyLength,
			"limit":          limit,
		})
		return true
	}
	return false
}
