// Package intent classifies chat prompts with an ordered table of keyword
// and pattern rules. The first rule that matches wins.
package intent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind is the classified intent of a prompt.
type Kind string

const (
	KindReminder     Kind = "REMINDER_COMMAND"
	KindMalformed    Kind = "MALFORMED_COMMAND"
	KindSales        Kind = "SALES_QUERY"
	KindTasks        Kind = "TASK_QUERY"
	KindFAQ          Kind = "FAQ_QUERY"
	KindAppointment  Kind = "APPOINTMENT_QUERY"
	KindAvailability Kind = "AVAILABILITY_QUERY"
	KindGeneration   Kind = "GENERATION_FALLBACK"
)

// Reminder is the parsed /remind command. When is the raw datetime text.
type Reminder struct {
	Description string
	When        string
}

// Result is the outcome of classification. Rule is the index of the matching
// rule so a handler that declines can resume classification after it.
type Result struct {
	Kind     Kind
	Reminder Reminder
	Terms    []string
	Rule     int
}

// Rule inspects the raw prompt and its lowercase form.
type Rule func(raw, lower string) (Result, bool)

// Classifier applies rules in order and falls back to generation.
type Classifier struct {
	rules []Rule
}

func New(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the first matching intent.
func (c *Classifier) Classify(prompt string) Result {
	return c.ClassifyFrom(prompt, 0)
}

// ClassifyFrom evaluates rules starting at index start.
func (c *Classifier) ClassifyFrom(prompt string, start int) Result {
	lower := strings.ToLower(prompt)
	for i := max(start, 0); i < len(c.rules); i++ {
		if res, ok := c.rules[i](prompt, lower); ok {
			res.Rule = i
			return res
		}
	}
	return Result{Kind: KindGeneration, Rule: len(c.rules)}
}

// BizAssist is the rule table of the business-owner assistant.
func BizAssist() *Classifier {
	return New(
		ReminderCommand,
		Contains(KindSales, "sales"),
		Contains(KindTasks, "task"),
	)
}

// MediConnect is the rule table of the clinic patient assistant.
func MediConnect() *Classifier {
	return New(
		FAQQuestion,
		Contains(KindAppointment, "my next appointment", "do i have an appointment", "my appointment"),
		Contains(KindAvailability, "doctor available", "availability on"),
	)
}

// Contains matches when the lowercase prompt contains any of the keywords.
func Contains(kind Kind, keywords ...string) Rule {
	return func(_, lower string) (Result, bool) {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return Result{Kind: kind}, true
			}
		}
		return Result{}, false
	}
}

const commandPrefix = "/remind "

var (
	remindWithOn    = regexp.MustCompile(`(?i)^/remind\s+"([^"]+)"\s+on\s+(.+)$`)
	remindWithoutOn = regexp.MustCompile(`(?i)^/remind\s+"([^"]+)"\s+(.+)$`)
)

// ReminderCommand matches `/remind "<description>" [on] <datetime text>`.
// A prompt that starts with the command but does not fit the grammar is
// classified as malformed.
func ReminderCommand(raw, lower string) (Result, bool) {
	if !strings.HasPrefix(lower, commandPrefix) {
		return Result{}, false
	}
	for _, re := range []*regexp.Regexp{remindWithOn, remindWithoutOn} {
		if m := re.FindStringSubmatch(raw); m != nil {
			return Result{Kind: KindReminder, Reminder: Reminder{Description: m[1], When: m[2]}}, true
		}
	}
	return Result{Kind: KindMalformed}, true
}

var faqKeywords = []string{"what is", "how to", "info on", "information about", "tell me about", "faq"}

// FAQQuestion matches question-like prompts and extracts search terms.
func FAQQuestion(_, lower string) (Result, bool) {
	if !isQuestion(lower) {
		return Result{}, false
	}
	return Result{Kind: KindFAQ, Terms: SearchTerms(lower)}, true
}

func isQuestion(lower string) bool {
	if strings.HasSuffix(lower, "?") {
		return true
	}
	for _, kw := range faqKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SearchTerms splits a lowercase prompt on spaces and keeps words longer than
// two characters that do not contain an FAQ keyword.
func SearchTerms(lower string) []string {
	var terms []string
	for _, word := range strings.Split(lower, " ") {
		if utf8.RuneCountInString(word) <= 2 || containsKeyword(word) {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

func containsKeyword(word string) bool {
	for _, kw := range faqKeywords {
		if strings.Contains(word, kw) {
			return true
		}
	}
	return false
}
