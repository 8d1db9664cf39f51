package sources

import (
	"sort"
	"strings"
)

// Classifier assigns a category slug to a price-list row from its product name.
type Classifier interface {
	Classify(name string) string
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(name string) string

// Classify calls f(name).
func (f ClassifierFunc) Classify(name string) string {
	return f(name)
}

type classifierRule struct {
	token    string
	category string
}

// RuleClassifier maps name tokens to categories. A rule matches when the
// lowercased name starts with its token or contains it as a whole word.
// Longer tokens are tried first; names matching nothing get the fallback.
type RuleClassifier struct {
	rules    []classifierRule
	fallback string
}

// NewRuleClassifier builds a classifier from token -> category rules.
func NewRuleClassifier(rules map[string]string, fallback string) *RuleClassifier {
	c := &RuleClassifier{fallback: fallback}
	for token, category := range rules {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" || category == "" {
			continue
		}
		c.rules = append(c.rules, classifierRule{token: token, category: category})
	}
	sort.Slice(c.rules, func(i, j int) bool {
		if len(c.rules[i].token) != len(c.rules[j].token) {
			return len(c.rules[i].token) > len(c.rules[j].token)
		}
		return c.rules[i].token < c.rules[j].token
	})
	return c
}

// Classify returns the category of name.
func (c *RuleClassifier) Classify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	words := strings.Fields(lower)
	for _, rule := range c.rules {
		if strings.HasPrefix(lower, rule.token) {
			return rule.category
		}
		for _, word := range words {
			if word == rule.token {
				return rule.category
			}
		}
	}
	return c.fallback
}
