package service

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Intent is what the shopper is asking the assistant to do
type Intent string

const (
	IntentSearch         Intent = "search"
	IntentAddToCart      Intent = "add_to_cart"
	IntentRemoveFromCart Intent = "remove_from_cart"
	IntentViewCart       Intent = "view_cart"
	IntentCheckout       Intent = "checkout"
	IntentOrderStatus    Intent = "order_status"
	IntentGreeting       Intent = "greeting"
	IntentHelp           Intent = "help"
	IntentGeneral        Intent = "general"
)

var knownIntents = map[Intent]bool{
	IntentSearch: true, IntentAddToCart: true, IntentRemoveFromCart: true,
	IntentViewCart: true, IntentCheckout: true, IntentOrderStatus: true,
	IntentGreeting: true, IntentHelp: true,
}

// OrdinalLast marks "the last one" in Entities.Ordinal
const OrdinalLast = -1

//go:embed intents.yaml
var defaultIntentTable []byte

var (
	emailPattern       = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	orderNumberPattern = regexp.MustCompile(`(?:#\s*|\border\s+(?:number\s+|no\.?\s*|#\s*)?|\bnumber\s+)(\d{3,})\b`)
	ordinalRefPattern  = regexp.MustCompile(`(?:#|\bnumber\s+|\bno\.\s*|\bitem\s+|\boption\s+)(\d{1,2})\b`)
	ordinalWordPattern = regexp.MustCompile(`\b(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th|last)\b`)
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	"last": OrdinalLast,
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// IntentRule maps keywords to an intent
type IntentRule struct {
	Intent   Intent   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// IntentTable is the YAML document driving the classifier
type IntentTable struct {
	Rules   []IntentRule `yaml:"rules"`
	Fillers []string     `yaml:"fillers"`
}

// Entities are the details pulled out of a message. Extraction is best
// effort and never fails.
type Entities struct {
	// Quantity is 0 when the shopper did not state one
	Quantity    int    `json:"quantity,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
	Email       string `json:"email,omitempty"`
	// Ordinal is 1-based, OrdinalLast for "last", 0 when absent
	Ordinal int    `json:"ordinal,omitempty"`
	Query   string `json:"query,omitempty"`
}

// QuantityOrDefault returns the stated quantity or 1
func (e Entities) QuantityOrDefault() int {
	if e.Quantity <= 0 {
		return 1
	}
	return e.Quantity
}

// ResolveOrdinal turns the ordinal into an index into a list of n items
func (e Entities) ResolveOrdinal(n int) (int, bool) {
	switch {
	case e.Ordinal == OrdinalLast && n > 0:
		return n - 1, true
	case e.Ordinal > 0 && e.Ordinal <= n:
		return e.Ordinal - 1, true
	}
	return 0, false
}

// Classification is the classifier's verdict on one message
type Classification struct {
	Intent   Intent   `json:"intent"`
	Entities Entities `json:"entities"`
}

type compiledRule struct {
	intent  Intent
	words   map[string]bool
	phrases []string
}

// Classifier is an ordered keyword matcher
type Classifier struct {
	rules   []compiledRule
	stop    map[string]bool
	phrases []string
}

// NewClassifier compiles table. Rule order is priority order.
func NewClassifier(table IntentTable) (*Classifier, error) {
	if len(table.Rules) == 0 {
		return nil, fmt.Errorf("intent table has no rules")
	}

	c := &Classifier{stop: map[string]bool{}}
	for _, f := range table.Fillers {
		c.stop[strings.ToLower(strings.TrimSpace(f))] = true
	}

	for _, rule := range table.Rules {
		if !knownIntents[rule.Intent] {
			return nil, fmt.Errorf("unknown intent %q in intent table", rule.Intent)
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("intent %q has no keywords", rule.Intent)
		}
		cr := compiledRule{intent: rule.Intent, words: map[string]bool{}}
		for _, kw := range rule.Keywords {
			kw = strings.Join(tokenizeMessage(kw), " ")
			if kw == "" {
				continue
			}
			if strings.Contains(kw, " ") {
				cr.phrases = append(cr.phrases, kw)
				c.phrases = append(c.phrases, kw)
			} else {
				cr.words[kw] = true
				c.stop[kw] = true
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// DefaultClassifier uses the bundled keyword table
func DefaultClassifier() *Classifier {
	c, err := parseClassifier(defaultIntentTable)
	if err != nil {
		panic(fmt.Sprintf("bundled intent table is invalid: %v", err))
	}
	return c
}

// LoadClassifier reads a keyword table from path, or the bundled one when
// path is empty
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return DefaultClassifier(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent table: %w", err)
	}
	return parseClassifier(data)
}

func parseClassifier(data []byte) (*Classifier, error) {
	var table IntentTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse intent table: %w", err)
	}
	return NewClassifier(table)
}

// Classify picks the intent of message and extracts its entities
func (c *Classifier) Classify(message string) Classification {
	text := normalizeMessage(message)

	var ent Entities
	if email := emailPattern.FindString(text); email != "" {
		ent.Email = email
		text = strings.Replace(text, email, " ", 1)
	}
	if m := orderNumberPattern.FindStringSubmatch(text); m != nil {
		ent.OrderNumber = m[1]
	}

	tokens := tokenizeMessage(text)
	joined := " " + strings.Join(tokens, " ") + " "

	var intent Intent
	if ent.OrderNumber != "" {
		intent = IntentOrderStatus
	} else {
		intent = c.match(tokens, joined)
	}

	// What remains once references are cut out is free text
	rest := orderNumberPattern.ReplaceAllString(text, " ")
	if m := ordinalRefPattern.FindStringSubmatch(rest); m != nil {
		ent.Ordinal, _ = strconv.Atoi(m[1])
		rest = ordinalRefPattern.ReplaceAllString(rest, " ")
	}
	if m := ordinalWordPattern.FindStringSubmatch(rest); m != nil {
		if ent.Ordinal == 0 {
			ent.Ordinal = ordinalWords[m[1]]
		}
		rest = ordinalWordPattern.ReplaceAllString(rest, " ")
	}

	restTokens := tokenizeMessage(rest)
	ent.Quantity = extractQuantity(restTokens)
	ent.Query = c.productQuery(restTokens)

	return Classification{Intent: intent, Entities: ent}
}

func (c *Classifier) match(tokens []string, joined string) Intent {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	for _, rule := range c.rules {
		for _, p := range rule.phrases {
			if strings.Contains(joined, p) {
				return rule.intent
			}
		}
		for w := range rule.words {
			if set[w] {
				return rule.intent
			}
		}
	}
	return IntentGeneral
}

// productQuery drops keywords, fillers and numbers from tokens
func (c *Classifier) productQuery(tokens []string) string {
	joined := " " + strings.Join(tokens, " ") + " "
	for _, p := range c.phrases {
		joined = strings.ReplaceAll(joined, " "+p+" ", " ")
	}

	var kept []string
	for _, t := range strings.Fields(joined) {
		if c.stop[t] || isNumberToken(t) {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

func extractQuantity(tokens []string) int {
	for _, t := range tokens {
		if n, err := strconv.Atoi(t); err == nil {
			if n <= 0 {
				continue
			}
			if n > 99 {
				return 99
			}
			return n
		}
		// too many digits for an int
		if errors.Is(err, strconv.ErrRange) && isNumberToken(t) {
			return 99
		}
		if n, ok := numberWords[t]; ok {
			return n
		}
	}
	return 0
}

func isNumberToken(t string) bool {
	if _, ok := numberWords[t]; ok {
		return true
	}
	for _, r := range t {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func normalizeMessage(message string) string {
	message = strings.ReplaceAll(message, "’", "'")
	return strings.ToLower(strings.TrimSpace(message))
}

// tokenizeMessage splits on anything but letters, digits and apostrophes
func tokenizeMessage(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
