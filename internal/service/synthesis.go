package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
)

// Synthesizer turns a tool result into the assistant's reply. With no
// generator, or when the generator fails, the result's template summary is
// used as is.
type Synthesizer struct {
	gen       Generator
	storeName string
	window    int
	timeout   time.Duration
	log       logrus.FieldLogger
}

// NewSynthesizer creates a synthesizer. gen may be nil.
func NewSynthesizer(gen Generator, storeName string, window int, timeout time.Duration, log logrus.FieldLogger) *Synthesizer {
	if window <= 0 {
		window = 10
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Synthesizer{gen: gen, storeName: storeName, window: window, timeout: timeout, log: log}
}

// Compose writes the reply for result. The second return value reports
// whether the text came from the model.
func (s *Synthesizer) Compose(ctx context.Context, session *Session, result ToolResult) (string, bool) {
	// Platform failures keep the fixed apology
	if s.gen == nil || result.Err != nil {
		return result.Summary, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Generate(ctx, GenerationRequest{
		System:  s.systemInstruction(),
		History: session.Recent(s.window),
		Prompt:  toolPrompt(result),
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"generator": s.gen.Name(),
			"intent":    result.Intent,
		}).Warn("[Synthesis] generation failed, using template reply")
		return result.Summary, false
	}

	s.log.WithFields(logrus.Fields{
		"generator": s.gen.Name(),
		"elapsed":   time.Since(start).String(),
	}).Debug("[Synthesis] reply generated")
	return text, true
}

func (s *Synthesizer) systemInstruction() string {
	return fmt.Sprintf(`You are the shopping assistant for %s.
You can search products, add and remove cart items, start checkout and look up order status.
Base your reply only on the action result you are given. Do not invent products, prices, links, stock levels or order details.
If the result asks the shopper a question, ask it. Keep replies short, friendly and in plain text.`, s.storeName)
}

func toolPrompt(result ToolResult) string {
	return fmt.Sprintf("Action: %s\nResult:\n%s\n\nWrite the reply to the shopper's last message.", result.Intent, result.Summary)
}

// displayTitle capitalizes each word without lowering the rest, so brand
// spellings survive
func displayTitle(s string) string {
	return cases.Title(language.English, cases.NoLower).String(strings.TrimSpace(s))
}

func formatProducts(products []commerce.Product) string {
	var b strings.Builder
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s - %s", i+1, displayTitle(p.Title), p.Price)
		if _, ok := p.FirstAvailableVariant(); !ok {
			b.WriteString(" (out of stock)")
		}
		if i < len(products)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func formatCart(cart commerce.Cart) string {
	var b strings.Builder
	for i, l := range cart.Lines {
		title := displayTitle(l.Title)
		if l.VariantTitle != "" && l.VariantTitle != "Default" && l.VariantTitle != "Default Title" {
			title += " (" + l.VariantTitle + ")"
		}
		fmt.Fprintf(&b, "%d. %s x%d - %s\n", i+1, title, l.Quantity, l.LineTotal())
	}
	fmt.Fprintf(&b, "Subtotal: %s", cart.Subtotal())
	return b.String()
}

func formatOrder(order *commerce.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s: payment %s, fulfillment %s, total %s.",
		order.Number, orUnknown(order.FinancialStatus), orUnknown(order.FulfillmentStatus), order.Total)
	for _, t := range order.Tracking {
		b.WriteString("\nTracking: ")
		if t.Company != "" {
			b.WriteString(t.Company + " ")
		}
		b.WriteString(t.Number)
		if t.URL != "" {
			b.WriteString(" " + t.URL)
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
