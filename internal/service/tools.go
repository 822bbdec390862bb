package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
)

// Action tells the storefront panel what to render next to the reply
type Action string

const (
	ActionShowProducts Action = "show_products"
	ActionUpdateCart   Action = "update_cart"
	ActionOpenCheckout Action = "open_checkout"
	ActionShowOrder    Action = "show_order"
)

const platformFailureReply = "Sorry, I couldn't reach the store just now. Please try again in a moment."

// ToolResult is the outcome of the action chosen for an intent. Summary is
// a complete template reply; the synthesizer may rephrase it.
type ToolResult struct {
	Intent      Intent
	Summary     string
	Products    []commerce.Product
	CheckoutURL string
	Order       *commerce.Order
	Actions     []Action
	// Err is set when the commerce platform failed. Shopper mistakes such as
	// an unknown order number are answered in Summary instead.
	Err error
}

// Dispatcher runs the commerce action for a classified message
type Dispatcher struct {
	storeName   string
	searchLimit int
	log         logrus.FieldLogger
}

// NewDispatcher creates a dispatcher returning at most searchLimit products
func NewDispatcher(storeName string, searchLimit int, log logrus.FieldLogger) *Dispatcher {
	if searchLimit <= 0 {
		searchLimit = 5
	}
	return &Dispatcher{storeName: storeName, searchLimit: searchLimit, log: log}
}

// Dispatch performs the action for c against platform, updating the
// session's cart, last results and checkout link as a side effect
func (d *Dispatcher) Dispatch(ctx context.Context, platform commerce.Platform, session *Session, c Classification) ToolResult {
	if c.Entities.Email != "" {
		session.Email = c.Entities.Email
		// a bare email answers the order lookup that asked for it
		if c.Intent == IntentGeneral && session.PendingOrder != "" {
			c.Intent = IntentOrderStatus
			c.Entities.OrderNumber = session.PendingOrder
		}
	}

	switch c.Intent {
	case IntentSearch:
		return d.search(ctx, platform, session, c.Entities)
	case IntentAddToCart:
		return d.addToCart(ctx, platform, session, c.Entities)
	case IntentRemoveFromCart:
		return d.removeFromCart(session, c.Entities)
	case IntentViewCart:
		return d.viewCart(session)
	case IntentCheckout:
		return d.checkout(ctx, platform, session, c.Entities)
	case IntentOrderStatus:
		return d.orderStatus(ctx, platform, session, c.Entities)
	case IntentGreeting:
		return ToolResult{Intent: IntentGreeting, Summary: fmt.Sprintf(
			"Hi! Welcome to %s. I can help you find products, manage your cart, check out or track an order.", d.storeName)}
	case IntentHelp:
		return ToolResult{Intent: IntentHelp, Summary: `Here are some things you can ask me:
- "show me running shoes"
- "add the first one to my cart"
- "what's in my cart?"
- "remove the socks"
- "checkout"
- "where is order #1001?"`}
	default:
		return ToolResult{Intent: IntentGeneral, Summary: "I'm not sure I understood. I can search products, manage your cart, start checkout or look up an order."}
	}
}

func (d *Dispatcher) failure(intent Intent, op string, err error) ToolResult {
	d.log.WithError(err).WithFields(logrus.Fields{"intent": intent, "op": op}).Error("[Assistant] commerce action failed")
	return ToolResult{Intent: intent, Summary: platformFailureReply, Err: err}
}

func (d *Dispatcher) search(ctx context.Context, platform commerce.Platform, session *Session, ent Entities) ToolResult {
	if ent.Query == "" {
		return ToolResult{Intent: IntentSearch, Summary: "What would you like me to look for?"}
	}

	products, err := platform.SearchProducts(ctx, ent.Query, d.searchLimit)
	if err != nil {
		return d.failure(IntentSearch, "search_products", err)
	}
	if len(products) == 0 {
		return ToolResult{Intent: IntentSearch, Summary: fmt.Sprintf(
			"I couldn't find anything matching %q. Could you try different words?", ent.Query)}
	}

	session.LastResults = products
	return ToolResult{
		Intent: IntentSearch,
		Summary: fmt.Sprintf("Here is what I found for %q:\n%s\nSay \"add the first one\" to put one in your cart.",
			ent.Query, formatProducts(products)),
		Products: products,
		Actions:  []Action{ActionShowProducts},
	}
}

// resolveProduct picks the product an add request refers to. It returns
// a non-nil result when the shopper has to be asked again or the platform
// failed.
func (d *Dispatcher) resolveProduct(ctx context.Context, platform commerce.Platform, session *Session, ent Entities) (*commerce.Product, *ToolResult) {
	var candidate *commerce.Product

	switch idx, ok := ent.ResolveOrdinal(len(session.LastResults)); {
	case ok:
		candidate = &session.LastResults[idx]
	case ent.Ordinal != 0:
		if len(session.LastResults) == 0 {
			return nil, &ToolResult{Intent: IntentAddToCart, Summary: "Which product would you like? Search for something first and I'll list the options."}
		}
		return nil, &ToolResult{Intent: IntentAddToCart, Summary: fmt.Sprintf(
			"I only showed you %s. Which one would you like?", pluralize(len(session.LastResults), "product"))}
	case ent.Query != "":
		products, err := platform.SearchProducts(ctx, ent.Query, d.searchLimit)
		if err != nil {
			r := d.failure(IntentAddToCart, "search_products", err)
			return nil, &r
		}
		if len(products) == 0 {
			return nil, &ToolResult{Intent: IntentAddToCart, Summary: fmt.Sprintf("I couldn't find %q in the store.", ent.Query)}
		}
		session.LastResults = products
		candidate = &products[0]
	case len(session.LastResults) == 1:
		candidate = &session.LastResults[0]
	default:
		return nil, &ToolResult{Intent: IntentAddToCart, Summary: "Which product would you like to add? Tell me its name or say \"the first one\" after a search."}
	}

	// Refresh stock before it goes in the cart
	fresh, err := platform.GetProduct(ctx, candidate.ID)
	switch {
	case errors.Is(err, commerce.ErrProductNotFound):
		return nil, &ToolResult{Intent: IntentAddToCart, Summary: fmt.Sprintf("Sorry, %s is no longer available.", displayTitle(candidate.Title))}
	case err != nil:
		r := d.failure(IntentAddToCart, "get_product", err)
		return nil, &r
	}
	return fresh, nil
}

func (d *Dispatcher) addToCart(ctx context.Context, platform commerce.Platform, session *Session, ent Entities) ToolResult {
	product, ask := d.resolveProduct(ctx, platform, session, ent)
	if ask != nil {
		return *ask
	}

	variant, ok := product.FirstAvailableVariant()
	if !ok {
		return ToolResult{Intent: IntentAddToCart, Summary: fmt.Sprintf("Sorry, %s is out of stock right now.", displayTitle(product.Title))}
	}

	line := session.Cart.Add(*product, variant, ent.QuantityOrDefault())
	return ToolResult{
		Intent: IntentAddToCart,
		Summary: fmt.Sprintf("Added %s to your cart (now x%d).\n%s",
			displayTitle(line.Title), line.Quantity, formatCart(session.Cart)),
		Actions: []Action{ActionUpdateCart},
	}
}

func (d *Dispatcher) removeFromCart(session *Session, ent Entities) ToolResult {
	cart := &session.Cart
	if cart.IsEmpty() {
		return ToolResult{Intent: IntentRemoveFromCart, Summary: "Your cart is empty."}
	}

	idx := -1
	if i, ok := ent.ResolveOrdinal(len(cart.Lines)); ok {
		idx = i
	} else if ent.Query != "" {
		idx = cart.Find(ent.Query)
		if idx < 0 {
			return ToolResult{Intent: IntentRemoveFromCart, Summary: fmt.Sprintf(
				"I couldn't find %q in your cart.\n%s", ent.Query, formatCart(*cart))}
		}
	} else if len(cart.Lines) == 1 {
		idx = 0
	}
	if idx < 0 {
		return ToolResult{Intent: IntentRemoveFromCart, Summary: "Which item should I remove?\n" + formatCart(*cart)}
	}

	line := cart.Lines[idx]
	var summary string
	if ent.Quantity > 0 && ent.Quantity < line.Quantity {
		cart.Lines[idx].Quantity -= ent.Quantity
		summary = fmt.Sprintf("Removed %d of %s.", ent.Quantity, displayTitle(line.Title))
	} else {
		if _, err := cart.RemoveAt(idx); err != nil {
			return ToolResult{Intent: IntentRemoveFromCart, Summary: "Which item should I remove?\n" + formatCart(*cart)}
		}
		summary = fmt.Sprintf("Removed %s from your cart.", displayTitle(line.Title))
	}

	if cart.IsEmpty() {
		summary += " Your cart is now empty."
	} else {
		summary += "\n" + formatCart(*cart)
	}
	return ToolResult{Intent: IntentRemoveFromCart, Summary: summary, Actions: []Action{ActionUpdateCart}}
}

func (d *Dispatcher) viewCart(session *Session) ToolResult {
	if session.Cart.IsEmpty() {
		return ToolResult{Intent: IntentViewCart, Summary: "Your cart is empty. Ask me to find something!"}
	}
	return ToolResult{
		Intent: IntentViewCart,
		Summary: fmt.Sprintf("You have %s in your cart:\n%s",
			pluralize(session.Cart.ItemCount(), "item"), formatCart(session.Cart)),
		Actions: []Action{ActionUpdateCart},
	}
}

func (d *Dispatcher) checkout(ctx context.Context, platform commerce.Platform, session *Session, ent Entities) ToolResult {
	emptyCart := ToolResult{Intent: IntentCheckout, Summary: "Your cart is empty, so there's nothing to check out yet."}
	if session.Cart.IsEmpty() {
		return emptyCart
	}

	email := ent.Email
	if email == "" {
		email = session.Email
	}
	checkout, err := platform.CreateCheckout(ctx, commerce.CheckoutRequest{
		Lines: session.Cart.Lines,
		Email: email,
		Note:  "Created by the storefront assistant",
	})
	switch {
	case errors.Is(err, commerce.ErrEmptyCart):
		return emptyCart
	case errors.Is(err, commerce.ErrOutOfStock):
		return ToolResult{Intent: IntentCheckout, Summary: "Sorry, something in your cart just went out of stock. Please remove it and try again.\n" + formatCart(session.Cart)}
	case errors.Is(err, commerce.ErrProductNotFound):
		return ToolResult{Intent: IntentCheckout, Summary: "Sorry, an item in your cart is no longer available. Please remove it and try again.\n" + formatCart(session.Cart)}
	case err != nil:
		return d.failure(IntentCheckout, "create_checkout", err)
	}

	session.LastCheckoutURL = checkout.URL
	return ToolResult{
		Intent:      IntentCheckout,
		Summary:     fmt.Sprintf("Your checkout is ready. The total is %s. Complete your order here: %s", checkout.Total, checkout.URL),
		CheckoutURL: checkout.URL,
		Actions:     []Action{ActionOpenCheckout},
	}
}

func (d *Dispatcher) orderStatus(ctx context.Context, platform commerce.Platform, session *Session, ent Entities) ToolResult {
	if ent.OrderNumber == "" {
		return ToolResult{Intent: IntentOrderStatus, Summary: "Sure! What's your order number? It looks like #1001."}
	}

	email := ent.Email
	if email == "" {
		email = session.Email
	}
	if email == "" {
		session.PendingOrder = ent.OrderNumber
		return ToolResult{Intent: IntentOrderStatus, Summary: fmt.Sprintf(
			"I can look up order #%s. What email address was it placed with?", strings.TrimPrefix(ent.OrderNumber, "#"))}
	}
	session.PendingOrder = ""

	order, err := platform.GetOrder(ctx, ent.OrderNumber, email)
	if errors.Is(err, commerce.ErrOrderNotFound) {
		return ToolResult{Intent: IntentOrderStatus, Summary: fmt.Sprintf(
			"I couldn't find order #%s for %s. Please check the number and email and try again.",
			strings.TrimPrefix(ent.OrderNumber, "#"), email)}
	}
	if err != nil {
		return d.failure(IntentOrderStatus, "get_order", err)
	}

	return ToolResult{
		Intent:  IntentOrderStatus,
		Summary: formatOrder(order),
		Order:   order,
		Actions: []Action{ActionShowOrder},
	}
}
