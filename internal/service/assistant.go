package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pageza/storefront-assistant/backend/internal/commerce"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrMissingShop    = errors.New("shop is required")
	ErrInvalidSession = errors.New("invalid session id")
)

// ChatInput is one shopper message
type ChatInput struct {
	ShopDomain string
	SessionID  string
	Message    string
}

// CartSummary is the cart as shown next to a reply
type CartSummary struct {
	Lines     []commerce.CartLine `json:"lines"`
	ItemCount int                 `json:"item_count"`
	Subtotal  commerce.Money      `json:"subtotal"`
}

// SummarizeCart never returns nil lines
func SummarizeCart(cart commerce.Cart) CartSummary {
	lines := cart.Lines
	if lines == nil {
		lines = []commerce.CartLine{}
	}
	return CartSummary{Lines: lines, ItemCount: cart.ItemCount(), Subtotal: cart.Subtotal()}
}

// Reply is the assistant's answer to one message
type Reply struct {
	SessionID   string             `json:"session_id"`
	Message     string             `json:"message"`
	Intent      Intent             `json:"intent"`
	Products    []commerce.Product `json:"products,omitempty"`
	Cart        CartSummary        `json:"cart"`
	CheckoutURL string             `json:"checkout_url,omitempty"`
	Order       *commerce.Order    `json:"order,omitempty"`
	Actions     []Action           `json:"actions,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// AssistantOptions bounds message and history sizes
type AssistantOptions struct {
	MaxMessageLength int
	MaxHistory       int
}

// AssistantDeps are the collaborators of AssistantService. Transcripts may
// be nil.
type AssistantDeps struct {
	Sessions    SessionStore
	Platforms   PlatformResolver
	Classifier  *Classifier
	Dispatcher  *Dispatcher
	Synthesizer *Synthesizer
	Transcripts TranscriptRecorder
}

// AssistantService runs one conversational turn end to end
type AssistantService struct {
	deps  AssistantDeps
	opts  AssistantOptions
	locks *sessionLocks
	log   logrus.FieldLogger
}

// NewAssistantService wires the assistant
func NewAssistantService(deps AssistantDeps, opts AssistantOptions, log logrus.FieldLogger) *AssistantService {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 50
	}
	if deps.Classifier == nil {
		deps.Classifier = DefaultClassifier()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = NewDispatcher("our store", 5, log)
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = NewSynthesizer(nil, "our store", 0, 0, log)
	}
	return &AssistantService{deps: deps, opts: opts, locks: newSessionLocks(), log: log}
}

// ValidateMessage trims message and checks its length in characters
func (s *AssistantService) ValidateMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > s.opts.MaxMessageLength {
		return "", fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, s.opts.MaxMessageLength)
	}
	return message, nil
}

func validSessionID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// HandleMessage classifies the message, runs the matching commerce action
// and replies. Turns of the same session never run concurrently.
func (s *AssistantService) HandleMessage(ctx context.Context, in ChatInput) (*Reply, error) {
	message, err := s.ValidateMessage(in.Message)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ShopDomain) == "" {
		return nil, ErrMissingShop
	}
	shop, err := NormalizeShopDomain(in.ShopDomain)
	if err != nil {
		return nil, err
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	} else if !validSessionID(sessionID) {
		return nil, ErrInvalidSession
	}

	platform, err := s.deps.Platforms.ForShop(ctx, shop)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.loadSession(ctx, sessionID, shop)
	if err != nil {
		return nil, err
	}
	log := s.log.WithFields(logrus.Fields{"shop": shop, "session_id": session.ID})

	classification := s.deps.Classifier.Classify(message)
	userMsg := session.Append(RoleUser, message, classification.Intent, 0)

	result := s.deps.Dispatcher.Dispatch(ctx, platform, session, classification)
	text, generated := s.deps.Synthesizer.Compose(ctx, session, result)
	assistantMsg := session.Append(RoleAssistant, text, result.Intent, s.opts.MaxHistory)

	if err := s.deps.Sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.deps.Transcripts != nil {
		if err := s.deps.Transcripts.Record(ctx, shop, session.ID, userMsg, assistantMsg); err != nil {
			log.WithError(err).Warn("[Assistant] failed to record transcript")
		}
	}

	log.WithFields(logrus.Fields{
		"intent":    result.Intent,
		"generated": generated,
		"platform":  platform.Name(),
	}).Info("[Assistant] message handled")

	reply := &Reply{
		SessionID:   session.ID,
		Message:     text,
		Intent:      result.Intent,
		Products:    result.Products,
		Cart:        SummarizeCart(session.Cart),
		CheckoutURL: result.CheckoutURL,
		Order:       result.Order,
		Actions:     result.Actions,
	}
	if result.Err != nil {
		reply.Error = publicError(result.Err)
	}
	return reply, nil
}

// loadSession returns the stored session or a fresh one. A session id
// belonging to another shop is never reused.
func (s *AssistantService) loadSession(ctx context.Context, id, shop string) (*Session, error) {
	session, err := s.deps.Sessions.Get(ctx, id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return NewSession(id, shop), nil
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	case session.ShopDomain != shop:
		s.log.WithFields(logrus.Fields{"session_id": id, "shop": shop}).Warn("[Assistant] session belongs to another shop, starting a new one")
		return NewSession(uuid.New().String(), shop), nil
	}
	return session, nil
}

// GetSession returns a shop's session
func (s *AssistantService) GetSession(ctx context.Context, shopDomain, sessionID string) (*Session, error) {
	shop, err := NormalizeShopDomain(shopDomain)
	if err != nil {
		return nil, err
	}
	session, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ShopDomain != shop {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ResetSession forgets a shop's session, cart included
func (s *AssistantService) ResetSession(ctx context.Context, shopDomain, sessionID string) error {
	if _, err := s.GetSession(ctx, shopDomain, sessionID); err != nil {
		return err
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()
	return s.deps.Sessions.Delete(ctx, sessionID)
}

// History returns the messages kept in a shop's session
func (s *AssistantService) History(ctx context.Context, shopDomain, sessionID string) ([]Message, error) {
	session, err := s.GetSession(ctx, shopDomain, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// publicError is the error text shown to shoppers
func publicError(err error) string {
	switch {
	case errors.Is(err, commerce.ErrThrottled), errors.Is(err, commerce.ErrPlatformUnavailable):
		return commerce.ErrPlatformUnavailable.Error()
	case errors.Is(err, commerce.ErrUnauthorized):
		return "store connection needs to be renewed"
	default:
		return "commerce action failed"
	}
}
