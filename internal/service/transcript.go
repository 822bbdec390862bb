package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/models"
)

// ErrConversationNotFound is returned when a shop has no messages for a session
var ErrConversationNotFound = errors.New("conversation not found")

// ObjectStore receives archived transcripts. config.S3Config satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// presigner is implemented by stores that can hand out download links
type presigner interface {
	GeneratePresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

// TranscriptRecorder persists chat turns
type TranscriptRecorder interface {
	Record(ctx context.Context, shopDomain, sessionID string, messages ...Message) error
}

// Transcript is the archived form of one conversation
type Transcript struct {
	ShopDomain string                       `json:"shop_domain"`
	SessionID  string                       `json:"session_id"`
	ArchivedAt time.Time                    `json:"archived_at"`
	Messages   []models.ConversationMessage `json:"messages"`
}

// TranscriptService stores conversation messages for merchants to review
type TranscriptService struct {
	db      *gorm.DB
	archive ObjectStore
	log     logrus.FieldLogger
}

// NewTranscriptService creates the service. archive may be nil.
func NewTranscriptService(db *gorm.DB, archive ObjectStore, log logrus.FieldLogger) *TranscriptService {
	return &TranscriptService{db: db, archive: archive, log: log}
}

// Record implements TranscriptRecorder
func (s *TranscriptService) Record(ctx context.Context, shopDomain, sessionID string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	rows := make([]models.ConversationMessage, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, models.ConversationMessage{
			CreatedAt:  m.CreatedAt,
			SessionID:  sessionID,
			ShopDomain: shopDomain,
			Role:       string(m.Role),
			Content:    m.Content,
			Intent:     string(m.Intent),
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to record transcript: %w", err)
	}
	return nil
}

// ListConversations summarizes a shop's conversations, most recent first
func (s *TranscriptService) ListConversations(ctx context.Context, shopDomain string, limit, offset int) ([]models.ConversationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	// Timestamps are folded in Go; aggregated timestamps do not scan
	// portably across drivers
	var page []struct {
		SessionID    string
		MessageCount int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.ConversationMessage{}).
		Select("session_id, COUNT(*) AS message_count").
		Where("shop_domain = ?", shopDomain).
		Group("session_id").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Offset(offset).
		Scan(&page).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(page) == 0 {
		return []models.ConversationSummary{}, nil
	}

	ids := make([]string, 0, len(page))
	for _, p := range page {
		ids = append(ids, p.SessionID)
	}
	var stamps []models.ConversationMessage
	err = s.db.WithContext(ctx).
		Select("session_id, created_at").
		Where("shop_domain = ? AND session_id IN ?", shopDomain, ids).
		Find(&stamps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	bounds := make(map[string][2]time.Time, len(page))
	for _, m := range stamps {
		b, ok := bounds[m.SessionID]
		if !ok || m.CreatedAt.Before(b[0]) {
			b[0] = m.CreatedAt
		}
		if !ok || m.CreatedAt.After(b[1]) {
			b[1] = m.CreatedAt
		}
		bounds[m.SessionID] = b
	}

	summaries := make([]models.ConversationSummary, 0, len(page))
	for _, p := range page {
		b := bounds[p.SessionID]
		summaries = append(summaries, models.ConversationSummary{
			SessionID:     p.SessionID,
			ShopDomain:    shopDomain,
			MessageCount:  p.MessageCount,
			StartedAt:     b[0],
			LastMessageAt: b[1],
		})
	}
	return summaries, nil
}

// GetConversation returns every message of a session in order
func (s *TranscriptService) GetConversation(ctx context.Context, shopDomain, sessionID string) ([]models.ConversationMessage, error) {
	var messages []models.ConversationMessage
	err := s.db.WithContext(ctx).
		Where("shop_domain = ? AND session_id = ?", shopDomain, sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrConversationNotFound
	}
	return messages, nil
}

// ArchiveKey is where a conversation's transcript is uploaded
func ArchiveKey(shopDomain, sessionID string) string {
	return fmt.Sprintf("transcripts/%s/%s.json", shopDomain, sessionID)
}

// Archive uploads the transcript as JSON and returns its object key
func (s *TranscriptService) Archive(ctx context.Context, shopDomain, sessionID string) (string, error) {
	if s.archive == nil {
		return "", config.ErrArchiveDisabled
	}
	messages, err := s.GetConversation(ctx, shopDomain, sessionID)
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(Transcript{
		ShopDomain: shopDomain,
		SessionID:  sessionID,
		ArchivedAt: time.Now().UTC(),
		Messages:   messages,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}

	key := ArchiveKey(shopDomain, sessionID)
	if err := s.archive.PutObject(ctx, key, body, "application/json"); err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"shop": shopDomain, "session_id": sessionID, "key": key}).Info("[Transcripts] conversation archived")
	return key, nil
}

// DownloadURL returns a temporary link to an archived transcript, or "" when
// the store cannot sign links
func (s *TranscriptService) DownloadURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	p, ok := s.archive.(presigner)
	if !ok {
		return "", nil
	}
	url, err := p.GeneratePresignedURL(ctx, key, expiration)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", key, err)
	}
	return url, nil
}
