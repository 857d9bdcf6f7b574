package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"

	"coachReflectAPI/internal/chat"
	"coachReflectAPI/internal/promptguard"
)

const coachSystemPrompt = "You are a supportive coaching assistant for sports coaches. " +
	"Help the coach reflect on their sessions, spot patterns in what went well and what didn't, " +
	"and suggest small, concrete improvements. Keep answers short and practical. " +
	"Never give medical advice."

// How much prior conversation rides along on each model call.
const chatContextMessages = 10

type ChatService struct {
	db *pgxpool.Pool
	ai *openai.Client
}

func NewChatService(db *pgxpool.Pool, apiKey string) *ChatService {
	return &ChatService{
		db: db,
		ai: openai.NewClient(apiKey),
	}
}

// SendMessage runs one chat turn: filter the input, call the model with
// recent context, persist both sides of the exchange.
func (s *ChatService) SendMessage(ctx context.Context, clerkID string, content string) (*chat.Message, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	if err := promptguard.Check(content); err != nil {
		return nil, err
	}

	history, err := s.recentMessages(ctx, userID, chatContextMessages)
	if err != nil {
		log.Printf("SendMessage: failed to load chat history for %s: %v", clerkID, err)
		history = nil
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: coachSystemPrompt},
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content})

	resp, err := s.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     openai.GPT4oMini,
		Messages:  messages,
		MaxTokens: 600,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("assistant returned no choices")
	}
	replyContent := resp.Choices[0].Message.Content

	if err := s.storeMessage(ctx, userID, chat.RoleUser, content); err != nil {
		log.Printf("SendMessage: failed to store user message for %s: %v", clerkID, err)
	}

	reply := &chat.Message{
		ID:      uuid.New(),
		UserID:  userID,
		Role:    chat.RoleAssistant,
		Content: replyContent,
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO chat_messages (id, user_id, role, content) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		reply.ID, reply.UserID, reply.Role, reply.Content,
	).Scan(&reply.CreatedAt)
	if err != nil {
		// The model already answered; return the reply even if persistence failed.
		log.Printf("SendMessage: failed to store assistant message for %s: %v", clerkID, err)
	}

	return reply, nil
}

// GetHistory returns the user's messages, newest first.
func (s *ChatService) GetHistory(ctx context.Context, clerkID string, limit int) ([]*chat.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
	SELECT m.id, m.user_id, m.role, m.content, m.created_at
	FROM chat_messages m
	JOIN users u ON u.id = m.user_id
	WHERE u.clerk_id = $1
	ORDER BY m.created_at DESC
	LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, clerkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var messages []*chat.Message
	for rows.Next() {
		m := &chat.Message{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (s *ChatService) recentMessages(ctx context.Context, userID uuid.UUID, limit int) ([]*chat.Message, error) {
	query := `
	SELECT id, user_id, role, content, created_at
	FROM (
		SELECT id, user_id, role, content, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	) recent
	ORDER BY created_at ASC
	`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*chat.Message
	for rows.Next() {
		m := &chat.Message{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *ChatService) storeMessage(ctx context.Context, userID uuid.UUID, role, content string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_messages (id, user_id, role, content) VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, role, content,
	)
	return err
}
