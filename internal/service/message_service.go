package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

const maxMessageLen = 4000

// MessageService validates and stores chat messages. Live delivery is done
// by the realtime package after Send succeeds.
type MessageService struct {
	messages *repository.MessageRepo
	users    *repository.UserRepo
	blocks   *repository.BlockRepo
}

func NewMessageService(messages *repository.MessageRepo, users *repository.UserRepo, blocks *repository.BlockRepo) *MessageService {
	return &MessageService{messages: messages, users: users, blocks: blocks}
}

// Send persists a message from senderID to receiverID.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uint64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	switch {
	case receiverID == 0:
		return nil, Required("receiver_id")
	case body == "":
		return nil, Required("message")
	case receiverID == senderID:
		return nil, Invalid("Cannot send a message to yourself")
	case utf8.RuneCountInString(body) > maxMessageLen:
		return nil, Invalid("Message is too long")
	}
	ok, err := s.users.Exists(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	blocked, err := s.blocks.Between(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, repository.ErrForbidden
	}
	return s.messages.Create(ctx, senderID, receiverID, body)
}

// MarkRead flags a message read by its receiver.
func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID uint64) (*model.Message, error) {
	m, err := s.messages.MarkRead(ctx, messageID, readerID)
	if errors.Is(err, repository.ErrNoChange) {
		return nil, Invalid("Message not found")
	}
	return m, err
}

// Thread returns the conversation with otherID and marks what the caller
// received in it as read.
func (s *MessageService) Thread(ctx context.Context, userID, otherID uint64, page, limit int) ([]model.Message, model.Page, error) {
	items, p, err := s.messages.Thread(ctx, userID, otherID, page, limit)
	if err != nil {
		return nil, p, err
	}
	if _, err := s.messages.MarkThreadRead(ctx, userID, otherID); err != nil {
		return nil, p, err
	}
	return items, p, nil
}

// UnreadCount counts unread messages for userID.
func (s *MessageService) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	return s.messages.UnreadCount(ctx, userID)
}

// Conversations lists the caller's threads with the counterpart's profile.
func (s *MessageService) Conversations(ctx context.Context, userID uint64) ([]model.Conversation, error) {
	convs, err := s.messages.Conversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		u, err := s.users.Summary(ctx, convs[i].OtherUserID)
		switch {
		case err == nil:
			u.PhoneNumber = ""
			convs[i].OtherUser = u
		case !errors.Is(err, repository.ErrUserNotFound):
			return nil, err
		}
	}
	return convs, nil
}
