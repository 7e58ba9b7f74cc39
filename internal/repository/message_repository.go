package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// MessageRepo persists chat messages in the dedicated chat store.
type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo { return &MessageRepo{db: db} }

// Create appends a message. It is always stored unread.
func (r *MessageRepo) Create(ctx context.Context, senderID, receiverID uint64, body string) (*model.Message, error) {
	m := &model.Message{SenderID: senderID, ReceiverID: receiverID, Body: body, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// Thread returns the messages between two users, oldest first.
func (r *MessageRepo) Thread(ctx context.Context, a, b uint64, page, limit int) ([]model.Message, model.Page, error) {
	page, limit = ClampPage(page, limit)
	q := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, model.Page{}, err
	}
	out := []model.Message{}
	err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset(page, limit)).Find(&out).Error
	if err != nil {
		return nil, model.Page{}, err
	}
	return out, model.NewPage(page, limit, total), nil
}

// MarkRead flags one message read by its receiver and returns it.
// ErrNoChange when the message does not exist or belongs to someone else.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, readerID uint64) (*model.Message, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND receiver_id = ?", messageID, readerID).
		Update("is_read", true)
	if res.Error != nil {
		return nil, res.Error
	}
	var m model.Message
	if err := r.db.WithContext(ctx).Where("id = ? AND receiver_id = ?", messageID, readerID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNoChange
		}
		return nil, err
	}
	return &m, nil
}

// MarkThreadRead marks everything otherID sent to readerID as read.
func (r *MessageRepo) MarkThreadRead(ctx context.Context, readerID, otherID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", readerID, otherID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// UnreadCount counts unread messages addressed to userID.
func (r *MessageRepo) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

// Conversations returns one entry per counterpart with the latest message
// and the unread count, most recent first.
func (r *MessageRepo) Conversations(ctx context.Context, userID uint64) ([]model.Conversation, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").Order("id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	out := []model.Conversation{}
	index := map[uint64]int{}
	for _, m := range msgs {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		i, seen := index[other]
		if !seen {
			index[other] = len(out)
			out = append(out, model.Conversation{OtherUserID: other, LastMessage: m.Body, LastMessageAt: m.CreatedAt})
			i = len(out) - 1
		}
		if m.ReceiverID == userID && !m.IsRead {
			out[i].UnreadCount++
		}
	}
	return out, nil
}
