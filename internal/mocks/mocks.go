package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, convKey string, senderID, receiverID int, body, kind string, clientToken string) (models.Message, error) {
	args := m.Called(ctx, convKey, senderID, receiverID, body, kind, clientToken)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListConversation(ctx context.Context, convKey string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, convKey, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID, receiverID int) error {
	args := m.Called(ctx, messageID, receiverID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkBatchRead(ctx context.Context, senderID, receiverID int) (int, error) {
	args := m.Called(ctx, senderID, receiverID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID, senderID int, body string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID, senderID int) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UpsertReaction(ctx context.Context, messageID, userID int, emoji string) (models.Reaction, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	var reaction models.Reaction
	if val := args.Get(0); val != nil {
		reaction = val.(models.Reaction)
	}
	return reaction, args.Error(1)
}

func (m *MessageRepositoryMock) RemoveReaction(ctx context.Context, messageID, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ReactionsFor(ctx context.Context, messageIDs []int) (map[int][]models.Reaction, error) {
	args := m.Called(ctx, messageIDs)
	var reactions map[int][]models.Reaction
	if val := args.Get(0); val != nil {
		reactions = val.(map[int][]models.Reaction)
	}
	return reactions, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadSummary(ctx context.Context, userID int) (map[int]int, error) {
	args := m.Called(ctx, userID)
	var summary map[int]int
	if val := args.Get(0); val != nil {
		summary = val.(map[int]int)
	}
	return summary, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListOthers(ctx context.Context, excludeID int) ([]models.User, error) {
	args := m.Called(ctx, excludeID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type TrackerMock struct {
	mock.Mock
}

func (m *TrackerMock) Heartbeat(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *TrackerMock) LastActivities(ctx context.Context, userIDs []int) (map[int]time.Time, error) {
	args := m.Called(ctx, userIDs)
	var activities map[int]time.Time
	if val := args.Get(0); val != nil {
		activities = val.(map[int]time.Time)
	}
	return activities, args.Error(1)
}

type TypingSignalsMock struct {
	mock.Mock
}

func (m *TypingSignalsMock) StartTyping(ctx context.Context, userID, receiverID int) error {
	args := m.Called(ctx, userID, receiverID)
	return args.Error(0)
}

func (m *TypingSignalsMock) StopTyping(ctx context.Context, userID, receiverID int) error {
	args := m.Called(ctx, userID, receiverID)
	return args.Error(0)
}

func (m *TypingSignalsMock) IsTyping(ctx context.Context, userID, receiverID int) (bool, error) {
	args := m.Called(ctx, userID, receiverID)
	return args.Bool(0), args.Error(1)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ presence.Tracker = (*TrackerMock)(nil)
var _ presence.TypingSignals = (*TypingSignalsMock)(nil)
