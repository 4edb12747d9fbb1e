package app

import (
	"context"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/stretchr/testify/mock"
)

// --- Mocks shared by the app package tests ---

type MockChannelRepository struct {
	mock.Mock
}

func (m *MockChannelRepository) GetByID(ctx context.Context, id string) (*core_domain.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Channel), args.Error(1)
}

func (m *MockChannelRepository) UpdateStatus(ctx context.Context, id string, status core_domain.ChannelStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockChannelRepository) SetPhoneNumberIfEmpty(ctx context.Context, id string, phoneNumber string) (bool, error) {
	args := m.Called(ctx, id, phoneNumber)
	return args.Bool(0), args.Error(1)
}

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) GetByRemoteJID(ctx context.Context, channelID, remoteJID string) (*core_domain.Chat, error) {
	args := m.Called(ctx, channelID, remoteJID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Chat), args.Error(1)
}

func (m *MockChatRepository) Upsert(ctx context.Context, chat *core_domain.Chat) (*core_domain.Chat, error) {
	args := m.Called(ctx, chat)
	if rf, ok := args.Get(0).(func(context.Context, *core_domain.Chat) *core_domain.Chat); ok {
		return rf(ctx, chat), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Chat), args.Error(1)
}

func (m *MockChatRepository) UpdateProfile(ctx context.Context, chat *core_domain.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *MockChatRepository) SetArchived(ctx context.Context, channelID, remoteJID string, archived bool) (bool, error) {
	args := m.Called(ctx, channelID, remoteJID, archived)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) RecordMessageActivity(ctx context.Context, chatID string, preview string, at time.Time, incrementUnread bool) error {
	args := m.Called(ctx, chatID, preview, at, incrementUnread)
	return args.Error(0)
}

func (m *MockChatRepository) SetContactIDIfNull(ctx context.Context, chatID, contactID string) (bool, error) {
	args := m.Called(ctx, chatID, contactID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) ListWithoutPhoneHash(ctx context.Context, limit int) ([]core_domain.Chat, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core_domain.Chat), args.Error(1)
}

func (m *MockChatRepository) ListUnlinkedWithPhoneHash(ctx context.Context, limit int) ([]core_domain.Chat, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core_domain.Chat), args.Error(1)
}

func (m *MockChatRepository) SetPhoneHash(ctx context.Context, chatID, phoneNumber, phoneHash string) error {
	args := m.Called(ctx, chatID, phoneNumber, phoneHash)
	return args.Error(0)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Upsert(ctx context.Context, msg *core_domain.Message) (*core_domain.Message, bool, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*core_domain.Message), args.Bool(1), args.Error(2)
}

func (m *MockMessageRepository) ApplyStatus(ctx context.Context, channelID, providerMessageID string, status core_domain.MessageStatus) (bool, error) {
	args := m.Called(ctx, channelID, providerMessageID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) ApplyEdit(ctx context.Context, channelID, providerMessageID, newText string, editedAt time.Time) (bool, error) {
	args := m.Called(ctx, channelID, providerMessageID, newText, editedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) SoftDelete(ctx context.Context, channelID, providerMessageID string, deletedAt time.Time) (bool, error) {
	args := m.Called(ctx, channelID, providerMessageID, deletedAt)
	return args.Bool(0), args.Error(1)
}

type MockContactIndexRepository struct {
	mock.Mock
}

func (m *MockContactIndexRepository) FindContactIDsByPhoneHash(ctx context.Context, workspaceID, phoneHash string) ([]string, error) {
	args := m.Called(ctx, workspaceID, phoneHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}
