package app

import (
	"context"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/adapters/gateway"
	"github.com/stretchr/testify/mock"
)

// --- Mocks shared by the app package tests ---

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, entry *core_domain.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]core_domain.OutboxEntry, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core_domain.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) MarkSent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) ScheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	args := m.Called(ctx, id, attemptCount, nextAttemptAt, lastError)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id string, attemptCount int, lastError string) error {
	args := m.Called(ctx, id, attemptCount, lastError)
	return args.Error(0)
}

func (m *MockOutboxRepository) PauseChannel(ctx context.Context, channelID string, lastError string) (int, error) {
	args := m.Called(ctx, channelID, lastError)
	return args.Int(0), args.Error(1)
}

func (m *MockOutboxRepository) ResumeChannel(ctx context.Context, channelID string, nextAttemptAt time.Time) (int, error) {
	args := m.Called(ctx, channelID, nextAttemptAt)
	return args.Int(0), args.Error(1)
}

func (m *MockOutboxRepository) RequeueStaleSending(ctx context.Context, staleBefore time.Time) (int, error) {
	args := m.Called(ctx, staleBefore)
	return args.Int(0), args.Error(1)
}

func (m *MockOutboxRepository) CountPausedChannels(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

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

type MockChatReader struct {
	mock.Mock
}

func (m *MockChatReader) GetByID(ctx context.Context, id string) (*core_domain.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Chat), args.Error(1)
}

type MockMessageWriter struct {
	mock.Mock
}

func (m *MockMessageWriter) CreatePending(ctx context.Context, msg *core_domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageWriter) ConfirmSent(ctx context.Context, messageID, providerMessageID string) error {
	args := m.Called(ctx, messageID, providerMessageID)
	return args.Error(0)
}

func (m *MockMessageWriter) MarkFailed(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) SendText(ctx context.Context, credential, remoteJID, text string) (*gateway.SendResult, error) {
	args := m.Called(ctx, credential, remoteJID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendResult), args.Error(1)
}

func (m *MockGatewayClient) SendMedia(ctx context.Context, credential, remoteJID, mediaURL, mimeType, caption string) (*gateway.SendResult, error) {
	args := m.Called(ctx, credential, remoteJID, mediaURL, mimeType, caption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendResult), args.Error(1)
}

func (m *MockGatewayClient) DeleteMessage(ctx context.Context, credential, remoteJID, providerMessageID string) error {
	args := m.Called(ctx, credential, remoteJID, providerMessageID)
	return args.Error(0)
}

func (m *MockGatewayClient) EditMessage(ctx context.Context, credential, remoteJID, providerMessageID, newText string) error {
	args := m.Called(ctx, credential, remoteJID, providerMessageID, newText)
	return args.Error(0)
}

type MockCredentialDecryptor struct {
	mock.Mock
}

func (m *MockCredentialDecryptor) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	args := m.Called(ctx, ciphertext)
	return args.String(0), args.Error(1)
}
