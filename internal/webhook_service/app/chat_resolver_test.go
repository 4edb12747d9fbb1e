package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type resolverTestComponents struct {
	resolver     *ChatResolver
	mockChats    *MockChatRepository
	mockChannels *MockChannelRepository
	mockContacts *MockContactIndexRepository
}

func setupResolverTest(t *testing.T) resolverTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockChats := new(MockChatRepository)
	mockChannels := new(MockChannelRepository)
	mockContacts := new(MockContactIndexRepository)
	linker := NewContactLinker(mockChats, mockChannels, mockContacts, DigitsNormalizer{}, logger)
	resolver := NewChatResolver(mockChats, linker, DigitsNormalizer{}, logger)
	return resolverTestComponents{resolver: resolver, mockChats: mockChats, mockChannels: mockChannels, mockContacts: mockContacts}
}

func TestResolve_CreatesChatWithPhoneHashOnFirstContact(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "15551234567@s.whatsapp.net").
		Return(nil, domain.ErrChatNotFound)
	c.mockChats.On("Upsert", mock.Anything, mock.MatchedBy(func(chat *core_domain.Chat) bool {
		return chat.RemoteJID == "15551234567@s.whatsapp.net" &&
			!chat.IsGroup &&
			chat.PhoneNumber != nil && *chat.PhoneNumber == "15551234567" &&
			chat.PhoneHash != nil && *chat.PhoneHash == PhoneHash("15551234567") &&
			chat.DisplayName == "Ada"
	})).Return(func(_ context.Context, chat *core_domain.Chat) *core_domain.Chat { return chat }, nil)
	c.mockContacts.On("FindContactIDsByPhoneHash", mock.Anything, channel.WorkspaceID, PhoneHash("15551234567")).
		Return([]string{}, nil)

	name := "Ada"
	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "15551234567@s.whatsapp.net",
		SenderName:        &name,
	})

	require.NoError(t, err)
	assert.Equal(t, "Ada", chat.DisplayName)
	c.mockChats.AssertExpectations(t)
}

func TestResolve_CreatedChatLinksToSingleContactMatch(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()
	hash := PhoneHash("15551234567")

	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "15551234567@c.us").
		Return(nil, domain.ErrChatNotFound)
	c.mockChats.On("Upsert", mock.Anything, mock.Anything).
		Return(func(_ context.Context, chat *core_domain.Chat) *core_domain.Chat { return chat }, nil)
	c.mockContacts.On("FindContactIDsByPhoneHash", mock.Anything, channel.WorkspaceID, hash).
		Return([]string{"contact-9"}, nil)
	c.mockChats.On("SetContactIDIfNull", mock.Anything, mock.Anything, "contact-9").Return(true, nil)

	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "15551234567@c.us",
	})

	require.NoError(t, err)
	require.NotNil(t, chat.ContactID)
	assert.Equal(t, "contact-9", *chat.ContactID)
}

func TestResolve_GroupChatGetsNoPhone(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "grp-1@g.us").
		Return(nil, domain.ErrChatNotFound)
	c.mockChats.On("Upsert", mock.Anything, mock.MatchedBy(func(chat *core_domain.Chat) bool {
		return chat.IsGroup && chat.PhoneNumber == nil && chat.PhoneHash == nil && chat.DisplayName == "Team"
	})).Return(func(_ context.Context, chat *core_domain.Chat) *core_domain.Chat { return chat }, nil)

	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "grp-1@g.us",
		IsGroup:           true,
		GroupSubject:      "Team",
		GroupParticipants: []string{"1@c.us"},
	})

	require.NoError(t, err)
	assert.True(t, chat.IsGroup)
	assert.Equal(t, []string{"1@c.us"}, chat.Participants)
}

func TestResolve_FallsBackToPhoneDisplayName(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "15551234567@c.us").
		Return(nil, domain.ErrChatNotFound)
	c.mockChats.On("Upsert", mock.Anything, mock.MatchedBy(func(chat *core_domain.Chat) bool {
		return chat.DisplayName == "+15551234567"
	})).Return(func(_ context.Context, chat *core_domain.Chat) *core_domain.Chat { return chat }, nil)
	c.mockContacts.On("FindContactIDsByPhoneHash", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{}, nil)

	_, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "15551234567@c.us",
	})
	require.NoError(t, err)
	c.mockChats.AssertExpectations(t)
}

func TestResolve_RefreshUpgradesFormattedPhoneName(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	existing := &core_domain.Chat{
		ID:          "chat-1",
		ChannelID:   channel.ID,
		RemoteJID:   "111@c.us",
		DisplayName: "+1 555 123-4567",
	}
	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "111@c.us").Return(existing, nil)
	c.mockChats.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(chat *core_domain.Chat) bool {
		return chat.DisplayName == "Ada"
	})).Return(nil)

	name := "Ada"
	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "111@c.us",
		SenderName:        &name,
	})

	require.NoError(t, err)
	assert.Equal(t, "Ada", chat.DisplayName)
}

func TestResolve_RefreshUpgradesRawJIDGroupName(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	// Group created before its subject was known fell back to the raw jid.
	existing := &core_domain.Chat{
		ID:          "chat-1",
		ChannelID:   channel.ID,
		RemoteJID:   "grp-1@g.us",
		IsGroup:     true,
		DisplayName: "grp-1@g.us",
	}
	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "grp-1@g.us").Return(existing, nil)
	c.mockChats.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(chat *core_domain.Chat) bool {
		return chat.DisplayName == "Team"
	})).Return(nil)

	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m2",
		RemoteJID:         "grp-1@g.us",
		IsGroup:           true,
		GroupSubject:      "Team",
	})

	require.NoError(t, err)
	assert.Equal(t, "Team", chat.DisplayName)
	c.mockChats.AssertExpectations(t)
}

func TestResolve_RefreshKeepsNameWhenContactLinked(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	contactID := "contact-1"
	existing := &core_domain.Chat{
		ID:          "chat-1",
		ChannelID:   channel.ID,
		RemoteJID:   "111@c.us",
		DisplayName: "+1 555 123-4567",
		ContactID:   &contactID,
	}
	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "111@c.us").Return(existing, nil)

	name := "Ada"
	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "111@c.us",
		SenderName:        &name,
	})

	require.NoError(t, err)
	assert.Equal(t, "+1 555 123-4567", chat.DisplayName, "contact-linked chats keep their name")
	c.mockChats.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestResolve_RefreshNeverDowngradesToFormattedPhone(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	existing := &core_domain.Chat{
		ID:          "chat-1",
		ChannelID:   channel.ID,
		RemoteJID:   "111@c.us",
		DisplayName: "Ada",
	}
	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "111@c.us").Return(existing, nil)

	name := "+1 (555) 123.4567"
	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "111@c.us",
		SenderName:        &name,
	})

	require.NoError(t, err)
	assert.Equal(t, "Ada", chat.DisplayName)
	c.mockChats.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestResolve_RefreshSetsPhotoOnlyWhenMissing(t *testing.T) {
	c := setupResolverTest(t)
	channel := testChannel()

	oldPhoto := "https://cdn.example.com/old.jpg"
	existing := &core_domain.Chat{
		ID:              "chat-1",
		ChannelID:       channel.ID,
		RemoteJID:       "111@c.us",
		DisplayName:     "Ada",
		ProfilePhotoURL: &oldPhoto,
	}
	c.mockChats.On("GetByRemoteJID", mock.Anything, channel.ID, "111@c.us").Return(existing, nil)

	newPhoto := "https://cdn.example.com/new.jpg"
	chat, err := c.resolver.Resolve(context.Background(), channel, &domain.NormalizedMessage{
		ProviderMessageID: "m1",
		RemoteJID:         "111@c.us",
		ProfilePhotoURL:   &newPhoto,
	})

	require.NoError(t, err)
	assert.Equal(t, oldPhoto, *chat.ProfilePhotoURL)
	c.mockChats.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}
