package chat

import (
	"context"
	"fmt"

	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/remote"
)

// ConversationOptions tunes conversation creation.
type ConversationOptions struct {
	AdminIDs               []string
	Metadata               map[string]any
	DistinctByParticipants bool
}

// CreateConversation creates a conversation with the given participants.
// The current user is always included. With DistinctByParticipants set,
// an existing conversation with the same participant set is reused
// instead of creating a duplicate.
func (e *Extension) CreateConversation(ctx context.Context, participantIDs []string, title string, opts *ConversationOptions) (*record.Conversation, error) {
	if opts == nil {
		opts = &ConversationOptions{}
	}

	conv := record.NewConversation(title, append([]string{e.userID}, participantIDs...))
	conv.Metadata = opts.Metadata
	conv.DistinctByParticipants = opts.DistinctByParticipants
	if len(opts.AdminIDs) > 0 {
		conv.AddAdmins(opts.AdminIDs...)
	} else {
		conv.AddAdmins(e.userID)
	}

	if opts.DistinctByParticipants {
		existing, err := e.findDistinctConversation(ctx, conv.ParticipantIDs)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return e.SaveConversation(ctx, conv)
}

// CreateDirectConversation creates (or reuses) a one-to-one conversation
// with the given user.
func (e *Extension) CreateDirectConversation(ctx context.Context, userID, title string, metadata map[string]any) (*record.Conversation, error) {
	return e.CreateConversation(ctx, []string{userID}, title, &ConversationOptions{
		Metadata:               metadata,
		DistinctByParticipants: true,
	})
}

func (e *Extension) findDistinctConversation(ctx context.Context, participantIDs []string) (*record.Conversation, error) {
	res, err := e.remote.Fetch(ctx, remote.Query{
		RecordType:           record.TypeConversation,
		DistinctParticipants: participantIDs,
		Limit:                1,
	})
	if err != nil {
		return nil, fmt.Errorf("query distinct conversation: %w", err)
	}
	for _, rec := range res.Records {
		conv, err := record.ConversationFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if conv.DistinctByParticipants && conv.HasSameParticipants(participantIDs) {
			return conv, nil
		}
	}
	return nil, nil
}

// SaveConversation saves the conversation to the remote backend.
// Conversations are not cached locally.
func (e *Extension) SaveConversation(ctx context.Context, conv *record.Conversation) (*record.Conversation, error) {
	saved, err := e.remote.Save(ctx, conv.ToRecord())
	if err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return record.ConversationFromRecord(saved)
}

// FetchConversations lists the current user's conversations.
func (e *Extension) FetchConversations(ctx context.Context) ([]record.Conversation, error) {
	res, err := e.remote.Fetch(ctx, remote.Query{RecordType: record.TypeConversation})
	if err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	convs := make([]record.Conversation, 0, len(res.Records))
	for _, rec := range res.Records {
		conv, err := record.ConversationFromRecord(rec)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, nil
}

// FetchConversation loads one conversation by identifier.
func (e *Extension) FetchConversation(ctx context.Context, conversationID string) (*record.Conversation, error) {
	res, err := e.remote.Fetch(ctx, remote.Query{
		RecordType: record.TypeConversation,
		IDs:        []string{conversationID},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, remote.ErrNotFound
	}
	return record.ConversationFromRecord(res.Records[0])
}

// AddParticipants adds users to a conversation and saves it.
func (e *Extension) AddParticipants(ctx context.Context, conv *record.Conversation, userIDs ...string) (*record.Conversation, error) {
	conv.AddParticipants(userIDs...)
	return e.SaveConversation(ctx, conv)
}

// RemoveParticipants removes users from a conversation and saves it.
func (e *Extension) RemoveParticipants(ctx context.Context, conv *record.Conversation, userIDs ...string) (*record.Conversation, error) {
	conv.RemoveParticipants(userIDs...)
	return e.SaveConversation(ctx, conv)
}

// AddAdmins grants admin to users in a conversation and saves it.
func (e *Extension) AddAdmins(ctx context.Context, conv *record.Conversation, userIDs ...string) (*record.Conversation, error) {
	conv.AddAdmins(userIDs...)
	return e.SaveConversation(ctx, conv)
}

// RemoveAdmins revokes admin from users in a conversation and saves it.
func (e *Extension) RemoveAdmins(ctx context.Context, conv *record.Conversation, userIDs ...string) (*record.Conversation, error) {
	conv.RemoveAdmins(userIDs...)
	return e.SaveConversation(ctx, conv)
}

// LeaveConversation removes the current user from a conversation.
func (e *Extension) LeaveConversation(ctx context.Context, conversationID string) error {
	_, err := e.remote.Call(ctx, "chat:leave_conversation", map[string]any{
		"conversation_id": conversationID,
	})
	if err != nil {
		return fmt.Errorf("leave conversation: %w", err)
	}
	return nil
}
