package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendMessage_MirroredRoundTrip(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// When A sends "hi" to B
	msg, err := chats.AppendMessage(ctx, "alice", "bob", "hi")
	req.NoError(err)
	req.NotEmpty(msg.MessageID)
	req.False(msg.Read)

	// Then B's side of the thread holds the same message
	thread, err := chats.LoadThread(ctx, "bob", "alice")
	req.NoError(err)
	req.Len(thread.Messages, 1)
	req.Equal("hi", thread.Messages[0].Body)
	req.Equal("alice", thread.Messages[0].Sender)
	req.False(thread.Messages[0].Read)

	// And A's side mirrors it
	thread, err = chats.LoadThread(ctx, "alice", "bob")
	req.NoError(err)
	req.Len(thread.Messages, 1)
	req.Equal(msg.MessageID, thread.Messages[0].MessageID)
}

func TestAppendMessage_OrderIsCreatedAtAscending(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// When a conversation goes back and forth
	_, err := chats.AppendMessage(ctx, "alice", "bob", "first")
	req.NoError(err)
	_, err = chats.AppendMessage(ctx, "bob", "alice", "second")
	req.NoError(err)
	_, err = chats.AppendMessage(ctx, "alice", "bob", "third")
	req.NoError(err)

	// Then both views list messages oldest first
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		thread, err := chats.LoadThread(ctx, pair[0], pair[1])
		req.NoError(err)
		req.Len(thread.Messages, 3)
		req.Equal("first", thread.Messages[0].Body)
		req.Equal("second", thread.Messages[1].Body)
		req.Equal("third", thread.Messages[2].Body)
	}
}

func TestAppendMessage_EmptyBodyRejectedBeforeAnyMutation(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// When A sends whitespace
	_, err := chats.AppendMessage(ctx, "alice", "bob", "   \t\n")
	req.ErrorIs(err, ErrEmptyBody)

	// Then neither side grew a thread
	_, err = chats.LoadThread(ctx, "alice", "bob")
	req.ErrorIs(err, ErrThreadNotFound)
	_, err = chats.LoadThread(ctx, "bob", "alice")
	req.ErrorIs(err, ErrThreadNotFound)
}

func TestLoadThread_NotFoundDistinctFromEmpty(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// Given an inbox with no threads
	req.NoError(chats.EnsureInbox(ctx, "alice"))

	// Then loading a never-messaged pair is a typed not-found
	_, err := chats.LoadThread(ctx, "alice", "bob")
	req.ErrorIs(err, ErrThreadNotFound)

	// But a thread whose only message was deleted still loads, empty
	msg, err := chats.AppendMessage(ctx, "alice", "bob", "hi")
	req.NoError(err)
	req.NoError(chats.DeleteMessage(ctx, "alice", "bob", msg.MessageID))

	thread, err := chats.LoadThread(ctx, "alice", "bob")
	req.NoError(err)
	req.Empty(thread.Messages)
}

func TestDeleteMessage_PerViewerIsolation(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// Given a message mirrored on both sides
	msg, err := chats.AppendMessage(ctx, "alice", "bob", "hello")
	req.NoError(err)

	// When A deletes it from her view
	req.NoError(chats.DeleteMessage(ctx, "alice", "bob", msg.MessageID))

	// Then A no longer sees it
	thread, err := chats.LoadThread(ctx, "alice", "bob")
	req.NoError(err)
	req.Empty(thread.Messages)

	// And B's copy is untouched
	thread, err = chats.LoadThread(ctx, "bob", "alice")
	req.NoError(err)
	req.Len(thread.Messages, 1)
	req.Equal("hello", thread.Messages[0].Body)
}

func TestDeleteMessage_NotFound(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// Deleting from a user with no inbox
	err := chats.DeleteMessage(ctx, "alice", "bob", "nope")
	req.ErrorIs(err, ErrMessageNotFound)

	// Deleting an unknown id from a real thread
	_, err = chats.AppendMessage(ctx, "alice", "bob", "hello")
	req.NoError(err)
	err = chats.DeleteMessage(ctx, "alice", "bob", "nope")
	req.ErrorIs(err, ErrMessageNotFound)
}

func TestMarkThreadUnread_AccumulatesAndClearsOnRead(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// Given two offline sends to B
	_, err := chats.AppendMessage(ctx, "alice", "bob", "one")
	req.NoError(err)
	req.NoError(chats.MarkThreadUnread(ctx, "bob", "alice"))
	_, err = chats.AppendMessage(ctx, "alice", "bob", "two")
	req.NoError(err)
	req.NoError(chats.MarkThreadUnread(ctx, "bob", "alice"))

	// When B loads the thread
	thread, err := chats.LoadThread(ctx, "bob", "alice")
	req.NoError(err)

	// Then the unread signal reflects both sends
	req.Equal(2, thread.Unread)

	// And marking read clears it and flags the messages
	req.NoError(chats.MarkThreadRead(ctx, "bob", "alice"))
	thread, err = chats.LoadThread(ctx, "bob", "alice")
	req.NoError(err)
	req.Zero(thread.Unread)
	for _, m := range thread.Messages {
		req.True(m.Read)
	}
}

func TestThreads_MostRecentFirst(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()
	ctx := context.Background()

	// Given alice talked to bob, then to carol
	_, err := chats.AppendMessage(ctx, "alice", "bob", "hey bob")
	req.NoError(err)
	_, err = chats.AppendMessage(ctx, "alice", "carol", "hey carol")
	req.NoError(err)

	// When the chat list is built
	chatsList, err := chats.Threads(ctx, "alice")
	req.NoError(err)

	// Then the most recently active thread comes first with its preview
	req.Len(chatsList, 2)
	req.Equal("carol", chatsList[0].MessagesWith)
	req.Equal("hey carol", chatsList[0].LastMessage)
	req.Equal("bob", chatsList[1].MessagesWith)

	// And a reply from bob moves his thread back to the front
	_, err = chats.AppendMessage(ctx, "bob", "alice", "hey yourself")
	req.NoError(err)
	chatsList, err = chats.Threads(ctx, "alice")
	req.NoError(err)
	req.Equal("bob", chatsList[0].MessagesWith)
	req.Equal("hey yourself", chatsList[0].LastMessage)
}

func TestThreads_NoInboxYieldsEmptyList(t *testing.T) {
	req := require.New(t)
	chats := NewMemoryChatRepository()

	chatsList, err := chats.Threads(context.Background(), "nobody")
	req.NoError(err)
	req.Empty(chatsList)
}
