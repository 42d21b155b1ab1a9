package messages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *Engine
	store  *memory.Store
	clock  *clock
	alice  int64
	bob    int64
	carol  int64
	chat   *model.Chat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()
	clk := &clock{now: t0}
	store := memory.New()
	store.Now = clk.Now

	alice, err := store.CreateUser(ctx, "alice", "x")
	req.NoError(err)
	bob, err := store.CreateUser(ctx, "bob", "x")
	req.NoError(err)
	carol, err := store.CreateUser(ctx, "carol", "x")
	req.NoError(err)
	chat, err := store.CreateChat(ctx, storage.NewChat{ParticipantIDs: []int64{alice.ID, bob.ID}})
	req.NoError(err)

	engine := NewEngine(store)
	engine.Now = clk.Now
	return &fixture{engine: engine, store: store, clock: clk, alice: alice.ID, bob: bob.ID, carol: carol.ID, chat: chat}
}

func (f *fixture) send(t *testing.T, from int64, body string) *model.Message {
	t.Helper()
	m, _, err := f.engine.Create(context.Background(), from, f.chat.ID, model.Text{Body: body})
	require.NoError(t, err)
	return m
}

func TestEngine_Create(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	m, chat, err := f.engine.Create(ctx, f.alice, f.chat.ID, model.Text{Body: "  hi  "})
	req.NoError(err)
	req.Equal("hi", model.Body(m.Content))
	req.Equal(f.alice, m.Sender.ID)
	req.Equal(t0, m.CreatedAt)
	req.Nil(m.EditedAt)
	req.False(m.IsDeleted)

	// And the chat points at it as latest message
	req.Equal(m.ID, chat.LatestMessage.ID)
	stored, err := f.store.GetChat(ctx, f.chat.ID)
	req.NoError(err)
	req.Equal(m.ID, stored.LatestMessage.ID)
}

func TestEngine_Create_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		from    int64
		chatID  int64
		content model.Content
		want    error
	}{
		{"empty content", f.alice, f.chat.ID, model.Text{Body: "   "}, model.ErrValidation},
		{"nil content", f.alice, f.chat.ID, nil, model.ErrValidation},
		{"missing chat id", f.alice, 0, model.Text{Body: "hi"}, model.ErrValidation},
		{"unknown chat", f.alice, 999, model.Text{Body: "hi"}, model.ErrNotFound},
		{"not a participant", f.carol, f.chat.ID, model.Text{Body: "hi"}, model.ErrUnauthorized},
		{"file without url", f.alice, f.chat.ID, model.Image{File: model.File{Name: "a.png"}}, model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.engine.Create(ctx, tt.from, tt.chatID, tt.content)
			require.ErrorIs(t, err, tt.want)
		})
	}

	list, err := f.store.ListMessages(ctx, f.chat.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestEngine_Edit_Twice_Within_Window(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "helo")

	f.clock.Advance(2 * time.Minute)
	first, err := f.engine.Edit(ctx, f.alice, m.ID, "hello")
	req.NoError(err)
	req.Equal(t0.Add(2*time.Minute), *first.EditedAt)

	f.clock.Advance(5 * time.Minute)
	second, err := f.engine.Edit(ctx, f.alice, m.ID, "hello!")
	req.NoError(err)

	// editedAt follows the latest edit, createdAt never moves
	req.Equal("hello!", model.Body(second.Content))
	req.Equal(t0.Add(7*time.Minute), *second.EditedAt)
	req.Equal(t0, second.CreatedAt)
}

func TestEngine_Window_Measured_From_Creation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "one")

	// Editing at minute 9 does not extend the window
	f.clock.Advance(9 * time.Minute)
	_, err := f.engine.Edit(ctx, f.alice, m.ID, "two")
	req.NoError(err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.engine.Edit(ctx, f.alice, m.ID, "three")
	req.ErrorIs(err, model.ErrWindowExpired)
}

func TestEngine_Window_Is_Inclusive(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	m := f.send(t, f.alice, "edge")

	f.clock.Advance(DefaultEditWindow)
	_, err := f.engine.Edit(context.Background(), f.alice, m.ID, "still ok")
	req.NoError(err)
}

func TestEngine_Expired_Edit_And_Delete_Leave_Message_Unchanged(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "M5")

	// Given A's message is 11 minutes old
	f.clock.Advance(11 * time.Minute)

	// When A tries to edit or delete it
	_, err := f.engine.Edit(ctx, f.alice, m.ID, "changed")
	req.ErrorIs(err, model.ErrWindowExpired)
	_, err = f.engine.Delete(ctx, f.alice, m.ID)

	// Then the window error is raised, not an authorization error
	req.ErrorIs(err, model.ErrWindowExpired)
	req.NotErrorIs(err, model.ErrUnauthorized)

	stored, err := f.store.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.False(stored.IsDeleted)
	req.Equal("M5", model.Body(stored.Content))
	req.Nil(stored.EditedAt)
}

func TestEngine_Only_Sender_Mutates(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "mine")

	_, err := f.engine.Edit(ctx, f.bob, m.ID, "yours")
	req.ErrorIs(err, model.ErrUnauthorized)
	_, err = f.engine.Delete(ctx, f.bob, m.ID)
	req.ErrorIs(err, model.ErrUnauthorized)

	stored, err := f.store.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.Equal("mine", model.Body(stored.Content))
}

func TestEngine_Delete_Is_Terminal_Tombstone(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "oops")

	deleted, err := f.engine.Delete(ctx, f.alice, m.ID)
	req.NoError(err)
	req.True(deleted.IsDeleted)
	req.Equal(Tombstone, model.Body(deleted.Content))
	req.Equal(m.ID, deleted.ID)
	req.Equal(m.CreatedAt, deleted.CreatedAt)
	req.Equal(m.Sender, deleted.Sender)

	// Nothing moves a tombstone
	_, err = f.engine.Edit(ctx, f.alice, m.ID, "back")
	req.ErrorIs(err, model.ErrValidation)
	_, err = f.engine.Delete(ctx, f.alice, m.ID)
	req.ErrorIs(err, model.ErrValidation)
	_, err = f.engine.React(ctx, f.bob, m.ID, "👍")
	req.ErrorIs(err, model.ErrValidation)

	// And it is still listed
	list, err := f.engine.List(ctx, f.bob, f.chat.ID)
	req.NoError(err)
	req.Len(list, 1)
	req.True(list[0].IsDeleted)
}

func TestEngine_Delete_File_Message_Scrubs_File(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m, _, err := f.engine.Create(ctx, f.alice, f.chat.ID, model.Image{File: model.File{URL: "/uploads/a.png", Name: "a.png", Size: 3}})
	req.NoError(err)

	_, err = f.engine.Edit(ctx, f.alice, m.ID, "caption")
	req.ErrorIs(err, model.ErrValidation)

	deleted, err := f.engine.Delete(ctx, f.alice, m.ID)
	req.NoError(err)
	req.Nil(model.FileOf(deleted.Content))
}

func TestEngine_Unknown_Message(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Edit(ctx, f.alice, 404, "x")
	req.ErrorIs(err, model.ErrNotFound)
	_, err = f.engine.Delete(ctx, f.alice, 404)
	req.ErrorIs(err, model.ErrNotFound)
	_, err = f.engine.React(ctx, f.alice, 404, "👍")
	req.ErrorIs(err, model.ErrNotFound)
}

func TestEngine_React_Is_Involution(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "react to me")

	once, err := f.engine.React(ctx, f.bob, m.ID, "🎉")
	req.NoError(err)
	req.True(once.HasReaction(f.bob, "🎉"))

	twice, err := f.engine.React(ctx, f.bob, m.ID, "🎉")
	req.NoError(err)
	req.Empty(twice.Reactions)
	req.Equal(model.Body(m.Content), model.Body(twice.Content))
}

func TestEngine_React_Scenario(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "M7")

	// A reacts 👍, then B reacts 👍
	_, err := f.engine.React(ctx, f.alice, m.ID, "👍")
	req.NoError(err)
	both, err := f.engine.React(ctx, f.bob, m.ID, "👍")
	req.NoError(err)
	req.Len(both.Reactions, 2)
	req.True(both.HasReaction(f.alice, "👍"))
	req.True(both.HasReaction(f.bob, "👍"))

	// A reacts 👍 again
	after, err := f.engine.React(ctx, f.alice, m.ID, "👍")
	req.NoError(err)
	req.Len(after.Reactions, 1)
	req.True(after.HasReaction(f.bob, "👍"))
}

func TestEngine_React_No_Window_But_Participants_Only(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "old")
	f.clock.Advance(24 * time.Hour)

	_, err := f.engine.React(ctx, f.alice, m.ID, "❤️")
	req.NoError(err)

	_, err = f.engine.React(ctx, f.carol, m.ID, "❤️")
	req.ErrorIs(err, model.ErrUnauthorized)

	_, err = f.engine.React(ctx, f.bob, m.ID, " ")
	req.ErrorIs(err, model.ErrValidation)
}

func TestEngine_Concurrent_Toggles_Do_Not_Lose_Updates(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	m := f.send(t, f.alice, "busy")

	// An even number of identical toggles from racing goroutines ends where it
	// started; a lost update would leave a dangling or duplicated reaction.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.engine.React(ctx, f.bob, m.ID, "👍")
		}()
		go func() {
			defer wg.Done()
			_, _ = f.engine.React(ctx, f.alice, m.ID, "🔥")
		}()
	}
	wg.Wait()

	stored, err := f.store.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.Empty(stored.Reactions)
}

func TestEngine_List_Requires_Participant(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.send(t, f.alice, "a")
	f.send(t, f.bob, "b")

	list, err := f.engine.List(ctx, f.bob, f.chat.ID)
	req.NoError(err)
	req.Len(list, 2)
	req.Equal("a", model.Body(list[0].Content))

	_, err = f.engine.List(ctx, f.carol, f.chat.ID)
	req.ErrorIs(err, model.ErrUnauthorized)

	_, err = f.engine.List(ctx, f.alice, 999)
	req.ErrorIs(err, model.ErrNotFound)
}
