package screens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/session"
)

func TestProfile_Load(t *testing.T) {
	store, feed := setupStore(t)
	seed(t, store, 5, func(i int, b *entities.Book) {
		if i <= 2 {
			b.Status = entities.StatusRead
		}
		b.Favorite = i == 5
	})

	p := NewProfile(testDeps(store, feed), signedIn)
	require.NoError(t, p.Load(context.Background()))

	st := p.State()
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, ana, st.Data.User)
	assert.Equal(t, int64(5), st.Data.Stats.Total)
	assert.Equal(t, int64(2), st.Data.Stats.Read)
	assert.Equal(t, int64(3), st.Data.ToRead)
	assert.Equal(t, int64(1), st.Data.Stats.Favorites)
}

func TestProfile_NoUser(t *testing.T) {
	store, feed := setupStore(t)
	p := NewProfile(testDeps(store, feed), session.Session{})

	require.NoError(t, p.Load(context.Background()))
	assert.Equal(t, PhaseEmpty, p.State().Phase)
	assert.Zero(t, store.Total())
}

func TestProfile_UpdateDisplayName(t *testing.T) {
	store, feed := setupStore(t)
	deps := testDeps(store, feed)
	accounts := deps.Accounts.(*fakeAccounts)

	p := NewProfile(deps, signedIn)

	_, err := p.UpdateDisplayName(context.Background(), "   ")
	require.Error(t, err)
	assert.Zero(t, accounts.Total())
	assert.Equal(t, "Missing information", p.State().Alert.Title)

	profile, err := p.UpdateDisplayName(context.Background(), " Ana Maria ")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", profile.DisplayName)
	assert.Equal(t, "Ana Maria", p.State().Data.User.DisplayName)
	assert.Nil(t, p.State().Alert)
}

func TestProfile_SignOut(t *testing.T) {
	store, feed := setupStore(t)
	deps := testDeps(store, feed)
	accounts := deps.Accounts.(*fakeAccounts)

	p := NewProfile(deps, signedIn)
	require.NoError(t, p.SignOut(context.Background()))

	assert.Equal(t, 1, accounts.Count("SignOut"))
	st := p.State()
	assert.Equal(t, PhaseEmpty, st.Phase)
	assert.True(t, st.Data.SignedOut)
}

func TestStats_Live(t *testing.T) {
	store, feed := setupStore(t)

	s := NewStats(testDeps(store, feed), signedIn)
	defer s.Unmount()
	updates, stop := s.Observe()
	defer stop()

	s.Mount(context.Background())
	waitFor(t, updates, func(st State[StatsData]) bool { return st.Phase == PhaseEmpty })

	seed(t, store, 2, func(i int, b *entities.Book) {
		if i == 1 {
			b.Status = entities.StatusRead
		}
	})

	st := waitFor(t, updates, func(st State[StatsData]) bool { return st.Data.Total == 2 })
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, int64(1), st.Data.Read)
	assert.Equal(t, int64(1), st.Data.ToRead)
}

func TestStats_UnmountUnsubscribes(t *testing.T) {
	store, feed := setupStore(t)

	s := NewStats(testDeps(store, feed), signedIn)
	s.Mount(context.Background())
	assert.Equal(t, 1, feed.Subscribers(ana.ID))

	s.Unmount()
	assert.Zero(t, feed.Subscribers(ana.ID))
	assert.Equal(t, PhaseClosed, s.State().Phase)

	s.Mount(context.Background())
	assert.Zero(t, feed.Subscribers(ana.ID), "closed screens do not resubscribe")
}
