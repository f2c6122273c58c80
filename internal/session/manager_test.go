package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubUsers map[string]models.User

func (s stubUsers) GetByID(_ context.Context, id string) (models.User, error) {
	u, ok := s[id]
	if !ok {
		return models.User{}, errors.New("user not found")
	}
	return u, nil
}

func newTestManager(t *testing.T, users stubUsers, maxSessions int) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := NewManager(NewRedisStore(client), users, Options{
		Secret:      testSecret,
		CookieName:  "expense.sid",
		TTL:         24 * time.Hour,
		MaxSessions: maxSessions,
	}, zerolog.Nop())
	return m, mr
}

func requestWithSession(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/users/auth/user", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: "expense.sid", Value: security.SignSessionID(testSecret, id)})
	}
	return req
}

var alice = models.User{ID: "u-alice", Email: "alice@x.com", DisplayName: "Alice", Role: models.UserRoleUser}

func TestCreateResolveRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	rec, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.CreatedAt.Add(24*time.Hour), rec.ExpiresAt)

	id := m.Resolve(ctx, requestWithSession(rec.ID))
	assert.Equal(t, models.LocalSession, id.Kind)
	assert.Equal(t, alice.ID, id.UserID)
	assert.Equal(t, alice.Email, id.Email)
	assert.Equal(t, alice.DisplayName, id.Name)
	assert.Equal(t, models.UserRoleUser, id.Role)
	assert.Equal(t, rec.ID, id.SessionID)
}

func TestCreateRegeneratesID(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	prior, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	next, err := m.Create(ctx, alice, models.LocalSession, prior.ID)
	require.NoError(t, err)
	assert.NotEqual(t, prior.ID, next.ID)

	assert.False(t, m.Resolve(ctx, requestWithSession(prior.ID)).Authenticated())
	assert.True(t, m.Resolve(ctx, requestWithSession(next.ID)).Authenticated())
}

func TestCreateWithUnknownPriorID(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)

	rec, err := m.Create(context.Background(), alice, models.LocalSession, "never-existed")
	require.NoError(t, err)
	assert.True(t, m.Resolve(context.Background(), requestWithSession(rec.ID)).Authenticated())
}

func TestCreateFailsWhenStoreDown(t *testing.T) {
	m, mr := newTestManager(t, stubUsers{}, 10)
	mr.SetError("LOADING redis is loading")

	_, err := m.Create(context.Background(), alice, models.LocalSession, "")
	assert.ErrorIs(t, err, ErrSessionStore)
}

func TestConcurrentLoginsFromSamePriorID(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	prior, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := m.Create(ctx, alice, models.LocalSession, prior.ID)
			ids[i], errs[i] = rec.ID, err
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, ids[0], ids[1])
	assert.False(t, m.Resolve(ctx, requestWithSession(prior.ID)).Authenticated())
	assert.True(t, m.Resolve(ctx, requestWithSession(ids[0])).Authenticated())
	assert.True(t, m.Resolve(ctx, requestWithSession(ids[1])).Authenticated())
}

func TestConcurrentLoginsWithSingleSessionCap(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 1)
	ctx := context.Background()

	prior, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := m.Create(ctx, alice, models.LocalSession, prior.ID)
			assert.NoError(t, err)
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	assert.False(t, m.Resolve(ctx, requestWithSession(prior.ID)).Authenticated())
	live := 0
	for _, id := range ids {
		if m.Resolve(ctx, requestWithSession(id)).Authenticated() {
			live++
		}
	}
	assert.Equal(t, 1, live)
}

func TestMaxSessionsEvictsOldest(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 1)
	ctx := context.Background()

	first, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	assert.False(t, m.Resolve(ctx, requestWithSession(first.ID)).Authenticated())
	assert.True(t, m.Resolve(ctx, requestWithSession(second.ID)).Authenticated())
}

func TestDestroyIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	rec, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	require.NoError(t, m.Destroy(ctx, rec.ID))
	require.NoError(t, m.Destroy(ctx, rec.ID))
	assert.False(t, m.Resolve(ctx, requestWithSession(rec.ID)).Authenticated())
}

func TestFixedExpiryWithoutRenewal(t *testing.T) {
	m, mr := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	rec, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	mr.FastForward(23 * time.Hour)
	require.True(t, m.Resolve(ctx, requestWithSession(rec.ID)).Authenticated())

	mr.FastForward(90 * time.Minute)
	assert.False(t, m.Resolve(ctx, requestWithSession(rec.ID)).Authenticated())
}

func TestResolveFederatedLoadsCurrentUser(t *testing.T) {
	bob := models.User{ID: "u-bob", Email: "bob@x.com", DisplayName: "Bob", Role: models.UserRoleUser}
	users := stubUsers{bob.ID: bob}
	m, _ := newTestManager(t, users, 10)
	ctx := context.Background()

	rec, err := m.Create(ctx, bob, models.FederatedSession, "")
	require.NoError(t, err)

	promoted := bob
	promoted.Role = models.UserRoleAdmin
	users[bob.ID] = promoted

	id := m.Resolve(ctx, requestWithSession(rec.ID))
	assert.Equal(t, models.FederatedSession, id.Kind)
	assert.Equal(t, models.UserRoleAdmin, id.Role)

	delete(users, bob.ID)
	assert.False(t, m.Resolve(ctx, requestWithSession(rec.ID)).Authenticated())
}

func TestResolveContextPrincipalWins(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	rec, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	carol := models.User{ID: "u-carol", Email: "carol@x.com", Role: models.UserRoleAdmin}
	id := m.Resolve(WithFederatedPrincipal(ctx, carol), requestWithSession(rec.ID))
	assert.Equal(t, models.FederatedSession, id.Kind)
	assert.Equal(t, carol.ID, id.UserID)
}

func TestResolveAnonymous(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	rec, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	tests := map[string]*http.Request{
		"no cookie":      requestWithSession(""),
		"unknown id":     requestWithSession("does-not-exist"),
		"tampered value": httptest.NewRequest(http.MethodGet, "/", nil),
	}
	tests["tampered value"].AddCookie(&http.Cookie{Name: "expense.sid", Value: rec.ID + ".forged"})

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			id := m.Resolve(ctx, req)
			assert.Equal(t, models.Anonymous, id.Kind)
			assert.False(t, id.Authenticated())
		})
	}
}

func TestRevokeUser(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	a, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)
	b, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)
	other, err := m.Create(ctx, models.User{ID: "u-dave", Email: "dave@x.com", Role: models.UserRoleUser}, models.LocalSession, "")
	require.NoError(t, err)

	require.NoError(t, m.RevokeUser(ctx, alice.ID))
	assert.False(t, m.Resolve(ctx, requestWithSession(a.ID)).Authenticated())
	assert.False(t, m.Resolve(ctx, requestWithSession(b.ID)).Authenticated())
	assert.True(t, m.Resolve(ctx, requestWithSession(other.ID)).Authenticated())
}

func TestPruneIndexes(t *testing.T) {
	m, mr := newTestManager(t, stubUsers{}, 10)
	ctx := context.Background()

	_, err := m.Create(ctx, alice, models.LocalSession, "")
	require.NoError(t, err)

	removed, err := m.PruneIndexes(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	removed, err = m.PruneIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	members, err := mr.ZMembers(userIndexKey(alice.ID))
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestCookies(t *testing.T) {
	m, _ := newTestManager(t, stubUsers{}, 10)
	rec, err := m.Create(context.Background(), alice, models.LocalSession, "")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.SetCookie(w, rec)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, security.SignSessionID(testSecret, rec.ID), cookies[0].Value)

	w = httptest.NewRecorder()
	m.ClearCookie(w)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
