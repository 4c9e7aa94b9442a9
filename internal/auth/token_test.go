package auth

import (
	"context"
	"testing"
	"time"

	"blogapi/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newTestManager(store RevocationStore) *Manager {
	return NewManager(Options{
		Secret:     testSecret,
		Issuer:     "blogapi",
		Audience:   "blogapi-client",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, store)
}

var alice = &models.User{ID: 42, Username: "alice", Email: "alice@x.com", IsStaff: true}

func TestIssuePair_ClaimsRoundTrip(t *testing.T) {
	m := newTestManager(nil)
	pair, err := m.IssuePair(alice)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	access, err := m.Parse(context.Background(), pair.Access, TokenTypeAccess)
	require.NoError(t, err)
	uid, err := access.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), uid)
	assert.Equal(t, "alice", access.Username)
	assert.Equal(t, "alice@x.com", access.Email)
	assert.True(t, access.IsStaff)
	assert.False(t, access.IsSuperuser)
	assert.NotEmpty(t, access.ID)

	refresh, err := m.Parse(context.Background(), pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestParse_Rejections(t *testing.T) {
	m := newTestManager(nil)
	pair, err := m.IssuePair(alice)
	require.NoError(t, err)

	other := NewManager(Options{Secret: testSecret, Issuer: "someone-else", Audience: "blogapi-client"}, nil)
	foreign, err := other.IssuePair(alice)
	require.NoError(t, err)

	expired := newTestManager(nil)
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	stale, err := expired.IssuePair(alice)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42", "token_type": "access"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		typ  string
		want error
	}{
		{"refresh used as access", pair.Refresh, TokenTypeAccess, ErrWrongType},
		{"access used as refresh", pair.Access, TokenTypeRefresh, ErrWrongType},
		{"wrong issuer", foreign.Access, TokenTypeAccess, ErrInvalidToken},
		{"expired", stale.Access, TokenTypeAccess, ErrInvalidToken},
		{"alg none", unsigned, TokenTypeAccess, ErrInvalidToken},
		{"garbage", "not.a.token", TokenTypeAccess, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Parse(context.Background(), tt.raw, tt.typ)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRevoke_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisRevocations(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	m := newTestManager(store)
	ctx := context.Background()

	pair, err := m.IssuePair(alice)
	require.NoError(t, err)
	claims, err := m.Parse(ctx, pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, claims))
	assert.True(t, mr.Exists("blacklist:"+claims.ID))
	ttl := mr.TTL("blacklist:" + claims.ID)
	assert.Greater(t, ttl, 23*time.Hour)

	_, err = m.Parse(ctx, pair.Refresh, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrRevokedToken)

	// The access token has its own jti and stays valid.
	_, err = m.Parse(ctx, pair.Access, TokenTypeAccess)
	assert.NoError(t, err)
}

func TestMemoryRevocations_Expire(t *testing.T) {
	store := NewMemoryRevocations()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "abc", time.Minute))
	revoked, _ := store.IsRevoked(ctx, "abc")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = store.IsRevoked(ctx, "abc")
	assert.False(t, revoked)
}

func TestIssueAccess_FromRefresh(t *testing.T) {
	m := newTestManager(nil)
	pair, err := m.IssuePair(alice)
	require.NoError(t, err)
	refresh, err := m.Parse(context.Background(), pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)

	access, err := m.IssueAccess(refresh)
	require.NoError(t, err)
	claims, err := m.Parse(context.Background(), access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.IsStaff)
}
