package courseaccess

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/notification"
	"github.com/tendant/simple-academy/pkg/tokencodec"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	clock    *fakeClock
	codec    *tokencodec.Codec
	repo     *identity.InMemoryRepository
	notifier *notification.MockNotifier
	service  *Service
	user     *identity.Identity
}

var meta = Metadata{ClientIP: "203.0.113.7", UserAgent: "test-agent"}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:    &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		repo:     identity.NewInMemoryRepository(),
		notifier: &notification.MockNotifier{},
	}
	var err error
	f.codec, err = tokencodec.NewCodec("test-secret", tokencodec.WithNow(f.clock.Now))
	require.NoError(t, err)

	nm, err := notification.NewNotificationManager(
		notification.WithNotifier(notification.EmailSystem, f.notifier),
		notification.WithCourseAccessLinkTemplate(),
	)
	require.NoError(t, err)

	opts = append([]Option{WithNotificationManager(nm)}, opts...)
	f.service = NewService(f.repo, f.codec, "https://front.test/", opts...)

	f.user = identity.New("Ana", "ana@example.com", "hash", f.clock.t)
	f.user.AddPurchase("7")
	require.NoError(t, f.repo.Create(context.Background(), f.user))
	return f
}

func (f *fixture) reload(t *testing.T) *identity.Identity {
	t.Helper()
	ident, err := f.repo.GetByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	return ident
}

func TestIssue(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.Issue(context.Background(), f.user, "7", meta)
	require.NoError(t, err)
	assert.Equal(t, f.clock.t.Add(DefaultTokenExpiry), res.ExpiresAt)
	assert.Equal(t, DefaultMaxUses, res.MaxUses)

	link, err := url.Parse(res.URL)
	require.NoError(t, err)
	assert.Equal(t, "/curso.html", link.Path)
	assert.Equal(t, "7", link.Query().Get("curso"))
	assert.Equal(t, res.Token, link.Query().Get("token"))
	assert.Equal(t, f.user.ID.String(), link.Query().Get("usuario"))

	stored := f.reload(t)
	require.Len(t, stored.AccessTokens, 1)
	tok := stored.AccessTokens[0]
	assert.Equal(t, "7", tok.CourseRef)
	assert.False(t, tok.Used)
	assert.Zero(t, tok.AccessCount)
	assert.Equal(t, "203.0.113.7", tok.ClientIP)

	claims, err := f.codec.Verify(res.Token, tokencodec.PurposeCourseAccess)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.String(), claims.Subject)
	assert.Equal(t, "7", claims.CourseRef)
}

func TestIssueSweepsExpiredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	_, err = f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)
	assert.Len(t, f.reload(t).AccessTokens, 2, "several live tokens per course are allowed")

	f.clock.Advance(31 * time.Minute)
	fresh, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)

	stored := f.reload(t)
	assert.Len(t, stored.AccessTokens, 2)
	assert.Nil(t, stored.FindAccessToken(old.Token))
	assert.NotNil(t, stored.FindAccessToken(fresh.Token))
}

func TestVerify_CapScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)

	for _, want := range []int{2, 1, 0} {
		ident := f.reload(t)
		out, err := f.service.Verify(ctx, ident, res.Token, "7", meta)
		require.NoError(t, err)
		assert.Equal(t, want, out.Remaining)
	}

	stored := f.reload(t)
	tok := stored.FindAccessToken(res.Token)
	require.NotNil(t, tok)
	assert.Equal(t, 3, tok.AccessCount)
	assert.True(t, tok.Used)
	assert.Equal(t, identity.TokenStatusCapExhausted, tok.Status(f.clock.t))
	assert.Len(t, stored.AccessLogs.ForCourse("7"), 3)

	_, err = f.service.Verify(ctx, stored, res.Token, "7", meta)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
	assert.Equal(t, 3, f.reload(t).FindAccessToken(res.Token).AccessCount)
}

func TestVerify_CourseMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)

	_, err = f.service.Verify(ctx, f.reload(t), res.Token, "9", meta)
	assert.ErrorIs(t, err, ErrTokenMismatch)
	assert.Zero(t, f.reload(t).FindAccessToken(res.Token).AccessCount)
}

func TestVerify_SubjectMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := identity.New("Bo", "bo@example.com", "hash", f.clock.t)
	other.AddPurchase("7")
	require.NoError(t, f.repo.Create(ctx, other))
	res, err := f.service.Issue(ctx, other, "7", meta)
	require.NoError(t, err)

	// a record copied onto the wrong identity still fails the subject check
	victim := f.reload(t)
	victim.AddAccessToken(identity.CourseAccessToken{CourseRef: "7", Token: res.Token, CreatedAt: f.clock.t, ExpiresAt: res.ExpiresAt})
	_, err = f.service.Verify(ctx, victim, res.Token, "7", meta)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	// presenting another user's token against your own record finds nothing
	_, err = f.service.Verify(ctx, f.reload(t), res.Token, "7", meta)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerify_ExpiredRegardlessOfCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.service.Verify(ctx, f.reload(t), res.Token, "7", meta)
		require.NoError(t, err)
	}

	f.clock.Advance(DefaultTokenExpiry)
	// loaded without saving so the expired record is still present
	_, err = f.service.Verify(ctx, f.reload(t), res.Token, "7", meta)
	assert.ErrorIs(t, err, ErrTokenExpired)

	fresh, err := f.service.Issue(ctx, f.reload(t), "7", meta)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.service.Verify(ctx, f.reload(t), fresh.Token, "7", meta)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_ForgedRecord(t *testing.T) {
	f := newFixture(t)
	ident := f.reload(t)
	ident.AddAccessToken(identity.CourseAccessToken{
		CourseRef: "7",
		Token:     "forged.token.value",
		CreatedAt: f.clock.t,
		ExpiresAt: f.clock.t.Add(time.Hour),
	})

	_, err := f.service.Verify(context.Background(), ident, "forged.token.value", "7", meta)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Verify(context.Background(), f.user, "nope", "7", meta)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestWithMaxUses(t *testing.T) {
	f := newFixture(t, WithMaxUses(1), WithTokenExpiry(10*time.Minute))
	ctx := context.Background()

	res, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MaxUses)
	assert.Equal(t, f.clock.t.Add(10*time.Minute), res.ExpiresAt)

	out, err := f.service.Verify(ctx, f.reload(t), res.Token, "7", meta)
	require.NoError(t, err)
	assert.Zero(t, out.Remaining)
	assert.True(t, out.Exhausted)

	_, err = f.service.Verify(ctx, f.reload(t), res.Token, "7", meta)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user.AddPurchase("8")

	a, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)
	b, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)
	c, err := f.service.Issue(ctx, f.user, "8", meta)
	require.NoError(t, err)

	ident := f.reload(t)
	require.NoError(t, f.service.Invalidate(ctx, ident, a.Token))
	assert.ErrorIs(t, f.service.Invalidate(ctx, ident, a.Token), ErrTokenNotFound)

	_, err = f.service.Verify(ctx, f.reload(t), a.Token, "7", meta)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	n, err := f.service.InvalidateAllForCourse(ctx, f.reload(t), "7")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored := f.reload(t)
	assert.Nil(t, stored.FindAccessToken(b.Token))
	assert.NotNil(t, stored.FindAccessToken(c.Token))

	n, err = f.service.InvalidateAllForCourse(ctx, stored, "7")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestActive(t *testing.T) {
	f := newFixture(t, WithMaxUses(1))
	ctx := context.Background()

	used, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)
	_, err = f.service.Verify(ctx, f.user, used.Token, "7", meta)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	live, err := f.service.Issue(ctx, f.user, "7", meta)
	require.NoError(t, err)

	infos := f.service.Active(f.reload(t), "7")
	require.Len(t, infos, 2)
	status := map[string]identity.TokenStatus{}
	for _, info := range infos {
		status[info.Token] = info.Status
	}
	assert.Equal(t, identity.TokenStatusCapExhausted, status[used.Token])
	assert.Equal(t, identity.TokenStatusActive, status[live.Token])

	f.clock.Advance(time.Hour)
	for _, info := range f.service.Active(f.reload(t), "7") {
		assert.Equal(t, identity.TokenStatusExpired, info.Status)
	}
}

func TestRecordAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := 120

	require.NoError(t, f.service.RecordAccess(ctx, f.user, "7", &d, meta))
	history := f.service.History(f.reload(t), "7")
	require.Len(t, history, 1)
	require.NotNil(t, history[0].DurationSeconds)
	assert.Equal(t, 120, *history[0].DurationSeconds)
	assert.Empty(t, history[0].TokenUsed)

	neg := -1
	assert.Error(t, f.service.RecordAccess(ctx, f.user, "7", &neg, meta))
	assert.Error(t, f.service.RecordAccess(ctx, f.user, "", nil, meta))
}

func TestAccessLogIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < identity.MaxAccessLogEntries+5; i++ {
		require.NoError(t, f.service.RecordAccess(ctx, f.user, "7", nil, meta))
		f.clock.Advance(time.Second)
	}
	stored := f.reload(t)
	require.Len(t, stored.AccessLogs, identity.MaxAccessLogEntries)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC), stored.AccessLogs[0].AccessDate)
}

func TestSendLink(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.Issue(context.Background(), f.user, "7", meta)
	require.NoError(t, err)
	require.NoError(t, f.service.SendLink(f.user, res))

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Equal(t, res.URL, sent[0].Data["AccessLink"])
	assert.Equal(t, "3", sent[0].Data["MaxUses"])
}
