package identity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNew(t *testing.T) {
	ident := New(" Ana ", " ANA@example.com", "hash", baseTime)

	assert.Equal(t, "ana@example.com", ident.Email)
	assert.Equal(t, "Ana", ident.Name)
	assert.False(t, ident.IsVerified)
	assert.Empty(t, ident.PurchasedCourses)
	assert.Empty(t, ident.AccessTokens)
	assert.Equal(t, baseTime, ident.CreatedAt)
}

func TestPurchases(t *testing.T) {
	ident := New("Ana", "ana@example.com", "hash", baseTime)

	assert.True(t, ident.AddPurchase("7"))
	assert.False(t, ident.AddPurchase("7"))
	assert.True(t, ident.HasPurchased("7"))
	assert.False(t, ident.HasPurchased("9"))

	assert.True(t, ident.RemovePurchase("7"))
	assert.False(t, ident.RemovePurchase("7"))
	assert.False(t, ident.HasPurchased("7"))

	assert.True(t, ident.MarkCompleted("7"))
	assert.False(t, ident.MarkCompleted("7"))
	assert.True(t, ident.HasCompleted("7"))
}

func TestPendingVerification(t *testing.T) {
	ident := New("Ana", "ana@example.com", "hash", baseTime)
	assert.True(t, ident.PendingVerificationExpired(baseTime))

	ident.SetPendingVerification("tok", baseTime.Add(time.Hour), baseTime)
	assert.Equal(t, "tok", ident.VerificationToken)
	require.NotNil(t, ident.VerificationTokenExpires)
	assert.False(t, ident.PendingVerificationExpired(baseTime.Add(59*time.Minute)))
	assert.True(t, ident.PendingVerificationExpired(baseTime.Add(time.Hour)))

	ident.MarkVerified(baseTime.Add(time.Minute))
	assert.True(t, ident.IsVerified)
	assert.Empty(t, ident.VerificationToken)
	assert.Nil(t, ident.VerificationTokenExpires)
	require.NotNil(t, ident.VerifiedAt)
	assert.NotNil(t, ident.VerificationSentAt)
}

func TestCourseAccessTokenStatus(t *testing.T) {
	tok := CourseAccessToken{ExpiresAt: baseTime.Add(time.Hour)}

	assert.Equal(t, TokenStatusActive, tok.Status(baseTime))
	assert.True(t, tok.Usable(baseTime))

	tok.Used = true
	assert.Equal(t, TokenStatusCapExhausted, tok.Status(baseTime))
	assert.False(t, tok.Usable(baseTime))

	assert.Equal(t, TokenStatusExpired, tok.Status(baseTime.Add(time.Hour)))
	assert.True(t, tok.Expired(baseTime.Add(time.Hour)))
}

func TestAccessTokenCollection(t *testing.T) {
	ident := New("Ana", "ana@example.com", "hash", baseTime)
	ident.AddAccessToken(CourseAccessToken{CourseRef: "7", Token: "a", ExpiresAt: baseTime.Add(time.Hour)})
	ident.AddAccessToken(CourseAccessToken{CourseRef: "7", Token: "b", ExpiresAt: baseTime.Add(-time.Minute)})
	ident.AddAccessToken(CourseAccessToken{CourseRef: "9", Token: "c", ExpiresAt: baseTime})
	ident.AddAccessToken(CourseAccessToken{CourseRef: "9", Token: "d", ExpiresAt: baseTime.Add(time.Hour)})

	t.Run("find returns a mutable record", func(t *testing.T) {
		tok := ident.FindAccessToken("a")
		require.NotNil(t, tok)
		tok.AccessCount = 2
		assert.Equal(t, 2, ident.FindAccessToken("a").AccessCount)
		assert.Nil(t, ident.FindAccessToken("zzz"))
	})

	t.Run("tokens for course", func(t *testing.T) {
		assert.Len(t, ident.AccessTokensForCourse("7"), 2)
		assert.Empty(t, ident.AccessTokensForCourse("1"))
	})

	t.Run("sweep removes expiresAt <= now", func(t *testing.T) {
		c := ident.Clone()
		assert.Equal(t, 2, c.SweepExpiredAccessTokens(baseTime))
		assert.NotNil(t, c.FindAccessToken("a"))
		assert.NotNil(t, c.FindAccessToken("d"))
	})

	t.Run("remove single", func(t *testing.T) {
		c := ident.Clone()
		assert.True(t, c.RemoveAccessToken("a"))
		assert.False(t, c.RemoveAccessToken("a"))
		assert.Len(t, c.AccessTokens, 3)
	})

	t.Run("remove all for course", func(t *testing.T) {
		c := ident.Clone()
		assert.Equal(t, 2, c.RemoveAccessTokensForCourse("9"))
		assert.Empty(t, c.AccessTokensForCourse("9"))
		assert.Len(t, c.AccessTokens, 2)
	})

	t.Run("prepare save sweeps and stamps", func(t *testing.T) {
		c := ident.Clone()
		c.PrepareSave(baseTime.Add(time.Minute))
		assert.Len(t, c.AccessTokens, 2)
		assert.Equal(t, baseTime.Add(time.Minute), c.UpdatedAt)
	})
}

func TestClone(t *testing.T) {
	ident := New("Ana", "ana@example.com", "hash", baseTime)
	ident.AddPurchase("7")
	accessed := baseTime
	ident.AddAccessToken(CourseAccessToken{CourseRef: "7", Token: "a", LastAccessed: &accessed})
	ident.AccessLogs.Append(AccessLogEntry{CourseRef: "7"})

	c := ident.Clone()
	c.PurchasedCourses[0] = "changed"
	c.AccessTokens[0].AccessCount = 3
	*c.AccessTokens[0].LastAccessed = baseTime.Add(time.Hour)
	c.AccessLogs[0].CourseRef = "changed"

	assert.Equal(t, "7", ident.PurchasedCourses[0])
	assert.Equal(t, 0, ident.AccessTokens[0].AccessCount)
	assert.Equal(t, baseTime, *ident.AccessTokens[0].LastAccessed)
	assert.Equal(t, "7", ident.AccessLogs[0].CourseRef)
}

func TestAccessLogIsBounded(t *testing.T) {
	var log AccessLog
	for i := 0; i < MaxAccessLogEntries+25; i++ {
		log.Append(AccessLogEntry{CourseRef: "7", TokenUsed: fmt.Sprintf("t%d", i)})
	}

	require.Len(t, log, MaxAccessLogEntries)
	assert.Equal(t, "t25", log[0].TokenUsed)
	assert.Equal(t, fmt.Sprintf("t%d", MaxAccessLogEntries+24), log[len(log)-1].TokenUsed)
}

func TestAccessLogForCourse(t *testing.T) {
	var log AccessLog
	log.Append(AccessLogEntry{CourseRef: "7", TokenUsed: "a"})
	log.Append(AccessLogEntry{CourseRef: "9", TokenUsed: "b"})
	log.Append(AccessLogEntry{CourseRef: "7", TokenUsed: "c"})

	entries := log.ForCourse("7")
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].TokenUsed)
	assert.Equal(t, "c", entries[1].TokenUsed)
}
