package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/middleware"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "controllers-secret")
	os.Setenv("ADMIN_EMAILS", "admin@book.club")
	os.Setenv("ADMIN_USERNAMES", "Elder")
	config.Load()
	gin.SetMode(gin.TestMode)
	utils.SetRedis(nil)
	os.Exit(m.Run())
}

func TestBuildPlan(t *testing.T) {
	cfg := config.AppConfig{PlanTargetDays: 30, DefaultCoverImage: "https://picsum.photos/id/10/400/600"}

	cases := []struct {
		name     string
		req      createPlanRequest
		goal     int
		chapters int
		msg      string
	}{
		{"exact month", createPlanRequest{Title: "A", Category: "Gospel", TotalPages: 300}, 10, 0, ""},
		{"rounds up", createPlanRequest{Title: "A", Category: "Gospel", TotalPages: 301}, 11, 0, ""},
		{"tiny book", createPlanRequest{Title: "A", Category: "Gospel", TotalPages: 5}, 1, 0, ""},
		{"pages win over chapters", createPlanRequest{Title: "A", Category: "Theology", TotalPages: 60, TotalChapters: 12}, 2, 0, ""},
		{"chapter plan", createPlanRequest{Title: "A", Category: "Bible", TotalChapters: 21}, 0, 21, ""},
		{"no totals", createPlanRequest{Title: "A", Category: "Bible"}, 0, 0, "total_pages or total_chapters is required"},
		{"negative", createPlanRequest{Title: "A", Category: "Bible", TotalPages: -1}, 0, 0, "totals must not be negative"},
		{"bad category", createPlanRequest{Title: "A", Category: "Poetry", TotalPages: 1}, 0, 0, "invalid category"},
		{"blank title", createPlanRequest{Title: "<b></b>", Category: "Gospel", TotalPages: 1}, 0, 0, "title cannot be empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, msg := buildPlan(tc.req, cfg)
			assert.Equal(t, tc.msg, msg)
			if tc.msg != "" {
				return
			}
			assert.Equal(t, tc.goal, p.DailyPageGoal)
			assert.Equal(t, tc.chapters, p.TotalChapters)
			assert.Equal(t, cfg.DefaultCoverImage, p.CoverImage)
		})
	}
}

func TestBuildPlanBibleBookOnlyForBible(t *testing.T) {
	cfg := config.AppConfig{PlanTargetDays: 30}
	p, msg := buildPlan(createPlanRequest{Title: "John", Category: models.CategoryBible, TotalChapters: 21, BibleBook: "John", CoverImage: "https://c/x.png"}, cfg)
	require.Empty(t, msg)
	assert.Equal(t, "John", p.BibleBook)
	assert.Equal(t, "https://c/x.png", p.CoverImage)

	p, msg = buildPlan(createPlanRequest{Title: "Orthodoxy", Category: models.CategoryTheology, TotalPages: 200, BibleBook: "John"}, cfg)
	require.Empty(t, msg)
	assert.Empty(t, p.BibleBook)
}

func TestValidBirthday(t *testing.T) {
	assert.True(t, validBirthday(0, 0))
	assert.True(t, validBirthday(2, 29))
	assert.True(t, validBirthday(12, 31))
	assert.False(t, validBirthday(4, 31))
	assert.False(t, validBirthday(13, 1))
	assert.False(t, validBirthday(0, 5))
	assert.False(t, validBirthday(5, 0))
}

func TestJournalNormalize(t *testing.T) {
	_, _, ok := journalRequest{Title: "  ", Content: ""}.normalize()
	assert.False(t, ok)

	title, content, ok := journalRequest{Content: "grace"}.normalize()
	assert.True(t, ok)
	assert.Equal(t, untitledReflection, title)
	assert.Equal(t, "grace", content)

	title, _, ok = journalRequest{Title: "<i>Psalm 23</i>"}.normalize()
	assert.True(t, ok)
	assert.Equal(t, "Psalm 23", title)
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "Mary_Magdalene", sanitizeUsername(" Mary Magdalene "))
	assert.Equal(t, "a_b_c", sanitizeUsername("a.b-c"))
	assert.Equal(t, "", sanitizeUsername("!!!"))
}

func TestIsAdminIdentity(t *testing.T) {
	assert.True(t, isAdminIdentity("anyone", "ADMIN@book.club"))
	assert.True(t, isAdminIdentity("elder", ""))
	assert.False(t, isAdminIdentity("member", "member@book.club"))
	assert.False(t, isAdminIdentity("", ""))
}

func TestAdminRequired(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set(middleware.ContextEmailKey, c.Query("email"))
		c.Next()
	}, AdminRequired(), func(c *gin.Context) {
		utils.Success(c, nil)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?email=admin@book.club", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?email=someone@book.club", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40301`)
}

func TestRespondServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{services.ErrUnauthenticated, http.StatusUnauthorized, 40110},
		{services.ErrPlanNotFound, http.StatusNotFound, 40420},
		{fmt.Errorf("wrapped: %w", services.ErrNotFound), http.StatusNotFound, 40400},
		{services.ErrInvalidPosition, http.StatusBadRequest, 40020},
		{services.ErrForbidden, http.StatusForbidden, 40300},
		{&services.PersistenceError{Op: "load plan", Err: errors.New("disk full")}, http.StatusInternalServerError, 50020},
		{errors.New("boom"), http.StatusInternalServerError, 50000},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondServiceError(ctx, tc.err)

		var body utils.JSONResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Equal(t, tc.code, body.Code, tc.err.Error())
	}
}

func TestGetUserID(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := getUserID(ctx)
	assert.False(t, ok)

	ctx.Set(middleware.ContextUserIDKey, uint(9))
	id, ok := getUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, uint(9), id)

	ctx.Set(middleware.ContextUserIDKey, "9")
	_, ok = getUserID(ctx)
	assert.False(t, ok)
}

func TestAllowedContentType(t *testing.T) {
	assert.True(t, allowedContentType(models.UploadKindPDF, "application/pdf"))
	assert.False(t, allowedContentType(models.UploadKindPDF, "image/png"))
	assert.True(t, allowedContentType(models.UploadKindAvatar, "image/webp"))
	assert.False(t, allowedContentType("video", "video/mp4"))
}

func TestValidUsername(t *testing.T) {
	assert.True(t, validUsername("Mary Magdalene"))
	assert.True(t, validUsername("st.john_the-3rd"))
	assert.False(t, validUsername("a"))
	assert.False(t, validUsername("semi;colon"))
	assert.False(t, validUsername(string(make([]byte, 65))))
}

func TestPageOf(t *testing.T) {
	h := pageOf([]int{1, 2}, 2, 10, 21)
	assert.Equal(t, []int{1, 2}, h["items"])
	assert.Equal(t, gin.H{"page": 2, "page_size": 10, "total": int64(21), "total_pages": 3}, h["pagination"])
}

func TestOAuthSetup(t *testing.T) {
	_, _, err := oauthSetup("myspace")
	assert.EqualError(t, err, "unsupported provider: myspace")

	_, _, err = oauthSetup("GitHub")
	assert.EqualError(t, err, "github oauth not configured")
}

func TestPrimaryEmail(t *testing.T) {
	assert.Equal(t, "", primaryEmail(nil))
	assert.Equal(t, "a@x.io", primaryEmail([]githubEmail{{Email: "a@x.io"}, {Email: "b@x.io", Primary: true}}))
	assert.Equal(t, "b@x.io", primaryEmail([]githubEmail{{Email: "a@x.io"}, {Email: "b@x.io", Primary: true, Verified: true}}))
}

// providerStub serves canned provider responses; every request is redirected to it.
func providerStub(t *testing.T, routes map[string]string) *http.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: rewriteHost{target: target}}
}

type rewriteHost struct{ target *url.URL }

func (rh rewriteHost) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme, r.URL.Host = rh.target.Scheme, rh.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func TestGithubIdentity(t *testing.T) {
	client := providerStub(t, map[string]string{
		"/user":        `{"id": 42, "login": "lydia", "name": "", "avatar_url": "https://a/l.png"}`,
		"/user/emails": `[{"email": "old@x.io"}, {"email": "lydia@x.io", "primary": true, "verified": true}]`,
	})
	ident, err := githubIdentity(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, &oauthIdentity{ID: "42", Username: "lydia", DisplayName: "lydia", Email: "lydia@x.io", AvatarURL: "https://a/l.png"}, ident)

	// the emails endpoint is optional
	client = providerStub(t, map[string]string{"/user": `{"id": 7, "login": "tabitha"}`})
	ident, err = githubIdentity(context.Background(), client)
	require.NoError(t, err)
	assert.Empty(t, ident.Email)
}

func TestGoogleIdentity(t *testing.T) {
	client := providerStub(t, map[string]string{
		"/oauth2/v2/userinfo": `{"id": "g-1", "email": "Phoebe@x.io", "name": "Phoebe", "picture": "https://p/1"}`,
	})
	ident, err := googleIdentity(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, "Phoebe", ident.Username)
	assert.Equal(t, "g-1", ident.ID)

	_, err = googleIdentity(context.Background(), providerStub(t, nil))
	assert.Error(t, err)
}
