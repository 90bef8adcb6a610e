package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/utils"
)

// oauthIdentity is what a provider tells us about the signed-in person.
type oauthIdentity struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	AvatarURL   string
}

type oauthProvider struct {
	endpoint oauth2.Endpoint
	scopes   []string
	creds    func(config.AppConfig) (id, secret string)
	// identify is called with a client that already carries the access token
	identify func(ctx context.Context, client *http.Client) (*oauthIdentity, error)
}

var oauthProviders = map[string]oauthProvider{
	"github": {
		endpoint: github.Endpoint,
		scopes:   []string{"read:user", "user:email"},
		creds: func(c config.AppConfig) (string, string) {
			return c.GitHubClientID, c.GitHubClientSecret
		},
		identify: githubIdentity,
	},
	"google": {
		endpoint: google.Endpoint,
		scopes:   []string{"openid", "profile", "email"},
		creds: func(c config.AppConfig) (string, string) {
			return c.GoogleClientID, c.GoogleClientSecret
		},
		identify: googleIdentity,
	},
}

// oauthSetup resolves a provider name to its client configuration.
func oauthSetup(name string) (*oauth2.Config, oauthProvider, error) {
	name = strings.ToLower(name)
	p, ok := oauthProviders[name]
	if !ok {
		return nil, p, fmt.Errorf("unsupported provider: %s", name)
	}
	cfg := config.Get()
	id, secret := p.creds(cfg)
	if id == "" || secret == "" {
		return nil, p, fmt.Errorf("%s oauth not configured", name)
	}
	return &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/%s/callback", strings.TrimRight(cfg.OAuthRedirectBase, "/"), name),
		Scopes:       p.scopes,
		Endpoint:     p.endpoint,
	}, p, nil
}

// OAuthRedirect returns the provider's authorization URL with a single-use state.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	cfg, _, err := oauthSetup(ctx.Param("provider"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}
	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)
	utils.Success(ctx, gin.H{
		"authorization_url": cfg.AuthCodeURL(state, oauth2.AccessTypeOffline),
		"state":             state,
	})
}

// OAuthCallback trades the code for an identity, links or creates the member and signs them in.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	code, state := ctx.Query("code"), ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}
	name := strings.ToLower(ctx.Param("provider"))
	cfg, provider, err := oauthSetup(name)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	token, err := cfg.Exchange(reqCtx, code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}
	ident, err := provider.identify(reqCtx, cfg.Client(reqCtx, token))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, err.Error())
		return
	}
	member, err := a.linkOAuthMember(name, ident)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}
	a.signIn(ctx, *member)
}

// linkOAuthMember finds the member bound to (provider, id) or creates one.
// Existing members get their email refreshed; an avatar they uploaded is kept.
func (a *AuthController) linkOAuthMember(provider string, ident *oauthIdentity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(ident.Email))

	var member models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, ident.ID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		member = models.User{
			Username:   a.freeUsername(fallback(ident.DisplayName, ident.Username), provider, ident.ID),
			Email:      email,
			Provider:   provider,
			ProviderID: ident.ID,
			AvatarURL:  ident.AvatarURL,
			RegisterIP: "oauth",
		}
		return &member, a.db.Create(&member).Error
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if email != "" {
		updates["email"] = email
	}
	if member.AvatarURL == "" && ident.AvatarURL != "" {
		updates["avatar_url"] = ident.AvatarURL
	}
	if len(updates) > 0 {
		_ = a.db.Model(&member).Updates(updates)
	}
	return &member, nil
}

// freeUsername derives a username from base and appends _1, _2, ... until it is unused.
func (a *AuthController) freeUsername(base, provider, id string) string {
	base = sanitizeUsername(base)
	if len(base) < 2 {
		base = sanitizeUsername(provider + "_" + id)
	}
	candidate := base
	for n := 1; ; n++ {
		var count int64
		err := a.db.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error
		if err != nil || count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}

// sanitizeUsername keeps letters and digits, maps separators to '_' and caps the length at 48.
func sanitizeUsername(input string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r == '-' || r == '.' || r == ' ':
			return '_'
		}
		return -1
	}, strings.TrimSpace(input))
	out = strings.Trim(out, "_")
	if len(out) > 48 {
		out = out[:48]
	}
	return out
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// primaryEmail prefers the verified primary address, then any address.
func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}

func githubIdentity(ctx context.Context, client *http.Client) (*oauthIdentity, error) {
	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &profile); err != nil {
		return nil, err
	}
	ident := &oauthIdentity{
		ID:          strconv.FormatInt(profile.ID, 10),
		Username:    profile.Login,
		DisplayName: fallback(profile.Name, profile.Login),
		AvatarURL:   profile.AvatarURL,
	}
	// private addresses only show up here; a failure just leaves the email empty
	var emails []githubEmail
	if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err == nil {
		ident.Email = primaryEmail(emails)
	}
	return ident, nil
}

func googleIdentity(ctx context.Context, client *http.Client) (*oauthIdentity, error) {
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &info); err != nil {
		return nil, err
	}
	local, _, _ := strings.Cut(info.Email, "@")
	return &oauthIdentity{
		ID:          info.ID,
		Username:    local,
		DisplayName: info.Name,
		Email:       info.Email,
		AvatarURL:   info.Picture,
	}, nil
}
