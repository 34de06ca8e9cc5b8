package handler

import (
	"errors"
	"net/http"

	"statusboard/config"
	"statusboard/internal/models"
	"statusboard/internal/service"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "statusboard_oauth_state"

type GoogleOAuthHandler struct {
	cfg         *config.Config
	authSvc     *service.AuthService
	audit       service.AuditStore
	userInfoURL string
}

func NewGoogleOAuthHandler(cfg *config.Config, authSvc *service.AuthService, audit service.AuditStore) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		cfg:         cfg,
		authSvc:     authSvc,
		audit:       audit,
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (h *GoogleOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.GoogleClientID,
		ClientSecret: h.cfg.OAuth.GoogleClientSecret,
		RedirectURL:  h.cfg.OAuth.GoogleRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

// Redirect sends the user to the Google consent screen.
func (h *GoogleOAuthHandler) Redirect(c *gin.Context) {
	if h.cfg.OAuth.GoogleClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.cfg.Server.Env == "production", true)
	c.Redirect(http.StatusFound, h.OAuth2Config().AuthCodeURL(state))
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Callback exchanges the code, checks the email domain and signs the worker in.
func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if h.cfg.OAuth.GoogleClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}
	want, _ := c.Cookie(oauthStateCookie)
	if want == "" || c.Query("state") != want {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	ctx := c.Request.Context()
	conf := h.OAuth2Config()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exchange failed"})
		return
	}
	info, err := h.fetchUserInfo(conf.Client(ctx, tok))
	if err != nil {
		log.Warn().Err(err).Msg("google userinfo")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user info"})
		return
	}
	h.finish(c, info)
}

func (h *GoogleOAuthHandler) fetchUserInfo(client *http.Client) (googleUserInfo, error) {
	var info googleUserInfo
	resp, err := client.Get(h.userInfoURL)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, errors.New("userinfo status " + resp.Status)
	}
	err = sonic.ConfigStd.NewDecoder(resp.Body).Decode(&info)
	return info, err
}

// finish signs in or denies the identity behind info.
func (h *GoogleOAuthHandler) finish(c *gin.Context, info googleUserInfo) {
	if info.ID == "" || info.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user info"})
		return
	}
	w, access, created, err := h.authSvc.LoginWithGoogle(info.ID, info.Email, info.Name, info.Picture)
	if errors.Is(err, service.ErrDomainNotAllowed) {
		h.auditEntry(nil, "domain_denied", info.Email, c)
		log.Warn().Str("email", info.Email).Msg("sign-in outside allowed domain")
		c.JSON(http.StatusForbidden, gin.H{"error": h.authSvc.DeniedMessage()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("email", info.Email).Msg("google login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	action := "google_oauth_login"
	if created {
		action = "google_oauth_signup"
	}
	h.auditEntry(&w.ID, action, "", c)
	c.JSON(http.StatusOK, gin.H{"worker": w, "access_token": access, "created": created})
}

func (h *GoogleOAuthHandler) auditEntry(workerID *string, action, metadata string, c *gin.Context) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Create(&models.AuditLog{
		WorkerID:  workerID,
		Action:    action,
		Resource:  "auth",
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Metadata:  metadata,
	})
}
