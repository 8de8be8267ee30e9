package sessionkit

import (
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/uploader"
)

// MountSessionRoutes registers the credential lifecycle surface:
// /auth/register, /auth/login, /auth/refresh, /auth/logout, /auth/password,
// and the /me profile endpoints.
func MountSessionRoutes(router gin.IRouter, configuration ServerConfig, manager *SessionManager, users UserStore, clock Clock) {
	if clock == nil {
		clock = SystemClock{}
	}

	router.POST("/auth/register", func(contextGin *gin.Context) {
		input, openedUploads, inputErr := readRegisterInput(contextGin)
		if inputErr != nil {
			apperr.Respond(contextGin, inputErr)
			return
		}
		defer closeUploads(openedUploads)
		view, registerErr := manager.Register(contextGin.Request.Context(), input)
		if registerErr != nil {
			apperr.Respond(contextGin, registerErr)
			return
		}
		contextGin.JSON(http.StatusCreated, gin.H{"user": view})
	})

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Login    string `json:"login"`
			Password string `json:"password"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			apperr.Respond(contextGin, apperr.Validation("session.login.invalid_json", "invalid request body"))
			return
		}
		if !configuration.AllowInsecureHTTP && !isHTTPS(contextGin.Request) {
			apperr.Respond(contextGin, apperr.Validation("session.login.https_required", "https is required"))
			return
		}
		pair, view, loginErr := manager.Login(contextGin.Request.Context(), inbound.Login, inbound.Password)
		if loginErr != nil {
			apperr.Respond(contextGin, loginErr)
			return
		}
		writeSessionCookies(contextGin, configuration, pair)
		contextGin.JSON(http.StatusOK, gin.H{
			"user":          view,
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires":       pair.AccessExpiresAt,
		})
	})

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		presented := extractRefreshToken(contextGin, configuration)
		if presented == "" {
			apperr.Respond(contextGin, apperr.Auth("session.refresh.missing_token", "refresh token required"))
			return
		}
		pair, refreshErr := manager.Refresh(contextGin.Request.Context(), presented)
		if refreshErr != nil {
			clearSessionCookies(contextGin, configuration)
			apperr.Respond(contextGin, refreshErr)
			return
		}
		writeSessionCookies(contextGin, configuration, pair)
		contextGin.JSON(http.StatusOK, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires":       pair.AccessExpiresAt,
		})
	})

	protected := router.Group("")
	protected.Use(RequireSession(configuration, users, clock))

	protected.POST("/auth/logout", func(contextGin *gin.Context) {
		view, _ := CurrentUser(contextGin)
		if logoutErr := manager.Logout(contextGin.Request.Context(), view.ID); logoutErr != nil {
			apperr.Respond(contextGin, logoutErr)
			return
		}
		clearSessionCookies(contextGin, configuration)
		contextGin.Status(http.StatusNoContent)
	})

	protected.POST("/auth/password", func(contextGin *gin.Context) {
		var inbound struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			apperr.Respond(contextGin, apperr.Validation("session.password.invalid_json", "invalid request body"))
			return
		}
		view, _ := CurrentUser(contextGin)
		if changeErr := manager.ChangePassword(contextGin.Request.Context(), view.ID, inbound.CurrentPassword, inbound.NewPassword); changeErr != nil {
			apperr.Respond(contextGin, changeErr)
			return
		}
		clearSessionCookies(contextGin, configuration)
		contextGin.Status(http.StatusNoContent)
	})

	protected.GET("/me", func(contextGin *gin.Context) {
		view, _ := CurrentUser(contextGin)
		contextGin.JSON(http.StatusOK, gin.H{"user": view})
	})

	protected.PATCH("/me", func(contextGin *gin.Context) {
		var inbound struct {
			DisplayName string `json:"display_name"`
			Email       string `json:"email"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			apperr.Respond(contextGin, apperr.Validation("session.account.invalid_json", "invalid request body"))
			return
		}
		view, _ := CurrentUser(contextGin)
		updated, updateErr := manager.UpdateAccount(contextGin.Request.Context(), view.ID, inbound.DisplayName, inbound.Email)
		if updateErr != nil {
			apperr.Respond(contextGin, updateErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"user": updated})
	})

	protected.PUT("/me/avatar", func(contextGin *gin.Context) {
		view, _ := CurrentUser(contextGin)
		file, fileErr := formUpload(contextGin, "avatar")
		if fileErr != nil {
			apperr.Respond(contextGin, fileErr)
			return
		}
		defer file.close()
		updated, updateErr := manager.UpdateAvatar(contextGin.Request.Context(), view.ID, file.upload)
		if updateErr != nil {
			apperr.Respond(contextGin, updateErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"user": updated})
	})

	protected.PUT("/me/cover", func(contextGin *gin.Context) {
		view, _ := CurrentUser(contextGin)
		file, fileErr := formUpload(contextGin, "cover")
		if fileErr != nil {
			apperr.Respond(contextGin, fileErr)
			return
		}
		defer file.close()
		updated, updateErr := manager.UpdateCover(contextGin.Request.Context(), view.ID, file.upload)
		if updateErr != nil {
			apperr.Respond(contextGin, updateErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"user": updated})
	})
}

// readRegisterInput parses the registration payload. The returned uploads
// stay open because the manager has not read their streams yet; the caller
// closes them once registration finishes.
func readRegisterInput(contextGin *gin.Context) (RegisterInput, []*openedUpload, error) {
	contentType := contextGin.ContentType()
	if strings.HasPrefix(contentType, "multipart/") {
		input := RegisterInput{
			Username:    contextGin.PostForm("username"),
			Email:       contextGin.PostForm("email"),
			Password:    contextGin.PostForm("password"),
			DisplayName: contextGin.PostForm("display_name"),
		}
		opened := []*openedUpload{}
		avatar, avatarErr := optionalFormUpload(contextGin, "avatar")
		if avatarErr != nil {
			closeUploads(opened)
			return RegisterInput{}, nil, avatarErr
		}
		if avatar != nil {
			opened = append(opened, avatar)
			input.Avatar = avatar.upload
		}
		cover, coverErr := optionalFormUpload(contextGin, "cover")
		if coverErr != nil {
			closeUploads(opened)
			return RegisterInput{}, nil, coverErr
		}
		if cover != nil {
			opened = append(opened, cover)
			input.Cover = cover.upload
		}
		return input, opened, nil
	}

	var inbound struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		return RegisterInput{}, nil, apperr.Validation("session.register.invalid_json", "invalid request body")
	}
	return RegisterInput{
		Username:    inbound.Username,
		Email:       inbound.Email,
		Password:    inbound.Password,
		DisplayName: inbound.DisplayName,
	}, nil, nil
}

func closeUploads(opened []*openedUpload) {
	for _, upload := range opened {
		upload.close()
	}
}

type openedUpload struct {
	upload *uploader.File
	source multipart.File
}

func (opened *openedUpload) close() {
	if opened != nil && opened.source != nil {
		_ = opened.source.Close()
	}
}

func formUpload(contextGin *gin.Context, field string) (*openedUpload, error) {
	opened, openErr := optionalFormUpload(contextGin, field)
	if openErr != nil {
		return nil, openErr
	}
	if opened == nil {
		return nil, apperr.Validation("session.upload.missing_file", field+" file is required")
	}
	return opened, nil
}

func optionalFormUpload(contextGin *gin.Context, field string) (*openedUpload, error) {
	header, headerErr := contextGin.FormFile(field)
	if headerErr != nil {
		if headerErr == http.ErrMissingFile {
			return nil, nil
		}
		return nil, apperr.Validation("session.upload.invalid_form", "invalid multipart form")
	}
	source, openErr := header.Open()
	if openErr != nil {
		return nil, apperr.Upstream("session.upload.open", "could not read upload", openErr)
	}
	return &openedUpload{
		upload: &uploader.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      source,
		},
		source: source,
	}, nil
}

func extractRefreshToken(contextGin *gin.Context, configuration ServerConfig) string {
	cookie, cookieErr := contextGin.Request.Cookie(configuration.RefreshCookieName)
	if cookieErr == nil && cookie != nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value
	}
	var inbound struct {
		RefreshToken string `json:"refresh_token"`
	}
	if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr == nil {
		return strings.TrimSpace(inbound.RefreshToken)
	}
	return ""
}

func writeSessionCookies(contextGin *gin.Context, configuration ServerConfig, pair TokenPair) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		Expires:  pair.AccessExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/auth",
		Domain:   configuration.CookieDomain,
		Expires:  pair.RefreshExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearSessionCookies(contextGin *gin.Context, configuration ServerConfig) {
	for _, name := range []string{configuration.AccessCookieName, configuration.RefreshCookieName} {
		http.SetCookie(contextGin.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   configuration.CookieDomain,
			MaxAge:   -1,
			Secure:   true,
			HttpOnly: true,
			SameSite: configuration.SameSiteMode,
		})
	}
}

func isHTTPS(request *http.Request) bool {
	if request.TLS != nil {
		return true
	}
	scheme := request.Header.Get("X-Forwarded-Proto")
	if strings.EqualFold(scheme, "https") {
		return true
	}
	forwarded := request.Header.Get("Forwarded")
	if forwarded != "" && strings.Contains(strings.ToLower(forwarded), "proto=https") {
		return true
	}
	host, _, splitErr := net.SplitHostPort(request.Host)
	if splitErr == nil && host == "localhost" {
		return true
	}
	return false
}
