package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/contentkit"
	"github.com/tyemirov/clipstream/internal/relationkit"
	"github.com/tyemirov/clipstream/internal/sessionkit"
	"github.com/tyemirov/clipstream/internal/storage"
	"github.com/tyemirov/clipstream/internal/uploader"
	"github.com/tyemirov/clipstream/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "clipstream",
		Short:   "Content platform backend with JWT sessions, rotating refresh tokens, and toggle relationships",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access and refresh JWTs")
	rootCmd.Flags().String("jwt_issuer", "clipstream-auth", "Issuer claim for minted tokens")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 60*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP for local dev")
	rootCmd.Flags().String("database_url", "", "Database URL (postgres:// or sqlite://; leave empty for in-memory stores)")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients (required to set SameSite=None cookies)")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")
	rootCmd.Flags().String("media_root", "media", "Local directory for uploads when no S3 bucket is configured")
	rootCmd.Flags().String("media_base_url", "/media", "Public base URL for locally stored uploads")
	rootCmd.Flags().String("s3_bucket", "", "S3 bucket for uploads; empty selects the local uploader")
	rootCmd.Flags().String("s3_region", "", "S3 region")
	rootCmd.Flags().String("s3_endpoint", "", "Custom S3 endpoint for S3-compatible storage")
	rootCmd.Flags().String("s3_access_key_id", "", "Static S3 access key id; empty uses the default chain")
	rootCmd.Flags().String("s3_secret_access_key", "", "Static S3 secret access key")
	rootCmd.Flags().String("s3_public_base_url", "", "Public base URL for uploaded objects")

	for _, flagName := range []string{
		"listen_addr", "cookie_domain", "jwt_signing_key", "jwt_issuer",
		"access_ttl", "refresh_ttl", "dev_insecure_http", "database_url",
		"enable_cors", "cors_allowed_origins", "media_root", "media_base_url",
		"s3_bucket", "s3_region", "s3_endpoint", "s3_access_key_id",
		"s3_secret_access_key", "s3_public_base_url",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	accessCookieName  = "clipstream_access"
	refreshCookieName = "clipstream_refresh"

	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig reads and validates the session configuration from viper.
func LoadServerConfig() (sessionkit.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return sessionkit.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return sessionkit.ServerConfig{
		JWTSigningKey:     []byte(jwtSigningKey),
		JWTIssuer:         viper.GetString("jwt_issuer"),
		CookieDomain:      viper.GetString("cookie_domain"),
		AccessCookieName:  accessCookieName,
		RefreshCookieName: refreshCookieName,
		AccessTTL:         accessTTL,
		RefreshTTL:        refreshTTL,
	}, nil
}

type userDirectory interface {
	sessionkit.UserStore
	UserExists(ctx context.Context, userID string) (bool, error)
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(sessionkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	devInsecureHTTP := viper.GetBool("dev_insecure_http")
	databaseURL := viper.GetString("database_url")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	serverConfig.AllowInsecureHTTP = devInsecureHTTP
	serverConfig.SameSiteMode = http.SameSiteStrictMode
	if enableCORS {
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	var users userDirectory
	var relations relationkit.RelationStore
	var content contentkit.ContentStore

	if databaseURL != "" {
		database, openErr := storage.Open(context.Background(), databaseURL)
		if openErr != nil {
			return openErr
		}
		users = database.Users
		relations = database.Relations
		content = database.Content
		logger.Info("using persistent stores", zap.String("driver", database.Driver()))
	} else {
		users = storage.NewMemoryUserStore()
		relations = storage.NewMemoryRelationStore()
		content = storage.NewMemoryContentStore()
		logger.Info("using in-memory stores")
	}

	uploads, uploaderErr := buildUploader(command.Context(), router)
	if uploaderErr != nil {
		return uploaderErr
	}

	clock := sessionkit.SystemClock{}
	metrics := sessionkit.NewCounterMetrics()

	manager := sessionkit.NewSessionManager(users, uploads, serverConfig, clock, logger, metrics)
	engine := relationkit.NewToggleEngine(relations, logger, metrics)

	sessionkit.MountSessionRoutes(router, serverConfig, manager, users, clock)

	public := router.Group("/api")
	protected := router.Group("/api")
	protected.Use(sessionkit.RequireSession(serverConfig, users, clock))
	relationkit.MountRelationRoutes(protected, engine, relations, relationkit.RelationTargets{
		UserExists:    users.UserExists,
		VideoExists:   existsFromGetter(func(ctx context.Context, id string) error { _, err := content.GetVideo(ctx, id); return err }),
		CommentExists: existsFromGetter(func(ctx context.Context, id string) error { _, err := content.GetComment(ctx, id); return err }),
		TweetExists:   existsFromGetter(func(ctx context.Context, id string) error { _, err := content.GetTweet(ctx, id); return err }),
	})
	contentkit.MountContentRoutes(public, protected, content, uploads)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func buildUploader(ctx context.Context, router gin.IRouter) (uploader.Uploader, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	bucket := viper.GetString("s3_bucket")
	if bucket != "" {
		return uploader.NewS3Uploader(ctx, uploader.S3Config{
			Bucket:          bucket,
			Region:          viper.GetString("s3_region"),
			Endpoint:        viper.GetString("s3_endpoint"),
			AccessKeyID:     viper.GetString("s3_access_key_id"),
			SecretAccessKey: viper.GetString("s3_secret_access_key"),
			PublicBaseURL:   viper.GetString("s3_public_base_url"),
		})
	}
	mediaRoot := viper.GetString("media_root")
	if mediaRoot == "" {
		mediaRoot = "media"
	}
	mediaBaseURL := viper.GetString("media_base_url")
	if mediaBaseURL == "" {
		mediaBaseURL = "/media"
	}
	local, localErr := uploader.NewLocalUploader(mediaRoot, mediaBaseURL)
	if localErr != nil {
		return nil, localErr
	}
	router.Static(mediaBaseURL, mediaRoot)
	return local, nil
}

func existsFromGetter(get func(ctx context.Context, id string) error) relationkit.ExistsCheck {
	return func(ctx context.Context, targetID string) (bool, error) {
		getErr := get(ctx, targetID)
		if getErr == nil {
			return true, nil
		}
		if apperr.KindOf(getErr) == apperr.KindNotFound {
			return false, nil
		}
		return false, getErr
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
