package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/exammgr/internal/directory"
	"github.com/pavelanni/exammgr/internal/exam"
	"github.com/pavelanni/exammgr/internal/handler"
	appI18n "github.com/pavelanni/exammgr/internal/i18n"
	"github.com/pavelanni/exammgr/internal/llm"
	"github.com/pavelanni/exammgr/internal/llm/fallback"
	"github.com/pavelanni/exammgr/internal/model"
	"github.com/pavelanni/exammgr/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exammgr",
		Short: "Department exam manager with AI question generation",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), importCmd(), useraddCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `exammgr --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// dbFlags registers the database and logging flags shared by every command.
func dbFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "exammgr.db", "SQLite database path or PostgreSQL connection string")
	f.String("db-driver", store.DriverSQLite, "Database driver (sqlite, postgres)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	dbFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("ai-provider", llm.ProviderOpenAI, "Question generator (openai, gemini, none)")
	f.String("ai-url", "", "Override the provider's API base URL")
	f.String("ai-key", "", "API key for the question generator")
	f.String("ai-model", "gpt-4o-mini", "Model name for question generation")
	f.Duration("ai-timeout", exam.DefaultAITimeout, "Upper bound for one generation call")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /exams)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-username", "admin", "Username of the initial superadmin")
	f.String("admin-password", "", "Initial superadmin password (or set EXAMMGR_ADMIN_PASSWORD)")
	f.Bool("seed-departments", true, "Create the standard departments when none exist")
	f.Duration("session-ttl", store.DefaultSessionTTL, "Lifetime of a login session")
	f.Duration("session-cleanup", time.Hour, "Interval for purging expired sessions (0 disables)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMMGR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("exammgr")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/exammgr")
	v.AddConfigPath("/etc/exammgr")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db-driver"), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// newGenerator returns the configured question generator, or nil when generation
// is disabled and every request goes to the local bank.
func newGenerator(ctx context.Context, v *viper.Viper) (exam.QuestionGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("ai-provider")))
	if provider == "none" {
		slog.Info("AI question generation disabled, using the local question bank")
		return nil, nil
	}
	client, err := llm.New(provider, v.GetString("ai-url"), v.GetString("ai-key"), v.GetString("ai-model"))
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	if v.GetString("ai-key") == "" {
		slog.Warn("no AI API key configured, generation will use the local question bank", "provider", client.Provider())
		return client, nil
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pctx); err != nil {
		// Not fatal: failed generations fall back to the local bank.
		slog.Warn("LLM health check failed", "provider", client.Provider(), "error", err)
	} else {
		slog.Info("LLM endpoint OK", "provider", client.Provider(), "model", v.GetString("ai-model"))
	}
	return client, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	db.SetSessionTTL(v.GetDuration("session-ttl"))

	dir := directory.New(db)
	if v.GetBool("seed-departments") {
		if _, err := dir.SeedDepartments(); err != nil {
			return fmt.Errorf("seed departments: %w", err)
		}
	}
	if _, err := dir.SeedSuperAdmin(v.GetString("admin-username"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("%w (set --admin-password or EXAMMGR_ADMIN_PASSWORD)", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	gen, err := newGenerator(ctx, v)
	if err != nil {
		return err
	}
	bank, err := fallback.Default()
	if err != nil {
		return fmt.Errorf("load fallback questions: %w", err)
	}
	slog.Info("fallback question bank loaded", "general", bank.Size(fallback.TopicGeneral))

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.AppConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		AITimeout:     v.GetDuration("ai-timeout"),
		Lang:          lang,
	}
	mgr := exam.NewManager(db, gen, bank, cfg.AITimeout)
	eng := exam.NewEngine(db)
	h := handler.New(db, db, dir, mgr, eng, cfg)

	if every := v.GetDuration("session-cleanup"); every > 0 {
		go cleanupSessions(ctx, db, every)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	slog.Info("starting server",
		"addr", addr,
		"db_driver", db.Driver(),
		"ai_provider", v.GetString("ai-provider"),
		"ai_model", v.GetString("ai-model"),
		"lang", lang,
		"base_path", basePath,
	)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed expired sessions", "count", n)
			}
		}
	}
}
