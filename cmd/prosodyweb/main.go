package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"prosodyweb/internal/auth"
	"prosodyweb/internal/config"
	"prosodyweb/internal/database"
	"prosodyweb/internal/database/migrations"
	"prosodyweb/internal/forum"
	"prosodyweb/internal/handlers"
	"prosodyweb/internal/metrics"
	"prosodyweb/internal/prosody"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "prosodyweb",
		Short: "Community site for a Prosody XMPP server",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "prosodyweb.toml", "path to the config file")
	root.AddCommand(serveCmd(), migrateCmd(), useraddCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	m := &config.Manager{}
	cfg, err := m.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	return cfg, log, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			forumStore := forum.NewStore(db, log)
			seeds, err := forum.DefaultBoards()
			if err != nil {
				return err
			}
			if err := forumStore.SeedBoards(cmd.Context(), seeds); err != nil {
				return err
			}

			prosodyStore := prosody.NewStore(db, cfg.ProsodyDomain, log)
			sessions := auth.NewManager(db, time.Duration(cfg.SessionMaxAgeHours)*time.Hour)
			h := handlers.New(db, sessions, forumStore, prosodyStore, log)

			mux := http.NewServeMux()
			mux.HandleFunc("/", h.Index)
			mux.HandleFunc("/forum/", h.Forum)
			mux.HandleFunc("/reply", h.RequireAuth(h.Reply))
			mux.HandleFunc("/login", h.Login)
			mux.HandleFunc("/logout", h.Logout)
			mux.Handle("/metrics", metrics.Handler())

			handler := handlers.WithRecover(handlers.WithLogging(mux, log), log)
			log.Info().Str("addr", cfg.ListenAddr).Str("domain", cfg.ProsodyDomain).Msg("listening")
			return http.ListenAndServe(cfg.ListenAddr, handler)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, err := migrations.Version(db)
			if err != nil {
				return err
			}
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema current")
			return nil
		},
	}
}

func useraddCmd() *cobra.Command {
	var email string
	var superuser bool

	cmd := &cobra.Command{
		Use:   "useradd <username>",
		Short: "Create a user and its shared account store rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			username := args[0]
			fmt.Fprint(os.Stderr, "Password: ")
			pass, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return err
			}
			pass = strings.TrimRight(pass, "\r\n")
			if pass == "" {
				return fmt.Errorf("empty password")
			}

			hash, err := auth.HashPassword(pass)
			if err != nil {
				return err
			}
			_, err = db.ExecContext(cmd.Context(), `
				INSERT INTO users(username, email, password_hash, is_active, is_superuser, date_joined)
				VALUES(?,?,?,1,?,?)`,
				username, email, hash, superuser, time.Now())
			if err != nil {
				return fmt.Errorf("create user %s: %w", username, err)
			}

			// The chat server reads credentials from its accounts store,
			// so the account exists on both sides from the start.
			store := prosody.NewStore(db, cfg.ProsodyDomain, log)
			rows := []prosody.Row{
				{User: username, Store: "accounts", Key: "password", Value: pass},
				{User: username, Store: "accounts", Key: "iterations", Value: "8192"},
			}
			for _, row := range rows {
				if err := store.Save(cmd.Context(), row); err != nil {
					return err
				}
			}
			log.Info().Str("user", username).Msg("user created")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant superuser")
	return cmd
}
