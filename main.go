package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xlsviz/models"
	"xlsviz/pkg/access"
	"xlsviz/pkg/ingest"
	"xlsviz/pkg/store"
	"xlsviz/process/watch"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "xlsviz",
		Short:        "Spreadsheet upload and chart configuration backend",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API (default)", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Run AutoMigrate and seeding, then exit", RunE: runMigrate},
		newCreateUserCmd(),
		newWatchCmd(),
	)
	return root
}

// bootstrap loads configuration, checks the required keys and opens the database.
func bootstrap(required ...string) (Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.require(required...); err != nil {
		return cfg, nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap("DB_DSN", "JWT_SECRET")
	if err != nil {
		return err
	}
	if err := initDB(db, cfg); err != nil {
		return err
	}

	r := gin.Default()
	setupRoutes(r, newServer(cfg, db))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()
	log.Printf("Server running on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap("DB_DSN")
	if err != nil {
		return err
	}
	cfg.AutoMigrate = true
	if err := initDB(db, cfg); err != nil {
		return err
	}
	fmt.Println("migration and seeding completed")
	return nil
}

func newCreateUserCmd() *cobra.Command {
	var name string
	var admin bool
	cmd := &cobra.Command{
		Use:   "create-user <email> <password>",
		Short: "Create an account directly in the database",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			_, db, err := bootstrap("DB_DSN")
			if err != nil {
				return err
			}
			if err := seedRoles(db); err != nil {
				return err
			}
			role := access.RoleUser
			if admin {
				role = access.RoleAdmin
			}
			user, err := RegisterUser(db, args[0], name, args[1], role)
			if errors.Is(err, ErrUserExists) {
				fmt.Printf("user %s already exists\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("created user %s id=%s role=%s\n", user.Email, user.ID, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email)")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var dir, owner string
	var workers int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest spreadsheets dropped into a directory for one user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap("DB_DSN")
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.WatchDir
			}
			if dir == "" {
				return fmt.Errorf("--dir or WATCH_DIR is required")
			}
			var user models.User
			if err := db.Preload("Role").Where("email = ?", owner).First(&user).Error; err != nil {
				return fmt.Errorf("owner %q: %w", owner, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			w := &watch.Watcher{
				Dir:      dir,
				Owner:    access.Identity{ID: user.ID, Role: user.RoleName()},
				Uploader: ingest.NewService(store.NewFiles(db)),
				Workers:  workers,
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch (defaults to WATCH_DIR)")
	cmd.Flags().StringVar(&owner, "owner", "", "email of the user that will own ingested files")
	cmd.Flags().IntVar(&workers, "workers", 2, "number of concurrent ingest workers")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
