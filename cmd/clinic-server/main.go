package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/actua/clinic/internal/config"
	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/domain/activity"
	"github.com/actua/clinic/internal/domain/appointment"
	"github.com/actua/clinic/internal/domain/finance"
	"github.com/actua/clinic/internal/domain/formation"
	"github.com/actua/clinic/internal/domain/invoice"
	"github.com/actua/clinic/internal/domain/note"
	"github.com/actua/clinic/internal/domain/patient"
	"github.com/actua/clinic/internal/domain/worker"
	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/internal/platform/blobstore"
	"github.com/actua/clinic/internal/platform/db"
	"github.com/actua/clinic/internal/platform/metrics"
	"github.com/actua/clinic/internal/platform/middleware"
	"github.com/actua/clinic/internal/platform/whatsapp"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic administration backend",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			applied, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s)\n", applied)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %s\n", "VERSION", "NAME", "STATUS")
			fmt.Println("---------- ---------------------------------------- ----------")
			for _, s := range statuses {
				status := "pending"
				if s.Applied {
					status = "applied"
				}
				fmt.Printf("%-10d %-40s %s\n", s.Version, s.Name, status)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			group, _ := cmd.Flags().GetString("group")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
			svc := account.NewService(
				account.NewUserRepoPG(pool),
				account.NewGroupRepoPG(pool),
				account.NewProfileRepoPG(pool),
				issuer,
				db.PoolTxRunner(pool),
			)

			u, err := svc.CreateUser(ctx, account.CreateUserInput{
				Username:        username,
				Email:           email,
				FirstName:       firstName,
				LastName:        lastName,
				Password:        password,
				ConfirmPassword: password,
				Group:           group,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login username")
	createCmd.Flags().String("email", "", "Email address")
	createCmd.Flags().String("password", "", "Password")
	createCmd.Flags().String("group", auth.GroupAdmin, "Group to assign")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")

	cmd.AddCommand(createCmd)
	return cmd
}

// workerResolverAdapter lets the appointment service look up worker records
// without importing the worker package.
type workerResolverAdapter struct {
	workers worker.Repository
}

func (a *workerResolverAdapter) ByID(ctx context.Context, id uuid.UUID) (*appointment.WorkerRef, error) {
	w, err := a.workers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &appointment.WorkerRef{ID: w.ID, UserID: w.UserID, CreatedBy: w.CreatedBy}, nil
}

func (a *workerResolverAdapter) ByUserID(ctx context.Context, userID uuid.UUID) (*appointment.WorkerRef, error) {
	w, err := a.workers.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &appointment.WorkerRef{ID: w.ID, UserID: w.UserID, CreatedBy: w.CreatedBy}, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Media store for consent forms, documents and invoice PDFs
	blobs, err := blobstore.NewFSStore(cfg.MediaDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.MediaDir).Msg("failed to open media store")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(metrics.Middleware())

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	// Token issuing and auth
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	txRunner := db.PoolTxRunner(pool)

	// Repositories
	users := account.NewUserRepoPG(pool)
	groups := account.NewGroupRepoPG(pool)
	profiles := account.NewProfileRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	docRepo := patient.NewDocumentRepoPG(pool)
	workerRepo := worker.NewRepoPG(pool, users)
	regRepo := worker.NewTimeRegisterRepoPG(pool)
	apptRepo := appointment.NewRepoPG(pool)
	priceRepo := appointment.NewPriceConfigRepoPG(pool)
	invoiceRepo := invoice.NewRepoPG(pool)
	numberingRepo := invoice.NewNumberingRepoPG(pool)
	financeRepo := finance.NewRepoPG(pool)
	financeCfgRepo := finance.NewConfigRepoPG(pool)
	activityRepo := activity.NewRepoPG(pool)
	noteRepo := note.NewRepoPG(pool)
	formationRepo := formation.NewRepoPG(pool)

	// Services
	accountSvc := account.NewService(users, groups, profiles, issuer, txRunner)
	patientSvc := patient.NewService(patientRepo, docRepo, groups, blobs)
	workerSvc := worker.NewService(workerRepo, regRepo, accountSvc, users, blobs, txRunner)
	apptSvc := appointment.NewService(apptRepo, priceRepo,
		&workerResolverAdapter{workers: workerRepo}, patientSvc, profiles, whatsapp.NewTwilioSender)
	invoiceSvc := invoice.NewService(invoiceRepo, numberingRepo, apptRepo, patientRepo,
		users, profiles, blobs, txRunner, cfg.IRPFRate)
	financeSvc := finance.NewService(financeRepo, financeCfgRepo, apptRepo)
	activitySvc := activity.NewService(activityRepo, txRunner)
	noteSvc := note.NewService(noteRepo)
	formationSvc := formation.NewService(formationRepo)

	// Public routes: login and token refresh only
	accountH := account.NewHandler(accountSvc)
	public := e.Group("/api")
	accountH.RegisterPublicRoutes(public)

	// Everything else requires a valid access token
	api := e.Group("/api",
		auth.Middleware(issuer),
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
	)

	accountH.RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	worker.NewHandler(workerSvc).RegisterRoutes(api)
	appointment.NewHandler(apptSvc).RegisterRoutes(api)
	invoice.NewHandler(invoiceSvc).RegisterRoutes(api)
	finance.NewHandler(financeSvc).RegisterRoutes(api)
	activity.NewHandler(activitySvc).RegisterRoutes(api)
	note.NewHandler(noteSvc).RegisterRoutes(api)
	formation.NewHandler(formationSvc).RegisterRoutes(api)

	// Report pool usage to Prometheus
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.RecordDBConnections(pool.Stat().TotalConns())
		}
	}()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
