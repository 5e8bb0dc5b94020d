package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ubaid/marketplace-auth/internal/config"
	"github.com/ubaid/marketplace-auth/internal/database"
	"github.com/ubaid/marketplace-auth/internal/handler"
	"github.com/ubaid/marketplace-auth/internal/middleware"
	"github.com/ubaid/marketplace-auth/internal/oauth"
	"github.com/ubaid/marketplace-auth/internal/queue"
	"github.com/ubaid/marketplace-auth/internal/repository"
	"github.com/ubaid/marketplace-auth/internal/router"
	queue_publisher "github.com/ubaid/marketplace-auth/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	// Redis backs OAuth state and rate limiting; nil means both degrade.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: oauth state falls back to in-process store, rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	states := oauth.NewStateStore(rdb)
	google := oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
	verifier := oauth.NewIDTokenVerifier(cfg.GoogleClientID)
	events := queue_publisher.New()

	authH := handler.NewAuthHandler(cfg, users, tokens, google, verifier, states, events)
	userH := handler.NewUserHandler(users)
	adminH := handler.NewAdminHandler(users, events)

	// Audit trail consumer; reconnects on its own, never blocks startup.
	go func() {
		if err := queue.StartAuthConsumer(); err != nil {
			log.Printf("auth consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	// The authentication gate runs once for every request, before route
	// dispatch. Authorization is applied per route group.
	e.Use(middleware.Authenticate(cfg.JWTSecret))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, middleware.RateLimit(config.LoadRateLimitConfig(), rdb))
	router.RegisterProtected(e, userH, adminH)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
