package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"coachReflectAPI/handlers"
	"coachReflectAPI/internal/ratelimit"
	"coachReflectAPI/middleware"
	"coachReflectAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	rateLimiter         *ratelimit.Limiter
	userService         *services.UserService
	badgeService        *services.BadgeService
	streakService       *services.StreakService
	reflectionService   *services.ReflectionService
	referralService     *services.ReferralService
	chatService         *services.ChatService
	subscriptionService *services.SubscriptionService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	// Rate limiting degrades to a per-instance in-memory limiter when Redis
	// is not configured or unreachable.
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URL, falling back to local rate limiting: %v", err)
		} else {
			redisClient := redis.NewClient(opts)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Printf("Warning: Redis unreachable, falling back to local rate limiting: %v", err)
			} else {
				rateLimiter = ratelimit.NewLimiter(redisClient, "rl")
				log.Println("Redis rate limiter initialized successfully")
			}
		}
	} else {
		log.Println("REDIS_URL not set, using local rate limiting")
	}

	badgeService = services.NewBadgeService(dbPool)
	userService = services.NewUserService(dbPool)
	streakService = services.NewStreakService(dbPool, badgeService)
	reflectionService = services.NewReflectionService(dbPool, streakService, badgeService)
	referralService = services.NewReferralService(dbPool, badgeService)
	chatService = services.NewChatService(dbPool, os.Getenv("OPENAI_API_KEY"))
	subscriptionService = services.NewSubscriptionService(dbPool)

	middleware.InitPrometheus()
	services.InitMetrics()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	reflectionHandler := handlers.NewReflectionHandler(reflectionService)
	gamificationHandler := handlers.NewGamificationHandler(streakService, badgeService, userService, reflectionService)
	referralHandler := handlers.NewReferralHandler(referralService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	chatHandler := handlers.NewChatHandler(chatService, rateLimiter)
	webhookHandler := handlers.NewWebhookHandler(userService, subscriptionService, referralService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware(rateLimiter))
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "coachReflect-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/stats", userHandler.GetUserStats).Methods("GET")

	protected.HandleFunc("/reflections", reflectionHandler.CreateReflection).Methods("POST")
	protected.HandleFunc("/reflections", reflectionHandler.ListReflections).Methods("GET")
	protected.HandleFunc("/reflections/{id}", reflectionHandler.GetReflection).Methods("GET")
	protected.HandleFunc("/reflections/{id}", reflectionHandler.UpdateReflection).Methods("PUT")
	protected.HandleFunc("/reflections/{id}", reflectionHandler.DeleteReflection).Methods("DELETE")

	protected.HandleFunc("/gamification/streak", gamificationHandler.GetStreak).Methods("GET")
	protected.HandleFunc("/gamification/activity", gamificationHandler.RecordActivity).Methods("POST")
	protected.HandleFunc("/gamification/badges", gamificationHandler.GetBadges).Methods("GET")
	protected.HandleFunc("/gamification/badges/notified", gamificationHandler.MarkBadgesNotified).Methods("PUT")
	protected.HandleFunc("/gamification/tasks/complete", gamificationHandler.CompleteTask).Methods("POST")

	protected.HandleFunc("/referral", referralHandler.GetReferralInfo).Methods("GET")

	protected.HandleFunc("/subscription", subscriptionHandler.GetSubscription).Methods("GET")

	protected.HandleFunc("/chat", chatHandler.SendMessage).Methods("POST")
	protected.HandleFunc("/chat/history", chatHandler.GetHistory).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
