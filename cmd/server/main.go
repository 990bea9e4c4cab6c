package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardtable/backend/internal/auth"
	"cardtable/backend/internal/config"
	"cardtable/backend/internal/database"
	"cardtable/backend/internal/deck"
	"cardtable/backend/internal/directory"
	"cardtable/backend/internal/handler"
	"cardtable/backend/internal/hub"
	"cardtable/backend/internal/session"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "cardtable/backend/docs" // Registers the API description served under /swagger

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           Cardtable API
// @version         1.0
// @description     Game catalog and live card-game sessions. Play happens over the /ws websocket.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig
	log := cfg.Logger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	database.Connect(cfg.DatabaseURL, log)

	shuffler := deck.NewShuffler(cfg.ShuffleSeed)
	log.WithField("seed", shuffler.Seed()).Info("deck shuffler ready")

	var (
		mirror  hub.Directory
		listing handler.SummaryLister
	)
	if cfg.RedisURL != "" {
		client, err := directory.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to redis")
		}
		dir := directory.NewRedis(client, directory.DefaultPrefix, log)
		dirDone := make(chan struct{})
		go func() {
			dir.Run(ctx)
			close(dirDone)
		}()
		// Run deletes this process's entries once ctx is cancelled.
		defer func() { <-dirDone }()
		mirror, listing = dir, dir
		log.Info("Session directory enabled.")
	}

	store := session.NewStore(shuffler)
	sessionHub := hub.New(store, database.NewCatalog(database.DB), mirror, hub.Options{
		SendBuffer: cfg.SendBuffer,
		Logger:     log,
	})
	sessions := handler.NewSessionHandler(sessionHub, listing, log, handler.SocketOptions{
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
		OriginPatterns: cfg.Origins(),
	})

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Play connection
	router.GET("/ws", sessions.ServeWS)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Public game catalog
		gameRoutes := apiV1.Group("/games")
		{
			gameRoutes.GET("", handler.GetGames)
			gameRoutes.GET("/:name", handler.GetGameByName)
		}

		// Live sessions
		sessionRoutes := apiV1.Group("/sessions")
		{
			sessionRoutes.GET("", sessions.ListSessions)
			sessionRoutes.GET("/:name", sessions.GetSession)
		}
		apiV1.GET("/directory", sessions.ListDirectory)

		// Admin login issues the token the admin routes check
		apiV1.POST("/admin/login", handler.AdminLogin)

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminGameRoutes := adminRoutes.Group("/games")
			{
				adminGameRoutes.POST("", handler.CreateGame)
				adminGameRoutes.POST("/:name/cards", handler.AddCard)
			}
		}
	}

	log.Infof("Server is running on :%s", cfg.Port)
	log.Infof("Swagger UI is available at http://localhost:%s/swagger/index.html", cfg.Port)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown failed")
	}
}
