package main

import (
	"log"
	"os"

	"chatgw/internal/auth"
	"chatgw/internal/chat"
	"chatgw/internal/config"
	"chatgw/internal/llm"
	"chatgw/internal/quota"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath, "config/.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize router
	router := gin.Default()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     cfg.CORS.AllowMethods,
		AllowHeaders:     cfg.CORS.AllowHeaders,
		ExposeHeaders:    cfg.CORS.ExposeHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}))

	if cfg.Upstream.APIKey == "" {
		log.Println("No upstream API key configured; completion requests will be rejected")
	}

	// Quota counter store
	var store quota.Store
	switch cfg.Quota.Store {
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("Failed to close database: %v", err)
			}
		}()
		store, err = quota.NewPostgresStore(db, cfg.Quota.Limit, cfg.Quota.Window())
		if err != nil {
			log.Fatalf("Failed to initialize quota store: %v", err)
		}
	default:
		store = quota.NewMemoryStore(cfg.Quota.Limit, cfg.Quota.Window())
	}

	// Initialize services
	candidates := make([]llm.ModelCandidate, 0, len(cfg.Models.Fallbacks))
	for _, m := range cfg.Models.Fallbacks {
		candidates = append(candidates, llm.ModelCandidate{
			ID:             m.ID,
			Priority:       m.Priority,
			VoiceOptimized: m.VoiceOptimized,
		})
	}
	catalog := llm.NewCatalog(candidates)
	transport := llm.NewHTTPTransport(cfg.Upstream)
	guard := quota.NewGuard(store)
	identity := auth.NewIdentityResolver(cfg.JWT)

	chatService := chat.NewChatService(transport, catalog, guard, cfg.Upstream.APIKey != "")
	chatController := chat.NewChatController(chatService, identity, cfg.Completion)

	router.POST("/v1/chat/completions", func(c *gin.Context) {
		chatController.ChatHandler(c.Writer, c.Request)
	})

	// Start server
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
}
