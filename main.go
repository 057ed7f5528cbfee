package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/stridedash/stridedash/handlers"
	"github.com/stridedash/stridedash/internal/activities"
	"github.com/stridedash/stridedash/internal/archive"
	"github.com/stridedash/stridedash/internal/config"
	"github.com/stridedash/stridedash/internal/credentials"
	"github.com/stridedash/stridedash/internal/database"
	"github.com/stridedash/stridedash/internal/sessions"
	"github.com/stridedash/stridedash/internal/strava"
	"github.com/stridedash/stridedash/internal/tokens"
	"github.com/stridedash/stridedash/pkg/logger"
	"github.com/stridedash/stridedash/pkg/metrics"
	"github.com/stridedash/stridedash/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging level controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: store=%s mongo=%v redis=%v minio=%v",
		cfg.Strava.Store, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	r := gin.New()

	// Lightweight CORS middleware for the local dashboard frontend.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Retry-After")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	ctx := context.Background()

	// Connect to Redis early so the rate limiter, session store and token
	// blacklist can use it when configured.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// MongoDB is optional; it backs the credential store and the activity
	// repository when available. Retry with backoff to tolerate startup races.
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
			mongoClient = nil
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
		}
	}

	// Credential store per CREDENTIAL_STORE; falls back to the tokens file
	// when the requested backend is unavailable.
	var credStore credentials.Store
	switch cfg.Strava.Store {
	case "redis":
		if redisClient != nil {
			credStore = credentials.NewRedisStore(redisClient, "")
		} else {
			logger.Warnf("CREDENTIAL_STORE=redis but Redis is unavailable, using tokens file")
		}
	case "mongo":
		if mongoClient != nil {
			col := mongoClient.Database(cfg.MongoDB.Database).Collection("credentials")
			credStore = credentials.NewMongoStore(col)
		} else {
			logger.Warnf("CREDENTIAL_STORE=mongo but MongoDB is unavailable, using tokens file")
		}
	}
	if credStore == nil {
		credStore = credentials.NewFileStore(cfg.Strava.TokensFile)
	}

	auth := strava.NewAuthenticator(cfg.Strava, credStore)
	api := strava.NewClient(auth)

	var repo activities.Repository
	if mongoClient != nil {
		col := mongoClient.Database(cfg.MongoDB.Database).Collection("activities")
		repo = activities.NewMongoRepository(col)
		logger.Infof("using MongoDB for activity storage")
	} else {
		repo = activities.NewMemoryRepository()
	}
	activitySvc := activities.NewService(api, repo)

	// Sessions live in Redis when available, otherwise in process memory.
	var sessionsSvc *sessions.Service
	if redisClient != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(redisClient, "session:"))
		logger.Infof("using Redis for session storage")
	} else {
		sessionsSvc = sessions.NewService(sessions.NewMemoryRepository())
	}

	// Optional object archive for activity exports.
	var arc *archive.Archive
	if cfg.MinIO.Endpoint != "" {
		arc, err = archive.New(cfg.MinIO)
		if err != nil {
			logger.Warnf("archive unavailable: %v", err)
			arc = nil
		} else {
			logger.Infof("archive ready: bucket %s", cfg.MinIO.Bucket)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: the Strava client registration is mandatory, the rest is
	// reported but only required when explicitly configured
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"strava_config": cfg.Strava.ClientID != "" && cfg.Strava.ClientSecret != "",
			"sessions":      sessionsSvc != nil,
			"archive":       arc != nil,
		}
		if !deps["strava_config"] || !deps["sessions"] {
			ready = false
		}
		if cfg.RateLimit.UseRedis && redisClient == nil {
			deps["redis"] = false
			ready = false
		}
		if cfg.Strava.Store == "mongo" && mongoClient == nil {
			deps["mongodb"] = false
			ready = false
		}
		status := gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()}
		if !ready {
			status["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	handlers.NewAuthHandler(cfg, auth, api, sessionsSvc).Register(r.Group("/"))
	handlers.RegisterSwagger(r)

	dash := handlers.NewDashboardHandler(api, activitySvc, arc)
	apiGroup := r.Group("/api/v1")
	if cfg.Session.Secret != "" {
		apiGroup.Use(middleware.AuthMiddleware(tokens.NewVerifier(cfg)))
	} else {
		logger.Warnf("SESSION_SECRET not set, dashboard endpoints are unauthenticated")
	}
	dash.Register(apiGroup)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting stridedash on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
