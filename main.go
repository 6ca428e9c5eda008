package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Pariharx7/CivicTrack/config"
	"github.com/Pariharx7/CivicTrack/controllers"
	"github.com/Pariharx7/CivicTrack/logger"
	"github.com/Pariharx7/CivicTrack/middlewares"
	"github.com/Pariharx7/CivicTrack/models"
	"github.com/Pariharx7/CivicTrack/routes"
	"github.com/Pariharx7/CivicTrack/stores"
	"github.com/Pariharx7/CivicTrack/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db := config.ConnectDB(cfg.Mongo)
	if db == nil {
		logr.Fatal("Failed to connect to MongoDB")
	}
	defer config.DisconnectDB(context.Background()) //nolint:errcheck
	logr.Info("MongoDB connection established")

	if err := models.EnsureIssueIndexes(db.Collection("issues")); err != nil {
		logr.Fatal("Failed to create issue indexes", zap.Error(err))
	}
	if err := models.EnsureUserIndexes(db.Collection("users")); err != nil {
		logr.Fatal("Failed to create user indexes", zap.Error(err))
	}

	redisClient, err := config.ConnectRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	logr.Info("Redis connection established")

	uploader, err := utils.NewCloudinaryUploader(cfg.Cloudinary)
	if err != nil {
		logr.Fatal("Failed to init Cloudinary", zap.Error(err))
	}

	issueStore := stores.NewIssueStore(config.GetCollection("issues"))
	userStore := stores.NewUserStore(config.GetCollection("users"))

	issueController := controllers.NewIssueController(issueStore, uploader, logr)
	authController := controllers.NewAuthController(userStore, cfg.JWT, cfg.Env, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middlewares.Metrics())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middlewares.AuthMiddleware(cfg.JWT.Secret)
	adminOnly := middlewares.RequireRoles(models.RoleAdmin)
	reportLimit := middlewares.IssueRateLimiter(redisClient, cfg.RateLimit.KeyPrefix, cfg.RateLimit.ReportsPerDay)

	routes.AuthRoutes(r, authController, auth)
	routes.IssueRoutes(r, issueController, auth, adminOnly, reportLimit)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("Server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("Server failed", zap.Error(err))
	}
}
