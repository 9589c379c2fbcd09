package main

import (
	"log"
	"os"

	"traveo-backend/activities"
	"traveo-backend/assist"
	"traveo-backend/conn"
	"traveo-backend/login"
	"traveo-backend/media"
	"traveo-backend/messages"
	"traveo-backend/migrations"
	"traveo-backend/plans"
	"traveo-backend/profile"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[BOOT] no .env file, using process environment")
	}

	db, err := conn.NewMySQL()
	if err != nil {
		log.Fatalf("[BOOT] mysql connection failed: %v", err)
	}
	migrations.Init(db)
	if err := migrations.Migrate(); err != nil {
		log.Fatalf("[BOOT] migrations failed: %v", err)
	}
	if err := migrations.SeedDefaultPlans(); err != nil {
		log.Fatalf("[BOOT] plan seed failed: %v", err)
	}

	uploader, err := media.NewCloudinaryFromEnv()
	if err != nil {
		log.Fatalf("[BOOT] cloudinary config invalid: %v", err)
	}
	if uploader == nil {
		log.Printf("[BOOT] CLOUDINARY_URL not set, photo uploads disabled")
	}

	r := gin.Default()

	// Sessions
	r.POST("/login", login.Handler)
	r.POST("/register", login.RegisterHandler)
	r.POST("/logout", login.LogoutHandler)
	r.POST("/refresh-token", login.RefreshHandler)
	r.GET("/session", login.SessionHandler)
	r.POST("/change-password", login.ChangePasswordHandler)
	r.Use(login.TokenExpiryHeader())

	// Activities
	var up media.Uploader
	if uploader != nil {
		up = uploader
	}
	coord := media.NewCoordinator(up)
	actRepo := activities.NewRepository(db)
	actSvc := activities.NewService(actRepo, coord)
	activities.NewHandler(actSvc, actRepo).RegisterRoutes(r)

	// Direct messages
	messages.NewHandler(messages.NewRepository(db), up).RegisterRoutes(r)

	// Plans and payments
	planRepo := plans.NewRepository(db)
	stripeSvc := plans.NewStripeFromEnv(planRepo)
	if stripeSvc == nil {
		log.Printf("[BOOT] STRIPE_SECRET_KEY not set, payments disabled")
	}
	plans.NewHandler(planRepo, stripeSvc).RegisterRoutes(r)

	// Profile
	profile.NewHandler(up, actRepo).RegisterRoutes(r)

	// AI assistant
	var ai assist.AIClient
	if c := assist.NewFromEnv(); c != nil {
		ai = c
	} else {
		log.Printf("[BOOT] OPENAI_API_KEY not set, description suggestions disabled")
	}
	assist.NewHandler(ai).RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("[BOOT] listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("[BOOT] server stopped: %v", err)
	}
}
