package routes

import (
	"strings"

	"leadreminder-backend/config"
	"leadreminder-backend/controllers"
	"leadreminder-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	FrontendURL string
	// JWTSecret enables bearer auth on /api when set.
	JWTSecret string
}

func SetupRouter(rc *controllers.ReminderController, opts Options, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	allowed := []string{"http://localhost:3000", "http://localhost:5173"}
	if opts.FrontendURL != "" {
		allowed = append(allowed, strings.TrimRight(opts.FrontendURL, "/"))
	}
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return AllowOrigin(allowed, origin)
		},
	}))

	r.Use(config.PerformanceLogger(log))

	r.GET("/", rc.Health)
	r.GET("/health", rc.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if opts.JWTSecret != "" {
		api.Use(utils.AuthMiddleware(opts.JWTSecret))
	}
	{
		api.POST("/schedule-reminder", rc.ScheduleReminder)
		api.POST("/cancel-reminder", rc.CancelReminder)
		api.GET("/reminders", rc.ListReminders)
	}

	return r
}

// AllowOrigin accepts listed origins and Vercel preview deployments.
func AllowOrigin(allowed []string, origin string) bool {
	for _, a := range allowed {
		if origin == a {
			return true
		}
	}
	return strings.HasSuffix(origin, ".vercel.app")
}
