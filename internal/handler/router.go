package handler

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/device-license-service/internal/handler/middleware"
	"github.com/makkenzo/device-license-service/internal/ierr"
	"github.com/makkenzo/device-license-service/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	License      *LicenseHandler
	Admin        *AdminHandler
	Auth         *AuthHandler
	Health       *HealthHandler
	AuthService  *service.AuthService
	AllowOrigins []string
	Logger       *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		deps.Logger.Error("Panic recovered", zap.Any("panic", recovered), zap.Stack("stack"))
		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	if len(deps.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(middleware.ErrorHandlerMiddleware(deps.Logger))
	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("%w: %s %s", ierr.ErrNotFound, c.Request.Method, c.Request.URL.Path))
	})

	if deps.Health != nil {
		router.GET("/healthz", deps.Health.Check)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/time", deps.License.ServerTime)
		apiV1.POST("/auth/login", deps.Auth.Login)

		licenseRoutes := apiV1.Group("/license")
		{
			licenseRoutes.POST("/activate", deps.License.Activate)
			licenseRoutes.POST("/check", deps.License.Check)
		}

		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(middleware.AuthMiddleware(deps.AuthService, deps.Logger))
		{
			adminRoutes.GET("/summary", deps.Admin.GetSummary)
			adminRoutes.GET("/tiers", deps.Admin.ListTiers)

			adminRoutes.POST("/licenses/generate", deps.Admin.GenerateLicense)
			adminRoutes.GET("/licenses", deps.Admin.ListLicenses)
			adminRoutes.POST("/licenses/ban", deps.Admin.BanLicense)
			adminRoutes.POST("/licenses/unban", deps.Admin.UnbanLicense)

			adminRoutes.POST("/devices/ban", deps.Admin.BanDevice)
			adminRoutes.POST("/devices/unban", deps.Admin.UnbanDevice)
			adminRoutes.GET("/devices/banned", deps.Admin.ListBannedDevices)
		}
	}

	return router
}
