package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurora-addict/backend/config"
	"aurora-addict/backend/internal/api/handler"
	"aurora-addict/backend/internal/api/middleware"
	"aurora-addict/backend/pkg/jwt"
	"aurora-addict/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 写接口限流
	limited := func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		limited = middleware.RateLimit(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 公开访问：活动列表、详情与日历（私密活动凭直链访问）
		v1.GET("/hunts", h.Hunt.ListPublicHunts)
		v1.GET("/hunts/:id", h.Hunt.GetHunt)
		v1.GET("/hunts/:id/calendar.ics", h.Export.ExportCalendar)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
		{
			// 认证模块
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 活动模块
			authorized.GET("/me/hunts", h.Hunt.ListMyHunts)
			hunts := authorized.Group("/hunts")
			{
				hunts.POST("", limited, h.Hunt.CreateHunt)
				hunts.PUT("/:id", limited, h.Hunt.UpdateHunt)
				hunts.DELETE("/:id", h.Hunt.DeleteHunt)

				// 参与者
				hunts.POST("/:id/join", limited, h.Participant.Join)
				hunts.POST("/:id/leave", limited, h.Participant.Leave)
				hunts.GET("/:id/eligibility", h.Participant.Eligibility)
				hunts.POST("/:id/payment/mark", limited, h.Participant.MarkPayment)
				hunts.GET("/:id/participants", h.Participant.ListParticipants)
				hunts.GET("/:id/participants/export", h.Export.ExportRoster)
				hunts.POST("/:id/participants/:userId/approve", h.Participant.Approve)
				hunts.POST("/:id/participants/:userId/reject", h.Participant.Reject)
				hunts.POST("/:id/participants/:userId/confirm-payment", h.Participant.ConfirmPayment)
				hunts.DELETE("/:id/participants/:userId", h.Participant.Remove)
			}

			// 通知模块
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListNotifications)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
			}

			// 运维
			authorized.POST("/admin/sweep", middleware.RoleAuth("admin"), h.Admin.SweepExpired)
		}
	}

	return r
}
