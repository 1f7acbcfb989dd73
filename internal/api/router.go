// Package api 通信服务的HTTP入口
// 业务路由覆盖消息、会话、在线状态三组操作，
// admin路由提供缓存指标、清空与预热等运维能力
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/prommetrics"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/controller"
)

// Deps 路由依赖
type Deps struct {
	MsgDatabase          controller.MsgDatabase
	ConversationDatabase controller.ConversationDatabase
	PresenceDatabase     controller.PresenceDatabase
	Metrics              *prommetrics.CacheMetrics
	Rdb                  redis.UniversalClient
	Pool                 *pgxpool.Pool
	PrometheusEnabled    bool
}

// NewRouter 组装全部路由
func NewRouter(deps *Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	a := &communicationApi{deps: deps}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/conversations", a.createConversation)
		v1.GET("/conversations/:conversationID", a.getConversation)
		v1.GET("/users/:userID/conversations", a.getUserConversations)
		v1.POST("/conversations/:conversationID/participants", a.addParticipants)
		v1.DELETE("/conversations/:conversationID/participants/:userID", a.removeParticipant)
		v1.POST("/conversations/:conversationID/archive", a.archiveConversation)
		v1.POST("/conversations/:conversationID/mute", a.setMute)

		v1.POST("/conversations/:conversationID/messages", a.sendMessage)
		v1.GET("/conversations/:conversationID/messages", a.getConversationMessages)
		v1.GET("/messages/:messageID", a.getMessage)
		v1.PUT("/messages/:messageID", a.editMessage)
		v1.DELETE("/messages/:messageID", a.revokeMessage)
		v1.POST("/conversations/:conversationID/read", a.markRead)
		v1.GET("/conversations/:conversationID/unread", a.getUnreadCount)

		v1.POST("/conversations/:conversationID/typing", a.setTyping)
		v1.GET("/conversations/:conversationID/typing", a.getTypingUsers)
		v1.PUT("/presence/:userID", a.updatePresence)
		v1.POST("/presence/:userID/heartbeat", a.heartbeat)
		v1.GET("/presence/:userID", a.getPresence)
		v1.GET("/presence", a.getPresences)
	}

	r.GET("/healthz", a.healthz)
	admin := r.Group("/admin/cache")
	{
		admin.GET("/metrics", a.cacheMetrics)
		admin.POST("/clear", a.cacheClear)
		admin.POST("/warm/conversations/:conversationID", a.warmConversationTimeline)
		admin.POST("/warm/users/:userID/conversations", a.warmUserConversations)
	}
	if deps.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return r
}

type communicationApi struct {
	deps *Deps
}
