package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openimsdk/tools/apiresp"
	"github.com/openimsdk/tools/errs"

	rediscache "github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/cache/redis"
)

func (a *communicationApi) healthz(c *gin.Context) {
	if err := a.deps.Rdb.Ping(c).Err(); err != nil {
		apiresp.GinError(c, errs.WrapMsg(err, "redis unreachable"))
		return
	}
	if err := a.deps.Pool.Ping(c); err != nil {
		apiresp.GinError(c, errs.WrapMsg(err, "postgres unreachable"))
		return
	}
	apiresp.GinSuccess(c, gin.H{"status": "ok"})
}

func (a *communicationApi) cacheMetrics(c *gin.Context) {
	apiresp.GinSuccess(c, a.deps.Metrics.Snapshot())
}

func (a *communicationApi) cacheClear(c *gin.Context) {
	deleted, err := rediscache.ClearAll(c, a.deps.Rdb)
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	a.deps.Metrics.Reset()
	apiresp.GinSuccess(c, gin.H{"deleted": deleted})
}

func (a *communicationApi) warmConversationTimeline(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	warmed, err := a.deps.MsgDatabase.WarmConversationTimeline(c, c.Param("conversationID"), limit)
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, gin.H{"warmed": warmed})
}

func (a *communicationApi) warmUserConversations(c *gin.Context) {
	warmed, err := a.deps.ConversationDatabase.WarmUserConversations(c, c.Param("userID"))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, gin.H{"warmed": warmed})
}
