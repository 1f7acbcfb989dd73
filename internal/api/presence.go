package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openimsdk/tools/apiresp"
	"github.com/openimsdk/tools/errs"
)

type setTypingReq struct {
	UserID string `json:"user_id" binding:"required"`
}

func (a *communicationApi) setTyping(c *gin.Context) {
	var req setTypingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	conversationID := c.Param("conversationID")
	summary, err := a.deps.ConversationDatabase.GetConversation(c, conversationID)
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	if err := a.deps.PresenceDatabase.SetTyping(c, conversationID, req.UserID, summary.ParticipantIDs); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

func (a *communicationApi) getTypingUsers(c *gin.Context) {
	userIDs, err := a.deps.PresenceDatabase.GetTypingUsers(c, c.Param("conversationID"))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, gin.H{"user_ids": userIDs})
}

type updatePresenceReq struct {
	Status string `json:"status" binding:"required"`
}

func (a *communicationApi) updatePresence(c *gin.Context) {
	var req updatePresenceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := a.deps.PresenceDatabase.UpdatePresence(c, c.Param("userID"), req.Status); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

func (a *communicationApi) heartbeat(c *gin.Context) {
	if err := a.deps.PresenceDatabase.Heartbeat(c, c.Param("userID")); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

func (a *communicationApi) getPresence(c *gin.Context) {
	snapshot, err := a.deps.PresenceDatabase.GetPresence(c, c.Param("userID"))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, snapshot)
}

func (a *communicationApi) getPresences(c *gin.Context) {
	raw := c.Query("user_ids")
	if raw == "" {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg("user_ids required"))
		return
	}
	snapshots, err := a.deps.PresenceDatabase.GetPresences(c, strings.Split(raw, ","))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, gin.H{"presences": snapshots})
}
