package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openimsdk/tools/apiresp"
	"github.com/openimsdk/tools/errs"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

type sendMessageReq struct {
	SenderID    string                    `json:"sender_id" binding:"required"`
	Content     string                    `json:"content"`
	Type        string                    `json:"type"`
	ReplyToID   string                    `json:"reply_to_id"`
	Attachments []model.MessageAttachment `json:"attachments"`
}

func (a *communicationApi) sendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	msg, err := a.deps.MsgDatabase.SendMsg(c, &model.Message{
		ConversationID: c.Param("conversationID"),
		SenderID:       req.SenderID,
		Content:        req.Content,
		Type:           req.Type,
		ReplyToID:      req.ReplyToID,
		Attachments:    req.Attachments,
	})
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, msg)
}

func (a *communicationApi) getMessage(c *gin.Context) {
	msg, err := a.deps.MsgDatabase.GetMessage(c, c.Param("messageID"))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, msg)
}

func (a *communicationApi) getConversationMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := a.deps.MsgDatabase.GetConversationMessages(c, c.Param("conversationID"),
		limit, c.Query("before_id"), c.Query("after_id"), c.Query("keyword"))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, gin.H{"messages": msgs})
}

type editMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (a *communicationApi) editMessage(c *gin.Context) {
	var req editMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	msg, err := a.deps.MsgDatabase.EditMsg(c, c.Param("messageID"), req.Content)
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, msg)
}

func (a *communicationApi) revokeMessage(c *gin.Context) {
	if err := a.deps.MsgDatabase.RevokeMsg(c, c.Param("messageID")); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

type markReadReq struct {
	UserID string `json:"user_id" binding:"required"`
}

func (a *communicationApi) markRead(c *gin.Context) {
	var req markReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := a.deps.MsgDatabase.MarkConversationRead(c, c.Param("conversationID"), req.UserID); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

func (a *communicationApi) getUnreadCount(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg("user_id required"))
		return
	}
	count, err := a.deps.ConversationDatabase.GetUnreadCount(c, c.Param("conversationID"), userID)
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, gin.H{"unread_count": count})
}
