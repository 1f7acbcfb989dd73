package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openimsdk/tools/apiresp"
	"github.com/openimsdk/tools/errs"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/controller"
	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

type createConversationReq struct {
	Type           string   `json:"type" binding:"required"`
	Name           string   `json:"name"`
	AvatarURL      string   `json:"avatar_url"`
	TeamID         string   `json:"team_id"`
	CreatedBy      string   `json:"created_by" binding:"required"`
	ParticipantIDs []string `json:"participant_ids" binding:"required"`
}

func (a *communicationApi) createConversation(c *gin.Context) {
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	conversation := &model.Conversation{
		Type:      req.Type,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
		TeamID:    req.TeamID,
		CreatedBy: req.CreatedBy,
	}
	participants := make([]*model.Participant, 0, len(req.ParticipantIDs))
	for _, userID := range req.ParticipantIDs {
		role := model.ParticipantRoleMember
		if userID == req.CreatedBy {
			role = model.ParticipantRoleAdmin
		}
		participants = append(participants, &model.Participant{UserID: userID, Role: role})
	}
	if err := a.deps.ConversationDatabase.CreateConversation(c, conversation, participants); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, conversation)
}

func (a *communicationApi) getConversation(c *gin.Context) {
	summary, err := a.deps.ConversationDatabase.GetConversation(c, c.Param("conversationID"))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, summary)
}

func (a *communicationApi) getUserConversations(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	var opts *controller.ConversationListOptions
	if c.Query("type") != "" || c.Query("include_archived") == "true" {
		opts = &controller.ConversationListOptions{
			Type:            c.Query("type"),
			IncludeArchived: c.Query("include_archived") == "true",
		}
	}
	list, err := a.deps.ConversationDatabase.GetUserConversations(c, c.Param("userID"), page, limit, opts)
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, list)
}

type addParticipantsReq struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

func (a *communicationApi) addParticipants(c *gin.Context) {
	var req addParticipantsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	participants := make([]*model.Participant, 0, len(req.UserIDs))
	for _, userID := range req.UserIDs {
		participants = append(participants, &model.Participant{UserID: userID})
	}
	if err := a.deps.ConversationDatabase.AddParticipants(c, c.Param("conversationID"), participants); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

func (a *communicationApi) removeParticipant(c *gin.Context) {
	err := a.deps.ConversationDatabase.RemoveParticipant(c, c.Param("conversationID"), c.Param("userID"))
	if err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

type archiveReq struct {
	Archived bool `json:"archived"`
}

func (a *communicationApi) archiveConversation(c *gin.Context) {
	var req archiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := a.deps.ConversationDatabase.ArchiveConversation(c, c.Param("conversationID"), req.Archived); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}

type setMuteReq struct {
	UserID string `json:"user_id" binding:"required"`
	Muted  bool   `json:"muted"`
}

func (a *communicationApi) setMute(c *gin.Context) {
	var req setMuteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.GinError(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := a.deps.ConversationDatabase.SetMute(c, c.Param("conversationID"), req.UserID, req.Muted); err != nil {
		apiresp.GinError(c, err)
		return
	}
	apiresp.GinSuccess(c, nil)
}
