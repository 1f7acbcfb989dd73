package controller

import (
	"context"
	"sync"
	"time"

	"github.com/openimsdk/tools/errs"

	"github.com/Stormrider66/hockey-hub-sub002/pkg/common/storage/model"
)

// 协调器测试用的内存桩实现
// 函数字段非空时优先调用，便于单个用例注入失败或定制返回；
// 默认行为是一个最小的内存存储

type stubMsgDB struct {
	mu       sync.Mutex
	messages map[string]*model.Message
	created  []string

	createFn      func(ctx context.Context, msg *model.Message) error
	countUnreadFn func(ctx context.Context, conversationID, userID string, lastReadAt time.Time) (int64, error)
}

func newStubMsgDB() *stubMsgDB {
	return &stubMsgDB{messages: make(map[string]*model.Message)}
}

func (s *stubMsgDB) Create(ctx context.Context, msg *model.Message) error {
	if s.createFn != nil {
		return s.createFn(ctx, msg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
	s.created = append(s.created, msg.ID)
	return nil
}

func (s *stubMsgDB) Take(ctx context.Context, messageID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("message not found", "messageID", messageID)
	}
	return msg, nil
}

func (s *stubMsgDB) sorted(conversationID string) []*model.Message {
	var msgs []*model.Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			msgs = append(msgs, msg)
		}
	}
	for i := 0; i < len(msgs); i++ {
		for j := i + 1; j < len(msgs); j++ {
			if msgs[j].CreatedAt.After(msgs[i].CreatedAt) {
				msgs[i], msgs[j] = msgs[j], msgs[i]
			}
		}
	}
	return msgs
}

func (s *stubMsgDB) FindRecent(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sorted(conversationID)
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *stubMsgDB) FindBefore(ctx context.Context, conversationID string, before time.Time, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []*model.Message
	for _, msg := range s.sorted(conversationID) {
		if msg.CreatedAt.Before(before) {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *stubMsgDB) FindAfter(ctx context.Context, conversationID string, afterID string, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	anchor, ok := s.messages[afterID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("anchor not found")
	}
	msgs := s.sorted(conversationID)
	var after []*model.Message
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].CreatedAt.After(anchor.CreatedAt) {
			after = append(after, msgs[i])
		}
	}
	if len(after) > limit {
		after = after[:limit]
	}
	return after, nil
}

func (s *stubMsgDB) Search(ctx context.Context, conversationID, keyword string, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []*model.Message
	for _, msg := range s.sorted(conversationID) {
		if msg.DeletedAt == nil && msg.Content == keyword {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func (s *stubMsgDB) TakeLast(ctx context.Context, conversationID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sorted(conversationID)
	if len(msgs) == 0 {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation empty")
	}
	return msgs[0], nil
}

func (s *stubMsgDB) UpdateContent(ctx context.Context, messageID, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("message not found")
	}
	msg.Content = content
	msg.EditedAt = &editedAt
	return nil
}

func (s *stubMsgDB) SoftDelete(ctx context.Context, messageID string, deletedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("message not found")
	}
	msg.DeletedAt = &deletedAt
	return nil
}

func (s *stubMsgDB) CountUnread(ctx context.Context, conversationID, userID string, lastReadAt time.Time) (int64, error) {
	if s.countUnreadFn != nil {
		return s.countUnreadFn(ctx, conversationID, userID, lastReadAt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID && msg.SenderID != userID &&
			msg.CreatedAt.After(lastReadAt) && msg.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

type stubConversationDB struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	touched       map[string]time.Time
}

func newStubConversationDB() *stubConversationDB {
	return &stubConversationDB{
		conversations: make(map[string]*model.Conversation),
		touched:       make(map[string]time.Time),
	}
}

func (s *stubConversationDB) Create(ctx context.Context, conversation *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversation.ID] = conversation
	return nil
}

func (s *stubConversationDB) Take(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.conversations[conversationID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation not found")
	}
	return conversation, nil
}

func (s *stubConversationDB) UpdateByMap(ctx context.Context, conversationID string, args map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.conversations[conversationID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("conversation not found")
	}
	if v, ok := args["is_archived"]; ok {
		conversation.IsArchived = v.(bool)
	}
	return nil
}

func (s *stubConversationDB) Touch(ctx context.Context, conversationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[conversationID] = at
	if conversation, ok := s.conversations[conversationID]; ok && at.After(conversation.UpdatedAt) {
		conversation.UpdatedAt = at
	}
	return nil
}

func (s *stubConversationDB) FindByUser(ctx context.Context, userID, convType string, includeArchived bool, page, limit int) (int64, []*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.Conversation
	for _, conversation := range s.conversations {
		if convType != "" && conversation.Type != convType {
			continue
		}
		if !includeArchived && conversation.IsArchived {
			continue
		}
		result = append(result, conversation)
	}
	return int64(len(result)), result, nil
}

type stubParticipantDB struct {
	mu           sync.Mutex
	participants map[string]*model.Participant // key: conversationID+"/"+userID
	userIDs      map[string][]string           // conversationID -> userIDs
	lastRead     map[string]time.Time

	findUserIDsFn func(ctx context.Context, conversationID string) ([]string, error)
}

func newStubParticipantDB() *stubParticipantDB {
	return &stubParticipantDB{
		participants: make(map[string]*model.Participant),
		userIDs:      make(map[string][]string),
		lastRead:     make(map[string]time.Time),
	}
}

func (s *stubParticipantDB) seed(conversationID string, userIDs ...string) {
	for _, userID := range userIDs {
		s.Add(context.Background(), []*model.Participant{{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           model.ParticipantRoleMember,
		}})
	}
}

func (s *stubParticipantDB) Add(ctx context.Context, participants []*model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, participant := range participants {
		key := participant.ConversationID + "/" + participant.UserID
		if _, ok := s.participants[key]; !ok {
			s.userIDs[participant.ConversationID] = append(s.userIDs[participant.ConversationID], participant.UserID)
		}
		s.participants[key] = participant
	}
	return nil
}

func (s *stubParticipantDB) Remove(ctx context.Context, conversationID, userID string, leftAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, conversationID+"/"+userID)
	ids := s.userIDs[conversationID]
	for i, id := range ids {
		if id == userID {
			s.userIDs[conversationID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubParticipantDB) Take(ctx context.Context, conversationID, userID string) (*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[conversationID+"/"+userID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("participant not found")
	}
	return participant, nil
}

func (s *stubParticipantDB) FindUserIDs(ctx context.Context, conversationID string) ([]string, error) {
	if s.findUserIDsFn != nil {
		return s.findUserIDsFn(ctx, conversationID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userIDs[conversationID]...), nil
}

func (s *stubParticipantDB) Find(ctx context.Context, conversationID string) ([]*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.Participant
	for _, userID := range s.userIDs[conversationID] {
		result = append(result, s.participants[conversationID+"/"+userID])
	}
	return result, nil
}

func (s *stubParticipantDB) SetLastRead(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRead[conversationID+"/"+userID] = lastReadAt
	if participant, ok := s.participants[conversationID+"/"+userID]; ok && lastReadAt.After(participant.LastReadAt) {
		participant.LastReadAt = lastReadAt
	}
	return nil
}

func (s *stubParticipantDB) SetMute(ctx context.Context, conversationID, userID string, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if participant, ok := s.participants[conversationID+"/"+userID]; ok {
		participant.IsMuted = muted
	}
	return nil
}

type stubMsgCache struct {
	mu        sync.Mutex
	messages  map[string]*model.CachedMessage
	timelines map[string][]*model.CachedMessage

	cacheCalls   int
	timelineDels []string

	cacheMessageFn            func(ctx context.Context, msg *model.CachedMessage) error
	getConversationMessagesFn func(ctx context.Context, conversationID string, limit int, before int64) ([]*model.CachedMessage, error)
}

func newStubMsgCache() *stubMsgCache {
	return &stubMsgCache{
		messages:  make(map[string]*model.CachedMessage),
		timelines: make(map[string][]*model.CachedMessage),
	}
}

func (s *stubMsgCache) CacheMessage(ctx context.Context, msg *model.CachedMessage) error {
	if s.cacheMessageFn != nil {
		return s.cacheMessageFn(ctx, msg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheCalls++
	s.messages[msg.ID] = msg
	s.timelines[msg.ConversationID] = append(s.timelines[msg.ConversationID], msg)
	return nil
}

func (s *stubMsgCache) CacheMessages(ctx context.Context, msgs []*model.CachedMessage) error {
	for _, msg := range msgs {
		if err := s.CacheMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubMsgCache) GetMessage(ctx context.Context, messageID string) (*model.CachedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("message not cached")
	}
	return msg, nil
}

func (s *stubMsgCache) GetConversationMessages(ctx context.Context, conversationID string, limit int, before int64) ([]*model.CachedMessage, error) {
	if s.getConversationMessagesFn != nil {
		return s.getConversationMessagesFn(ctx, conversationID, limit, before)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.CachedMessage
	for _, msg := range s.timelines[conversationID] {
		if before > 0 && msg.CreatedAt.UnixMilli() >= before {
			continue
		}
		result = append(result, msg)
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *stubMsgCache) DelMessages(ctx context.Context, messageIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, messageID := range messageIDs {
		delete(s.messages, messageID)
	}
	return nil
}

func (s *stubMsgCache) DelConversationMessages(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timelines, conversationID)
	s.timelineDels = append(s.timelineDels, conversationID)
	return nil
}

type stubConversationCache struct {
	mu      sync.Mutex
	lists   map[string]*model.ConversationList
	unreads map[string]int64 // conversationID+"/"+userID

	listDels    []string
	summaryDels []string
	patched     []string

	getUnreadCountFn  func(ctx context.Context, conversationID, userID string) (int64, error)
	incrUnreadFn      func(ctx context.Context, conversationID, userID string) (int64, error)
	getConversationFn func(ctx context.Context, conversationID string, fn func(ctx context.Context) (*model.ConversationSummary, error)) (*model.ConversationSummary, error)
}

func newStubConversationCache() *stubConversationCache {
	return &stubConversationCache{
		lists:   make(map[string]*model.ConversationList),
		unreads: make(map[string]int64),
	}
}

func (s *stubConversationCache) SetUserConversationList(ctx context.Context, userID string, list *model.ConversationList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[userID] = list
	return nil
}

func (s *stubConversationCache) GetUserConversationList(ctx context.Context, userID string) (*model.ConversationList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[userID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("list not cached")
	}
	return list, nil
}

func (s *stubConversationCache) UpdateConversationInList(ctx context.Context, userID string, conversation *model.ConversationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[userID]
	if !ok {
		return nil
	}
	if !list.Replace(conversation) {
		return nil
	}
	s.patched = append(s.patched, userID+"/"+conversation.ID)
	return nil
}

func (s *stubConversationCache) DelUserConversationLists(ctx context.Context, userIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, userID := range userIDs {
		delete(s.lists, userID)
		s.listDels = append(s.listDels, userID)
	}
	return nil
}

func (s *stubConversationCache) GetConversation(ctx context.Context, conversationID string, fn func(ctx context.Context) (*model.ConversationSummary, error)) (*model.ConversationSummary, error) {
	if s.getConversationFn != nil {
		return s.getConversationFn(ctx, conversationID, fn)
	}
	return fn(ctx)
}

func (s *stubConversationCache) DelConversation(ctx context.Context, conversationIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryDels = append(s.summaryDels, conversationIDs...)
	return nil
}

func (s *stubConversationCache) SetUnreadCount(ctx context.Context, conversationID, userID string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreads[conversationID+"/"+userID] = count
	return nil
}

func (s *stubConversationCache) GetUnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	if s.getUnreadCountFn != nil {
		return s.getUnreadCountFn(ctx, conversationID, userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count, ok := s.unreads[conversationID+"/"+userID]
	if !ok {
		return 0, errs.ErrRecordNotFound.WrapMsg("unread not cached")
	}
	return count, nil
}

func (s *stubConversationCache) IncrUnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	if s.incrUnreadFn != nil {
		return s.incrUnreadFn(ctx, conversationID, userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreads[conversationID+"/"+userID]++
	return s.unreads[conversationID+"/"+userID], nil
}

func (s *stubConversationCache) ResetUnreadCount(ctx context.Context, conversationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unreads, conversationID+"/"+userID)
	return nil
}

type stubPresenceCache struct {
	mu        sync.Mutex
	snapshots map[string]*model.PresenceSnapshot
	typing    map[string][]string
}

func newStubPresenceCache() *stubPresenceCache {
	return &stubPresenceCache{
		snapshots: make(map[string]*model.PresenceSnapshot),
		typing:    make(map[string][]string),
	}
}

func (s *stubPresenceCache) SetUserTyping(ctx context.Context, conversationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing[conversationID] = append(s.typing[conversationID], userID)
	return nil
}

func (s *stubPresenceCache) GetTypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing[conversationID], nil
}

func (s *stubPresenceCache) SetUserPresence(ctx context.Context, presence *model.PresenceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[presence.UserID] = presence
	return nil
}

func (s *stubPresenceCache) GetUserPresence(ctx context.Context, userID string) (*model.PresenceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[userID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("presence not cached")
	}
	return snapshot, nil
}

type emittedEvent struct {
	userID string
	event  string
}

type stubEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (s *stubEmitter) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emittedEvent{userID: userID, event: event})
	return nil
}

func (s *stubEmitter) EmitToUsers(ctx context.Context, userIDs []string, event string, payload any) error {
	for _, userID := range userIDs {
		if err := s.EmitToUser(ctx, userID, event, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubEmitter) Close() error { return nil }

func (s *stubEmitter) eventsFor(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []string
	for _, e := range s.events {
		if e.userID == userID {
			result = append(result, e.event)
		}
	}
	return result
}
