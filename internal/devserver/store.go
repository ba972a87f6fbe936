package devserver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VPR42/servigo-go/internal/model"
	"github.com/VPR42/servigo-go/internal/util"
)

var errEmailTaken = errors.New("email already registered")

type account struct {
	user         model.User
	passwordHash string
	master       model.MasterProfile
}

type sessionRec struct {
	userID    string
	expiresAt time.Time
}

type chatRec struct {
	id       string
	members  [2]string
	messages []model.Message
}

// Store is the in-memory state behind the development API.
type Store struct {
	mu sync.Mutex

	accounts map[string]*account // by user id
	byEmail  map[string]string   // email -> user id
	sessions map[string]*sessionRec

	services     map[string]*model.Service
	serviceOrder []string
	favorites    map[string]map[string]bool
	orders       map[string]*model.Order
	chats        map[string]*chatRec

	cities     []model.City
	categories []model.Category
	skills     []model.Skill

	nextID int
}

func NewStore() *Store {
	return &Store{
		accounts:  make(map[string]*account),
		byEmail:   make(map[string]string),
		sessions:  make(map[string]*sessionRec),
		services:  make(map[string]*model.Service),
		favorites: make(map[string]map[string]bool),
		orders:    make(map[string]*model.Order),
		chats:     make(map[string]*chatRec),
		cities: []model.City{
			{ID: "city-1", Name: "Minsk"},
			{ID: "city-2", Name: "Gomel"},
		},
		categories: []model.Category{
			{ID: "cat-1", Name: "Repair"},
			{ID: "cat-2", Name: "Cleaning"},
		},
		skills: []model.Skill{
			{ID: "skill-1", Name: "Plumbing"},
			{ID: "skill-2", Name: "Electrics"},
		},
	}
}

func (s *Store) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Store) CreateUser(params model.RegisterParams) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[params.Email]; exists {
		return nil, errEmailTaken
	}

	user := model.User{
		ID:        s.newID("u"),
		Email:     params.Email,
		Name:      params.Name,
		Phone:     params.Phone,
		IsMaster:  params.IsMaster,
		CreatedAt: time.Now().UTC(),
	}
	s.accounts[user.ID] = &account{
		user:         user,
		passwordHash: util.HashToken(params.Password),
		master:       model.MasterProfile{UserID: user.ID},
	}
	s.byEmail[user.Email] = user.ID
	return &user, nil
}

func (s *Store) Authenticate(email, password string) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, false
	}
	acc := s.accounts[id]
	if !util.ConstantTimeEqual(acc.passwordHash, util.HashToken(password)) {
		return nil, false
	}
	user := acc.user
	return &user, true
}

func (s *Store) User(id string) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	user := acc.user
	return &user, true
}

func (s *Store) UpdateUser(id string, params model.UpdateProfileParams) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	if params.Name != nil {
		acc.user.Name = *params.Name
	}
	if params.Phone != nil {
		acc.user.Phone = *params.Phone
	}
	if params.CityID != nil {
		acc.user.CityID = *params.CityID
	}
	if params.AvatarURL != nil {
		acc.user.AvatarURL = *params.AvatarURL
	}
	user := acc.user
	return &user, true
}

func (s *Store) Master(id string) (*model.MasterProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || !acc.user.IsMaster {
		return nil, false
	}
	master := acc.master
	return &master, true
}

func (s *Store) UpdateMaster(id string, params model.UpdateMasterParams) (*model.MasterProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || !acc.user.IsMaster {
		return nil, false
	}
	if params.About != nil {
		acc.master.About = *params.About
	}
	if params.SkillIDs != nil {
		var skills []model.Skill
		for _, wanted := range params.SkillIDs {
			for _, skill := range s.skills {
				if skill.ID == wanted {
					skills = append(skills, skill)
				}
			}
		}
		acc.master.Skills = skills
	}
	master := acc.master
	return &master, true
}

// IssueToken creates a bearer token for the user with the given lifetime.
func (s *Store) IssueToken(userID string, ttl time.Duration) (string, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[util.HashToken(token)] = &sessionRec{
		userID:    userID,
		expiresAt: time.Now().Add(ttl),
	}
	return token, nil
}

// ResolveToken returns the owning user of a live token.
func (s *Store) ResolveToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[util.HashToken(token)]
	if !ok || time.Now().After(rec.expiresAt) {
		return "", false
	}
	return rec.userID, true
}

// RotateToken exchanges a known (possibly expired) token for a fresh one.
func (s *Store) RotateToken(token string, ttl time.Duration) (string, string, bool) {
	s.mu.Lock()
	hash := util.HashToken(token)
	rec, ok := s.sessions[hash]
	if !ok {
		s.mu.Unlock()
		return "", "", false
	}
	delete(s.sessions, hash)
	userID := rec.userID
	s.mu.Unlock()

	fresh, err := s.IssueToken(userID, ttl)
	if err != nil {
		return "", "", false
	}
	return fresh, userID, true
}

func (s *Store) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, util.HashToken(token))
}

// ExpireSessions backdates every live token. Used by tests to simulate
// mid-session token expiry.
func (s *Store) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.sessions {
		rec.expiresAt = time.Now().Add(-time.Minute)
	}
}

// DeleteExpiredSessions removes sessions past their lifetime and reports how
// many were dropped.
func (s *Store) DeleteExpiredSessions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	now := time.Now()
	for hash, rec := range s.sessions {
		if now.After(rec.expiresAt) {
			delete(s.sessions, hash)
			count++
		}
	}
	return count
}

func (s *Store) CreateService(masterID string, params model.CreateServiceParams) *model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := model.Service{
		ID:          s.newID("svc"),
		MasterID:    masterID,
		Title:       params.Title,
		Description: params.Description,
		Price:       params.Price,
		CategoryID:  params.CategoryID,
		CityID:      params.CityID,
		CreatedAt:   time.Now().UTC(),
	}
	s.services[svc.ID] = &svc
	s.serviceOrder = append(s.serviceOrder, svc.ID)
	out := svc
	return &out
}

func (s *Store) Service(id string) (*model.Service, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, false
	}
	out := *svc
	return &out, true
}

func (s *Store) UpdateService(id string, params model.UpdateServiceParams) (*model.Service, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, false
	}
	if params.Title != nil {
		svc.Title = *params.Title
	}
	if params.Description != nil {
		svc.Description = *params.Description
	}
	if params.Price != nil {
		svc.Price = *params.Price
	}
	if params.CategoryID != nil {
		svc.CategoryID = *params.CategoryID
	}
	if params.CityID != nil {
		svc.CityID = *params.CityID
	}
	out := *svc
	return &out, true
}

func (s *Store) SetServiceCover(id, coverURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return false
	}
	svc.CoverURL = coverURL
	return true
}

func (s *Store) DeleteService(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return false
	}
	delete(s.services, id)
	for i, sid := range s.serviceOrder {
		if sid == id {
			s.serviceOrder = append(s.serviceOrder[:i], s.serviceOrder[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) ListServices(filter model.ServiceFilter) model.ServicePage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.Service
	for _, id := range s.serviceOrder {
		svc := s.services[id]
		if filter.CityID != "" && svc.CityID != filter.CityID {
			continue
		}
		if filter.CategoryID != "" && svc.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(svc.Title), strings.ToLower(filter.Query)) {
			continue
		}
		matched = append(matched, *svc)
	}

	total := len(matched)
	if filter.Offset > len(matched) {
		matched = nil
	} else {
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	if matched == nil {
		matched = []model.Service{}
	}
	return model.ServicePage{
		Items:   matched,
		Total:   total,
		HasMore: filter.Offset+len(matched) < total,
	}
}

func (s *Store) AddFavorite(userID, serviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[serviceID]; !ok {
		return false
	}
	if s.favorites[userID] == nil {
		s.favorites[userID] = make(map[string]bool)
	}
	s.favorites[userID][serviceID] = true
	return true
}

func (s *Store) RemoveFavorite(userID, serviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favorites[userID], serviceID)
}

func (s *Store) Favorites(userID string) []model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Service
	for _, id := range s.serviceOrder {
		if s.favorites[userID][id] {
			out = append(out, *s.services[id])
		}
	}
	return out
}

func (s *Store) CreateOrder(clientID string, params model.CreateOrderParams) (*model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[params.ServiceID]
	if !ok {
		return nil, false
	}
	now := time.Now().UTC()
	order := model.Order{
		ID:        s.newID("ord"),
		ServiceID: svc.ID,
		ClientID:  clientID,
		MasterID:  svc.MasterID,
		Status:    model.OrderStatusPending,
		Comment:   params.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.orders[order.ID] = &order

	// Placing an order opens a conversation between client and master.
	s.ensureChatLocked(clientID, svc.MasterID)

	out := order
	return &out, true
}

func (s *Store) Orders(userID string) []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, order := range s.orders {
		if order.ClientID == userID || order.MasterID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) UpdateOrderStatus(id string, status model.OrderStatus) (*model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	out := *order
	return &out, true
}

// EnsureChat returns the conversation between the two users, creating it if
// needed.
func (s *Store) EnsureChat(a, b string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureChatLocked(a, b)
}

func (s *Store) ensureChatLocked(a, b string) string {
	for _, chat := range s.chats {
		if (chat.members[0] == a && chat.members[1] == b) ||
			(chat.members[0] == b && chat.members[1] == a) {
			return chat.id
		}
	}
	chat := &chatRec{id: s.newID("chat"), members: [2]string{a, b}}
	s.chats[chat.id] = chat
	return chat.id
}

func (s *Store) Chats(userID string) []model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Chat
	for _, chat := range s.chats {
		other, ok := chat.counterpart(userID)
		if !ok {
			continue
		}
		entry := model.Chat{ID: chat.id}
		if acc, exists := s.accounts[other]; exists {
			entry.Chatmate = model.ChatmateSummary{
				ID:        acc.user.ID,
				Name:      acc.user.Name,
				AvatarURL: acc.user.AvatarURL,
			}
		}
		if len(chat.messages) > 0 {
			last := chat.messages[len(chat.messages)-1]
			entry.LastMessage = &last
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if out[i].LastMessage != nil {
			ti = out[i].LastMessage.SentAt
		}
		if out[j].LastMessage != nil {
			tj = out[j].LastMessage.SentAt
		}
		return ti.After(tj)
	})
	return out
}

func (s *Store) ChatMessages(chatID string) ([]model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, false
	}
	return append([]model.Message(nil), chat.messages...), true
}

func (s *Store) Chatmate(chatID, userID string) (*model.ChatmateSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, false
	}
	other, ok := chat.counterpart(userID)
	if !ok {
		return nil, false
	}
	acc, ok := s.accounts[other]
	if !ok {
		return nil, false
	}
	return &model.ChatmateSummary{
		ID:        acc.user.ID,
		Name:      acc.user.Name,
		AvatarURL: acc.user.AvatarURL,
	}, true
}

// IsChatMember reports whether the user belongs to the conversation.
func (s *Store) IsChatMember(chatID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return false
	}
	_, member := chat.counterpart(userID)
	return member
}

func (s *Store) AppendMessage(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[msg.ChatID]
	if !ok {
		return false
	}
	chat.messages = append(chat.messages, msg)
	return true
}

func (s *Store) Cities() []model.City         { return s.cities }
func (s *Store) Categories() []model.Category { return s.categories }
func (s *Store) Skills() []model.Skill        { return s.skills }

func (c *chatRec) counterpart(userID string) (string, bool) {
	switch userID {
	case c.members[0]:
		return c.members[1], true
	case c.members[1]:
		return c.members[0], true
	}
	return "", false
}
