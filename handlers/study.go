package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/joshuaking1/cognispark-api/middleware"
	"github.com/joshuaking1/cognispark-api/models"
	"github.com/joshuaking1/cognispark-api/srs"
	"github.com/joshuaking1/cognispark-api/store"
	"github.com/joshuaking1/cognispark-api/study"
	"github.com/joshuaking1/cognispark-api/utils"
)

var validate = validator.New()

// SessionManager holds the live study sessions of this process. It is
// owned by the handler value built in main, not package state, and each
// entry is removed the moment its session completes or is abandoned.
// Session operations are serialized per entry.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	mu   sync.Mutex
	sess *study.Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*managedSession)}
}

func (m *SessionManager) add(s *study.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = &managedSession{sess: s}
}

func (m *SessionManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// with runs fn against one session, holding that session's lock. A
// session owned by a different user is reported as missing, not
// forbidden, so session ids cannot be probed.
func (m *SessionManager) with(id string, ownerID uint, fn func(*study.Session) error) (bool, error) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || entry.sess.OwnerID() != ownerID {
		return false, nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return true, fn(entry.sess)
}

// currentUser resolves the authenticated user, preferring the record the
// sync middleware already attached to the context.
func (db *DBHandler) currentUser(r *http.Request) (*models.User, bool) {
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		return user, true
	}
	auth0ID, ok := utils.GetAuth0ID(r)
	if !ok {
		return nil, false
	}
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

type sessionCardView struct {
	CardID   string `json:"cardId"`
	Term     string `json:"term"`
	Solution string `json:"solution"`
	SetTitle string `json:"setTitle"`
}

type sessionStateView struct {
	SessionID string           `json:"sessionId"`
	Phase     string           `json:"phase"`
	Position  int              `json:"position"`
	Total     int              `json:"totalCards"`
	Card      *sessionCardView `json:"card,omitempty"`
}

type summaryView struct {
	SessionID         string         `json:"sessionId"`
	SetTitles         []string       `json:"setTitles"`
	CardsReviewed     int            `json:"cardsReviewed"`
	Performance       map[string]int `json:"performance"`
	MasteryPercentage *int           `json:"masteryPercentage"`
	CompletedAt       time.Time      `json:"completedAt"`
	Report            string         `json:"report,omitempty"`
}

func sessionState(s *study.Session) sessionStateView {
	view := sessionStateView{
		SessionID: s.ID(),
		Phase:     s.Phase().String(),
		Position:  s.Position(),
		Total:     s.Len(),
	}
	if card, ok := s.Current(); ok {
		view.Card = &sessionCardView{
			CardID:   card.PublicID,
			Term:     card.Term,
			Solution: card.Solution,
			SetTitle: card.SetTitle,
		}
	}
	return view
}

// attachReport enriches a completed-session view with a generated recap
// when a report backend is configured. Failures only cost the recap.
func (db *DBHandler) attachReport(ctx context.Context, s *study.Session, user *models.User, view *summaryView) {
	if db.Reports == nil {
		return
	}
	text, err := db.Reports.GenerateReport(ctx, s.Records(), s.SetTitles(), user.GradeLevel)
	if err != nil {
		log.Printf("attachReport: Recap unavailable for session %s: %v", s.ID(), err)
		return
	}
	view.Report = text
}

func summaryState(sum study.Summary) summaryView {
	perf := make(map[string]int, len(sum.Performance))
	for q := srs.Again; q <= srs.Easy; q++ {
		perf[q.String()] = sum.Performance[q]
	}
	view := summaryView{
		SessionID:     sum.SessionID,
		SetTitles:     sum.SetTitles,
		CardsReviewed: sum.CardsReviewed,
		Performance:   perf,
		CompletedAt:   sum.CompletedAt,
	}
	if sum.Mastery != nil {
		pct := sum.Mastery.Percentage
		view.MasteryPercentage = &pct
	}
	return view
}

// POST /api/study/sessions
func (db *DBHandler) StartStudySession(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type startSessionRequest struct {
		SetIDs  []string `json:"setIds" validate:"required,min=1,dive,required"`
		Shuffle bool     `json:"shuffle"`
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "At least one set ID is required", http.StatusBadRequest)
		return
	}

	// Resolve public ids; sets the caller does not own are filtered out,
	// not rejected.
	var sets []models.FlashcardSet
	if err := db.Where("public_id IN ? AND user_id = ?", req.SetIDs, user.ID).Find(&sets).Error; err != nil {
		log.Printf("StartStudySession: Failed to resolve sets: %v", err)
		http.Error(w, "Failed to resolve sets", http.StatusInternalServerError)
		return
	}
	if len(sets) == 0 {
		http.Error(w, "No accessible sets found", http.StatusNotFound)
		return
	}
	setIDs := make([]uint, len(sets))
	for i, s := range sets {
		setIDs[i] = s.ID
	}

	due, err := db.Cards.DueAcrossSets(r.Context(), setIDs, user.ID, time.Now())
	if err != nil {
		log.Printf("StartStudySession: Due-card selection failed: %v", err)
		http.Error(w, "Failed to load due cards", http.StatusInternalServerError)
		return
	}

	queue := make([]study.Card, len(due))
	for i, d := range due {
		queue[i] = study.Card{
			ID:         d.Card.ID,
			PublicID:   d.Card.PublicID,
			Term:       d.Card.Term,
			Solution:   d.Card.Solution,
			SetID:      d.SetID,
			SetTitle:   d.SetTitle,
			Scheduling: store.SchedulingState(d.Card),
		}
	}

	sess, err := study.New(user.ID, queue, study.Config{
		Cards:     db.Cards,
		Mastery:   db.Cards,
		Summaries: db.Sessions,
		Shuffle:   req.Shuffle,
	})
	if errors.Is(err, study.ErrNoCards) {
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"cardsDue": 0,
			"message":  "No cards are due for review",
		})
		return
	}
	if err != nil {
		log.Printf("StartStudySession: %v", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	db.Live.add(sess)
	log.Printf("StartStudySession: Started session %s with %d cards for userID=%d", sess.ID(), sess.Len(), user.ID)

	utils.WriteJSON(w, http.StatusCreated, sessionState(sess))
}

// GET /api/study/sessions/{sessionID}/current
func (db *DBHandler) GetSessionCard(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var view sessionStateView
	found, _ := db.Live.with(r.PathValue("sessionID"), user.ID, func(s *study.Session) error {
		view = sessionState(s)
		return nil
	})
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, view)
}

// POST /api/study/sessions/{sessionID}/rate
func (db *DBHandler) RateSessionCard(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type rateRequest struct {
		CardID  string `json:"cardId" validate:"required"`
		Quality *int   `json:"quality" validate:"required,min=0,max=3"`
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "cardId and a quality between 0 and 3 are required", http.StatusBadRequest)
		return
	}

	sessionID := r.PathValue("sessionID")
	var response interface{}
	found, err := db.Live.with(sessionID, user.ID, func(s *study.Session) error {
		if err := s.Rate(r.Context(), req.CardID, srs.Quality(*req.Quality)); err != nil {
			return err
		}
		if s.Phase() == study.Closed {
			sum, _ := s.Summary()
			view := summaryState(sum)
			db.attachReport(r.Context(), s, user, &view)
			response = map[string]interface{}{"completed": true, "summary": view}
		} else {
			response = sessionState(s)
		}
		return nil
	})
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, srs.ErrInvalidQuality):
		http.Error(w, "Quality must be between 0 and 3", http.StatusBadRequest)
		return
	case errors.Is(err, study.ErrNotCurrentCard):
		http.Error(w, "Card is not up for rating", http.StatusConflict)
		return
	case errors.Is(err, study.ErrSessionClosed):
		http.Error(w, "Session already completed", http.StatusConflict)
		return
	default:
		// The cursor did not advance; the client may retry the same card.
		log.Printf("RateSessionCard: Write failed for session %s: %v", sessionID, err)
		http.Error(w, "Failed to save review, please retry", http.StatusInternalServerError)
		return
	}

	if m, ok := response.(map[string]interface{}); ok && m["completed"] == true {
		db.Live.remove(sessionID)
		log.Printf("RateSessionCard: Session %s completed for userID=%d", sessionID, user.ID)
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// POST /api/study/sessions/{sessionID}/navigate
func (db *DBHandler) NavigateSession(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type navigateRequest struct {
		Direction *int `json:"direction" validate:"required,oneof=-1 1"`
	}
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Direction must be 1 or -1", http.StatusBadRequest)
		return
	}

	var view sessionStateView
	found, err := db.Live.with(r.PathValue("sessionID"), user.ID, func(s *study.Session) error {
		if err := s.Navigate(*req.Direction); err != nil {
			return err
		}
		view = sessionState(s)
		return nil
	})
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, study.ErrOutOfRange) || errors.Is(err, study.ErrInvalidDirection) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "Session already completed", http.StatusConflict)
		return
	}

	utils.WriteJSON(w, http.StatusOK, view)
}

// POST /api/study/sessions/{sessionID}/shuffle
func (db *DBHandler) ShuffleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var view sessionStateView
	found, err := db.Live.with(r.PathValue("sessionID"), user.ID, func(s *study.Session) error {
		if err := s.Shuffle(); err != nil {
			return err
		}
		view = sessionState(s)
		return nil
	})
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Session already completed", http.StatusConflict)
		return
	}

	utils.WriteJSON(w, http.StatusOK, view)
}

// POST /api/study/sessions/{sessionID}/complete
func (db *DBHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := r.PathValue("sessionID")
	var view summaryView
	found, err := db.Live.with(sessionID, user.ID, func(s *study.Session) error {
		if err := s.Complete(r.Context()); err != nil {
			return err
		}
		sum, _ := s.Summary()
		view = summaryState(sum)
		db.attachReport(r.Context(), s, user, &view)
		return nil
	})
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, study.ErrSessionClosed) {
		http.Error(w, "Session already completed", http.StatusConflict)
		return
	}
	if err != nil {
		// Per-card reviews are already durable; only the summary commit
		// failed, and the session stays open for another attempt.
		log.Printf("CompleteSession: Summary write failed for session %s: %v", sessionID, err)
		http.Error(w, "Failed to save session summary, please retry", http.StatusInternalServerError)
		return
	}

	db.Live.remove(sessionID)
	log.Printf("CompleteSession: Session %s completed for userID=%d", sessionID, user.ID)

	utils.WriteJSON(w, http.StatusOK, view)
}

// DELETE /api/study/sessions/{sessionID}
func (db *DBHandler) AbandonSession(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := r.PathValue("sessionID")
	found, _ := db.Live.with(sessionID, user.ID, func(s *study.Session) error { return nil })
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	// Already-persisted card reviews stay durable; no summary is written.
	db.Live.remove(sessionID)
	log.Printf("AbandonSession: Session %s abandoned by userID=%d", sessionID, user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/sets/{setID}/due
func (db *DBHandler) GetDueCards(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	setID := r.PathValue("setID")
	var set models.FlashcardSet
	if err := db.Where("public_id = ? AND user_id = ?", setID, user.ID).First(&set).Error; err != nil {
		http.Error(w, "Set not found", http.StatusNotFound)
		return
	}

	cards, err := db.Cards.DueForSet(r.Context(), set.ID, user.ID, time.Now())
	if err != nil {
		log.Printf("GetDueCards: %v", err)
		http.Error(w, "Failed to load due cards", http.StatusInternalServerError)
		return
	}

	type dueCardView struct {
		CardID  string     `json:"cardId"`
		Term    string     `json:"term"`
		DueDate *time.Time `json:"dueDate"`
	}
	views := make([]dueCardView, len(cards))
	for i, c := range cards {
		views[i] = dueCardView{CardID: c.PublicID, Term: c.Term, DueDate: c.DueDate}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"setTitle": set.Title,
		"dueCount": len(views),
		"cards":    views,
	})
}

// GET /api/sets/{setID}/mastery
func (db *DBHandler) GetSetMastery(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	setID := r.PathValue("setID")
	var set models.FlashcardSet
	if err := db.Where("public_id = ? AND user_id = ?", setID, user.ID).First(&set).Error; err != nil {
		http.Error(w, "Set not found", http.StatusNotFound)
		return
	}

	mastery, err := db.Cards.SetMastery(r.Context(), user.ID, []uint{set.ID})
	if err != nil {
		log.Printf("GetSetMastery: %v", err)
		http.Error(w, "Failed to compute mastery", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, mastery)
}

// GET /api/users/{nickname}/study-sessions
func (db *DBHandler) GetStudyHistory(w http.ResponseWriter, r *http.Request) {
	nickname := r.PathValue("nickname")
	if nickname == "" {
		http.Error(w, "Nickname is required", http.StatusBadRequest)
		return
	}

	var target models.User
	if err := db.Where("nickname = ?", nickname).First(&target).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	// Study history is private to its owner.
	auth0ID, ok := utils.GetAuth0ID(r)
	if !ok || target.Auth0ID != auth0ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	sessions, err := db.Sessions.ForUser(r.Context(), target.ID)
	if err != nil {
		log.Printf("GetStudyHistory: %v", err)
		http.Error(w, "Failed to load study history", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, sessions)
}
