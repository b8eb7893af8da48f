package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"github.com/joshuaking1/cognispark-api/models"
	"github.com/joshuaking1/cognispark-api/store"
	"github.com/joshuaking1/cognispark-api/study"
	"github.com/joshuaking1/cognispark-api/utils"
)

type DBHandler struct {
	*gorm.DB
	Cards    *store.CardStore
	Sessions *store.SessionStore
	Live     *SessionManager
	Reports  study.ReportGenerator // optional session-recap backend
}

// ownedSet resolves a set by public id and verifies the caller owns it.
// A non-zero status means the request should be rejected with it.
func (db *DBHandler) ownedSet(r *http.Request, publicID string) (*models.FlashcardSet, int) {
	var set models.FlashcardSet
	if err := db.Preload("User").Where("public_id = ?", publicID).First(&set).Error; err != nil {
		return nil, http.StatusNotFound
	}
	auth0ID, ok := utils.GetAuth0ID(r)
	if !ok {
		return nil, http.StatusUnauthorized
	}
	if set.User.Auth0ID != auth0ID {
		return nil, http.StatusForbidden
	}
	return &set, 0
}

// GET /api/sets/{setID}/flashcards/{flashcardID}
func (db *DBHandler) GetFlashcardByID(w http.ResponseWriter, r *http.Request) {
	flashcardID := r.PathValue("flashcardID")
	if flashcardID == "" {
		http.Error(w, "Flashcard ID is required", http.StatusBadRequest)
		return
	}

	var flashcard models.Flashcard
	if err := db.Where("public_id = ?", flashcardID).First(&flashcard).Error; err != nil {
		http.Error(w, "Flashcard not found", http.StatusNotFound)
		return
	}

	utils.WriteJSON(w, http.StatusOK, flashcard)
}

// POST /api/sets/{setID}/flashcards/
func (db *DBHandler) CreateFlashCard(w http.ResponseWriter, r *http.Request) {
	set, status := db.ownedSet(r, r.PathValue("setID"))
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	type flashcardRequest struct {
		Term     string `validate:"required,max=200"`
		Solution string `validate:"required,max=1000"`
		Concept  string `json:"concept" validate:"max=100"`
	}
	var req flashcardRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, "Could not decode request", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Term and solution are required", http.StatusBadRequest)
		return
	}

	publicID, err := gonanoid.New()
	if err != nil {
		log.Printf("CreateFlashCard: Failed to generate ID: %v", err)
		http.Error(w, "Failed to generate ID", http.StatusInternalServerError)
		return
	}

	// New cards start with null scheduling state: always due, never mastered.
	flashcard := models.Flashcard{
		Term:     req.Term,
		Solution: req.Solution,
		Concept:  req.Concept,
		PublicID: publicID,
		SetID:    set.ID,
		UserID:   set.UserID,
	}
	if err := db.Create(&flashcard).Error; err != nil {
		log.Printf("CreateFlashCard: Failed to create flashcard: %v", err)
		http.Error(w, "Failed to create flashcard", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, flashcard)
}

// PUT /api/sets/{setID}/flashcards/{flashcardID}
func (db *DBHandler) UpdateFlashCardByID(w http.ResponseWriter, r *http.Request) {
	set, status := db.ownedSet(r, r.PathValue("setID"))
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	flashcardID := r.PathValue("flashcardID")
	var flashcard models.Flashcard
	if err := db.Where("public_id = ? AND set_id = ?", flashcardID, set.ID).First(&flashcard).Error; err != nil {
		http.Error(w, "Flashcard not found", http.StatusNotFound)
		return
	}

	type flashcardUpdateRequest struct {
		Term     *string `json:"term,omitempty"`
		Solution *string `json:"solution,omitempty"`
		Concept  *string `json:"concept,omitempty"`
	}
	var req flashcardUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Content edits leave scheduling state alone; the card keeps its
	// review history.
	if req.Term != nil {
		flashcard.Term = *req.Term
	}
	if req.Solution != nil {
		flashcard.Solution = *req.Solution
	}
	if req.Concept != nil {
		flashcard.Concept = *req.Concept
	}

	if err := db.Save(&flashcard).Error; err != nil {
		log.Printf("UpdateFlashCardByID: Failed to update flashcard %s: %v", flashcardID, err)
		http.Error(w, "Failed to update flashcard", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, flashcard)
}

// DELETE /api/sets/{setID}/flashcards/{flashcardID}
func (db *DBHandler) DeleteFlashCardByID(w http.ResponseWriter, r *http.Request) {
	set, status := db.ownedSet(r, r.PathValue("setID"))
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	flashcardID := r.PathValue("flashcardID")
	result := db.Where("public_id = ? AND set_id = ?", flashcardID, set.ID).Delete(&models.Flashcard{})
	if result.Error != nil {
		log.Printf("DeleteFlashCardByID: Failed to delete flashcard %s: %v", flashcardID, result.Error)
		http.Error(w, "Failed to delete flashcard", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Flashcard not found", http.StatusNotFound)
		return
	}

	// A live session holding this card skips it at rating time.
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/sets/{setID}/flashcards
func (db *DBHandler) GetFlashcardsForSet(w http.ResponseWriter, r *http.Request) {
	setID := r.PathValue("setID")

	var set models.FlashcardSet
	if err := db.Preload("User").Where("public_id = ?", setID).First(&set).Error; err != nil {
		http.Error(w, "Set not found", http.StatusNotFound)
		return
	}

	if !set.IsPublic {
		auth0ID, ok := utils.GetAuth0ID(r)
		if !ok || set.User.Auth0ID != auth0ID {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var flashcards []models.Flashcard
	if err := db.Where("set_id = ?", set.ID).Find(&flashcards).Error; err != nil {
		http.Error(w, "Failed to fetch flashcards", http.StatusInternalServerError)
		return
	}

	// Lazy migration: generate and save public_id if missing
	for i := range flashcards {
		if flashcards[i].PublicID == "" {
			publicID, err := gonanoid.New()
			if err == nil {
				flashcards[i].PublicID = publicID
				db.Model(&flashcards[i]).Update("public_id", publicID)
			}
		}
	}

	utils.WriteJSON(w, http.StatusOK, flashcards)
}
