package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"github.com/joshuaking1/cognispark-api/models"
	"github.com/joshuaking1/cognispark-api/utils"
)

// GET /api/sets/{setID}
func (db *DBHandler) GetSetByID(w http.ResponseWriter, r *http.Request) {
	setID := r.PathValue("setID")
	var set models.FlashcardSet
	// Preload the User to access Auth0ID without a separate query
	if err := db.Preload("User").Preload("Flashcards").Where("public_id = ?", setID).First(&set).Error; err != nil {
		log.Printf("GetSetByID: Set not found for public_id=%s: %v", setID, err)
		http.Error(w, fmt.Sprintf("Set with ID %s not found", setID), http.StatusNotFound)
		return
	}

	auth0ID, ok := utils.GetAuth0ID(r)
	isOwner := ok && set.User.Auth0ID == auth0ID

	if !set.IsPublic && !isOwner {
		log.Printf("GetSetByID: Forbidden access for set %s by auth0ID=%s", setID, auth0ID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	type SetResponse struct {
		models.FlashcardSet
		IsOwner  bool `json:"IsOwner"`
		DueCount *int `json:"DueCount,omitempty"`
	}
	response := SetResponse{
		FlashcardSet: set,
		IsOwner:      isOwner,
	}

	// The owner also sees how much of the set is waiting for review.
	if isOwner {
		if due, err := db.Cards.DueForSet(r.Context(), set.ID, set.UserID, time.Now()); err == nil {
			n := len(due)
			response.DueCount = &n
		} else {
			log.Printf("GetSetByID: Due count unavailable for set %s: %v", setID, err)
		}
	}

	utils.WriteJSON(w, http.StatusAccepted, response)
}

// POST /api/sets
func (db *DBHandler) CreateFlashCardSet(w http.ResponseWriter, r *http.Request) {
	user, ok := db.currentUser(r)
	if !ok {
		log.Printf("CreateFlashCardSet: Unauthorized request")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type createSetRequest struct {
		Title    string `json:"Title" validate:"required,max=100"`
		IsPublic bool   `json:"IsPublic"`
	}
	var req createSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("CreateFlashCardSet: Invalid request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	publicID, err := gonanoid.New()
	if err != nil {
		log.Printf("CreateFlashCardSet: Failed to generate publicID: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	set := models.FlashcardSet{
		Title:    req.Title,
		UserID:   user.ID,
		IsPublic: req.IsPublic,
		PublicID: publicID,
	}
	if err := db.Create(&set).Error; err != nil {
		log.Printf("CreateFlashCardSet: Failed to create set: %v", err)
		http.Error(w, "Failed to create set", http.StatusInternalServerError)
		return
	}

	log.Printf("CreateFlashCardSet: Successfully created set with publicID=%s for userID=%d", publicID, user.ID)
	utils.WriteJSON(w, http.StatusCreated, set)
}

type flashcardUpdate struct {
	ID           uint   `json:"ID"`
	Term         string `json:"Term"`
	Solution     string `json:"Solution"`
	Concept      string `json:"Concept"`
	ShouldDelete bool   `json:"shouldDelete"`
	ShouldUpdate bool   `json:"shouldUpdate"`
	ShouldCreate bool   `json:"shouldCreate"`
}

// applyCardChanges runs the requested per-card mutations inside tx.
// Edits never touch scheduling state; a reworded card keeps its review
// history, and a new card starts with null scheduling (always due).
func applyCardChanges(tx *gorm.DB, set *models.FlashcardSet, changes []flashcardUpdate) error {
	for _, fc := range changes {
		switch {
		case fc.ID != 0 && fc.ShouldDelete:
			if err := tx.Where("id = ? AND set_id = ?", fc.ID, set.ID).Delete(&models.Flashcard{}).Error; err != nil {
				return fmt.Errorf("deleting flashcard %d: %w", fc.ID, err)
			}
		case fc.ID != 0 && fc.ShouldUpdate:
			var flashcard models.Flashcard
			if err := tx.Where("id = ? AND set_id = ?", fc.ID, set.ID).First(&flashcard).Error; err != nil {
				log.Printf("applyCardChanges: Flashcard not found id=%d in setID=%d", fc.ID, set.ID)
				continue
			}
			flashcard.Term = fc.Term
			flashcard.Solution = fc.Solution
			flashcard.Concept = fc.Concept
			if err := tx.Save(&flashcard).Error; err != nil {
				return fmt.Errorf("updating flashcard %d: %w", fc.ID, err)
			}
		case fc.ID == 0 && fc.ShouldCreate:
			publicID, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("generating public_id: %w", err)
			}
			card := models.Flashcard{
				Term:     fc.Term,
				Solution: fc.Solution,
				Concept:  fc.Concept,
				SetID:    set.ID,
				UserID:   set.UserID,
				PublicID: publicID,
			}
			if err := tx.Create(&card).Error; err != nil {
				return fmt.Errorf("creating flashcard: %w", err)
			}
		}
	}
	return nil
}

// PUT /api/sets/{setID}
func (db *DBHandler) UpdateSetByID(w http.ResponseWriter, r *http.Request) {
	setID := r.PathValue("setID")
	auth0ID, ok := utils.GetAuth0ID(r)
	if !ok {
		log.Printf("UpdateSetByID: Unauthorized request")
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	var set models.FlashcardSet
	// Preload the User to get owner info in one query
	if err := db.Preload("User").Where("public_id = ?", setID).First(&set).Error; err != nil {
		log.Printf("UpdateSetByID: Set not found for public_id=%s: %v", setID, err)
		http.Error(w, fmt.Sprintf("Set with ID %s not found", setID), http.StatusNotFound)
		return
	}
	if auth0ID != set.User.Auth0ID {
		log.Printf("UpdateSetByID: Unauthorized update attempt by auth0ID=%s for setID=%s", auth0ID, setID)
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	type updateSetRequest struct {
		Title      *string            `json:"title,omitempty"`
		IsPublic   *bool              `json:"isPublic,omitempty"`
		Flashcards *[]flashcardUpdate `json:"Flashcards,omitempty"`
	}
	var req updateSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("UpdateSetByID: Invalid request body: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.Title != nil {
		set.Title = *req.Title
	}
	if req.IsPublic != nil {
		set.IsPublic = *req.IsPublic
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if req.Flashcards != nil {
			if err := applyCardChanges(tx, &set, *req.Flashcards); err != nil {
				return err
			}
		}
		return tx.Save(&set).Error
	})
	if err != nil {
		log.Printf("UpdateSetByID: Failed to update setID=%s: %v", setID, err)
		http.Error(w, fmt.Sprintf("Failed to update set with ID %s", setID), http.StatusInternalServerError)
		return
	}

	log.Printf("UpdateSetByID: Successfully updated setID=%s", setID)
	utils.WriteJSON(w, http.StatusOK, set)
}

// DELETE /api/sets/{setID}
func (db *DBHandler) DeleteSetByID(w http.ResponseWriter, r *http.Request) {
	setID := r.PathValue("setID")
	auth0ID, ok := utils.GetAuth0ID(r)
	if !ok {
		log.Printf("DeleteSetByID: Unauthorized request")
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	var set models.FlashcardSet
	// Preload User for the ownership check
	if err := db.Preload("User").Where("public_id = ?", setID).First(&set).Error; err != nil {
		http.Error(w, fmt.Sprintf("Set not found for public_id=%s", setID), http.StatusNotFound)
		return
	}
	if auth0ID != set.User.Auth0ID {
		log.Printf("DeleteSetByID: Unauthorized delete attempt by auth0ID=%s for setID=%s", auth0ID, setID)
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	// Cards go with the set; their review history lives on in any
	// already-written session summaries.
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("set_id = ?", set.ID).Delete(&models.Flashcard{}).Error; err != nil {
			return err
		}
		return tx.Delete(&set).Error
	})
	if err != nil {
		log.Printf("DeleteSetByID: Failed to delete setID=%s: %v", setID, err)
		http.Error(w, fmt.Sprintf("Failed to delete set with ID %s", setID), http.StatusInternalServerError)
		return
	}

	log.Printf("DeleteSetByID: Successfully deleted setID=%s", setID)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/users/{nickname}/sets
func (db *DBHandler) GetSetsForUser(w http.ResponseWriter, r *http.Request) {
	nickname := r.PathValue("nickname")
	if nickname == "" {
		log.Printf("GetSetsForUser: Nickname is required")
		http.Error(w, "Nickname is required", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := db.Where("nickname = ?", nickname).First(&user).Error; err != nil {
		log.Printf("GetSetsForUser: User not found for nickname=%s: %v", nickname, err)
		http.Error(w, fmt.Sprintf("User not found for nickname=%s", nickname), http.StatusNotFound)
		return
	}

	auth0ID, ok := utils.GetAuth0ID(r)
	isOwner := ok && user.Auth0ID == auth0ID

	var sets []models.FlashcardSet
	query := db.Preload("Flashcards").Where("user_id = ?", user.ID)
	if !isOwner {
		query = query.Where("is_public = ?", true)
		log.Printf("GetSetsForUser: Returning public sets for userID=%d", user.ID)
	}
	if err := query.Find(&sets).Error; err != nil {
		log.Printf("GetSetsForUser: Failed to fetch sets for userID=%d: %v", user.ID, err)
		http.Error(w, fmt.Sprintf("Failed to fetch sets for user %s: %v", nickname, err), http.StatusInternalServerError)
		return
	}

	// Lazy migration for public_id on each set
	for i := range sets {
		if sets[i].PublicID == "" {
			newID, err := gonanoid.New()
			if err == nil {
				sets[i].PublicID = newID
				if err := db.Model(&sets[i]).Update("public_id", newID).Error; err != nil {
					log.Printf("GetSetsForUser: Failed to update public_id for setID=%d: %v", sets[i].ID, err)
				}
			}
		}
	}

	utils.WriteJSON(w, http.StatusOK, sets)
}
