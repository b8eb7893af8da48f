package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/joshuaking1/cognispark-api/auth"
	"github.com/joshuaking1/cognispark-api/config"
	"github.com/joshuaking1/cognispark-api/models"
	"github.com/joshuaking1/cognispark-api/utils"
)

func sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		Domain:   config.Env.Domain,
		HttpOnly: true,
		Secure:   config.Env.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.SessionTTL.Seconds()),
	}
}

// GET /api/users/{nickname}
func (db *DBHandler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	nickname := r.PathValue("nickname")
	if nickname == "" {
		http.Error(w, "Nickname is required", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := db.Where("nickname = ?", nickname).First(&user).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"nickname": user.Nickname,
	}
	// Grade level is only shown to the profile owner
	if auth0ID, ok := utils.GetAuth0ID(r); ok && user.Auth0ID == auth0ID {
		response["gradeLevel"] = user.GradeLevel
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// POST /api/users
func (db *DBHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	type upsertRequest struct {
		Nickname   string `json:"nickname" validate:"required"`
		GradeLevel string `json:"gradeLevel"`
	}
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("UpsertUser: Invalid request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Nickname is required", http.StatusBadRequest)
		return
	}

	var user models.User
	created := false
	if err := db.Where("nickname = ?", req.Nickname).First(&user).Error; err != nil {
		user = models.User{Nickname: req.Nickname, GradeLevel: req.GradeLevel}
		if result := db.Create(&user); result.Error != nil {
			log.Printf("UpsertUser: Failed to create user: %v", result.Error)
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}
		created = true
		log.Printf("UpsertUser: Created user %s", user.Nickname)
	} else if req.GradeLevel != "" && user.GradeLevel != req.GradeLevel {
		user.GradeLevel = req.GradeLevel
		if err := db.Save(&user).Error; err != nil {
			log.Printf("UpsertUser: Failed to update user: %v", err)
			http.Error(w, "Failed to update user", http.StatusInternalServerError)
			return
		}
	}

	// Fallback session cookie for clients outside the Auth0 flow
	tokenString, err := auth.CreateToken(user.Nickname)
	if err != nil {
		log.Printf("UpsertUser: Token generation error: %v", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, sessionCookie(tokenString))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.WriteJSON(w, status, map[string]interface{}{"user": user})
}
