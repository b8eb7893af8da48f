package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/joshuaking1/cognispark-api/config"
	"github.com/joshuaking1/cognispark-api/models"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the user record attached by SyncUserMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// SyncUserMiddleware ensures the Auth0 user exists in the DB and attaches
// it to the request context.
func SyncUserMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
		if !ok || claims.RegisteredClaims.Subject == "" {
			http.Error(w, "No Auth0 subject found", http.StatusUnauthorized)
			return
		}

		auth0ID := claims.RegisteredClaims.Subject
		nickname := ""
		if customClaims, ok := claims.CustomClaims.(*CustomClaims); ok && customClaims != nil {
			nickname = customClaims.Nickname
		}

		var user models.User
		result := config.Database.Where("auth0_id = ?", auth0ID).First(&user)
		if result.Error != nil {
			// First request from this identity; create the record.
			user = models.User{Auth0ID: auth0ID, Nickname: nickname}
			if createResult := config.Database.Create(&user); createResult.Error != nil {
				http.Error(w, "Failed to create user", http.StatusInternalServerError)
				log.Println("Database creation error:", createResult.Error)
				return
			}
			log.Printf("Created new user: %s\n", user.Nickname)
		} else if nickname != "" && user.Nickname != nickname {
			user.Nickname = nickname
			if saveResult := config.Database.Save(&user); saveResult.Error != nil {
				http.Error(w, "Failed to update user", http.StatusInternalServerError)
				log.Println("Database update error:", saveResult.Error)
				return
			}
			log.Printf("Updated user nickname: %s\n", user.Nickname)
		}

		ctx := context.WithValue(r.Context(), userContextKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
