package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joshuaking1/cognispark-api/config"
	"github.com/joshuaking1/cognispark-api/handlers"
	"github.com/joshuaking1/cognispark-api/middleware"
	"github.com/joshuaking1/cognispark-api/store"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func init() {
	// Load .env file if not in production environment
	if os.Getenv("RAILWAY_ENVIRONMENT_NAME") == "" {
		err := godotenv.Load()
		if err != nil {
			log.Printf("Warning: .env file not found, environment variables might not be loaded: %v", err)
		}
	}
}

func main() {
	config.LoadEnv()

	// Initialize database connection
	config.Connect()
	authMiddleware := middleware.EnsureValidToken()

	DBHandler := &handlers.DBHandler{
		DB:       config.Database,
		Cards:    store.NewCardStore(config.Database),
		Sessions: store.NewSessionStore(config.Database),
		Live:     handlers.NewSessionManager(),
	}
	mux := http.NewServeMux()

	// Set
	mux.HandleFunc("GET /api/sets/{setID}", DBHandler.GetSetByID)
	mux.HandleFunc("POST /api/sets", middleware.SyncUserMiddleware(DBHandler.CreateFlashCardSet))
	mux.HandleFunc("PUT /api/sets/{setID}", middleware.SyncUserMiddleware(DBHandler.UpdateSetByID))
	mux.HandleFunc("DELETE /api/sets/{setID}", middleware.SyncUserMiddleware(DBHandler.DeleteSetByID))
	mux.HandleFunc("POST /api/sets/import", handlers.CreateSetWithCards)

	// Users
	mux.HandleFunc("POST /api/users", DBHandler.UpsertUser)
	mux.HandleFunc("GET /api/users/{nickname}", DBHandler.GetUserProfile)
	mux.HandleFunc("GET /api/users/{nickname}/sets", DBHandler.GetSetsForUser)
	mux.HandleFunc("GET /api/users/{nickname}/study-sessions", middleware.SyncUserMiddleware(DBHandler.GetStudyHistory))

	// Flashcard
	mux.HandleFunc("POST /api/sets/{setID}/flashcards/", middleware.SyncUserMiddleware(DBHandler.CreateFlashCard))
	mux.HandleFunc("GET /api/sets/{setID}/flashcards/{flashcardID}", middleware.SyncUserMiddleware(DBHandler.GetFlashcardByID))
	mux.HandleFunc("GET /api/sets/{setID}/flashcards", DBHandler.GetFlashcardsForSet)
	mux.HandleFunc("PUT /api/sets/{setID}/flashcards/{flashcardID}", middleware.SyncUserMiddleware(DBHandler.UpdateFlashCardByID))
	mux.HandleFunc("DELETE /api/sets/{setID}/flashcards/{flashcardID}", middleware.SyncUserMiddleware(DBHandler.DeleteFlashCardByID))

	// Review scheduling
	mux.HandleFunc("GET /api/sets/{setID}/due", middleware.SyncUserMiddleware(DBHandler.GetDueCards))
	mux.HandleFunc("GET /api/sets/{setID}/mastery", middleware.SyncUserMiddleware(DBHandler.GetSetMastery))

	// Study sessions
	mux.HandleFunc("POST /api/study/sessions", middleware.SyncUserMiddleware(DBHandler.StartStudySession))
	mux.HandleFunc("GET /api/study/sessions/{sessionID}/current", middleware.SyncUserMiddleware(DBHandler.GetSessionCard))
	mux.HandleFunc("POST /api/study/sessions/{sessionID}/rate", middleware.SyncUserMiddleware(DBHandler.RateSessionCard))
	mux.HandleFunc("POST /api/study/sessions/{sessionID}/navigate", middleware.SyncUserMiddleware(DBHandler.NavigateSession))
	mux.HandleFunc("POST /api/study/sessions/{sessionID}/shuffle", middleware.SyncUserMiddleware(DBHandler.ShuffleSession))
	mux.HandleFunc("POST /api/study/sessions/{sessionID}/complete", middleware.SyncUserMiddleware(DBHandler.CompleteSession))
	mux.HandleFunc("DELETE /api/study/sessions/{sessionID}", middleware.SyncUserMiddleware(DBHandler.AbandonSession))

	// Configure CORS with specific options
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://cognispark.vercel.app", "https://www.cognispark.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(authMiddleware(mux))

	serverAddr := "0.0.0.0:" + config.Env.Port
	log.Printf("Listening on %s", serverAddr)
	http.ListenAndServe(serverAddr, corsHandler)
}
