package config

import "os"

type Environment struct {
	IsDevelopment bool
	Domain        string
	CookieSecure  bool
	Port          string
}

var Env Environment

// LoadEnv populates Env from the process environment. Called from main
// after godotenv has run, so .env values are visible here.
func LoadEnv() {
	// No cookie domain configured means development
	domain := os.Getenv("COOKIE_DOMAIN")
	isDev := domain == ""
	if isDev {
		domain = "localhost"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	Env = Environment{
		IsDevelopment: isDev,
		Domain:        domain,
		CookieSecure:  !isDev,
		Port:          port,
	}
}
