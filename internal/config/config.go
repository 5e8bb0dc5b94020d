package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The signing secret must be identical on
// every instance that issues or verifies access tokens.
type Config struct {
    Env                string // application environment (e.g. "dev", "prod")
    Port               string // HTTP port to listen on
    DBUser             string // database username
    DBPass             string // database password (optional)
    DBHost             string // database host address
    DBPort             string // database port number
    DBName             string // database name
    JWTSecret          string // symmetric secret used to sign access tokens
    AccessTTLMin       int    // access token time-to-live in minutes
    ClientOrigin       string // origin of the web client receiving login redirects
    GoogleClientID     string // OAuth client id for the Google integration
    GoogleClientSecret string // OAuth client secret
    OAuthRedirectURL   string // callback URL registered with the provider
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:                must("APP_ENV"),
        Port:               must("APP_PORT"),
        DBUser:             must("DB_USER"),
        DBPass:             os.Getenv("DB_PASS"), // empty allowed
        DBHost:             must("DB_HOST"),
        DBPort:             must("DB_PORT"),
        DBName:             must("DB_NAME"),
        JWTSecret:          must("JWT_SECRET"),
        AccessTTLMin:       envInt("ACCESS_TOKEN_TTL_MIN", 60), // one hour by default
        ClientOrigin:       must("CLIENT_ORIGIN"),
        GoogleClientID:     must("GOOGLE_CLIENT_ID"),
        GoogleClientSecret: must("GOOGLE_CLIENT_SECRET"),
        OAuthRedirectURL:   must("OAUTH_REDIRECT_URL"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// envInt reads an integer environment variable, falling back to def when
// unset.  An unparseable value is fatal.
func envInt(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// getenv returns the value of an optional variable or the given default.
func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}
