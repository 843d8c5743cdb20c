package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServerAddress  string       `json:"serverAddress"`
	DatabasePath   string       `json:"databasePath"`
	DatabaseURL    string       `json:"databaseUrl"`
	PhotoStorage   PhotoStorage `json:"photoStorage"`
	Security       Security     `json:"security"`
	Remote         Remote       `json:"remote"`
	Sync           Sync         `json:"sync"`
	Checklist      Checklist    `json:"checklist"`
	PhotoRulesPath string       `json:"photoRulesPath"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// PhotoStorage configuration for captured images kept on the device
type PhotoStorage struct {
	BasePath          string   `json:"basePath"`
	MaxFileSizeMB     int64    `json:"maxFileSizeMB"`
	AllowedExtensions []string `json:"allowedExtensions"`
	// MaxDimension bounds the longest side of an uploaded image; 0 keeps the original size
	MaxDimension int `json:"maxDimension"`
	JPEGQuality  int `json:"jpegQuality"`

	// OrphanGraceHours is how old an unreferenced capture must be before a sweep removes it
	OrphanGraceHours int `json:"orphanGraceHours"`
}

// OrphanGrace returns the minimum age of a capture a sweep may remove
func (p PhotoStorage) OrphanGrace() time.Duration {
	return time.Duration(p.OrphanGraceHours) * time.Hour
}

// Security configuration for the local API
type Security struct {
	APIKey string `json:"apiKey"`
	// APIKeyHash is a bcrypt hash; when set it is checked instead of APIKey
	APIKeyHash   string `json:"apiKeyHash"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Remote backend kinds
const (
	BackendHTTP      = "http"
	BackendFirestore = "firestore"
)

// Remote configuration for the central backend
type Remote struct {
	Backend        string `json:"backend"`
	BaseURL        string `json:"baseUrl"`
	Bucket         string `json:"bucket"`
	APIKey         string `json:"apiKey"`
	TokenURL       string `json:"tokenUrl"`
	ClientID       string `json:"clientId"`
	ClientSecret   string `json:"clientSecret"`
	TimeoutSeconds int    `json:"timeoutSeconds"`

	FirebaseProjectID       string `json:"firebaseProjectId"`
	FirebaseCredentialsPath string `json:"firebaseCredentialsPath"`
	StorageBucket           string `json:"storageBucket"`

	// FCMTopic enables device push notifications for failed and synced uploads
	FCMTopic string `json:"fcmTopic"`
}

// Timeout returns the per-call network timeout
func (r Remote) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Sync configuration for the background sync engine
type Sync struct {
	Enabled           bool     `json:"enabled"`
	IntervalSeconds   int      `json:"intervalSeconds"`
	MaxAttempts       int      `json:"maxAttempts"`
	UploadTries       uint     `json:"uploadTries"`
	InitialBackoffMs  int      `json:"initialBackoffMs"`
	MaxBackoffSeconds int      `json:"maxBackoffSeconds"`
	PropertyIDs       []string `json:"propertyIds"`
}

// Interval returns the period of the sync loop
func (s Sync) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// InitialBackoff returns the first retry delay
func (s Sync) InitialBackoff() time.Duration {
	return time.Duration(s.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the cap on retry delays
func (s Sync) MaxBackoff() time.Duration {
	return time.Duration(s.MaxBackoffSeconds) * time.Second
}

// Checklist configuration for measurement tolerance bands
type Checklist struct {
	VoltageTolerancePct  float64 `json:"voltageTolerancePct"`
	AmperageTolerancePct float64 `json:"amperageTolerancePct"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5080",
		DatabasePath:  "fieldsync.db",
		PhotoStorage: PhotoStorage{
			BasePath:      "./captures",
			MaxFileSizeMB: 25,
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".heic", ".heif",
			},
			MaxDimension:     2048,
			JPEGQuality:      85,
			OrphanGraceHours: 24,
		},
		Security: Security{
			APIKey:       "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader: "X-API-Key",
		},
		Remote: Remote{
			Backend:        BackendHTTP,
			Bucket:         "maintenance-photos",
			TimeoutSeconds: 30,
		},
		Sync: Sync{
			Enabled:           true,
			IntervalSeconds:   60,
			MaxAttempts:       5,
			UploadTries:       3,
			InitialBackoffMs:  500,
			MaxBackoffSeconds: 300,
		},
		Checklist: Checklist{
			VoltageTolerancePct:  10,
			AmperageTolerancePct: 10,
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	// Ensure photo storage directory exists
	if err := os.MkdirAll(cfg.PhotoStorage.BasePath, 0755); err != nil {
		return nil, err
	}

	// Make base path absolute
	absPath, err := filepath.Abs(cfg.PhotoStorage.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.PhotoStorage.BasePath = absPath

	return cfg, nil
}

// applyEnv overrides file values from environment variables
func applyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if basePath := os.Getenv("PHOTO_STORAGE_PATH"); basePath != "" {
		cfg.PhotoStorage.BasePath = basePath
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if hash := os.Getenv("API_KEY_HASH"); hash != "" {
		cfg.Security.APIKeyHash = hash
	}
	if rules := os.Getenv("PHOTO_RULES_PATH"); rules != "" {
		cfg.PhotoRulesPath = rules
	}

	// Remote backend
	if backend := os.Getenv("REMOTE_BACKEND"); backend != "" {
		cfg.Remote.Backend = backend
	}
	if baseURL := os.Getenv("REMOTE_BASE_URL"); baseURL != "" {
		cfg.Remote.BaseURL = baseURL
	}
	if key := os.Getenv("REMOTE_API_KEY"); key != "" {
		cfg.Remote.APIKey = key
	}
	if tokenURL := os.Getenv("REMOTE_TOKEN_URL"); tokenURL != "" {
		cfg.Remote.TokenURL = tokenURL
	}
	if clientID := os.Getenv("REMOTE_CLIENT_ID"); clientID != "" {
		cfg.Remote.ClientID = clientID
	}
	if secret := os.Getenv("REMOTE_CLIENT_SECRET"); secret != "" {
		cfg.Remote.ClientSecret = secret
	}
	if timeout := os.Getenv("REMOTE_TIMEOUT_SECONDS"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			cfg.Remote.TimeoutSeconds = secs
		}
	}
	if project := os.Getenv("FIREBASE_PROJECT_ID"); project != "" {
		cfg.Remote.FirebaseProjectID = project
	}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
		cfg.Remote.FirebaseCredentialsPath = creds
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		cfg.Remote.StorageBucket = bucket
	}
	if topic := os.Getenv("FCM_TOPIC"); topic != "" {
		cfg.Remote.FCMTopic = topic
	}

	// Sync engine
	if enabled := os.Getenv("SYNC_ENABLED"); enabled != "" {
		cfg.Sync.Enabled = enabled == "true" || enabled == "1"
	}
	if interval := os.Getenv("SYNC_INTERVAL_SECONDS"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil && secs > 0 {
			cfg.Sync.IntervalSeconds = secs
		}
	}
	if attempts := os.Getenv("SYNC_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n > 0 {
			cfg.Sync.MaxAttempts = n
		}
	}
	if props := os.Getenv("SYNC_PROPERTY_IDS"); props != "" {
		cfg.Sync.PropertyIDs = splitList(props)
	}

	// Measurement tolerance
	if pct := os.Getenv("VOLTAGE_TOLERANCE_PCT"); pct != "" {
		if v, err := strconv.ParseFloat(pct, 64); err == nil && v >= 0 {
			cfg.Checklist.VoltageTolerancePct = v
		}
	}
	if pct := os.Getenv("AMPERAGE_TOLERANCE_PCT"); pct != "" {
		if v, err := strconv.ParseFloat(pct, 64); err == nil && v >= 0 {
			cfg.Checklist.AmperageTolerancePct = v
		}
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
