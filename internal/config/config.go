package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini translation
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Whisper speech-to-text
	WhisperAPIURL string
	WhisperAPIKey string
	WhisperModel  string

	// Media tools
	FFmpegPath  string
	FFprobePath string

	// Storage
	StoragePath    string
	OutputPath     string
	MaxUploadBytes int64

	// MinIO object storage
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Workers
	WorkerCount int

	// Logging
	LogLevel string
	LogPath  string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		WhisperAPIURL: getEnvOrDefault("WHISPER_API_URL", "https://api.openai.com/v1/audio/transcriptions"),
		WhisperAPIKey: mustGetEnv("WHISPER_API_KEY"),
		WhisperModel:  getEnvOrDefault("WHISPER_MODEL", "whisper-1"),

		FFmpegPath:  getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnvOrDefault("FFPROBE_PATH", "ffprobe"),

		StoragePath:    getEnvOrDefault("STORAGE_PATH", "./uploads"),
		OutputPath:     getEnvOrDefault("OUTPUT_PATH", "./outputs"),
		MaxUploadBytes: getEnvAsInt64OrDefault("MAX_UPLOAD_BYTES", 1<<30),

		MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "cinescript"),
		MinioUseSSL:    getEnvAsBoolOrDefault("MINIO_USE_SSL", false),

		WorkerCount: getEnvAsIntOrDefault("WORKER_COUNT", 5),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogPath:  getEnvOrDefault("LOG_PATH", ""),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsInt64OrDefault(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
