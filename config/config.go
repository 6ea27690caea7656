package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"p9e.in/reasonsform/pkg/logger"
)

// Settings is the process configuration, read from the environment (and .env).
type Settings struct {
	Port            string
	DSN             string
	UploadDir       string
	UploadDirMax    int64
	MaxFileBytes    int64
	EncryptionKey   []byte
	JWTSecret       []byte
	AdminUsername   string
	AdminPassword   string
	TelegramToken   string
	TelegramChatID  string
	NotifyTimeout   time.Duration
	RequestTimeout  time.Duration
	WorkflowPolicy  string
	SummaryCron     string
	UseGCS          bool
	GCSBucket       string
	GCSPrefix       string
	LogLevel        string
	LogFile         string
	TrustedProxyHdr bool
}

// Load reads settings. A missing .env file is not an error.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_DIR_MAX_BYTES", int64(5)<<30)
	v.SetDefault("MAX_FILE_BYTES", int64(10)<<20)
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("WORKFLOW_POLICY", "relaxed")
	v.SetDefault("SUMMARY_CRON", "0 9 * * *")
	v.SetDefault("GCS_PREFIX", "attachments")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRUST_PROXY_HEADERS", false)

	s := &Settings{
		Port:            v.GetString("PORT"),
		DSN:             v.GetString("DB_DSN"),
		UploadDir:       v.GetString("UPLOAD_DIR"),
		UploadDirMax:    v.GetInt64("UPLOAD_DIR_MAX_BYTES"),
		MaxFileBytes:    v.GetInt64("MAX_FILE_BYTES"),
		JWTSecret:       []byte(v.GetString("JWT_SECRET")),
		AdminUsername:   v.GetString("ADMIN_USERNAME"),
		AdminPassword:   v.GetString("ADMIN_PASSWORD"),
		TelegramToken:   v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:  v.GetString("TELEGRAM_CHAT_ID"),
		NotifyTimeout:   v.GetDuration("NOTIFY_TIMEOUT"),
		RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
		WorkflowPolicy:  strings.ToLower(v.GetString("WORKFLOW_POLICY")),
		SummaryCron:     v.GetString("SUMMARY_CRON"),
		UseGCS:          v.GetBool("USE_GCS"),
		GCSBucket:       v.GetString("GCS_BUCKET"),
		GCSPrefix:       v.GetString("GCS_PREFIX"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFile:         v.GetString("LOG_FILE"),
		TrustedProxyHdr: v.GetBool("TRUST_PROXY_HEADERS"),
	}

	key, err := ParseEncryptionKey(v.GetString("FILE_ENCRYPTION_KEY"))
	if err != nil {
		return nil, err
	}
	s.EncryptionKey = key

	if s.DSN == "" {
		return nil, errors.New("DB_DSN is required")
	}
	if len(s.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if s.UseGCS && s.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required when USE_GCS=true")
	}
	return s, nil
}

// ParseEncryptionKey decodes the 64-hex-char AES-256 key.
func ParseEncryptionKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, errors.New("FILE_ENCRYPTION_KEY is required")
	}
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("FILE_ENCRYPTION_KEY must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("FILE_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Connect opens the postgres connection and runs migrations.
func Connect(s *Settings) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(s.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
