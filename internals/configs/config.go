package configs

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"playhost_backend/internals/features/payments/khqr"
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		log.Println("Running in production, using system ENV")
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system ENV")
	} else {
		log.Println(".env file loaded")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetEnvFloat(key string, def float64) float64 {
	if v := GetEnv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("[WARN] %s is not a number, using default %v", key, def)
	}
	return def
}

func GetEnvInt(key string, def int) int {
	if v := GetEnv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[WARN] %s is not an integer, using default %d", key, def)
	}
	return def
}

func GetEnvBool(key string, def bool) bool {
	if v := GetEnv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// =======================
// TYPED CONFIG LOADERS
// =======================

// LoadMerchant reads the KHQR merchant identity. The account ID must be a
// bank-issued <user>@<bank> handle; khqr.Build rejects anything else.
func LoadMerchant() khqr.MerchantInfo {
	return khqr.MerchantInfo{
		AccountID:          GetEnv("MERCHANT_ACCOUNT_ID"),
		Name:               GetEnv("MERCHANT_NAME", "PlayHost"),
		City:               GetEnv("MERCHANT_CITY", "Phnom Penh"),
		SettlementCurrency: GetEnv("SETTLEMENT_CURRENCY", "KHR"),
		KHRPerUSD:          GetEnvFloat("EXCHANGE_RATE_KHR_PER_USD", 4100),
	}
}

// QRValidity is how long an issued QR stays payable.
func QRValidity() time.Duration {
	return time.Duration(GetEnvInt("QR_VALIDITY_SECONDS", 900)) * time.Second
}

type BakongConfig struct {
	BaseURL       string
	Token         string
	WebhookSecret string
}

func LoadBakong() BakongConfig {
	return BakongConfig{
		BaseURL:       GetEnv("BAKONG_BASE_URL", "https://api-bakong.nbc.gov.kh"),
		Token:         GetEnv("BAKONG_TOKEN"),
		WebhookSecret: GetEnv("BAKONG_WEBHOOK_SECRET"),
	}
}

type MidtransConfig struct {
	ServerKey  string
	Production bool
}

func LoadMidtrans() MidtransConfig {
	return MidtransConfig{
		ServerKey:  GetEnv("MIDTRANS_SERVER_KEY"),
		Production: GetEnvBool("MIDTRANS_PRODUCTION", false),
	}
}

type PanelConfig struct {
	BaseURL string
	APIKey  string
}

func LoadPanel() PanelConfig {
	return PanelConfig{
		BaseURL: GetEnv("PANEL_URL"),
		APIKey:  GetEnv("PANEL_API_KEY"),
	}
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	l.LogLevel = level
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[INFO] "+msg, data...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[WARN] "+msg, data...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[ERROR] "+msg, data...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	if err != nil {
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	} else if elapsed > l.SlowThreshold {
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}
