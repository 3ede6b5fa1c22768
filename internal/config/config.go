package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"basket-service/internal/compare/model"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	MaxUploadMB  int
	LogFile      string
	LogFormat    string // console | json
	LogMaxSizeMB int

	DBDriver          string // postgres | sqlite
	DatabaseURL       string
	DBConnectAttempts int
	JWTSecret         string

	RateLimitRPS   float64 // per user, 0 disables
	RateLimitBurst int

	DefaultBasketName string
	Compare           model.Options
}

// Load reads the environment, after an optional .env in the working dir.
func Load() Config {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getenv("PORT", "8082"))
	mb, _ := strconv.Atoi(getenv("MAX_UPLOAD_MB", "16"))
	origins := strings.Split(getenv("ALLOW_ORIGINS", "*"), ",")

	def := model.DefaultOptions()
	cmp := model.Options{
		Mode:          model.ParseMode(getenv("COMPARE_MODE", string(def.Mode)), def.Mode),
		MinScore:      getfloat("MATCH_MIN_SCORE", def.MinScore),
		ContainsBonus: getfloat("MATCH_CONTAINS_BONUS", def.ContainsBonus),
		PrefixBonus:   getfloat("MATCH_PREFIX_BONUS", def.PrefixBonus),
		PrefixLen:     getint("MATCH_PREFIX_LEN", def.PrefixLen),
		StemTokens:    getbool("MATCH_STEM_TOKENS", def.StemTokens),
		StemSuffix:    getint("MATCH_STEM_SUFFIX", def.StemSuffix),
		Locale:        getenv("COMPARE_LOCALE", def.Locale),
	}

	return Config{
		Host:              getenv("HOST", "127.0.0.1"),
		Port:              port,
		AllowOrigins:      origins,
		LogLevel:          getenv("LOG_LEVEL", "info"),
		MaxUploadMB:       mb,
		LogFile:           os.Getenv("LOG_FILE"),
		LogFormat:         getenv("LOG_FORMAT", "console"),
		LogMaxSizeMB:      getint("LOG_MAX_SIZE_MB", 50),
		DBDriver:          getenv("DB_DRIVER", "postgres"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBConnectAttempts: getint("DB_CONNECT_ATTEMPTS", 5),
		RateLimitRPS:      getfloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:    getint("RATE_LIMIT_BURST", 20),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		DefaultBasketName: getenv("DEFAULT_BASKET_NAME", "Nakup"),
		Compare:           cmp,
	}
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return i
}

func getfloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func getbool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
