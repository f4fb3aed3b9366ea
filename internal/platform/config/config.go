package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL    string
	Environment    string
	TimeZone       string
	CardHashSecret string

	DuplicateWindow  time.Duration
	MaxOutsideCycles int

	RoundingIncrementMin    int
	DailyOvertimeMin        int
	MonthlyOvertimeMin      int
	MonthlyOvertimeRoundMin int
	OvertimeRate            float64
	OvertimeEscalatedRate   float64
	NightRate               float64
	HolidayRate             float64
	NightStart              string
	NightEnd                string
	BreakStart              string
	BreakEnd                string
	ScheduledStart          string
	ScheduledEnd            string
	StandardMonthlyMin      int

	QueueMaxEntries int
	QueueMaxAge     time.Duration

	ShiftCeiling           time.Duration
	ImplausibleStart       string
	ImplausibleEnd         string
	RapidAlternationCount  int
	RapidAlternationWindow time.Duration
	TravelRuleEnabled      bool
	MaxTravelKmh           float64

	ScanTimeout      time.Duration
	DeviceMaxRetries int

	// HolidayDates is a comma-separated list of local dates (2006-01-02).
	HolidayDates string
	// ReaderIDs names the simulated readers to start, comma-separated.
	ReaderIDs string
	// DeviceLocations maps readers to coordinates for the travel rule,
	// "gate-1=35.6812:139.7671" entries joined by commas.
	DeviceLocations string

	ReconcileInterval time.Duration
	CloseoutInterval  time.Duration
	RollupInterval    time.Duration
	SweepInterval     time.Duration

	RunMigrations  bool
	MetricsEnabled bool
}

func Load() Config {
	return Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Environment:    getEnv("APP_ENV", "development"),
		TimeZone:       getEnv("TIME_ZONE", "Asia/Tokyo"),
		CardHashSecret: getEnv("CARD_HASH_SECRET", ""),

		DuplicateWindow:  getEnvDuration("DUPLICATE_WINDOW", 3*time.Minute),
		MaxOutsideCycles: getEnvInt("MAX_OUTSIDE_CYCLES", 3),

		RoundingIncrementMin:    getEnvInt("ROUNDING_INCREMENT_MIN", 15),
		DailyOvertimeMin:        getEnvInt("DAILY_OVERTIME_THRESHOLD_MIN", 480),
		MonthlyOvertimeMin:      getEnvInt("MONTHLY_OVERTIME_THRESHOLD_MIN", 3600),
		MonthlyOvertimeRoundMin: getEnvInt("MONTHLY_OVERTIME_ROUND_MIN", 30),
		OvertimeRate:            getEnvFloat("OVERTIME_RATE", 1.25),
		OvertimeEscalatedRate:   getEnvFloat("OVERTIME_ESCALATED_RATE", 1.5),
		NightRate:               getEnvFloat("NIGHT_RATE", 1.25),
		HolidayRate:             getEnvFloat("HOLIDAY_RATE", 1.35),
		NightStart:              getEnv("NIGHT_START", "22:00"),
		NightEnd:                getEnv("NIGHT_END", "05:00"),
		BreakStart:              getEnv("BREAK_START", "12:00"),
		BreakEnd:                getEnv("BREAK_END", "13:00"),
		ScheduledStart:          getEnv("SCHEDULED_START", "09:00"),
		ScheduledEnd:            getEnv("SCHEDULED_END", "18:00"),
		StandardMonthlyMin:      getEnvInt("STANDARD_MONTHLY_MIN", 9600),

		QueueMaxEntries: getEnvInt("QUEUE_MAX_ENTRIES", 200),
		QueueMaxAge:     getEnvDuration("QUEUE_MAX_AGE", 168*time.Hour),

		ShiftCeiling:           getEnvDuration("SHIFT_CEILING", 12*time.Hour),
		ImplausibleStart:       getEnv("IMPLAUSIBLE_START", "01:00"),
		ImplausibleEnd:         getEnv("IMPLAUSIBLE_END", "04:00"),
		RapidAlternationCount:  getEnvInt("RAPID_ALTERNATION_COUNT", 4),
		RapidAlternationWindow: getEnvDuration("RAPID_ALTERNATION_WINDOW", 30*time.Minute),
		TravelRuleEnabled:      getEnvBool("ANOMALY_TRAVEL_ENABLED", false),
		MaxTravelKmh:           getEnvFloat("MAX_TRAVEL_KMH", 120),

		ScanTimeout:      getEnvDuration("SCAN_TIMEOUT", 30*time.Second),
		DeviceMaxRetries: getEnvInt("DEVICE_MAX_RETRIES", 3),

		HolidayDates:    getEnv("HOLIDAY_DATES", ""),
		ReaderIDs:       getEnv("READER_IDS", "gate-1"),
		DeviceLocations: getEnv("DEVICE_LOCATIONS", ""),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", time.Minute),
		CloseoutInterval:  getEnvDuration("CLOSEOUT_INTERVAL", time.Hour),
		RollupInterval:    getEnvDuration("ROLLUP_INTERVAL", 6*time.Hour),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Hour),

		RunMigrations:  getEnvBool("RUN_MIGRATIONS", true),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.CardHashSecret) == "" {
		return fmt.Errorf("CARD_HASH_SECRET is required")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIME_ZONE is invalid: %w", err)
	}
	if c.DuplicateWindow <= 0 {
		return fmt.Errorf("DUPLICATE_WINDOW must be positive")
	}
	if c.MaxOutsideCycles < 0 {
		return fmt.Errorf("MAX_OUTSIDE_CYCLES must not be negative")
	}
	if c.RoundingIncrementMin <= 0 || c.RoundingIncrementMin > 60 {
		return fmt.Errorf("ROUNDING_INCREMENT_MIN must be between 1 and 60")
	}
	if c.MonthlyOvertimeRoundMin <= 0 {
		return fmt.Errorf("MONTHLY_OVERTIME_ROUND_MIN must be positive")
	}
	if c.OvertimeRate < 1 {
		return fmt.Errorf("OVERTIME_RATE must be at least 1.0")
	}
	if c.OvertimeEscalatedRate < c.OvertimeRate {
		return fmt.Errorf("OVERTIME_ESCALATED_RATE must not undercut OVERTIME_RATE")
	}
	if c.MaxTravelKmh <= 0 {
		return fmt.Errorf("MAX_TRAVEL_KMH must be positive")
	}
	if c.QueueMaxEntries <= 0 {
		return fmt.Errorf("QUEUE_MAX_ENTRIES must be positive")
	}
	if c.QueueMaxAge <= 0 {
		return fmt.Errorf("QUEUE_MAX_AGE must be positive")
	}
	for _, clock := range []string{
		c.NightStart, c.NightEnd, c.BreakStart, c.BreakEnd,
		c.ScheduledStart, c.ScheduledEnd, c.ImplausibleStart, c.ImplausibleEnd,
	} {
		if _, err := time.Parse("15:04", clock); err != nil {
			return fmt.Errorf("clock value %q must be HH:MM", clock)
		}
	}
	return nil
}
