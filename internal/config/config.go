package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// Source modes.
const (
	SourceFile = "file"
	SourceHTTP = "http"
)

// Config holds all service settings, populated from environment variables.
// The env tag names the variable each field is read from; validation errors
// are reported by that name.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// Sources.
	SourceMode   string             `env:"SOURCE_MODE" validate:"oneof=file http"`
	RiverFiles   []string           `env:"RIVER_FILES" validate:"required_if=SourceMode file"`
	RainFiles    []string           `env:"RAIN_FILES" validate:"required_if=SourceMode file"`
	RiverStation string             `env:"RIVER_STATION" validate:"required_if=SourceMode http"`
	RainStation  string             `env:"RAIN_STATION" validate:"required_if=SourceMode http"`
	FetchRanges  []domain.DateRange `env:"FETCH_RANGES" validate:"required_if=SourceMode http"`

	// Remote source access.
	INMETBaseURL    string        `env:"INMET_BASE_URL" validate:"url"`
	ANABaseURL      string        `env:"ANA_BASE_URL" validate:"url"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`
	SourceCacheSize int           `env:"SOURCE_CACHE_SIZE" validate:"min=1"`
	SourceCacheTTL  time.Duration `env:"SOURCE_CACHE_TTL" validate:"gte=0"`
	ExtractRetries  int           `env:"EXTRACT_RETRIES" validate:"min=0,max=10"`

	// Analysis.
	Periods        []domain.Period   `env:"ANALYSIS_PERIODS" validate:"required"`
	MaxLag         int               `env:"MAX_LAG" validate:"min=1,max=60"`
	RainFill       domain.FillPolicy `env:"RAIN_FILL"`
	LevelFill      domain.FillPolicy `env:"LEVEL_FILL"`
	FloodThreshold float64           `env:"FLOOD_THRESHOLD_M" validate:"gt=0"`

	// Outputs.
	OutputDir         string        `env:"OUTPUT_DIR" validate:"required"`
	OutputXLSX        bool          `env:"OUTPUT_XLSX"`
	RefreshInterval   time.Duration `env:"REFRESH_INTERVAL" validate:"gte=0"`
	KafkaEnabled      bool          `env:"KAFKA_ENABLED"`
	KafkaBrokers      []string      `env:"KAFKA_BROKERS" validate:"required_if=KafkaEnabled true"`
	KafkaDatasetTopic string        `env:"KAFKA_DATASET_TOPIC" validate:"required_if=KafkaEnabled true"`
	KafkaSummaryTopic string        `env:"KAFKA_SUMMARY_TOPIC" validate:"required_if=KafkaEnabled true"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var p parser
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout: shutdownTimeout,

		SourceMode:   strings.ToLower(sharedcfg.EnvOrDefault("SOURCE_MODE", SourceFile)),
		RiverFiles:   splitList(sharedcfg.EnvOrDefault("RIVER_FILES", "data/river_level.csv")),
		RainFiles:    splitList(sharedcfg.EnvOrDefault("RAIN_FILES", "data/inmet_a801_2024.csv,data/inmet_a801_2025.csv")),
		RiverStation: sharedcfg.EnvOrDefault("RIVER_STATION", "66900000"),
		RainStation:  sharedcfg.EnvOrDefault("RAIN_STATION", "A801"),
		FetchRanges:  p.ranges("FETCH_RANGES", "2024-01-01:2024-12-31,2025-01-01:2025-06-30"),

		INMETBaseURL:    sharedcfg.EnvOrDefault("INMET_BASE_URL", "https://apitempo.inmet.gov.br"),
		ANABaseURL:      sharedcfg.EnvOrDefault("ANA_BASE_URL", "https://www.snirh.gov.br/hidroweb/rest/api"),
		HTTPTimeout:     p.duration("HTTP_TIMEOUT", "30s"),
		SourceCacheSize: p.integer("SOURCE_CACHE_SIZE", "64"),
		SourceCacheTTL:  p.duration("SOURCE_CACHE_TTL", "6h"),
		ExtractRetries:  p.integer("EXTRACT_RETRIES", "3"),

		Periods:        p.periods("ANALYSIS_PERIODS", "2024=2024-04-30:2024-06-30,2025=2025-04-30:2025-06-30"),
		MaxLag:         p.integer("MAX_LAG", "15"),
		RainFill:       p.fill("RAIN_FILL", string(domain.FillZero)),
		LevelFill:      p.fill("LEVEL_FILL", string(domain.FillDrop)),
		FloodThreshold: p.float("FLOOD_THRESHOLD_M", "3.0"),

		OutputDir:         sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		OutputXLSX:        p.boolean("OUTPUT_XLSX", "false"),
		RefreshInterval:   p.duration("REFRESH_INTERVAL", "0s"),
		KafkaEnabled:      p.boolean("KAFKA_ENABLED", "false"),
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaDatasetTopic: strings.TrimSpace(sharedcfg.EnvOrDefault("KAFKA_DATASET_TOPIC", "hydro-daily-dataset")),
		KafkaSummaryTopic: strings.TrimSpace(sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "hydro-lag-summary")),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, describe(err)
	}
	return cfg, nil
}

// describe rewrites validator failures into messages naming the env variable.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fe.Field()+" is required")
		default:
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			msgs = append(msgs, fmt.Sprintf("invalid %s: must satisfy %s", fe.Field(), rule))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// parser reads typed env values, keeping the first failure.
type parser struct {
	err error
}

func (p *parser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
}

func (p *parser) duration(key, def string) time.Duration {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		p.fail(key, s, err)
	}
	return d
}

func (p *parser) integer(key, def string) int {
	s := sharedcfg.EnvOrDefault(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, s, err)
	}
	return n
}

func (p *parser) float(key, def string) float64 {
	s := sharedcfg.EnvOrDefault(key, def)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s, err)
	}
	return f
}

func (p *parser) boolean(key, def string) bool {
	s := sharedcfg.EnvOrDefault(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s, err)
	}
	return b
}

func (p *parser) fill(key, def string) domain.FillPolicy {
	s := sharedcfg.EnvOrDefault(key, def)
	f, err := domain.ParseFillPolicy(s)
	if err != nil {
		p.fail(key, s, err)
	}
	return f
}

func (p *parser) ranges(key, def string) []domain.DateRange {
	s := sharedcfg.EnvOrDefault(key, def)
	var out []domain.DateRange
	for _, item := range splitList(s) {
		r, err := ParseDateRange(item)
		if err != nil {
			p.fail(key, item, err)
			return nil
		}
		out = append(out, r)
	}
	return out
}

func (p *parser) periods(key, def string) []domain.Period {
	s := sharedcfg.EnvOrDefault(key, def)
	var out []domain.Period
	for _, item := range splitList(s) {
		name, span, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(name) == "" {
			p.fail(key, item, errors.New("expected name=from:to"))
			return nil
		}
		r, err := ParseDateRange(span)
		if err != nil {
			p.fail(key, item, err)
			return nil
		}
		out = append(out, domain.Period{Name: strings.TrimSpace(name), Range: r})
	}
	return out
}

// ParseDateRange parses "2006-01-02:2006-01-02". The end must not precede the start.
func ParseDateRange(s string) (domain.DateRange, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return domain.DateRange{}, errors.New("expected from:to")
	}
	start, err := time.Parse(time.DateOnly, strings.TrimSpace(from))
	if err != nil {
		return domain.DateRange{}, err
	}
	end, err := time.Parse(time.DateOnly, strings.TrimSpace(to))
	if err != nil {
		return domain.DateRange{}, err
	}
	if end.Before(start) {
		return domain.DateRange{}, errors.New("end before start")
	}
	return domain.DateRange{From: start, To: end}, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
