package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

// Config holds all application configuration
type Config struct {
	Lang      string
	Defaults  DefaultsConfig
	Style     StyleConfig
	Text      map[string]TextConfig // keyed by language code
	MyInfo    MyInfoConfig
	Messages  MessagesConfig
	Output    OutputConfig
	Render    RenderConfig
	Ledger    LedgerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lock      LockConfig
	Storage   StorageConfig
	Mail      MailConfig
	Pipeline  PipelineConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// DefaultsConfig holds prompt defaults and the first invoice number
type DefaultsConfig struct {
	StartNumber      int64
	RecipientName    string
	RecipientTaxID   string
	RecipientAddress string
	RecipientEmail   string
	Description      string
}

// StyleConfig holds document font settings
type StyleConfig struct {
	FontSizeOffset float64
	FontBold       string
	FontNormal     string
}

// TextConfig holds the document captions of one language
type TextConfig struct {
	Invoice       string
	Date          string
	InvoiceNumber string
	SendTo        string
	Description   string
	Total         string
	GrandTotal    string
	NameOfBank    string
	AccountName   string
	AccountNumber string
}

// MyInfoConfig identifies the issuer
type MyInfoConfig struct {
	Name            string
	Address1        string
	Address2        string
	Town            string
	Postcode        string
	TaxID           string
	Email           string
	AccountantEmail string
	NameOfBank      string
	AccountName     string
	AccountNumber   string
}

// MessagesConfig holds the HTML e-mail bodies
type MessagesConfig struct {
	ToRecipient  string
	ToAccountant string
}

// OutputConfig controls where artifacts are written locally
type OutputConfig struct {
	Dir   string
	Purge bool // delete the local artifact after distribution
}

// RenderConfig selects the PDF backend
type RenderConfig struct {
	Engine    string // gofpdf, chromedp
	ChromeURL string // remote Chrome DevTools URL for chromedp (optional)
	NoSandbox bool
	Timeout   time.Duration
	MarginMM  float64
}

// LedgerConfig selects and tunes the ledger backend
type LedgerConfig struct {
	Driver                string // postgres, sqlite, memory
	SQLitePath            string
	AutoMigrate           bool
	MaxAllocationAttempts int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LockConfig holds issuance lock settings
type LockConfig struct {
	Backend       string // memory, redis
	Key           string
	TTL           time.Duration
	WaitTimeout   time.Duration
	RetryInterval time.Duration
}

// StorageConfig holds remote artifact storage settings
type StorageConfig struct {
	Backend string // none, s3, folder
	Prefix  string // folder inside the bucket
	Folder  string // target directory of the folder backend
	S3      S3Config
}

// S3Config holds S3 compatible object storage settings
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	CreateBucket    bool
}

// MailConfig holds SMTP settings
type MailConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string // mandatory, opportunistic, none
	Timeout   time.Duration
}

// PipelineConfig holds per-call deadlines and retry policy
type PipelineConfig struct {
	CallTimeout time.Duration
	Retry       RetryConfig
}

// RetryConfig holds backoff settings for idempotent calls
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable ledger query tracing (otelgorm)
	LogExport         bool    // Export logs through the OTEL log bridge
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with INVOICER_ prefix (e.g., INVOICER_MYINFO_NAME)
// 2. the file at path, or config.toml found in ., $HOME/.invoicer, /etc/invoicer
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.invoicer")
		v.AddConfigPath("/etc/invoicer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("INVOICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 0 is a valid first number, so this default cannot live in applyDefaults
	v.SetDefault("defaults.start_number", 1)
	v.SetDefault("ledger.auto_migrate", true)

	cfg := &Config{
		Lang: v.GetString("lang"),
		Defaults: DefaultsConfig{
			StartNumber:      v.GetInt64("defaults.start_number"),
			RecipientName:    v.GetString("defaults.recipient_name"),
			RecipientTaxID:   firstNonEmpty(v.GetString("defaults.recipient_tax_id"), v.GetString("defaults.recipient_nie")),
			RecipientAddress: v.GetString("defaults.recipient_address"),
			RecipientEmail:   v.GetString("defaults.recipient_email"),
			Description:      v.GetString("defaults.description"),
		},
		Style: StyleConfig{
			FontSizeOffset: v.GetFloat64("style.font_size_offset"),
			FontBold:       v.GetString("style.font_bold"),
			FontNormal:     v.GetString("style.font_normal"),
		},
		Text: map[string]TextConfig{},
		MyInfo: MyInfoConfig{
			Name:            v.GetString("myinfo.name"),
			Address1:        v.GetString("myinfo.address1"),
			Address2:        v.GetString("myinfo.address2"),
			Town:            v.GetString("myinfo.town"),
			Postcode:        v.GetString("myinfo.postcode"),
			TaxID:           firstNonEmpty(v.GetString("myinfo.tax_id"), v.GetString("myinfo.nie")),
			Email:           v.GetString("myinfo.email"),
			AccountantEmail: v.GetString("myinfo.accountant_email"),
			NameOfBank:      v.GetString("myinfo.name_of_bank"),
			AccountName:     v.GetString("myinfo.account_name"),
			AccountNumber:   v.GetString("myinfo.account_number"),
		},
		Messages: MessagesConfig{
			ToRecipient:  v.GetString("messages.to_recipient"),
			ToAccountant: v.GetString("messages.to_accountant"),
		},
		Output: OutputConfig{
			Dir:   v.GetString("output.dir"),
			Purge: v.GetBool("output.purge"),
		},
		Render: RenderConfig{
			Engine:    v.GetString("render.engine"),
			ChromeURL: v.GetString("render.chrome_url"),
			NoSandbox: v.GetBool("render.no_sandbox"),
			Timeout:   v.GetDuration("render.timeout"),
			MarginMM:  v.GetFloat64("render.margin_mm"),
		},
		Ledger: LedgerConfig{
			Driver:                v.GetString("ledger.driver"),
			SQLitePath:            v.GetString("ledger.sqlite_path"),
			AutoMigrate:           v.GetBool("ledger.auto_migrate"),
			MaxAllocationAttempts: v.GetInt("ledger.max_allocation_attempts"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Lock: LockConfig{
			Backend:       v.GetString("lock.backend"),
			Key:           v.GetString("lock.key"),
			TTL:           v.GetDuration("lock.ttl"),
			WaitTimeout:   v.GetDuration("lock.wait_timeout"),
			RetryInterval: v.GetDuration("lock.retry_interval"),
		},
		Storage: StorageConfig{
			Backend: v.GetString("storage.backend"),
			Prefix:  v.GetString("storage.prefix"),
			Folder:  v.GetString("storage.folder"),
			S3: S3Config{
				Endpoint:        v.GetString("storage.s3.endpoint"),
				Region:          v.GetString("storage.s3.region"),
				Bucket:          v.GetString("storage.s3.bucket"),
				AccessKeyID:     v.GetString("storage.s3.access_key_id"),
				SecretAccessKey: v.GetString("storage.s3.secret_access_key"),
				UsePathStyle:    v.GetBool("storage.s3.use_path_style"),
				CreateBucket:    v.GetBool("storage.s3.create_bucket"),
			},
		},
		Mail: MailConfig{
			Enabled:   v.GetBool("mail.enabled"),
			Host:      v.GetString("mail.host"),
			Port:      v.GetInt("mail.port"),
			Username:  v.GetString("mail.username"),
			Password:  v.GetString("mail.password"),
			From:      v.GetString("mail.from"),
			TLSPolicy: v.GetString("mail.tls_policy"),
			Timeout:   v.GetDuration("mail.timeout"),
		},
		Pipeline: PipelineConfig{
			CallTimeout: v.GetDuration("pipeline.call_timeout"),
			Retry: RetryConfig{
				MaxAttempts:     v.GetInt("pipeline.retry.max_attempts"),
				InitialInterval: v.GetDuration("pipeline.retry.initial_interval"),
				MaxInterval:     v.GetDuration("pipeline.retry.max_interval"),
			},
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogExport:         v.GetBool("telemetry.log_export"),
		},
	}

	for _, lang := range []invoicing.Locale{invoicing.LocaleEN, invoicing.LocaleES} {
		get := func(key string) string {
			return v.GetString("text." + key + "." + lang.String())
		}
		cfg.Text[lang.String()] = TextConfig{
			Invoice:       get("invoice"),
			Date:          get("date"),
			InvoiceNumber: get("invoice_number"),
			SendTo:        get("send_to"),
			Description:   get("description"),
			Total:         get("total"),
			GrandTotal:    get("grand_total"),
			NameOfBank:    get("name_of_bank"),
			AccountName:   get("account_name"),
			AccountNumber: get("account_number"),
		}
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.Lang == "" {
		cfg.Lang = invoicing.DefaultLocale.String()
	}
	cfg.Lang = strings.ToLower(strings.TrimSpace(cfg.Lang))
	if cfg.Style.FontBold == "" {
		cfg.Style.FontBold = invoicing.DefaultStyle().FontBold
	}
	if cfg.Style.FontNormal == "" {
		cfg.Style.FontNormal = invoicing.DefaultStyle().FontNormal
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Render.Engine == "" {
		cfg.Render.Engine = "gofpdf"
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = 30 * time.Second
	}
	if cfg.Render.MarginMM == 0 {
		cfg.Render.MarginMM = 20
	}
	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = "sqlite"
	}
	if cfg.Ledger.SQLitePath == "" {
		cfg.Ledger.SQLitePath = "invoices.db"
	}
	if cfg.Ledger.MaxAllocationAttempts == 0 {
		cfg.Ledger.MaxAllocationAttempts = 3
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "invoicer"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "memory"
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = "invoicer:issuance"
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 2 * time.Minute
	}
	if cfg.Lock.WaitTimeout == 0 {
		cfg.Lock.WaitTimeout = 30 * time.Second
	}
	if cfg.Lock.RetryInterval == 0 {
		cfg.Lock.RetryInterval = 200 * time.Millisecond
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "none"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.MyInfo.Email
	}
	if cfg.Mail.TLSPolicy == "" {
		cfg.Mail.TLSPolicy = "mandatory"
	}
	if cfg.Mail.Timeout == 0 {
		cfg.Mail.Timeout = 30 * time.Second
	}
	if cfg.Pipeline.CallTimeout == 0 {
		cfg.Pipeline.CallTimeout = 30 * time.Second
	}
	if cfg.Pipeline.Retry.MaxAttempts == 0 {
		cfg.Pipeline.Retry.MaxAttempts = 3
	}
	if cfg.Pipeline.Retry.InitialInterval == 0 {
		cfg.Pipeline.Retry.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Pipeline.Retry.MaxInterval == 0 {
		cfg.Pipeline.Retry.MaxInterval = 5 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "invoicer"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, err := invoicing.ParseLocale(c.Lang); err != nil {
		return fmt.Errorf("lang must be %q or %q, got %q", invoicing.LocaleEN, invoicing.LocaleES, c.Lang)
	}
	if c.Defaults.StartNumber < 0 || c.Defaults.StartNumber > invoicing.MaxNumber {
		return fmt.Errorf("defaults.start_number must be between 0 and %d, got %d", invoicing.MaxNumber, c.Defaults.StartNumber)
	}
	if strings.TrimSpace(c.MyInfo.Name) == "" {
		return fmt.Errorf("myInfo.name is required")
	}

	switch c.Render.Engine {
	case "gofpdf", "chromedp":
	default:
		return fmt.Errorf("render.engine must be gofpdf or chromedp, got %q", c.Render.Engine)
	}

	switch c.Ledger.Driver {
	case "postgres":
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be positive")
		}
		if c.Database.MaxIdleConns < 0 {
			return fmt.Errorf("database.max_idle_conns cannot be negative")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
				c.Database.MaxIdleConns, c.Database.MaxOpenConns)
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("ledger.driver must be postgres, sqlite or memory, got %q", c.Ledger.Driver)
	}
	if c.Ledger.MaxAllocationAttempts < 1 {
		return fmt.Errorf("ledger.max_allocation_attempts must be at least 1")
	}

	switch c.Lock.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("lock.backend must be memory or redis, got %q", c.Lock.Backend)
	}
	if c.Lock.TTL < time.Second {
		return fmt.Errorf("lock.ttl must be at least 1s")
	}

	switch c.Storage.Backend {
	case "none":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.backend is s3")
		}
		if c.Storage.S3.AccessKeyID == "" || c.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when storage.backend is s3")
		}
	case "folder":
		if c.Storage.Folder == "" {
			return fmt.Errorf("storage.folder is required when storage.backend is folder")
		}
	default:
		return fmt.Errorf("storage.backend must be none, s3 or folder, got %q", c.Storage.Backend)
	}

	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			return fmt.Errorf("mail.host is required when mail is enabled")
		}
		if c.Mail.From == "" {
			return fmt.Errorf("mail.from or myInfo.email is required when mail is enabled")
		}
		switch c.Mail.TLSPolicy {
		case "mandatory", "opportunistic", "none":
		default:
			return fmt.Errorf("mail.tls_policy must be mandatory, opportunistic or none, got %q", c.Mail.TLSPolicy)
		}
	}

	if c.Pipeline.Retry.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.retry.max_attempts must be at least 1")
	}
	if c.Pipeline.CallTimeout < 0 {
		return fmt.Errorf("pipeline.call_timeout cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Locale returns the configured document locale
func (c *Config) Locale() invoicing.Locale {
	return invoicing.Locale(c.Lang)
}

// Labels returns the captions configured for locale, completed with the
// built-in ones
func (c *Config) Labels(locale invoicing.Locale) invoicing.Labels {
	t := c.Text[locale.String()]
	return invoicing.Labels{
		Invoice:       t.Invoice,
		Date:          t.Date,
		InvoiceNumber: t.InvoiceNumber,
		SendTo:        t.SendTo,
		Description:   t.Description,
		Total:         t.Total,
		GrandTotal:    t.GrandTotal,
		NameOfBank:    t.NameOfBank,
		AccountName:   t.AccountName,
		AccountNumber: t.AccountNumber,
	}.WithDefaults(locale)
}

// LabelSet returns the captions of every supported locale
func (c *Config) LabelSet() map[invoicing.Locale]invoicing.Labels {
	return map[invoicing.Locale]invoicing.Labels{
		invoicing.LocaleEN: c.Labels(invoicing.LocaleEN),
		invoicing.LocaleES: c.Labels(invoicing.LocaleES),
	}
}

// RenderConfig returns the renderer settings for the configured locale
func (c *Config) RenderConfig() (invoicing.RenderConfig, error) {
	return invoicing.NewRenderConfig(c.Locale(), invoicing.Style{
		FontSizeOffset: c.Style.FontSizeOffset,
		FontBold:       c.Style.FontBold,
		FontNormal:     c.Style.FontNormal,
	}, c.Labels(c.Locale()))
}

// BusinessProfile returns the issuer identity
func (c *Config) BusinessProfile() invoicing.BusinessProfile {
	return invoicing.BusinessProfile{
		Name:            c.MyInfo.Name,
		Address1:        c.MyInfo.Address1,
		Address2:        c.MyInfo.Address2,
		Town:            c.MyInfo.Town,
		Postcode:        c.MyInfo.Postcode,
		TaxID:           c.MyInfo.TaxID,
		Email:           c.MyInfo.Email,
		AccountantEmail: c.MyInfo.AccountantEmail,
		BankName:        c.MyInfo.NameOfBank,
		AccountName:     c.MyInfo.AccountName,
		AccountNumber:   c.MyInfo.AccountNumber,
	}
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
