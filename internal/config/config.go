package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidRecipient     = errors.New("RECIPIENT_ADDRESS must be a hex address")
	ErrInvalidTokenContract = errors.New("TOKEN_CONTRACT_ADDRESS must be a hex address")
	ErrInvalidPollInterval  = errors.New("RECEIPT_POLL_INTERVAL must be positive")
	ErrInvalidDecimals      = errors.New("TOKEN_DECIMALS must be between 0 and 36")
)

type App struct {
	Title                  string   `env:"APP_TITLE" envDefault:"B3TR BEACH Store"`
	Description            string   `env:"APP_DESCRIPTION" envDefault:"Shop for eco-friendly merchandise and pay with B3TR tokens!"`
	Icons                  []string `env:"APP_ICONS" envSeparator:","`
	WalletConnectProjectID string   `env:"WALLET_CONNECT_PROJECT_ID"`
}

type Chain struct {
	NodeURL          string  `env:"NODE_URL" envDefault:"https://mainnet.vechain.org"`
	Network          string  `env:"NETWORK" envDefault:"main"`
	RecipientAddress string  `env:"RECIPIENT_ADDRESS" envDefault:"0x8d5fb3e576bbe08279a3a64194c01b36d4bbb0c9"`
	TokenContract    string  `env:"TOKEN_CONTRACT_ADDRESS" envDefault:"0x7c255e1a8da128f7b2770875d32cc82e4f4e6d54"`
	TokenSymbol      string  `env:"TOKEN_SYMBOL" envDefault:"B3TR"`
	TokenDecimals    int32   `env:"TOKEN_DECIMALS" envDefault:"18"`
	GasSymbol        string  `env:"GAS_SYMBOL" envDefault:"VTHO"`
	MinGasBalance    float64 `env:"MIN_GAS_BALANCE" envDefault:"1"`
	GasLimit         uint64  `env:"GAS_LIMIT" envDefault:"150000"`
}

type Checkout struct {
	SignerURL           string        `env:"SIGNER_URL" envDefault:"http://localhost:8090"`
	DelegationURL       string        `env:"DELEGATION_URL"`
	ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL" envDefault:"7s"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	NotifyTimeout       time.Duration `env:"RECEIPT_NOTIFY_TIMEOUT" envDefault:"30s"`
}

type SMTP struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"MAIL_FROM"`
}

// Enabled reports whether every SMTP setting is present.
func (s SMTP) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.User != "" && s.Password != "" && s.From != ""
}

type Kafka struct {
	BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	Topic            string `env:"KAFKA_TOPIC" envDefault:"successful_payments"`
	GroupID          string `env:"KAFKA_GROUP_ID" envDefault:"storefront_receipts"`
}

func (k Kafka) Enabled() bool {
	return k.Servers() != ""
}

// Servers strips the quotes some compose files leave around the value.
func (k Kafka) Servers() string {
	return strings.Trim(k.BootstrapServers, "\"")
}

type Config struct {
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	HTTPTimeout    time.Duration `env:"HTTP_HANDLER_TIMEOUT" envDefault:"6m"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	AdminPassword  string        `env:"ADMIN_PASSWORD" envDefault:"b3tr2025"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	MigrationsPath string        `env:"MIGRATIONS_PATH" envDefault:"file://db/migrations"`

	App      App
	Chain    Chain
	Checkout Checkout
	SMTP     SMTP
	Kafka    Kafka
}

// Load reads envFile (if present) into the process environment and parses Config.
func Load(envFile string) (Config, error) {
	const op = "config.Load"

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.WithField("file", envFile).Warn("Could not load .env file.")
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if !common.IsHexAddress(c.Chain.RecipientAddress) {
		errs = append(errs, ErrInvalidRecipient)
	}
	if !common.IsHexAddress(c.Chain.TokenContract) {
		errs = append(errs, ErrInvalidTokenContract)
	}
	if c.Checkout.ReceiptPollInterval <= 0 {
		errs = append(errs, ErrInvalidPollInterval)
	}
	if c.Chain.TokenDecimals < 0 || c.Chain.TokenDecimals > 36 {
		errs = append(errs, ErrInvalidDecimals)
	}
	return errors.Join(errs...)
}

// Fields returns the non-secret settings for the startup log line.
func (c Config) Fields() log.Fields {
	return log.Fields{
		"http_addr":       c.HTTPAddr,
		"node_url":        c.Chain.NodeURL,
		"network":         c.Chain.Network,
		"recipient":       c.Chain.RecipientAddress,
		"token_contract":  c.Chain.TokenContract,
		"signer_url":      c.Checkout.SignerURL,
		"poll_interval":   c.Checkout.ReceiptPollInterval.String(),
		"database":        c.DatabaseURL != "",
		"kafka":           c.Kafka.Enabled(),
		"smtp":            c.SMTP.Enabled(),
		"wallet_connect":  c.App.WalletConnectProjectID != "",
		"delegation_used": c.Checkout.DelegationURL != "",
	}
}
