package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries operator-tunable billing defaults. It is loaded from
// an optional billing.yml and hot-reloaded when the file changes.
type BillingConfig struct {
	DueDays                int    `mapstructure:"dueDays"`
	DefaultProrationMethod string `mapstructure:"defaultProrationMethod"`
	InvoiceNumberPrefix    string `mapstructure:"invoiceNumberPrefix"`
	CreditNoteNumberPrefix string `mapstructure:"creditNoteNumberPrefix"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DueDays:                14,
		DefaultProrationMethod: "actual_days",
		InvoiceNumberPrefix:    "INV",
		CreditNoteNumberPrefix: "CN",
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tenancy/config")
	v.AddConfigPath("/etc/tenancy")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TENANCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.dueDays", defaults.DueDays)
	v.SetDefault("billing.defaultProrationMethod", defaults.DefaultProrationMethod)
	v.SetDefault("billing.invoiceNumberPrefix", defaults.InvoiceNumberPrefix)
	v.SetDefault("billing.creditNoteNumberPrefix", defaults.CreditNoteNumberPrefix)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config with no file watching.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.DueDays < 0 {
		return errors.New("billing.dueDays must not be negative")
	}
	switch cfg.DefaultProrationMethod {
	case "actual_days", "thirty_day":
	default:
		return errors.New("billing.defaultProrationMethod must be actual_days or thirty_day")
	}
	if strings.TrimSpace(cfg.InvoiceNumberPrefix) == "" {
		return errors.New("billing.invoiceNumberPrefix must not be empty")
	}
	if strings.TrimSpace(cfg.CreditNoteNumberPrefix) == "" {
		return errors.New("billing.creditNoteNumberPrefix must not be empty")
	}
	return nil
}
