package core

import (
	"fmt"
	"strings"
)

type CodesConfig struct {
	Prefix       string `koanf:"prefix" mapstructure:"prefix"`
	Width        int    `koanf:"width" mapstructure:"width"`
	Strategy     string `koanf:"strategy" mapstructure:"strategy"`
	SequenceName string `koanf:"sequence_name" mapstructure:"sequence_name"`
	MaxAttempts  int    `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type LoansConfig struct {
	MaxTermMonths int `koanf:"max_term_months" mapstructure:"max_term_months"`
}

type RemindersConfig struct {
	Schedule string `koanf:"schedule" mapstructure:"schedule"`
	LeadDays int    `koanf:"lead_days" mapstructure:"lead_days"`
}

type OutboxConfig struct {
	BatchSize   int `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Codes       CodesConfig     `koanf:"codes" mapstructure:"codes"`
	Loans       LoansConfig     `koanf:"loans" mapstructure:"loans"`
	Reminders   RemindersConfig `koanf:"reminders" mapstructure:"reminders"`
	Outbox      OutboxConfig    `koanf:"outbox" mapstructure:"outbox"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "loans",
		Codes: CodesConfig{
			Prefix:       DefaultCodePrefix,
			Width:        DefaultCodeWidth,
			Strategy:     CodeStrategySequence,
			SequenceName: DefaultGrantCodeSequence,
			MaxAttempts:  3,
		},
		Loans: LoansConfig{
			MaxTermMonths: 120,
		},
		Reminders: RemindersConfig{
			Schedule: "0 8 * * *",
			LeadDays: 3,
		},
		Outbox: OutboxConfig{
			BatchSize:   50,
			MaxAttempts: 5,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if err := (CodeFormat{Prefix: c.Codes.Prefix, Width: c.Codes.Width}).Validate(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Codes.Strategy)) {
	case CodeStrategySequence, CodeStrategyLocked, CodeStrategyLegacy:
	default:
		return fmt.Errorf("core: codes.strategy %q is invalid", c.Codes.Strategy)
	}
	if c.Codes.MaxAttempts <= 0 {
		return fmt.Errorf("core: codes.max_attempts must be positive")
	}
	if c.Loans.MaxTermMonths <= 0 {
		return fmt.Errorf("core: loans.max_term_months must be positive")
	}
	if c.Reminders.LeadDays < 0 {
		return fmt.Errorf("core: reminders.lead_days must be >= 0")
	}
	if strings.TrimSpace(c.Reminders.Schedule) != "" {
		if _, err := ParseReminderSchedule(c.Reminders.Schedule); err != nil {
			return err
		}
	}
	return nil
}
