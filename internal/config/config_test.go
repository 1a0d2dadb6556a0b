package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func newViper(values map[string]string) *viper.Viper {
	v := viper.New()
	v.SetDefault("PLATFORM_FEE_PERCENT", "3")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]string{
		"FRONTEND_URL":  "https://courses.example.com/",
		"KAFKA_BROKERS": "kafka-1:9092, kafka-2:9092,,",
	}))
	if err != nil {
		t.Fatalf("fromViper returned error: %v", err)
	}

	if !cfg.EarnerPercent().Equal(decimal.RequireFromString("0.97")) {
		t.Errorf("EarnerPercent() = %s; want 0.97", cfg.EarnerPercent())
	}
	if cfg.GatewayTimeout != 10*time.Second {
		t.Errorf("GatewayTimeout = %v; want 10s", cfg.GatewayTimeout)
	}
	if cfg.FrontendURL != "https://courses.example.com" {
		t.Errorf("FrontendURL = %q; want trailing slash trimmed", cfg.FrontendURL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokers = %v; want two trimmed brokers", cfg.KafkaBrokers)
	}
	if err := cfg.RequireDatabase(); err == nil {
		t.Error("RequireDatabase() should fail without DATABASE_URL")
	}
}

func TestFromViperRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{name: "fee not a number", values: map[string]string{"PLATFORM_FEE_PERCENT": "three"}},
		{name: "negative fee", values: map[string]string{"PLATFORM_FEE_PERCENT": "-1"}},
		{name: "fee above 100", values: map[string]string{"PLATFORM_FEE_PERCENT": "100.5"}},
		{name: "bad timeout", values: map[string]string{"GATEWAY_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fromViper(newViper(tt.values)); err == nil {
				t.Errorf("fromViper(%v) succeeded; want error", tt.values)
			}
		})
	}
}
