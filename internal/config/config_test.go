package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Server.Address(); got != "0.0.0.0:8080" {
		t.Errorf("address = %q", got)
	}
	b := cfg.Billing
	if b.IntakeWorkers != 4 || b.IntakeBuffer != 1024 || b.Currency != "TZS" {
		t.Errorf("billing defaults = %+v", b)
	}
	if !b.AutobillEnabled || !b.AutobillAppointments || !b.AutobillLabOrders {
		t.Errorf("autobilling should default on: %+v", b)
	}
	if b.AutobillPaymentMethod != "cash" {
		t.Errorf("payment method = %q", b.AutobillPaymentMethod)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUTOBILL_LAB_ORDERS", "false")
	t.Setenv("BILLING_NOTIFY_USER_IDS", " billing-desk, ,cashier ")
	t.Setenv("BILLING_SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("BILLING_INTAKE_WORKERS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Billing.AutobillLabOrders {
		t.Error("lab order autobilling should be off")
	}
	if ids := cfg.Billing.NotifyUserIDs; len(ids) != 2 || ids[0] != "billing-desk" || ids[1] != "cashier" {
		t.Errorf("notify ids = %q", ids)
	}
	if cfg.Billing.ShutdownTimeout != 2*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Billing.ShutdownTimeout)
	}
	if cfg.Billing.IntakeWorkers != 4 {
		t.Errorf("unparseable value should fall back, got %d", cfg.Billing.IntakeWorkers)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET is required"},
		{"short production secret", map[string]string{
			"JWT_SECRET": "short", "APP_ENV": "production", "DB_PASSWORD": "pw",
		}, "at least 32 characters"},
		{"plaintext production database", map[string]string{
			"JWT_SECRET": strings.Repeat("s", 32), "APP_ENV": "production", "DB_PASSWORD": "pw", "DB_SSLMODE": "disable",
		}, "DB_SSLMODE=disable"},
		{"staging without password", map[string]string{
			"JWT_SECRET": "dev-secret", "APP_ENV": "staging", "DB_PASSWORD": "",
		}, "DB_PASSWORD is required"},
		{"no workers", map[string]string{"JWT_SECRET": "dev-secret", "BILLING_INTAKE_WORKERS": "0"}, "BILLING_INTAKE_WORKERS"},
		{"unknown payment method", map[string]string{"JWT_SECRET": "dev-secret", "AUTOBILL_DEFAULT_PAYMENT_METHOD": "barter"}, "AUTOBILL_DEFAULT_PAYMENT_METHOD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
