package billing

import (
	"errors"
	"testing"
)

func TestShouldAutobill(t *testing.T) {
	all := DefaultAutobillingConfig()

	off := all
	off.Enabled = false

	noLabs := all
	noLabs.ForLabOrders = false

	tests := []struct {
		name    string
		trigger Trigger
		cfg     AutobillingConfig
		want    bool
	}{
		{"appointment with defaults", TriggerAppointmentCreated, all, true},
		{"record with defaults", TriggerMedicalRecordCreated, all, true},
		{"prescription with defaults", TriggerPrescriptionDispensed, all, true},
		{"lab order with defaults", TriggerLabOrderCompleted, all, true},
		{"global switch off", TriggerAppointmentCreated, off, false},
		{"global switch off beats trigger flag", TriggerLabOrderCompleted, off, false},
		{"trigger flag off", TriggerLabOrderCompleted, noLabs, false},
		{"other triggers unaffected", TriggerPrescriptionDispensed, noLabs, true},
		{"zero config", TriggerAppointmentCreated, AutobillingConfig{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldAutobill(tt.trigger, tt.cfg); got != tt.want {
				t.Errorf("ShouldAutobill(%s) = %v, want %v", tt.trigger, got, tt.want)
			}
		})
	}
}

func TestTrigger_SourceKind(t *testing.T) {
	want := map[Trigger]SourceKind{
		TriggerAppointmentCreated:    SourceAppointment,
		TriggerMedicalRecordCreated:  SourceMedicalRecord,
		TriggerPrescriptionDispensed: SourcePrescription,
		TriggerLabOrderCompleted:     SourceLabOrder,
	}
	for _, tr := range Triggers() {
		if got := tr.SourceKind(); got != want[tr] {
			t.Errorf("%s.SourceKind() = %s, want %s", tr, got, want[tr])
		}
	}

	defer func() {
		if recover() == nil {
			t.Error("unknown trigger should panic")
		}
	}()
	Trigger("invoice_sent").SourceKind()
}

func TestAutobillingConfig_Apply(t *testing.T) {
	off := false
	mobile := PaymentMobileMoney

	cfg, err := DefaultAutobillingConfig().Apply(AutobillingPatch{
		ForPrescriptions:     &off,
		DefaultPaymentMethod: &mobile,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.ForPrescriptions || !cfg.ForAppointments || !cfg.Enabled {
		t.Errorf("patch touched unset fields: %+v", cfg)
	}
	if cfg.DefaultPaymentMethod != PaymentMobileMoney {
		t.Errorf("payment method = %q", cfg.DefaultPaymentMethod)
	}

	bad := PaymentMethod("cheque")
	if _, err := cfg.Apply(AutobillingPatch{DefaultPaymentMethod: &bad}); !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Errorf("err = %v, want ErrInvalidPaymentMethod", err)
	}
}

func TestConfigHolder(t *testing.T) {
	h := NewConfigHolder(DefaultAutobillingConfig())

	var calls int
	var lastOld, lastNew AutobillingConfig
	h.Subscribe(func(old, updated AutobillingConfig) {
		calls++
		lastOld, lastNew = old, updated
	})

	off := false
	updated, err := h.Update(AutobillingPatch{Enabled: &off})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Enabled || h.Current().Enabled {
		t.Error("update not applied")
	}
	if calls != 1 || !lastOld.Enabled || lastNew.Enabled {
		t.Errorf("subscriber saw calls=%d old=%+v new=%+v", calls, lastOld, lastNew)
	}

	bad := PaymentMethod("barter")
	if _, err := h.Update(AutobillingPatch{DefaultPaymentMethod: &bad}); err == nil {
		t.Error("expected error for invalid payment method")
	}
	if err := h.Replace(AutobillingConfig{DefaultPaymentMethod: bad}); err == nil {
		t.Error("expected Replace to validate")
	}
	if calls != 1 {
		t.Errorf("failed changes must not notify, calls=%d", calls)
	}
	if h.Current().DefaultPaymentMethod != PaymentCash {
		t.Errorf("failed change leaked: %+v", h.Current())
	}

	if err := h.Replace(DefaultAutobillingConfig()); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if calls != 2 || !h.Current().Enabled {
		t.Errorf("Replace not applied or not announced: calls=%d cfg=%+v", calls, h.Current())
	}
}
