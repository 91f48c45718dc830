package billing

import "fmt"

// Trigger is a clinical event that may raise a bill automatically.
type Trigger string

const (
	TriggerAppointmentCreated    Trigger = "appointment_created"
	TriggerMedicalRecordCreated  Trigger = "medical_record_created"
	TriggerPrescriptionDispensed Trigger = "prescription_dispensed"
	TriggerLabOrderCompleted     Trigger = "lab_order_completed"
)

func Triggers() []Trigger {
	return []Trigger{
		TriggerAppointmentCreated,
		TriggerMedicalRecordCreated,
		TriggerPrescriptionDispensed,
		TriggerLabOrderCompleted,
	}
}

// SourceKind is the kind of entity the trigger bills.
func (t Trigger) SourceKind() SourceKind {
	switch t {
	case TriggerAppointmentCreated:
		return SourceAppointment
	case TriggerMedicalRecordCreated:
		return SourceMedicalRecord
	case TriggerPrescriptionDispensed:
		return SourcePrescription
	case TriggerLabOrderCompleted:
		return SourceLabOrder
	}
	panic(fmt.Sprintf("billing: unknown trigger %q", string(t)))
}

type AutobillingConfig struct {
	Enabled              bool          `json:"enabled"`
	ForAppointments      bool          `json:"auto_generate_for_appointments"`
	ForMedicalRecords    bool          `json:"auto_generate_for_medical_records"`
	ForPrescriptions     bool          `json:"auto_generate_for_prescriptions"`
	ForLabOrders         bool          `json:"auto_generate_for_lab_orders"`
	DefaultPaymentMethod PaymentMethod `json:"default_payment_method"`
}

func DefaultAutobillingConfig() AutobillingConfig {
	return AutobillingConfig{
		Enabled:              true,
		ForAppointments:      true,
		ForMedicalRecords:    true,
		ForPrescriptions:     true,
		ForLabOrders:         true,
		DefaultPaymentMethod: PaymentCash,
	}
}

func (c AutobillingConfig) Validate() error {
	if c.DefaultPaymentMethod != "" && !c.DefaultPaymentMethod.IsValid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// ShouldAutobill reports whether t raises a bill under cfg: the global switch
// and the trigger's own flag must both be on.
func ShouldAutobill(t Trigger, cfg AutobillingConfig) bool {
	if !cfg.Enabled {
		return false
	}
	switch t {
	case TriggerAppointmentCreated:
		return cfg.ForAppointments
	case TriggerMedicalRecordCreated:
		return cfg.ForMedicalRecords
	case TriggerPrescriptionDispensed:
		return cfg.ForPrescriptions
	case TriggerLabOrderCompleted:
		return cfg.ForLabOrders
	}
	panic(fmt.Sprintf("billing: unknown trigger %q", string(t)))
}

// AutobillingPatch changes only the fields that are set.
type AutobillingPatch struct {
	Enabled              *bool          `json:"enabled"`
	ForAppointments      *bool          `json:"auto_generate_for_appointments"`
	ForMedicalRecords    *bool          `json:"auto_generate_for_medical_records"`
	ForPrescriptions     *bool          `json:"auto_generate_for_prescriptions"`
	ForLabOrders         *bool          `json:"auto_generate_for_lab_orders"`
	DefaultPaymentMethod *PaymentMethod `json:"default_payment_method"`
}

func (c AutobillingConfig) Apply(p AutobillingPatch) (AutobillingConfig, error) {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.ForAppointments != nil {
		c.ForAppointments = *p.ForAppointments
	}
	if p.ForMedicalRecords != nil {
		c.ForMedicalRecords = *p.ForMedicalRecords
	}
	if p.ForPrescriptions != nil {
		c.ForPrescriptions = *p.ForPrescriptions
	}
	if p.ForLabOrders != nil {
		c.ForLabOrders = *p.ForLabOrders
	}
	if p.DefaultPaymentMethod != nil {
		c.DefaultPaymentMethod = *p.DefaultPaymentMethod
	}
	if err := c.Validate(); err != nil {
		return AutobillingConfig{}, err
	}
	return c, nil
}
