package pricing

import (
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/google/uuid"
)

// Predicate reports whether a normalized service name satisfies a rule.
type Predicate func(name string) bool

// Contains matches names containing term. The term is normalized the same way
// as names, so "x-ray" and "2/wk" compare against "x ray" and "2 wk".
func Contains(term string) Predicate {
	t := Normalize(term)
	return func(name string) bool {
		return t != "" && strings.Contains(name, t)
	}
}

func AllOf(ps ...Predicate) Predicate {
	return func(name string) bool {
		for _, p := range ps {
			if !p(name) {
				return false
			}
		}
		return true
	}
}

func AnyOf(ps ...Predicate) Predicate {
	return func(name string) bool {
		for _, p := range ps {
			if p(name) {
				return true
			}
		}
		return false
	}
}

func Not(p Predicate) Predicate {
	return func(name string) bool { return !p(name) }
}

// Rule pairs a predicate with the tag reported when it fires.
type Rule struct {
	Tag   string
	Match Predicate
}

// RuleSet classifies a service name. Any exclusion rule vetoes the name;
// otherwise the first inclusion rule that fires decides the tag.
type RuleSet struct {
	Exclude []Rule
	Include []Rule
}

func (rs RuleSet) Classify(serviceName string) (string, bool) {
	name := Normalize(serviceName)
	for _, r := range rs.Exclude {
		if r.Match(name) {
			return "", false
		}
	}
	for _, r := range rs.Include {
		if r.Match(name) {
			return r.Tag, true
		}
	}
	return "", false
}

func containsAny(tag string, terms ...string) Rule {
	ps := make([]Predicate, len(terms))
	for i, t := range terms {
		ps[i] = Contains(t)
	}
	return Rule{Tag: tag, Match: AnyOf(ps...)}
}

var weeklyMarker = AnyOf(Contains("2/wk"), Contains("weekly"))

var specialistWeekly = Rule{Tag: "specialist-weekly", Match: AllOf(Contains("specialist"), weeklyMarker)}

// Medications, procedures, tests and imaging are never a consultation fee.
var nonConsultationTerms = []Rule{
	containsAny("medication", "injection", "tablet", "capsule", "syrup", "ointment", "drops"),
	containsAny("procedure", "surgery", "operation", "biopsy"),
	containsAny("lab", "test", "blood", "urine"),
	containsAny("imaging", "x-ray", "ultrasound", "scan"),
}

var (
	consultationRules = RuleSet{
		Exclude: nonConsultationTerms,
		Include: []Rule{
			specialistWeekly,
			{Tag: "super-specialist", Match: Contains("super specialist")},
			{Tag: "consultation", Match: Contains("consultation")},
			{Tag: "doctor", Match: AllOf(Contains("doctor"), Not(Contains("visit")))},
			{Tag: "physician", Match: Contains("physician")},
		},
	}

	followUpRules = RuleSet{
		Include: []Rule{
			{Tag: "follow-up-assessment", Match: AllOf(Contains("follow"), Contains("assessment"))},
		},
	}

	emergencyRules = RuleSet{
		Exclude: []Rule{containsAny("dental-or-surgical", "pulpotomy", "surgery")},
		Include: []Rule{{Tag: "emergency", Match: Contains("emergency")}},
	}

	fallbackRules = RuleSet{Include: []Rule{specialistWeekly}}
)

// ConsultationRules returns the rule set for an appointment type. Unknown
// types have no rules of their own and go straight to the fallback.
func ConsultationRules(t appointment.AppointmentType) (RuleSet, bool) {
	switch t {
	case appointment.TypeConsultation:
		return consultationRules, true
	case appointment.TypeFollowUp:
		return followUpRules, true
	case appointment.TypeEmergency:
		return emergencyRules, true
	}
	return RuleSet{}, false
}

// ConsultationCost is the fee charged for seeing a doctor. The zero value
// means no consultation fee applies.
type ConsultationCost struct {
	Price       int64     `json:"price"`
	ServiceName string    `json:"service_name"`
	ServiceID   uuid.UUID `json:"service_id,omitempty"`
	Category    Category  `json:"category,omitempty"`
	Rule        string    `json:"rule,omitempty"`
}

func (c ConsultationCost) IsZero() bool {
	return c.ServiceName == "" && c.Price == 0
}

// ResolveConsultationCost picks the consultation fee for an appointment type.
// The first rule-matched entry in catalog order wins. The department is part
// of the call because callers resolve again whenever it changes; it does not
// reorder matches.
func ResolveConsultationCost(c Catalog, t appointment.AppointmentType, _ string) ConsultationCost {
	if rs, ok := ConsultationRules(t); ok {
		if cost, ok := firstClassified(c, rs); ok {
			return cost
		}
	}
	if cost, ok := firstClassified(c, fallbackRules); ok {
		return cost
	}
	return ConsultationCost{}
}

func firstClassified(c Catalog, rs RuleSet) (ConsultationCost, bool) {
	for _, p := range c {
		tag, ok := rs.Classify(p.ServiceName)
		if !ok {
			continue
		}
		return ConsultationCost{
			Price:       p.Price,
			ServiceName: p.ServiceName,
			ServiceID:   p.ID,
			Category:    p.Category,
			Rule:        tag,
		}, true
	}
	return ConsultationCost{}, false
}
