// Package function describes the scripted function kinds a script object can carry and the
// capability interface handed to each function at execution time.
package function

import (
	"fmt"
	"strings"
)

// Kind identifies one scripted function slot.
type Kind int

// Kind enum values. The order is significant: the assembly builder emits function
// scaffolds in ascending Kind order.
const (
	KindUnspecified Kind = iota
	KindCaseAvailable
	KindCaseBuild
	KindCaseValidate
	KindCaseRelationBuild
	KindCaseRelationValidate
	KindCollectorStart
	KindCollectorApply
	KindCollectorEnd
	KindWageTypeValue
	KindWageTypeResult
	KindPayrunStart
	KindPayrunEmployeeAvailable
	KindPayrunWageTypeAvailable
	KindPayrunEnd
	KindReportBuild
	KindReportStart
	KindReportEnd
)

// DefaultRegion is the insertion region every scaffold carries.
const DefaultRegion = "Function"

type descriptor struct {
	name       string
	entrypoint string
	owner      string
	caps       Capability
}

var descriptors = map[Kind]descriptor{
	KindCaseAvailable:           {"CaseAvailable", "case_available", "Case", CapsCase},
	KindCaseBuild:               {"CaseBuild", "case_build", "Case", CapsCase},
	KindCaseValidate:            {"CaseValidate", "case_validate", "Case", CapsCase},
	KindCaseRelationBuild:       {"CaseRelationBuild", "case_relation_build", "CaseRelation", CapsCase},
	KindCaseRelationValidate:    {"CaseRelationValidate", "case_relation_validate", "CaseRelation", CapsCase},
	KindCollectorStart:          {"CollectorStart", "collector_start", "Collector", CapsPayroll},
	KindCollectorApply:          {"CollectorApply", "collector_apply", "Collector", CapsPayroll},
	KindCollectorEnd:            {"CollectorEnd", "collector_end", "Collector", CapsPayroll},
	KindWageTypeValue:           {"WageTypeValue", "wage_type_value", "WageType", CapsPayroll},
	KindWageTypeResult:          {"WageTypeResult", "wage_type_result", "WageType", CapsPayroll},
	KindPayrunStart:             {"PayrunStart", "payrun_start", "Payrun", CapsPayroll},
	KindPayrunEmployeeAvailable: {"PayrunEmployeeAvailable", "payrun_employee_available", "Payrun", CapsPayroll},
	KindPayrunWageTypeAvailable: {"PayrunWageTypeAvailable", "payrun_wage_type_available", "Payrun", CapsPayroll},
	KindPayrunEnd:               {"PayrunEnd", "payrun_end", "Payrun", CapsPayroll},
	KindReportBuild:             {"ReportBuild", "report_build", "Report", CapsReport},
	KindReportStart:             {"ReportStart", "report_start", "Report", CapsReport},
	KindReportEnd:               {"ReportEnd", "report_end", "Report", CapsReport},
}

// Kinds returns every valid kind in ascending order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(descriptors))
	for k := KindCaseAvailable; k <= KindReportEnd; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind resolves a kind from its name, ignoring case.
func ParseKind(name string) (Kind, error) {
	for kind, d := range descriptors {
		if strings.EqualFold(d.name, strings.TrimSpace(name)) {
			return kind, nil
		}
	}
	return KindUnspecified, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := descriptors[k]
	return ok
}

// String returns a string representation of the Kind.
func (k Kind) String() string {
	if d, ok := descriptors[k]; ok {
		return d.name
	}
	if k == KindUnspecified {
		return "Unspecified"
	}
	return fmt.Sprintf("Unknown(%d)", k)
}

// Entrypoint is the name of the scaffold function that hosts the spliced fragment.
func (k Kind) Entrypoint() string {
	return descriptors[k].entrypoint
}

// Template is the scaffold resource name for this kind.
func (k Kind) Template() string {
	if !k.Valid() {
		return ""
	}
	return k.String() + "Function.star"
}

// Region is the insertion region inside the kind's scaffold.
func (k Kind) Region() string {
	return DefaultRegion
}

// Owner is the script object type that owns functions of this kind.
func (k Kind) Owner() string {
	return descriptors[k].owner
}

// Capabilities is the capability set exposed to functions of this kind.
func (k Kind) Capabilities() Capability {
	return descriptors[k].caps
}

// MarshalText implements encoding.TextMarshaler so kinds can key TOML and YAML maps.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
