// Package domain holds the engine entities the scripting core consumes: script objects, tasks
// and audit log entries.
package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/cespare/xxhash/v2"
)

var (
	// ErrDomain is the base error for domain validation.
	ErrDomain = errors.New("domain error")

	// ErrInvalidObjectType indicates an unknown script object type.
	ErrInvalidObjectType = fmt.Errorf("%w: invalid object type", ErrDomain)

	// ErrInvalidTenant indicates a tenant id that is not positive.
	ErrInvalidTenant = fmt.Errorf("%w: tenant id must be positive", ErrDomain)

	// ErrKindMismatch indicates a function kind assigned to an object type that does not own it.
	ErrKindMismatch = fmt.Errorf("%w: function kind does not belong to object type", ErrDomain)
)

// ObjectType identifies the kind of scripted object. It is the type component of cache keys.
type ObjectType string

const (
	ObjectCase         ObjectType = "Case"
	ObjectCaseRelation ObjectType = "CaseRelation"
	ObjectCollector    ObjectType = "Collector"
	ObjectWageType     ObjectType = "WageType"
	ObjectPayrun       ObjectType = "Payrun"
	ObjectReport       ObjectType = "Report"
)

var objectTypes = []ObjectType{
	ObjectCase, ObjectCaseRelation, ObjectCollector, ObjectWageType, ObjectPayrun, ObjectReport,
}

// ParseObjectType resolves a type name, ignoring case.
func ParseObjectType(name string) (ObjectType, error) {
	for _, t := range objectTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidObjectType, name)
}

func (t ObjectType) Valid() bool {
	return slices.Contains(objectTypes, t)
}

func (t ObjectType) String() string {
	return string(t)
}

// Script is an additional raw source unit compiled after the function scaffolds.
type Script struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ScriptObject is a tenant-owned entity carrying function fragments and optionally its compiled
// binary. A content change yields a new ScriptHash and therefore a new cache entry.
type ScriptObject struct {
	ID              int64                    `json:"id"`
	TenantID        int                      `json:"tenantId"`
	Type            ObjectType               `json:"type"`
	Name            string                   `json:"name"`
	FunctionScripts map[function.Kind]string `json:"functions"`
	Scripts         []Script                 `json:"scripts,omitempty"`
	Binary          []byte                   `json:"-"`
	ScriptHash      int64                    `json:"scriptHash"`
}

// ComputeScriptHash fingerprints function fragments and raw scripts. The result is never zero.
func ComputeScriptHash(functionScripts map[function.Kind]string, scripts []Script) int64 {
	kinds := make([]function.Kind, 0, len(functionScripts))
	for kind := range functionScripts {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	d := xxhash.New()
	for _, kind := range kinds {
		_, _ = d.WriteString(kind.String())
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(functionScripts[kind])
		_, _ = d.WriteString("\x00")
	}
	for _, s := range scripts {
		_, _ = d.WriteString(s.Name)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(s.Value)
		_, _ = d.WriteString("\x00")
	}

	hash := int64(d.Sum64())
	if hash == 0 {
		return 1
	}
	return hash
}

// UpdateHash recomputes ScriptHash from the current fragments.
func (o *ScriptObject) UpdateHash() {
	o.ScriptHash = ComputeScriptHash(o.FunctionScripts, o.Scripts)
}

// Kinds returns the function kinds carried by the object in ascending order.
func (o *ScriptObject) Kinds() []function.Kind {
	kinds := make([]function.Kind, 0, len(o.FunctionScripts))
	for kind := range o.FunctionScripts {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// Validate checks the object identity and that every function kind belongs to its type.
func (o *ScriptObject) Validate() error {
	var errs []error
	if o.TenantID <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidTenant, o.TenantID))
	}
	if !o.Type.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidObjectType, o.Type))
	}
	for _, kind := range o.Kinds() {
		if !kind.Valid() {
			errs = append(errs, fmt.Errorf("%w: %d", function.ErrUnknownKind, int(kind)))
			continue
		}
		if o.Type.Valid() && kind.Owner() != string(o.Type) {
			errs = append(errs, fmt.Errorf("%w: %s on %s", ErrKindMismatch, kind, o.Type))
		}
	}
	return errors.Join(errs...)
}
