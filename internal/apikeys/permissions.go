package apikeys

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/synapseiq/secadmin/internal/errs"
)

// Permission scopes an API key may carry.
const (
	PermissionReadData  = "read:data"
	PermissionWriteData = "write:data"
	PermissionReadLogs  = "read:logs"
	PermissionAdmin     = "admin"
)

// DefaultPermissions is applied when a key is created without scopes.
var DefaultPermissions = []string{PermissionReadData}

// Definition describes an API key permission scope.
type Definition struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var definitions = []Definition{
	{Key: PermissionReadData, Label: "Read site data"},
	{Key: PermissionWriteData, Label: "Modify site data"},
	{Key: PermissionReadLogs, Label: "Read security logs"},
	{Key: PermissionAdmin, Label: "Full administrative access"},
}

var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}()

// Definitions returns a copy of all permission definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// NormalizePermissions trims, de-duplicates, and sorts permissions.
func NormalizePermissions(perms []string) []string {
	if len(perms) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	return normalized
}

// ValidatePermissions validates that all permissions exist in the definition set.
func ValidatePermissions(perms []string) error {
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := definitionMap[trimmed]; !ok {
			return fmt.Errorf("invalid permission %q: %w", trimmed, errs.ErrValidation)
		}
	}
	return nil
}

// ParsePermissions parses and normalizes permissions from JSON.
func ParsePermissions(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return []string{}
	}
	return NormalizePermissions(perms)
}

// MarshalPermissions serializes normalized permissions to JSON.
func MarshalPermissions(perms []string) ([]byte, error) {
	return json.Marshal(NormalizePermissions(perms))
}

// HasPermission reports whether perms grants key. The admin scope grants everything.
func HasPermission(perms []string, key string) bool {
	if key == "" {
		return false
	}
	for _, perm := range perms {
		if perm == key || perm == PermissionAdmin {
			return true
		}
	}
	return false
}

// RequiresAdmin reports whether perms contains a scope only admins may hold.
func RequiresAdmin(perms []string) bool {
	for _, perm := range perms {
		switch strings.TrimSpace(perm) {
		case PermissionReadLogs, PermissionAdmin:
			return true
		}
	}
	return false
}
