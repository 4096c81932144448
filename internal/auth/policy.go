package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/rendis/procdoc/internal/expressions"
	"github.com/rendis/procdoc/pkg/schema"
)

// Authorization actions.
const (
	ActionDocumentsRead   = "documents.read"
	ActionDocumentsWrite  = "documents.write"
	ActionDocumentsDelete = "documents.delete"
	ActionUsersManage     = "users.manage"
	ActionCatalogueWrite  = "catalogue.write"
	ActionReportsRun      = "reports.run"
)

// DefaultPolicies maps every action to its default CEL rule.
func DefaultPolicies() map[string]string {
	anyRole := `user.role in ["admin", "editor", "viewer"]`
	authors := `user.role in ["admin", "editor"]`
	admins := `user.role == "admin"`
	return map[string]string{
		ActionDocumentsRead:   anyRole,
		ActionReportsRun:      anyRole,
		ActionDocumentsWrite:  authors,
		ActionCatalogueWrite:  authors,
		ActionDocumentsDelete: admins,
		ActionUsersManage:     admins,
	}
}

// Policy authorizes principals against per-action CEL rules.
type Policy struct {
	engine *expressions.CELEngine
	rules  map[string]string
}

// NewPolicy merges overrides onto the defaults and compiles every rule.
func NewPolicy(engine *expressions.CELEngine, overrides map[string]string) (*Policy, error) {
	rules := DefaultPolicies()
	for action, rule := range overrides {
		rules[action] = rule
	}
	for _, action := range sortedKeys(rules) {
		if err := engine.Check(rules[action]); err != nil {
			return nil, fmt.Errorf("policy %q: %w", action, err)
		}
	}
	return &Policy{engine: engine, rules: rules}, nil
}

// Rules returns a copy of the effective rules.
func (p *Policy) Rules() map[string]string {
	out := make(map[string]string, len(p.rules))
	for k, v := range p.rules {
		out[k] = v
	}
	return out
}

// Authorize returns nil when principal may perform action on resource.
// Resources of another tenant are always rejected.
func (p *Policy) Authorize(ctx context.Context, principal Principal, action string, resource map[string]any) error {
	if tid, ok := resource["tenant_id"].(string); ok && tid != "" && tid != principal.TenantID {
		return forbidden(action)
	}
	rule, ok := p.rules[action]
	if !ok {
		return forbidden(action)
	}

	out, err := p.engine.Evaluate(ctx, rule, map[string]any{
		"user": map[string]any{
			"id":        principal.UserID,
			"tenant_id": principal.TenantID,
			"role":      string(principal.Role),
		},
		"resource": resource,
		"request":  map[string]any{"action": action},
	})
	if err != nil {
		return err
	}
	if allowed, _ := out.(bool); !allowed {
		return forbidden(action)
	}
	return nil
}

func forbidden(action string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeForbidden, "not allowed to perform %s", action).
		WithDetails(map[string]any{"action": action})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
