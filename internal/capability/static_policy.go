package capability

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/bazaar/model"
)

// Console roles as reported by the marketplace backend.
const (
	RoleAdmin    = "admin"
	RoleSubadmin = "subadmin"
)

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// DefaultPolicy is used when no policy file is configured. Admins may do
// everything; subadmins may do everything except manage the team and read
// the audit trail.
func DefaultPolicy() map[string][]string {
	return map[string][]string{
		RoleAdmin: {"*"},
		RoleSubadmin: {
			model.ViewCapability(model.ResourceDashboard),
			"profile:*",
			"categories:*",
			"products:*",
			"vendors:*",
			"users:*",
			"orders:*",
			"payouts:*",
		},
	}
}

// StaticPolicyEvaluator resolves capabilities from a static role map, loaded
// from a YAML file or taken from DefaultPolicy.
type StaticPolicyEvaluator struct {
	path   string
	mu     sync.RWMutex
	policy policyFile
}

// NewStaticPolicyEvaluator loads the policy at path. An empty path selects
// DefaultPolicy.
func NewStaticPolicyEvaluator(path string) (*StaticPolicyEvaluator, error) {
	e := &StaticPolicyEvaluator{path: path}
	if err := e.Sync(); err != nil {
		return nil, err
	}
	return e, nil
}

// ResolveCapabilities returns the union of capabilities for all roles in the
// request context. Role names are matched case-insensitively.
func (e *StaticPolicyEvaluator) ResolveCapabilities(rctx *model.RequestContext) (model.CapabilitySet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	caps := make(model.CapabilitySet)
	for _, role := range rctx.Roles {
		for _, c := range e.policy.Roles[normalizeRole(role)] {
			caps[c] = true
		}
	}
	return caps, nil
}

// Evaluate checks a single capability against the resolved set.
func (e *StaticPolicyEvaluator) Evaluate(rctx *model.RequestContext, capability string) (bool, error) {
	caps, err := e.ResolveCapabilities(rctx)
	if err != nil {
		return false, err
	}
	return caps.Has(capability), nil
}

// EvaluateAll checks multiple capabilities at once.
func (e *StaticPolicyEvaluator) EvaluateAll(rctx *model.RequestContext, capabilities []string) (map[string]bool, error) {
	caps, err := e.ResolveCapabilities(rctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		result[c] = caps.Has(c)
	}
	return result, nil
}

// Sync reloads the policy file from disk.
func (e *StaticPolicyEvaluator) Sync() error {
	if e.path == "" {
		e.mu.Lock()
		e.policy = policyFile{Roles: DefaultPolicy()}
		e.mu.Unlock()
		return nil
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("capability: reading policy file %s: %w", e.path, err)
	}

	var p policyFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("capability: parsing policy file %s: %w", e.path, err)
	}
	normalized := make(map[string][]string, len(p.Roles))
	for role, caps := range p.Roles {
		normalized[normalizeRole(role)] = caps
	}
	p.Roles = normalized

	e.mu.Lock()
	e.policy = p
	e.mu.Unlock()

	return nil
}
