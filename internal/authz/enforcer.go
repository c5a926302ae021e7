// Package authz decides which roles may perform which action on an entity.
package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/domain"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Actions checked against the policy.
const (
	ActionList   = "list"
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionStats  = "stats"
	ActionExport = "export"
)

type Config struct {
	ModelPath  string
	PolicyPath string
}

type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads model and policy from the given paths, falling back to the embedded copies.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return &Enforcer{enforcer: enforcer}, nil
}

func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		ptype, rule := parts[0], parts[1:]

		var err error
		switch {
		case ptype == "p" && len(rule) >= 3:
			_, err = enforcer.AddPolicy(rule[0], rule[1], rule[2])
		case ptype == "g" && len(rule) >= 2:
			_, err = enforcer.AddGroupingPolicy(rule[0], rule[1])
		case ptype == "g2" && len(rule) >= 2:
			_, err = enforcer.AddNamedGroupingPolicy("g2", rule[0], rule[1])
		}
		if err != nil {
			return fmt.Errorf("failed to add policy %v: %w", parts, err)
		}
	}
	return nil
}

// Allowed reports whether any of roles may perform action on entity.
func (e *Enforcer) Allowed(roles []string, entity, action string) (bool, error) {
	for _, role := range roles {
		ok, err := e.enforcer.Enforce(role, entity, action)
		if err != nil {
			return false, fmt.Errorf("enforcement failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Authorize returns ErrUnauthenticated for an anonymous caller and a ForbiddenError
// when no role of the caller allows the action.
func (e *Enforcer) Authorize(_ context.Context, ac auth.AuthContext, entity, action string) error {
	if !ac.Authenticated() {
		return domain.ErrUnauthenticated
	}
	ok, err := e.Allowed(ac.Roles, entity, action)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Forbidden("")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
