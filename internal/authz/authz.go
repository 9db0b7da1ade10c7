// Package authz is the single capability table that decides what each staff
// role may do. Handlers and services ask it once per action; nothing else in
// the service keeps its own role checks.
package authz

import (
	"fmt"
	"os"
	"slices"

	"quote_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Role is a staff role as carried in the access token.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleMarketing  Role = "marketing"
	RoleStaff      Role = "staff"
)

// Resource is a guarded area of the API.
type Resource string

const (
	ResourceClients      Resource = "clients"
	ResourceAppointments Resource = "appointments"
	ResourceQuotes       Resource = "quotes"
)

// Action is an operation on a resource.
type Action string

const (
	ActionView       Action = "view"
	ActionList       Action = "list"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionTransition Action = "transition"
	ActionReopen     Action = "reopen"
)

// Actor is whoever performs an action. System actors are background jobs
// (the expiry sweep); they bypass the role table but may only expire quotes.
type Actor struct {
	ID     uuid.UUID
	Roles  []string
	System bool
}

// SystemActor is used by the scheduler and CLI maintenance commands.
func SystemActor() Actor {
	return Actor{System: true}
}

// Matrix maps role -> resource -> allowed actions.
type Matrix map[Role]map[Resource][]Action

var (
	readWrite = []Action{ActionView, ActionList, ActionCreate, ActionUpdate}
	quoteWork = []Action{ActionView, ActionList, ActionCreate, ActionUpdate, ActionTransition}
	everyAct  = []Action{ActionView, ActionList, ActionCreate, ActionUpdate, ActionDelete, ActionTransition, ActionReopen}
)

// DefaultMatrix is the built-in capability table: manager and up work the CRM
// and quotes, deleting and reopening needs admin, appointments are open to all
// staff and marketing may look at clients.
func DefaultMatrix() Matrix {
	return Matrix{
		RoleSuperAdmin: {
			ResourceClients:      everyAct,
			ResourceAppointments: everyAct,
			ResourceQuotes:       everyAct,
		},
		RoleAdmin: {
			ResourceClients:      everyAct,
			ResourceAppointments: everyAct,
			ResourceQuotes:       everyAct,
		},
		RoleManager: {
			ResourceClients:      append(slices.Clone(readWrite), ActionTransition),
			ResourceAppointments: readWrite,
			ResourceQuotes:       quoteWork,
		},
		RoleMarketing: {
			ResourceClients:      {ActionView, ActionList},
			ResourceAppointments: readWrite,
		},
		RoleStaff: {
			ResourceAppointments: readWrite,
		},
	}
}

// Policy answers capability questions against a Matrix.
type Policy struct {
	matrix Matrix
}

// New returns a policy over the given matrix, or the default one when m is nil.
func New(m Matrix) *Policy {
	if m == nil {
		m = DefaultMatrix()
	}
	return &Policy{matrix: m}
}

// CanAccess reports whether any of the actor's roles grants action on resource.
func (p *Policy) CanAccess(actor Actor, resource Resource, action Action) bool {
	for _, role := range actor.Roles {
		if slices.Contains(p.matrix[Role(role)][resource], action) {
			return true
		}
	}
	return false
}

// CanTransition reports whether the actor may move a quote from one status to
// another. Reopening (any terminal status back to draft) needs the reopen
// capability; expiry is reserved for system actors.
func (p *Policy) CanTransition(actor Actor, from, to string) bool {
	switch {
	case to == "expired":
		return actor.System
	case actor.System:
		return false
	case to == "draft" && from != "draft":
		return p.CanAccess(actor, ResourceQuotes, ActionReopen)
	default:
		return p.CanAccess(actor, ResourceQuotes, ActionTransition)
	}
}

// Require returns a Forbidden error when the actor lacks the capability.
func (p *Policy) Require(actor Actor, resource Resource, action Action) error {
	if actor.System || p.CanAccess(actor, resource, action) {
		return nil
	}
	return apperr.Forbidden(fmt.Sprintf("not allowed to %s %s", action, resource))
}

type policyFile struct {
	Roles map[Role]map[Resource][]Action `yaml:"roles"`
}

// LoadFile reads a YAML capability table replacing the built-in one:
//
//	roles:
//	  manager:
//	    quotes: [view, list, create, update, transition]
func LoadFile(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return New(Matrix(file.Roles)), nil
}

var (
	knownRoles     = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleMarketing, RoleStaff}
	knownResources = []Resource{ResourceClients, ResourceAppointments, ResourceQuotes}
	knownActions   = everyAct
)

func (f policyFile) validate() error {
	if len(f.Roles) == 0 {
		return fmt.Errorf("policy file defines no roles")
	}
	for role, resources := range f.Roles {
		if !slices.Contains(knownRoles, role) {
			return fmt.Errorf("unknown role %q", role)
		}
		for resource, actions := range resources {
			if !slices.Contains(knownResources, resource) {
				return fmt.Errorf("role %s: unknown resource %q", role, resource)
			}
			for _, action := range actions {
				if !slices.Contains(knownActions, action) {
					return fmt.Errorf("role %s: unknown action %q on %s", role, action, resource)
				}
			}
		}
	}
	return nil
}

// Load returns the policy from path when set, else the built-in one.
func Load(path string) (*Policy, error) {
	if path == "" {
		return New(nil), nil
	}
	return LoadFile(path)
}
