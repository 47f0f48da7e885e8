// Package permissions provisions role permissions from YAML and checks them
// against the actor carried in a context.
package permissions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kausik11/taskify/internal/session"
	"github.com/kausik11/taskify/internal/storage"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoActor           = errors.New("permissions: no actor in context")
	ErrForbidden         = errors.New("permissions: forbidden")
	ErrInvalidPermission = errors.New("permissions: invalid permission")
)

// Doctypes that permissions are granted on.
const (
	DoctypeTask             = "Task"
	DoctypeTaskInstance     = "Task Instance"
	DoctypeHolidayList      = "Holiday List"
	DoctypeNotificationRule = "Notification Rule"
)

type Permission string

const (
	Read   Permission = "read"
	Write  Permission = "write"
	Create Permission = "create"
	Delete Permission = "delete"
	Submit Permission = "submit"
	Report Permission = "report"
	Export Permission = "export"
)

func (p Permission) IsValid() bool {
	switch p {
	case Read, Write, Create, Delete, Submit, Report, Export:
		return true
	default:
		return false
	}
}

// Mapping grants a role a set of permissions on one doctype.
type Mapping struct {
	Role        string       `yaml:"role"`
	Doctype     string       `yaml:"doctype"`
	Permissions []Permission `yaml:"permissions"`
}

func (m Mapping) Validate() error {
	if strings.TrimSpace(m.Role) == "" {
		return errors.New("permissions: role is required")
	}
	if strings.TrimSpace(m.Doctype) == "" {
		return fmt.Errorf("permissions: doctype is required for role %q", m.Role)
	}
	for _, p := range m.Permissions {
		if !p.IsValid() {
			return fmt.Errorf("%w: %q for %s/%s", ErrInvalidPermission, p, m.Role, m.Doctype)
		}
	}
	return nil
}

// Parse decodes a YAML list of mappings. Permission names are case-insensitive.
func Parse(data []byte) ([]Mapping, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("permissions: payload is empty")
	}
	var out []Mapping
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("permissions: decode: %w", err)
	}
	var errs []error
	for i := range out {
		out[i].Role = strings.TrimSpace(out[i].Role)
		out[i].Doctype = strings.TrimSpace(out[i].Doctype)
		for j, p := range out[i].Permissions {
			out[i].Permissions[j] = Permission(strings.ToLower(strings.TrimSpace(string(p))))
		}
		if err := out[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mapping %d: %w", i+1, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func Load(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("permissions: read %s: %w", path, err)
	}
	out, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("permissions: %s: %w", path, err)
	}
	return out, nil
}

// Store is the slice of storage.Repository the package needs.
type Store interface {
	UpsertRolePermission(ctx context.Context, in storage.RolePermission) error
	ListRolePermissions(ctx context.Context, filter storage.RolePermissionListFilter) ([]storage.RolePermission, error)
}

// Apply writes the mappings to the store. Mappings for the same role and
// doctype are merged; each pair is replaced as a whole, so applying the same
// file twice is a no-op. It returns the number of pairs written, which on
// error counts the pairs stored before the failing one. Pairs are written in
// role then doctype order.
func Apply(ctx context.Context, store Store, mappings []Mapping) (int, error) {
	merged := make(map[[2]string]storage.RolePermission)
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return 0, err
		}
		key := [2]string{m.Role, m.Doctype}
		row, ok := merged[key]
		if !ok {
			row = storage.RolePermission{Role: m.Role, Doctype: m.Doctype}
		}
		for _, p := range m.Permissions {
			grant(&row, p)
		}
		merged[key] = row
	}

	keys := make([][2]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	written := 0
	for _, k := range keys {
		if err := store.UpsertRolePermission(ctx, merged[k]); err != nil {
			return written, fmt.Errorf("permissions: upsert %s/%s: %w", k[0], k[1], err)
		}
		written++
	}
	return written, nil
}

func grant(row *storage.RolePermission, p Permission) {
	switch p {
	case Read:
		row.Read = true
	case Write:
		row.Write = true
	case Create:
		row.Create = true
	case Delete:
		row.Delete = true
	case Submit:
		row.Submit = true
	case Report:
		row.Report = true
	case Export:
		row.Export = true
	}
}

func granted(row storage.RolePermission, p Permission) bool {
	switch p {
	case Read:
		return row.Read
	case Write:
		return row.Write
	case Create:
		return row.Create
	case Delete:
		return row.Delete
	case Submit:
		return row.Submit
	case Report:
		return row.Report
	case Export:
		return row.Export
	default:
		return false
	}
}

type Checker struct {
	store Store
}

func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Can reports whether the actor in ctx holds perm on doctype through any of
// its roles.
func (c *Checker) Can(ctx context.Context, doctype string, perm Permission) (bool, error) {
	actor, ok := session.ActorFromContext(ctx)
	if !ok {
		return false, ErrNoActor
	}
	if !perm.IsValid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidPermission, perm)
	}
	if actor.HasRole(session.AdministratorRole) {
		return true, nil
	}
	if len(actor.Roles) == 0 {
		return false, nil
	}
	rows, err := c.store.ListRolePermissions(ctx, storage.RolePermissionListFilter{Roles: actor.Roles, Doctype: doctype})
	if err != nil {
		return false, fmt.Errorf("permissions: list: %w", err)
	}
	for _, row := range rows {
		if granted(row, perm) {
			return true, nil
		}
	}
	return false, nil
}

// Require is Can that turns a denial into ErrForbidden.
func (c *Checker) Require(ctx context.Context, doctype string, perm Permission) error {
	ok, err := c.Can(ctx, doctype, perm)
	if err != nil {
		return err
	}
	if !ok {
		actor, _ := session.ActorFromContext(ctx)
		return fmt.Errorf("%w: %s may not %s %s", ErrForbidden, actor.User, perm, doctype)
	}
	return nil
}
