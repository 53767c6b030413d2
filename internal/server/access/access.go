// Package access decides what an authenticated principal may do.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/campusvault/internal/common"
)

// Permission is a bit set of allowed actions.
type Permission uint32

const (
	FilesUpload Permission = 1 << iota
	FilesDelete
	StoragePurchase
	WalletFund
	WalletWithdraw
	PayoutsCreate
	FinanceRead
	PlansManage
)

var permissionNames = []struct {
	p    Permission
	name string
}{
	{FilesUpload, "files:upload"},
	{FilesDelete, "files:delete"},
	{StoragePurchase, "storage:purchase"},
	{WalletFund, "wallet:fund"},
	{WalletWithdraw, "wallet:withdraw"},
	{PayoutsCreate, "payouts:create"},
	{FinanceRead, "finance:read"},
	{PlansManage, "plans:manage"},
}

func (p Permission) String() string {
	var names []string
	for _, pn := range permissionNames {
		if p&pn.p != 0 {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Role is a named permission set.
type Role struct {
	Name        string
	Permissions Permission
}

var (
	Student  = Role{Name: "student", Permissions: FilesUpload | FilesDelete | StoragePurchase | WalletFund | WalletWithdraw}
	Lecturer = Role{Name: "lecturer", Permissions: Student.Permissions}
	Admin    = Role{Name: "admin", Permissions: FilesUpload | FilesDelete | StoragePurchase | WalletFund |
		WalletWithdraw | PayoutsCreate | FinanceRead | PlansManage}
)

// RoleByName resolves a stored role name.
func RoleByName(name string) (Role, error) {
	switch name {
	case Student.Name:
		return Student, nil
	case Lecturer.Name:
		return Lecturer, nil
	case Admin.Name:
		return Admin, nil
	}
	return Role{}, fmt.Errorf("unknown role %q", name)
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID string
	Role   Role
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role.Name == Admin.Name
}

// Authorize succeeds if the principal holds any of the required
// permissions. No required permissions means any authenticated caller.
func Authorize(p *Principal, required ...Permission) error {
	if p == nil || p.UserID == "" {
		return common.Unauthorized("authentication required")
	}
	var want Permission
	for _, r := range required {
		want |= r
	}
	if want != 0 && p.Role.Permissions&want == 0 {
		return common.Forbidden(fmt.Sprintf("role %s lacks %s", p.Role.Name, want))
	}
	return nil
}

// AuthorizeOwner is Authorize plus the rule that only admins act on
// another user's resources.
func AuthorizeOwner(p *Principal, ownerID string, required ...Permission) error {
	if err := Authorize(p, required...); err != nil {
		return err
	}
	if p.UserID != ownerID && !p.IsAdmin() {
		return common.Forbidden("cannot act on another user's resources")
	}
	return nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
