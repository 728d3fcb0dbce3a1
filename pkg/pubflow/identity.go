package pubflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// User is a concrete Principal backed by a static capability set. The HTTP
// layer builds one from token claims; tests build them directly.
type User struct {
	UID      uuid.UUID
	Mail     string
	FullName string
	Anon     bool
	Caps     []string
}

func (u *User) ID() uuid.UUID       { return u.UID }
func (u *User) Email() string       { return u.Mail }
func (u *User) DisplayName() string { return u.FullName }
func (u *User) Anonymous() bool     { return u.Anon }

func (u *User) HasCapability(name string) bool {
	for _, c := range u.Caps {
		if c == name {
			return true
		}
	}
	return false
}

// Anonymous returns the anonymous principal.
func Anonymous() Principal {
	return &User{Anon: true}
}

// StaticDirectory is a Directory over a fixed principal list. Deployments
// with a real identity service supply their own implementation.
type StaticDirectory struct {
	Users []*User
}

// GetPrincipal resolves a principal by id.
func (d *StaticDirectory) GetPrincipal(ctx context.Context, id uuid.UUID) (Principal, error) {
	for _, u := range d.Users {
		if u.UID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("principal %s not found", id)
}

// PrincipalsWithAnyCapability returns every user holding at least one of
// the given capabilities.
func (d *StaticDirectory) PrincipalsWithAnyCapability(ctx context.Context, capabilities ...string) ([]Principal, error) {
	var out []Principal
	for _, u := range d.Users {
		for _, cap := range capabilities {
			if u.HasCapability(cap) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}
