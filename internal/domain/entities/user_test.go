package entities

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestLinkProvider(t *testing.T) {
	u := &User{}
	now := time.Now()

	if err := u.LinkProvider(ProviderGoogle, "g-1", now); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !u.HasProviderID(ProviderGoogle, "g-1") {
		t.Error("expected provider pair to be linked")
	}

	// One link per provider name.
	if err := u.LinkProvider(ProviderGoogle, "g-2", now); !errors.Is(err, ErrProviderAlreadyLinked) {
		t.Errorf("expected ErrProviderAlreadyLinked, got %v", err)
	}

	if err := u.LinkProvider(ProviderFacebook, "f-1", now); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(u.Providers) != 2 {
		t.Errorf("expected 2 providers, got %d", len(u.Providers))
	}
}

func TestUnlinkProvider(t *testing.T) {
	u := &User{}
	now := time.Now()
	u.LinkProvider(ProviderGoogle, "g-1", now)
	u.LinkProvider(ProviderFacebook, "f-1", now)

	if err := u.UnlinkProvider(ProviderGoogle); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := u.FindProvider(ProviderGoogle); ok {
		t.Error("expected google to be unlinked")
	}

	if err := u.UnlinkProvider(ProviderGoogle); !errors.Is(err, ErrProviderNotLinked) {
		t.Errorf("expected ErrProviderNotLinked, got %v", err)
	}

	// The last provider must stay.
	if err := u.UnlinkProvider(ProviderFacebook); !errors.Is(err, ErrLastProvider) {
		t.Errorf("expected ErrLastProvider, got %v", err)
	}
	if len(u.Providers) != 1 {
		t.Errorf("expected 1 provider left, got %d", len(u.Providers))
	}
}

func TestAddSessionEvictsOldest(t *testing.T) {
	u := &User{}
	base := time.Now()

	for i := 0; i < MaxActiveSessions+3; i++ {
		u.AddSession(Session{
			SessionID: fmt.Sprintf("s%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	if len(u.ActiveSessions) != MaxActiveSessions {
		t.Fatalf("expected %d sessions, got %d", MaxActiveSessions, len(u.ActiveSessions))
	}
	// The three oldest are gone, the newest survives.
	for i := 0; i < 3; i++ {
		if u.HasSession(fmt.Sprintf("s%d", i)) {
			t.Errorf("expected s%d to be evicted", i)
		}
	}
	if !u.HasSession(fmt.Sprintf("s%d", MaxActiveSessions+2)) {
		t.Error("expected newest session to survive")
	}
}

func TestRemoveSession(t *testing.T) {
	u := &User{}
	u.AddSession(Session{SessionID: "a"})
	u.AddSession(Session{SessionID: "b"})

	u.RemoveSession("a")
	if u.HasSession("a") {
		t.Error("expected a to be removed")
	}
	if !u.HasSession("b") {
		t.Error("expected b to remain")
	}

	// Removal is idempotent.
	u.RemoveSession("a")
	if len(u.ActiveSessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(u.ActiveSessions))
	}
}

func TestRemoveOtherSessions(t *testing.T) {
	u := &User{}
	u.AddSession(Session{SessionID: "a"})
	u.AddSession(Session{SessionID: "b"})
	u.AddSession(Session{SessionID: "c"})

	u.RemoveOtherSessions("b")
	if len(u.ActiveSessions) != 1 || !u.HasSession("b") {
		t.Errorf("expected only b to remain, got %+v", u.ActiveSessions)
	}
}

func TestRoles(t *testing.T) {
	u := &User{Roles: []Role{RoleUser}}
	if u.IsAdmin() {
		t.Error("user should not be admin")
	}
	u.Roles = append(u.Roles, RoleAdmin)
	if !u.IsAdmin() {
		t.Error("expected admin")
	}
	got := u.RoleStrings()
	if len(got) != 2 || got[0] != "user" || got[1] != "admin" {
		t.Errorf("unexpected role strings %v", got)
	}
}

func TestValidProvider(t *testing.T) {
	if !ValidProvider("google") || !ValidProvider("facebook") {
		t.Error("expected google and facebook to be valid")
	}
	if ValidProvider("github") || ValidProvider("") {
		t.Error("expected unknown providers to be invalid")
	}
}
