package domain

import (
	"testing"
	"time"
)

func TestRoleOrDefault(t *testing.T) {
	admin := UserRoleAdmin
	empty := Role("")

	tests := []struct {
		name string
		in   *Role
		want Role
	}{
		{"nil defaults to user", nil, UserRoleUser},
		{"empty defaults to user", &empty, UserRoleUser},
		{"explicit admin kept", &admin, UserRoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleOrDefault(tt.in); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestActiveOrDefault(t *testing.T) {
	f := false
	tr := true

	if !ActiveOrDefault(nil) {
		t.Error("Expected nil active to default to true")
	}
	if ActiveOrDefault(&f) {
		t.Error("Expected explicit false to be kept")
	}
	if !ActiveOrDefault(&tr) {
		t.Error("Expected explicit true to be kept")
	}
}

func TestToEntity_AppliesDefaults(t *testing.T) {
	dto := &UserDTO{ID: 42, Name: "Alice", Email: "a@x.com", Phone: "555"}

	user := ToEntity(dto)

	if user.ID != 0 {
		t.Errorf("Expected ID to be left for the store, got %d", user.ID)
	}
	if user.Role != UserRoleUser {
		t.Errorf("Expected role USER, got %s", user.Role)
	}
	if !user.Active {
		t.Error("Expected active to default to true")
	}
	if user.Name != "Alice" || user.Email != "a@x.com" || user.Phone != "555" {
		t.Errorf("Unexpected field copy: %+v", user)
	}
}

func TestToDTO(t *testing.T) {
	now := time.Now()
	user := &User{
		ID:        7,
		Name:      "Bob",
		Email:     "b@x.com",
		Role:      UserRoleAdmin,
		Active:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dto := ToDTO(user)

	if dto.ID != 7 || dto.Name != "Bob" || dto.Email != "b@x.com" {
		t.Errorf("Unexpected field copy: %+v", dto)
	}
	if dto.Role == nil || *dto.Role != UserRoleAdmin {
		t.Errorf("Expected role ADMIN, got %v", dto.Role)
	}
	if dto.Active == nil || *dto.Active {
		t.Errorf("Expected active false, got %v", dto.Active)
	}
	if !dto.CreatedAt.Equal(now) || !dto.UpdatedAt.Equal(now) {
		t.Error("Expected timestamps to be copied")
	}

	// the DTO must not alias the entity
	user.Role = UserRoleUser
	if *dto.Role != UserRoleAdmin {
		t.Error("Expected DTO role to be independent of the entity")
	}

	if ToDTO(nil) != nil {
		t.Error("Expected nil for nil user")
	}
}
