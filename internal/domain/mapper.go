package domain

// RoleOrDefault resolves an optional role, falling back to USER.
func RoleOrDefault(role *Role) Role {
	if role == nil || *role == "" {
		return UserRoleUser
	}
	return *role
}

// ActiveOrDefault resolves an optional active flag, falling back to true.
func ActiveOrDefault(active *bool) bool {
	if active == nil {
		return true
	}
	return *active
}

func ToDTO(user *User) *UserDTO {
	if user == nil {
		return nil
	}

	role := user.Role
	active := user.Active

	return &UserDTO{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      &role,
		Active:    &active,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func ToDTOs(users []*User) []*UserDTO {
	dtos := make([]*UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, ToDTO(u))
	}
	return dtos
}

// ToEntity builds a new, unsaved user. ID and timestamps are left for the repository.
func ToEntity(dto *UserDTO) *User {
	return &User{
		Name:   dto.Name,
		Email:  dto.Email,
		Phone:  dto.Phone,
		Role:   RoleOrDefault(dto.Role),
		Active: ActiveOrDefault(dto.Active),
	}
}
