package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"userservice/internal/domain"
	"userservice/pkg/logger"
	"userservice/pkg/metrics"
	"userservice/pkg/tracing"
)

// UserService holds no state of its own; every mutation runs inside a
// repository transaction. The email check and the write are not atomic
// here, so concurrent creates rely on the store's unique constraint.
type UserService struct {
	repo   domain.UserRepository
	logger logger.Logger
}

func NewUserService(repo domain.UserRepository, logger logger.Logger) domain.UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDuplicateResource):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func (s *UserService) finish(span trace.Span, operation string, err error) {
	metrics.RecordUserOperation(operation, resultOf(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func notFound(id int64) error {
	return fmt.Errorf("%w: user not found with id: %d", domain.ErrNotFound, id)
}

func duplicateEmail(email string) error {
	return fmt.Errorf("%w: user with email %s already exists", domain.ErrDuplicateResource, email)
}

func (s *UserService) CreateUser(ctx context.Context, dto *domain.UserDTO) (_ *domain.UserDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "UserService.CreateUser")
	defer func() { s.finish(span, "create", err) }()

	if dto == nil {
		return nil, fmt.Errorf("%w: user payload is required", domain.ErrInvalidInput)
	}

	s.logger.InfoContext(ctx, "Creating user", map[string]interface{}{"email": dto.Email})

	var saved *domain.User
	err = s.repo.WithinTransaction(ctx, func(repo domain.UserRepository) error {
		exists, err := repo.ExistsByEmail(ctx, dto.Email)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if exists {
			return duplicateEmail(dto.Email)
		}

		saved, err = repo.Save(ctx, domain.ToEntity(dto))
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "User creation rejected", map[string]interface{}{"email": dto.Email, "error": err.Error()})
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", saved.ID))
	s.logger.InfoContext(ctx, "User created", map[string]interface{}{"id": saved.ID})

	return domain.ToDTO(saved), nil
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (_ *domain.UserDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "UserService.GetUserByID", attribute.Int64("user.id", id))
	defer func() { s.finish(span, "get", err) }()

	s.logger.DebugContext(ctx, "Fetching user", map[string]interface{}{"id": id})

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if user == nil {
		return nil, notFound(id)
	}

	return domain.ToDTO(user), nil
}

func (s *UserService) GetAllUsers(ctx context.Context) (_ []*domain.UserDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "UserService.GetAllUsers")
	defer func() { s.finish(span, "list_all", err) }()

	s.logger.DebugContext(ctx, "Fetching all users", nil)

	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return domain.ToDTOs(users), nil
}

func (s *UserService) GetActiveUsers(ctx context.Context) (_ []*domain.UserDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "UserService.GetActiveUsers")
	defer func() { s.finish(span, "list_active", err) }()

	s.logger.DebugContext(ctx, "Fetching active users", nil)

	users, err := s.repo.FindByActive(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	return domain.ToDTOs(users), nil
}

// UpdateUser replaces name, email, phone, role and active. An absent role
// resets to USER and an absent active flag resets to true.
func (s *UserService) UpdateUser(ctx context.Context, id int64, dto *domain.UserDTO) (_ *domain.UserDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "UserService.UpdateUser", attribute.Int64("user.id", id))
	defer func() { s.finish(span, "update", err) }()

	if dto == nil {
		return nil, fmt.Errorf("%w: user payload is required", domain.ErrInvalidInput)
	}

	s.logger.InfoContext(ctx, "Updating user", map[string]interface{}{"id": id})

	var updated *domain.User
	err = s.repo.WithinTransaction(ctx, func(repo domain.UserRepository) error {
		user, err := repo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if user == nil {
			return notFound(id)
		}

		if user.Email != dto.Email {
			exists, err := repo.ExistsByEmail(ctx, dto.Email)
			if err != nil {
				return fmt.Errorf("failed to update user: %w", err)
			}
			if exists {
				return duplicateEmail(dto.Email)
			}
		}

		user.Name = dto.Name
		user.Email = dto.Email
		user.Phone = dto.Phone
		user.Role = domain.RoleOrDefault(dto.Role)
		user.Active = domain.ActiveOrDefault(dto.Active)

		updated, err = repo.Save(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "User update rejected", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, err
	}

	s.logger.InfoContext(ctx, "User updated", map[string]interface{}{"id": id})
	return domain.ToDTO(updated), nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.StartSpan(ctx, "UserService.DeleteUser", attribute.Int64("user.id", id))
	defer func() { s.finish(span, "delete", err) }()

	s.logger.InfoContext(ctx, "Deleting user", map[string]interface{}{"id": id})

	err = s.repo.WithinTransaction(ctx, func(repo domain.UserRepository) error {
		exists, err := repo.ExistsByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if !exists {
			return notFound(id)
		}

		if err := repo.DeleteByID(ctx, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "User deletion rejected", map[string]interface{}{"id": id, "error": err.Error()})
		return err
	}

	s.logger.InfoContext(ctx, "User deleted", map[string]interface{}{"id": id})
	return nil
}

func (s *UserService) DeactivateUser(ctx context.Context, id int64) (_ *domain.UserDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "UserService.DeactivateUser", attribute.Int64("user.id", id))
	defer func() { s.finish(span, "deactivate", err) }()

	s.logger.InfoContext(ctx, "Deactivating user", map[string]interface{}{"id": id})

	var updated *domain.User
	err = s.repo.WithinTransaction(ctx, func(repo domain.UserRepository) error {
		user, err := repo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to deactivate user: %w", err)
		}
		if user == nil {
			return notFound(id)
		}

		user.Active = false

		updated, err = repo.Save(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to deactivate user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "User deactivation rejected", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, err
	}

	s.logger.InfoContext(ctx, "User deactivated", map[string]interface{}{"id": id})
	return domain.ToDTO(updated), nil
}
