package repository

import (
	"context"
	"errors"

	"daycare_realtime_service/internal/realtime/domain"

	"gorm.io/gorm"
)

// ErrUserNotFound the directory has no such user
var ErrUserNotFound = errors.New("user not found in directory")

// UserDirectory read-only view of the account service's user table.
// The broadcaster resolves role targets through it, it never caches or
// owns role data itself.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindIDsByRole every user id currently holding the role
	FindIDsByRole(ctx context.Context, role domain.UserRole) ([]string, error)
}

type userDirectory struct {
	db *gorm.DB
}

// NewUserDirectory create a UserDirectory
func NewUserDirectory(db *gorm.DB) UserDirectory {
	return &userDirectory{db: db}
}

func (d *userDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (d *userDirectory) FindIDsByRole(ctx context.Context, role domain.UserRole) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("role = ?", role).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
