package database

import (
	"context"
	"errors"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate moq -rm -out users_mock.go . UserRepository

type UserRepository interface {
	Create(ctx context.Context, user User) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id uint) (User, error)
	List(ctx context.Context) ([]User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(d *Database) UserRepository {
	return &userRepository{db: d.db}
}

func (r *userRepository) Create(ctx context.Context, user User) (User, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&User{}).
		Where(&User{Username: user.Username}).
		Or(&User{Email: user.Email}).
		Count(&count).Error
	if err != nil {
		return User{}, err
	}

	if count > 0 {
		return User{}, ErrUserAlreadyExists
	}

	err = r.db.WithContext(ctx).Omit(clause.Associations).Create(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, ErrUserAlreadyExists
		}
		return User{}, err
	}

	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.first(ctx, &User{Username: username})
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (User, error) {
	return r.first(ctx, &User{ID: id})
}

func (r *userRepository) first(ctx context.Context, cond *User) (User, error) {
	logger := logging.GetFromContext(ctx)

	if cond.ID == 0 && cond.Username == "" {
		return User{}, ErrUserNotFound
	}

	var user User

	err := r.db.WithContext(ctx).
		Preload("Role").
		Where(cond).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		logger.Error().Err(err).Msg("gorm error")

		return User{}, ErrRepositoryError
	}

	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]User, error) {
	var users []User

	err := r.db.WithContext(ctx).
		Preload("Role").
		Order(orderByDesc("ID_USUARIO")).
		Find(&users).Error

	return users, err
}
