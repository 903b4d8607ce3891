package users

import (
	"context"
	"errors"
	"testing"

	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateUserStoresHashedPassword(t *testing.T) {
	is, ctx, svc, repo := testSetup(t)

	u, err := svc.Create(ctx, newRequest("ana", "ana@lab.test"))
	is.NoErr(err)
	is.Equal(u.Role, "operator")

	stored, err := repo.GetByUsername(ctx, "ana")
	is.NoErr(err)
	is.True(stored.Password != "password1")
	is.NoErr(bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("password1")))
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	_, err := svc.Create(ctx, newRequest("ana", "ana@lab.test"))
	is.NoErr(err)

	_, err = svc.Create(ctx, newRequest("ana", "other@lab.test"))
	is.True(errors.Is(err, database.ErrUserAlreadyExists))

	_, err = svc.Create(ctx, newRequest("other", "ana@lab.test"))
	is.True(errors.Is(err, database.ErrAlreadyExists))
}

func TestCreateUserValidatesRequest(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	req := newRequest("ana", "not-an-email")
	_, err := svc.Create(ctx, req)
	is.True(errors.Is(err, validation.ErrValidation))

	req = newRequest("ana", "ana@lab.test")
	req.RoleID = 3
	_, err = svc.Create(ctx, req)
	is.True(errors.Is(err, validation.ErrValidation))
}

func TestListUsersNewestFirstWithoutHashes(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	_, err := svc.Create(ctx, newRequest("first", "first@lab.test"))
	is.NoErr(err)
	_, err = svc.Create(ctx, newRequest("second", "second@lab.test"))
	is.NoErr(err)

	users, err := svc.List(ctx)
	is.NoErr(err)
	is.Equal(len(users), 2)
	is.Equal(users[0].Username, "second")
	is.Equal(users[0].Role, "operator")
}

func newRequest(username, email string) types.CreateUserRequest {
	return types.CreateUserRequest{
		Name:     username,
		Username: username,
		Password: "password1",
		Email:    email,
		RoleID:   database.RoleOperator,
	}
}

func testSetup(t *testing.T) (*is.I, context.Context, UserService, database.UserRepository) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.New(ctx, database.NewSQLiteConnector(zerolog.Logger{}))
	is.NoErr(err)

	repo := database.NewUserRepository(db)

	return is, ctx, New(repo), repo
}
