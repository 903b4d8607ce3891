package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/matryer/is"
)

func TestMissingFieldsAreReported(t *testing.T) {
	is := is.New(t)

	err := Struct(types.LoginRequest{Username: "ana"})
	is.True(errors.Is(err, ErrValidation))
	is.Equal(Message(err), "password is required")
}

func TestDuplicateUserIDsAreRejected(t *testing.T) {
	is := is.New(t)

	err := Struct(types.CreateModuleRequest{Name: "a", Description: "b", StatusID: 1, Users: []uint{7, 7}})
	is.True(errors.Is(err, ErrValidation))
	is.True(strings.Contains(Message(err), "usuarios must not contain duplicates"))
}

func TestDuplicateUserIDsInUpdateAreRejected(t *testing.T) {
	is := is.New(t)

	err := Struct(types.UpdateModuleRequest{Name: "a", Description: "b", StatusID: 1, Users: types.NewUserList(7, 7)})
	is.True(errors.Is(err, ErrValidation))
	is.True(strings.Contains(Message(err), "usuarios must not contain duplicates"))
}

func TestValidRequestPasses(t *testing.T) {
	is := is.New(t)

	is.NoErr(Struct(types.UpdateModuleRequest{Name: "a", Description: "b", StatusID: 2, Users: types.NewUserList()}))
	is.NoErr(Struct(types.UpdateModuleRequest{Name: "a", Description: "b", StatusID: 2}))
}
