package laboratories

import (
	"context"
	"errors"
	"testing"

	"github.com/labcontrol/labcontrol-api/internal/pkg/application/authentication"
	"github.com/labcontrol/labcontrol-api/internal/pkg/application/validation"
	"github.com/labcontrol/labcontrol-api/internal/pkg/infrastructure/repositories/database"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestCreateAndFilterLaboratories(t *testing.T) {
	is, ctx, svc := testSetup(t)

	bio, err := svc.Create(ctx, types.LaboratoryRequest{Code: "LAB-001", Name: "Microbiology", StatusID: 1, AutomationStatus: "on", ActiveSensors: 12})
	is.NoErr(err)
	is.Equal(bio.Status, "active")
	is.Equal(bio.AutomationStatus, "on")

	_, err = svc.Create(ctx, types.LaboratoryRequest{Code: "LAB-002", Name: "Organic chemistry", StatusID: 2})
	is.NoErr(err)

	labs, err := svc.List(ctx, map[string][]string{"estado": {"maintenance"}})
	is.NoErr(err)
	is.Equal(len(labs), 1)
	is.Equal(labs[0].Code, "LAB-002")
	is.Equal(labs[0].AutomationStatus, "off")

	labs, err = svc.List(ctx, map[string][]string{"q": {"micro"}, "automatizacion": {"on"}})
	is.NoErr(err)
	is.Equal(len(labs), 1)

	_, err = svc.List(ctx, map[string][]string{"estado": {"broken"}})
	is.True(errors.Is(err, validation.ErrValidation))

	summary, err := svc.Summary(ctx)
	is.NoErr(err)
	is.Equal(summary, types.LaboratorySummary{Total: 2, Active: 1, Automated: 1, ActiveSensors: 12})
}

func TestCreateLaboratoryWithDuplicateCodeIsAConflict(t *testing.T) {
	is, ctx, svc := testSetup(t)

	_, err := svc.Create(ctx, types.LaboratoryRequest{Code: "LAB-001", Name: "A", StatusID: 1})
	is.NoErr(err)

	_, err = svc.Create(ctx, types.LaboratoryRequest{Code: "LAB-001", Name: "B", StatusID: 1})
	is.True(errors.Is(err, database.ErrAlreadyExists))
}

func TestUpdateLaboratory(t *testing.T) {
	is, ctx, svc := testSetup(t)

	lab, err := svc.Create(ctx, types.LaboratoryRequest{Code: "LAB-001", Name: "A", StatusID: 1, AutomationStatus: "on", IsZoneDisabled: true})
	is.NoErr(err)

	updated, err := svc.Update(ctx, lab.ID, types.LaboratoryRequest{Code: "LAB-001", Name: "B", StatusID: 3, AutomationStatus: "off"})
	is.NoErr(err)
	is.Equal(updated.Name, "B")
	is.Equal(updated.Status, "inactive")
	is.Equal(updated.IsZoneDisabled, false)

	_, err = svc.Update(ctx, 999, types.LaboratoryRequest{Code: "LAB-009", Name: "C", StatusID: 1})
	is.True(errors.Is(err, database.ErrNotFound))
}

func TestDeleteLaboratoryRequiresConfirmationAndAdmin(t *testing.T) {
	is, ctx, svc := testSetup(t)

	lab, err := svc.Create(ctx, types.LaboratoryRequest{Code: "LAB-001", Name: "A", StatusID: 1})
	is.NoErr(err)

	err = svc.Delete(ctx, lab.ID, types.DeleteRequest{AdminID: 1, AdminPassword: "s3cret"})
	is.True(errors.Is(err, validation.ErrValidation))

	err = svc.Delete(ctx, lab.ID, types.DeleteRequest{ConfirmDelete: true, AdminID: 1, AdminPassword: "wrong"})
	is.True(errors.Is(err, authentication.ErrNotAuthorized))

	err = svc.Delete(ctx, lab.ID, types.DeleteRequest{ConfirmDelete: true, AdminID: 1, AdminPassword: "s3cret"})
	is.NoErr(err)

	_, err = svc.Get(ctx, lab.ID)
	is.True(errors.Is(err, database.ErrLaboratoryNotFound))
}

func testSetup(t *testing.T) (*is.I, context.Context, LaboratoryService) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.New(ctx, database.NewSQLiteConnector(zerolog.Logger{}))
	is.NoErr(err)

	users := database.NewUserRepository(db)

	hash, err := authentication.HashPassword("s3cret")
	is.NoErr(err)
	_, err = users.Create(ctx, database.User{Username: "admin", Email: "admin@lab.test", Password: hash, RoleID: database.RoleAdmin})
	is.NoErr(err)

	auth := authentication.New(users, authentication.NewTokenAuth("secret"))

	return is, ctx, New(database.NewLaboratoryRepository(db), auth)
}
