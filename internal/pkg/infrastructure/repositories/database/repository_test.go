package database

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func testSetup(t *testing.T) (*Database, context.Context, *is.I) {
	is := is.New(t)
	ctx := context.Background()

	db, err := New(ctx, NewSQLiteConnector(zerolog.Logger{}))
	is.NoErr(err)

	return db, ctx, is
}

func createUser(ctx context.Context, is *is.I, db *Database, username string, role uint) User {
	u, err := NewUserRepository(db).Create(ctx, User{
		Name:     username,
		Username: username,
		Password: "hash",
		Email:    username + "@lab.test",
		RoleID:   role,
	})
	is.NoErr(err)
	return u
}

func TestThatReferenceDataIsSeededOnce(t *testing.T) {
	db, ctx, is := testSetup(t)

	is.NoErr(db.seedReferenceData(ctx))

	var roles []Role
	is.NoErr(db.db.Find(&roles).Error)
	is.Equal(len(roles), 2)

	var statuses []ModuleStatus
	is.NoErr(db.db.Find(&statuses).Error)
	is.Equal(len(statuses), 3)
}

func TestCreateUserWithDuplicateUsernameOrEmailFails(t *testing.T) {
	db, ctx, is := testSetup(t)
	users := NewUserRepository(db)

	createUser(ctx, is, db, "ana", RoleOperator)

	_, err := users.Create(ctx, User{Username: "ana", Email: "other@lab.test", Password: "x", RoleID: RoleOperator})
	is.True(errors.Is(err, ErrUserAlreadyExists))

	_, err = users.Create(ctx, User{Username: "other", Email: "ana@lab.test", Password: "x", RoleID: RoleOperator})
	is.True(errors.Is(err, ErrUserAlreadyExists))
}

func TestGetUserByUsernameIncludesRole(t *testing.T) {
	db, ctx, is := testSetup(t)

	createUser(ctx, is, db, "admin", RoleAdmin)

	u, err := NewUserRepository(db).GetByUsername(ctx, "admin")
	is.NoErr(err)
	is.Equal(u.Role.Name, "admin")

	_, err = NewUserRepository(db).GetByUsername(ctx, "nobody")
	is.True(errors.Is(err, ErrUserNotFound))
}

func TestCreateModuleWithUsersInsertsOneAssociationPerUser(t *testing.T) {
	db, ctx, is := testSetup(t)
	modules := NewModuleRepository(db)

	u7 := createUser(ctx, is, db, "seven", RoleOperator)
	u9 := createUser(ctx, is, db, "nine", RoleOperator)

	m, err := modules.Create(ctx, Module{Name: "Hydro", Description: "hydroponics", StatusID: StatusActive}, []uint{u7.ID, u9.ID})
	is.NoErr(err)
	is.True(m.ID != 0)

	var pairs []UserModule
	is.NoErr(db.db.Where(&UserModule{ModuleID: m.ID}).Find(&pairs).Error)
	is.Equal(len(pairs), 2)

	withUsers, err := modules.GetByID(ctx, m.ID)
	is.NoErr(err)
	is.Equal(len(withUsers.Users), 2)
	is.Equal(withUsers.Users[0].Username, "seven")
}

func TestCreateModuleRollsBackWhenAnAssociationFails(t *testing.T) {
	db, ctx, is := testSetup(t)
	modules := NewModuleRepository(db)

	u := createUser(ctx, is, db, "seven", RoleOperator)

	_, err := modules.Create(ctx, Module{Name: "Hydro", Description: "hydroponics", StatusID: StatusActive}, []uint{u.ID, 4711})
	is.True(err != nil)

	var count int64
	is.NoErr(db.db.Model(&Module{}).Count(&count).Error)
	is.Equal(count, int64(0))
	is.NoErr(db.db.Model(&UserModule{}).Count(&count).Error)
	is.Equal(count, int64(0))
}

func TestUpdateModuleAssociations(t *testing.T) {
	db, ctx, is := testSetup(t)
	modules := NewModuleRepository(db)

	u := createUser(ctx, is, db, "seven", RoleOperator)
	m, err := modules.Create(ctx, Module{Name: "Hydro", Description: "hydroponics", StatusID: StatusActive}, []uint{u.ID})
	is.NoErr(err)

	m.Name = "Hydro 2"
	is.NoErr(modules.Update(ctx, m, nil))

	got, err := modules.GetByID(ctx, m.ID)
	is.NoErr(err)
	is.Equal(got.Name, "Hydro 2")
	is.Equal(len(got.Users), 1) // omitted list keeps associations

	empty := []uint{}
	is.NoErr(modules.Update(ctx, m, &empty))

	got, err = modules.GetByID(ctx, m.ID)
	is.NoErr(err)
	is.Equal(len(got.Users), 0) // explicit empty list clears them
}

func TestUpdateUnknownModuleReturnsNotFound(t *testing.T) {
	db, ctx, is := testSetup(t)

	err := NewModuleRepository(db).Update(ctx, Module{ID: 42, Name: "x", Description: "y", StatusID: StatusActive}, nil)
	is.True(errors.Is(err, ErrModuleNotFound))
}

func TestDeleteModuleCascadesThroughLayout(t *testing.T) {
	db, ctx, is := testSetup(t)
	modules := NewModuleRepository(db)
	layouts := NewLayoutRepository(db)

	u := createUser(ctx, is, db, "seven", RoleOperator)
	m, err := modules.Create(ctx, Module{Name: "Hydro", Description: "hydroponics", StatusID: StatusActive}, []uint{u.ID})
	is.NoErr(err)

	is.NoErr(layouts.SaveLayout(ctx, m.ID, []Shelf{
		{ID: "s1", Name: "Estante 1", Code: "EST-001", Status: "active", Rows: []Row{{ID: "r1", Number: 1, Crop: "basil"}}},
	}))

	msg, err := modules.Delete(ctx, m.ID)
	is.NoErr(err)
	is.Equal(msg, ModuleDeletedMessage)

	var count int64
	is.NoErr(db.db.Model(&Row{}).Count(&count).Error)
	is.Equal(count, int64(0))
	is.NoErr(db.db.Model(&Shelf{}).Count(&count).Error)
	is.Equal(count, int64(0))
	is.NoErr(db.db.Model(&UserModule{}).Count(&count).Error)
	is.Equal(count, int64(0))
}

func TestDeleteModuleWithActiveIrrigationIsABusinessRuleViolation(t *testing.T) {
	db, ctx, is := testSetup(t)
	modules := NewModuleRepository(db)

	m, err := modules.Create(ctx, Module{Name: "Hydro", Description: "hydroponics", StatusID: StatusActive}, nil)
	is.NoErr(err)

	is.NoErr(NewLayoutRepository(db).SaveLayout(ctx, m.ID, []Shelf{
		{ID: "s1", Name: "Estante 1", Code: "EST-001", Status: "active", Rows: []Row{{ID: "r1", Number: 1, IrrigationActive: true}}},
	}))

	_, err = modules.Delete(ctx, m.ID)

	var ruleErr *BusinessRuleError
	is.True(errors.As(err, &ruleErr))

	_, err = modules.GetByID(ctx, m.ID)
	is.NoErr(err)
}

func TestSaveLayoutReplacesPreviousLayout(t *testing.T) {
	db, ctx, is := testSetup(t)
	layouts := NewLayoutRepository(db)

	m, err := NewModuleRepository(db).Create(ctx, Module{Name: "Hydro", Description: "hydroponics", StatusID: StatusActive}, nil)
	is.NoErr(err)

	is.NoErr(layouts.SaveLayout(ctx, m.ID, []Shelf{
		{ID: "a", Name: "Estante 1", Code: "EST-001", Status: "active", Rows: []Row{{ID: "a1", Number: 1}, {ID: "a2", Number: 2}}},
		{ID: "b", Name: "Estante 2", Code: "EST-002", Status: "active", PositionX: 3.5},
	}))

	is.NoErr(layouts.SaveLayout(ctx, m.ID, []Shelf{
		{ID: "b", Name: "Estante 2", Code: "EST-002", Status: "active", Rows: []Row{{ID: "b1", Number: 1, LightOn: true}}},
	}))

	shelves, err := layouts.LoadLayout(ctx, m.ID)
	is.NoErr(err)
	is.Equal(len(shelves), 1)
	is.Equal(shelves[0].ID, "b")
	is.Equal(len(shelves[0].Rows), 1)
	is.True(shelves[0].Rows[0].LightOn)

	_, err = layouts.LoadLayout(ctx, 999)
	is.True(errors.Is(err, ErrModuleNotFound))
}

func TestLaboratoriesCountDistinctUsersOfTheirModules(t *testing.T) {
	db, ctx, is := testSetup(t)
	labs := NewLaboratoryRepository(db)
	modules := NewModuleRepository(db)

	lab, err := labs.Create(ctx, Laboratory{Code: "LAB-01", Name: "Biology", StatusID: StatusActive, Automation: "on", ActiveSensors: 4})
	is.NoErr(err)

	_, err = labs.Create(ctx, Laboratory{Code: "LAB-01", Name: "Duplicate", StatusID: StatusActive})
	is.True(errors.Is(err, ErrLaboratoryAlreadyExists))

	u1 := createUser(ctx, is, db, "one", RoleOperator)
	u2 := createUser(ctx, is, db, "two", RoleOperator)

	_, err = modules.Create(ctx, Module{Name: "A", Description: "a", StatusID: StatusActive, LaboratoryID: &lab.ID}, []uint{u1.ID, u2.ID})
	is.NoErr(err)
	_, err = modules.Create(ctx, Module{Name: "B", Description: "b", StatusID: StatusActive, LaboratoryID: &lab.ID}, []uint{u1.ID})
	is.NoErr(err)

	got, err := labs.Get(ctx, lab.ID)
	is.NoErr(err)
	is.Equal(got.TotalUsers, 2)
	is.Equal(got.Status.Name, "active")

	stats, err := labs.Statistics(ctx)
	is.NoErr(err)
	is.Equal(stats.Total, 1)
	is.Equal(stats.Automated, 1)
	is.Equal(stats.ActiveSensors, 4)
	is.Equal(stats.TotalUsers, 2)

	err = labs.Delete(ctx, lab.ID)
	var ruleErr *BusinessRuleError
	is.True(errors.As(err, &ruleErr))
}

func TestListLaboratoriesWithFilters(t *testing.T) {
	db, ctx, is := testSetup(t)
	labs := NewLaboratoryRepository(db)

	_, err := labs.Create(ctx, Laboratory{Code: "BIO-1", Name: "Biology", StatusID: StatusActive, Automation: "on"})
	is.NoErr(err)
	_, err = labs.Create(ctx, Laboratory{Code: "CHE-1", Name: "Chemistry", StatusID: StatusMaintenance, Automation: "off"})
	is.NoErr(err)

	all, err := labs.List(ctx, LaboratoryFilter{})
	is.NoErr(err)
	is.Equal(len(all), 2)
	is.Equal(all[0].Code, "CHE-1") // newest first

	filtered, err := labs.List(ctx, LaboratoryFilter{StatusID: StatusMaintenance})
	is.NoErr(err)
	is.Equal(len(filtered), 1)

	filtered, err = labs.List(ctx, LaboratoryFilter{Automation: "on", Query: "bio"})
	is.NoErr(err)
	is.Equal(len(filtered), 1)
	is.Equal(filtered[0].Name, "Biology")
}

func TestSeedUsersHashesPasswordsAndSkipsExisting(t *testing.T) {
	db, ctx, is := testSetup(t)

	is.NoErr(db.SeedUsers(ctx, bytes.NewBufferString(usersCSV)))
	is.NoErr(db.SeedUsers(ctx, bytes.NewBufferString(usersCSV)))

	users, err := NewUserRepository(db).List(ctx)
	is.NoErr(err)
	is.Equal(len(users), 2)

	admin, err := NewUserRepository(db).GetByUsername(ctx, "admin")
	is.NoErr(err)
	is.NoErr(bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("s3cret")))
}

func TestSeedUsersFailsOnBadRole(t *testing.T) {
	db, ctx, is := testSetup(t)

	err := db.SeedUsers(ctx, bytes.NewBufferString("name;username;password;email;role\nx;x;x;x@lab.test;9"))
	is.True(err != nil)
}

const usersCSV string = `name;username;password;email;role
Administrator;admin;s3cret;admin@lab.test;1
Operator;operator;op3r;operator@lab.test;2`
