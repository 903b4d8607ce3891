package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"
)

const PasswordCost = 10

func (d *Database) seedReferenceData(ctx context.Context) error {
	roles := []Role{
		{ID: RoleAdmin, Name: "admin"},
		{ID: RoleOperator, Name: "operator"},
	}

	labStatuses := []LaboratoryStatus{
		{ID: StatusActive, Name: "active"},
		{ID: StatusMaintenance, Name: "maintenance"},
		{ID: StatusInactive, Name: "inactive"},
	}

	moduleStatuses := []ModuleStatus{
		{ID: StatusActive, Name: "active"},
		{ID: StatusMaintenance, Name: "maintenance"},
		{ID: StatusInactive, Name: "inactive"},
	}

	db := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true})

	for _, v := range []any{&roles, &labStatuses, &moduleStatuses} {
		if err := db.Create(v).Error; err != nil {
			return fmt.Errorf("failed to seed reference data: %w", err)
		}
	}

	return nil
}

// SeedUsers reads a ; separated file with the columns
// name;username;password;email;role and registers every user that does not exist yet.
func (d *Database) SeedUsers(ctx context.Context, reader io.Reader) error {
	r := csv.NewReader(reader)
	r.Comma = ';'

	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read csv data: %w", err)
	}

	records, err := getUserRecordsFromRows(rows)
	if err != nil {
		return err
	}

	users := NewUserRepository(d)
	created := 0

	for _, rec := range records {
		hash, err := bcrypt.GenerateFromPassword([]byte(rec.password), PasswordCost)
		if err != nil {
			return err
		}

		_, err = users.Create(ctx, User{
			Name:     rec.name,
			Username: rec.username,
			Password: string(hash),
			Email:    rec.email,
			RoleID:   rec.role,
			Status:   1,
		})
		if err != nil {
			if errors.Is(err, ErrUserAlreadyExists) {
				continue
			}
			return err
		}
		created++
	}

	d.log.Info().Msgf("seeded %d of %d users", created, len(records))

	return nil
}

type userRecord struct {
	name     string
	username string
	password string
	email    string
	role     uint
}

func getUserRecordsFromRows(rows [][]string) ([]userRecord, error) {
	records := []userRecord{}

	for i, row := range rows {
		if i == 0 {
			continue
		}

		if len(row) < 5 {
			return nil, fmt.Errorf("line %d in users file has %d columns, expected 5", i+1, len(row))
		}

		role, err := strconv.Atoi(strings.TrimSpace(row[4]))
		if err != nil || (uint(role) != RoleAdmin && uint(role) != RoleOperator) {
			return nil, fmt.Errorf("line %d in users file contains invalid role %q", i+1, row[4])
		}

		rec := userRecord{
			name:     strings.TrimSpace(row[0]),
			username: strings.TrimSpace(row[1]),
			password: row[2],
			email:    strings.ToLower(strings.TrimSpace(row[3])),
			role:     uint(role),
		}

		if rec.username == "" || rec.password == "" || rec.email == "" {
			return nil, fmt.Errorf("line %d in users file is missing username, password or email", i+1)
		}

		records = append(records, rec)
	}

	return records, nil
}
