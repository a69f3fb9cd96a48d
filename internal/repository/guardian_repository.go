package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/utils"
)

// GuardianRepo provides data access to guardian accounts.
//
// Schema:
//   CREATE TABLE guardians (
//     id            VARCHAR(64)  PRIMARY KEY,
//     name          VARCHAR(255) NOT NULL,
//     email         VARCHAR(255) NOT NULL UNIQUE,
//     password_hash VARCHAR(255) NOT NULL,
//     created_at    DATETIME     NOT NULL
//   );
type GuardianRepo struct {
	db *sql.DB
}

// NewGuardianRepo returns a new GuardianRepo bound to the provided database.
func NewGuardianRepo(db *sql.DB) *GuardianRepo { return &GuardianRepo{db: db} }

// Create registers a guardian account with a bcrypt-hashed password and
// returns the generated guardian id. Emails are stored lower-cased;
// ErrDuplicateEmail is returned when the unique index rejects the insert.
func (r *GuardianRepo) Create(ctx context.Context, name, email, password string, bcryptCost int) (string, error) {
	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return "", err
	}
	id := "grd_" + uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO guardians (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, strings.ToLower(email), hash, time.Now().UTC(),
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 { // duplicate entry
			return "", ErrDuplicateEmail
		}
		return "", err
	}
	return id, nil
}

// FindByEmail loads a guardian account for login.
func (r *GuardianRepo) FindByEmail(ctx context.Context, email string) (model.Guardian, error) {
	var g model.Guardian
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM guardians WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Guardian{}, ErrNotFound
	}
	if err != nil {
		return model.Guardian{}, err
	}
	return g, nil
}
