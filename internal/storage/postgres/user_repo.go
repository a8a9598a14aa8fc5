package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
)

// UserRepo persists users and their resumes. Every mutation runs inside one
// transaction so a user and its resumes never diverge.
type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	const q = `
SELECT id, hh_id, name, mid_name, last_name, phone, email
FROM users WHERE id=$1`

	return r.getBy(ctx, q, id)
}

func (r *UserRepo) GetByHHID(ctx context.Context, hhID string) (*entity.User, error) {
	const q = `
SELECT id, hh_id, name, mid_name, last_name, phone, email
FROM users WHERE hh_id=$1`

	return r.getBy(ctx, q, hhID)
}

func (r *UserRepo) getBy(ctx context.Context, query string, arg any) (*entity.User, error) {
	row := r.db.Pool.QueryRow(ctx, query, arg)

	var u entity.User
	if err := row.Scan(&u.ID, &u.HHID, &u.Name, &u.MidName, &u.LastName, &u.Phone, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	resumes, err := r.resumesOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Resumes = resumes

	return &u, nil
}

func (r *UserRepo) resumesOf(ctx context.Context, userID uuid.UUID) ([]entity.Resume, error) {
	const q = `
SELECT id, hh_id, name, surname, experience, skills, phone, email
FROM resumes WHERE user_id=$1 ORDER BY hh_id`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resumes []entity.Resume
	for rows.Next() {
		var (
			resume        entity.Resume
			rawExperience []byte
		)
		if err := rows.Scan(&resume.ID, &resume.HHID, &resume.Name, &resume.Surname,
			&rawExperience, &resume.Skills, &resume.Phone, &resume.Email); err != nil {
			return nil, err
		}
		if len(rawExperience) > 0 {
			if err := json.Unmarshal(rawExperience, &resume.Experience); err != nil {
				return nil, err
			}
		}
		resumes = append(resumes, resume)
	}

	return resumes, rows.Err()
}

func (r *UserRepo) Create(ctx context.Context, user *entity.User) (*entity.User, error) {
	created := *user
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}

	err := r.db.WithinTx(ctx, func(tx pgx.Tx) error {
		const q = `
INSERT INTO users (id, hh_id, name, mid_name, last_name, phone, email)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.Exec(ctx, q, created.ID, created.HHID, created.Name,
			created.MidName, created.LastName, created.Phone, created.Email); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}

		return insertResumes(ctx, tx, created.ID, created.Resumes)
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *UserRepo) Update(ctx context.Context, user *entity.User) (*entity.User, error) {
	err := r.db.WithinTx(ctx, func(tx pgx.Tx) error {
		const q = `
UPDATE users SET name=$2, mid_name=$3, last_name=$4, phone=$5, email=$6
WHERE id=$1`
		tag, err := tx.Exec(ctx, q, user.ID, user.Name, user.MidName, user.LastName, user.Phone, user.Email)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}

		// Resumes are owned: replace the whole set.
		if _, err := tx.Exec(ctx, `DELETE FROM resumes WHERE user_id=$1`, user.ID); err != nil {
			return err
		}

		return insertResumes(ctx, tx, user.ID, user.Resumes)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func insertResumes(ctx context.Context, tx pgx.Tx, userID uuid.UUID, resumes []entity.Resume) error {
	const q = `
INSERT INTO resumes (id, user_id, hh_id, name, surname, experience, skills, phone, email)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, resume := range resumes {
		id := resume.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		rawExperience, err := json.Marshal(resume.Experience)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, q, id, userID, resume.HHID, resume.Name, resume.Surname,
			rawExperience, resume.Skills, resume.Phone, resume.Email); err != nil {
			return err
		}
	}

	return nil
}
