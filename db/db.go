package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"procure/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Storage хранит данные в Postgres. Все операции, меняющие несколько строк,
// выполняются в одной транзакции.
type Storage struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// wrapNoRows превращает sql.ErrNoRows в NotFound
func wrapNoRows(op, what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.E(op, models.ErrNotFound, what+" not found")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func newID() string { return uuid.New().String() }

// validID отсекает id, которые не являются uuid
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// User (Пользователь)

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = newID()
	u.CreatedAt = s.now()
	query := `
        INSERT INTO users (id, name, company, phone, email, city, address, kind, password_hash, created_at)
        VALUES (:id, :name, :company, :phone, :email, :city, :address, :kind, :password_hash, :created_at)`
	_, err := s.db.NamedExecContext(ctx, query, u)
	if isUniqueViolation(err) {
		return models.E("createUser", models.ErrConflict, "email is already registered")
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, models.E("getUser", models.ErrNotFound, "user not found")
	}
	u := &models.User{}
	err := s.db.GetContext(ctx, u, `SELECT * FROM users WHERE id=$1`, id)
	if err != nil {
		return nil, wrapNoRows("getUser", "user", err)
	}
	return u, nil
}

// Requirement (Заявка)

func (s *Storage) CreateRequirement(ctx context.Context, r *models.Requirement) error {
	r.ID = newID()
	r.Status = models.RequirementActive
	r.CreatedAt = s.now()
	query := `
        INSERT INTO requirements
            (id, buyer_id, title, category, quantity, unit, delivery_location, deadline, status, created_at)
        VALUES
            (:id, :buyer_id, :title, :category, :quantity, :unit, :delivery_location, :deadline, :status, :created_at)`
	_, err := s.db.NamedExecContext(ctx, query, r)
	return err
}

func (s *Storage) GetRequirement(ctx context.Context, id string) (*models.Requirement, error) {
	if !validID(id) {
		return nil, models.E("getRequirement", models.ErrNotFound, "requirement not found")
	}
	r := &models.Requirement{}
	err := s.db.GetContext(ctx, r, `SELECT * FROM requirements WHERE id=$1`, id)
	if err != nil {
		return nil, wrapNoRows("getRequirement", "requirement", err)
	}
	return r, nil
}

func (s *Storage) ListRequirements(ctx context.Context, statuses []models.RequirementStatus, limit, offset int) ([]models.Requirement, error) {
	baseQuery := "SELECT * FROM requirements"
	var args []interface{}
	filter := ""

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, st)
		}
		filter = fmt.Sprintf(" WHERE status IN (%s)", strings.Join(placeholders, ", "))
	}

	query := baseQuery + filter + " ORDER BY created_at DESC, id"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	reqs := []models.Requirement{}
	if err := s.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, err
	}
	return reqs, nil
}

// CloseRequirement переводит активную заявку в closed или cancelled
func (s *Storage) CloseRequirement(ctx context.Context, id, actorID string, target models.RequirementStatus) (*models.Requirement, error) {
	if !validID(id) {
		return nil, models.E("closeRequirement", models.ErrNotFound, "requirement not found")
	}
	var out models.Requirement
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &out, `SELECT * FROM requirements WHERE id=$1 FOR UPDATE`, id); err != nil {
			return wrapNoRows("closeRequirement", "requirement", err)
		}
		if err := models.CheckOwnerClose(out, actorID, target); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE requirements SET status=$1 WHERE id=$2`, target, id); err != nil {
			return err
		}
		out.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
