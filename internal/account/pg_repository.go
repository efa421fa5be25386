package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const accountColumns = `
	a.id, a.username, a.email, a.password_hash, a.first_name, a.last_name,
	a.phone_number, a.date_of_birth, a.address, a.role, a.is_active,
	a.email_verified, a.created_at, a.updated_at`

func scanAccount(row pgx.Row, extra ...any) (*Account, error) {
	var a Account
	dest := []any{
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&a.Phone,
		&a.DateOfBirth,
		&a.Address,
		&a.Role,
		&a.Active,
		&a.EmailVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Account, p *Profile) error {
	q := db.Conn(ctx, r.pool)
	err := q.QueryRow(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, first_name, last_name,
			phone_number, date_of_birth, address, role, is_active, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, a.ID, a.Username, a.Email, a.PasswordHash, a.FirstName, a.LastName,
		a.Phone, a.DateOfBirth, a.Address, a.Role, a.Active, a.EmailVerified,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "accounts_username_key") {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert account: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO profiles (account_id, blood_group, medical_conditions, emergency_contact)
		VALUES ($1, $2, $3, $4)
	`, a.ID, p.BloodGroup, p.MedicalConditions, p.EmergencyContact)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		WHERE a.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *PgRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	a, err := scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		WHERE a.username = $1
	`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return a, nil
}

func (r *PgRepository) GetProfile(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	var p Profile
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT account_id, blood_group, medical_conditions, emergency_contact
		FROM profiles
		WHERE account_id = $1
	`, accountID).Scan(&p.AccountID, &p.BloodGroup, &p.MedicalConditions, &p.EmergencyContact)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *PgRepository) Update(ctx context.Context, a *Account) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE accounts
		SET email = $2,
		    password_hash = $3,
		    first_name = $4,
		    last_name = $5,
		    phone_number = $6,
		    date_of_birth = $7,
		    address = $8,
		    is_active = $9,
		    email_verified = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Phone,
		a.DateOfBirth, a.Address, a.Active, a.EmailVerified,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// UpdateProfile never overwrites a blood group once set.
func (r *PgRepository) UpdateProfile(ctx context.Context, p *Profile) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE profiles
		SET blood_group = CASE WHEN blood_group = '' THEN $2 ELSE blood_group END,
		    medical_conditions = $3,
		    emergency_contact = $4
		WHERE account_id = $1
	`, p.AccountID, p.BloodGroup, p.MedicalConditions, p.EmergencyContact)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Member, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Role != "" {
		add("a.role = $%d", f.Role)
	}
	if f.BloodGroup != "" {
		add("p.blood_group = $%d", f.BloodGroup)
	}
	if f.Active != nil {
		add("a.is_active = $%d", *f.Active)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(a.first_name ILIKE $%[1]d OR a.last_name ILIKE $%[1]d OR a.email ILIKE $%[1]d OR a.phone_number ILIKE $%[1]d)", n))
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM accounts a
		LEFT JOIN profiles p ON p.account_id = a.id
		`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	limit, offset := pageBounds(f.Page, f.Size)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT %s, COALESCE(p.blood_group, '')
		FROM accounts a
		LEFT JOIN profiles p ON p.account_id = a.id
		%s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d
	`, accountColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var result []Member
	for rows.Next() {
		var m Member
		a, err := scanAccount(rows, &m.BloodGroup)
		if err != nil {
			return nil, 0, err
		}
		m.Account = *a
		result = append(result, m)
	}
	return result, total, rows.Err()
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PgRepository) ListAdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id FROM accounts WHERE role = $1 ORDER BY created_at
	`, authz.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *PgRepository) CountByRole(ctx context.Context) (map[authz.Role]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT role, count(*) FROM accounts GROUP BY role
	`)
	if err != nil {
		return nil, fmt.Errorf("count accounts by role: %w", err)
	}
	defer rows.Close()

	counts := make(map[authz.Role]int)
	for rows.Next() {
		var (
			role authz.Role
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

const defaultPageSize = 10

func pageBounds(page, size int) (limit, offset int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}
