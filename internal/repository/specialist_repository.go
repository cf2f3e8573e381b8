package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/persistence"
)

// SpecialistFilter defines query params for specialist listing.
type SpecialistFilter struct {
	Specialization *domain.Category
	Availability   *domain.Availability
	Limit          int
	Offset         int
}

// SpecialistRepository handles persistence for specialists and their
// workload counters.
type SpecialistRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Specialist, error)
	List(ctx context.Context, filter SpecialistFilter) ([]domain.Specialist, error)
	SetAvailability(ctx context.Context, id int64, availability domain.Availability) error
	// ClaimCandidate picks the least-loaded available specialist in the
	// given specialization and increments their workload in the same
	// statement. Returns (nil, nil) when no candidate qualifies. The
	// conditional update means two concurrent claims can never push a
	// specialist past max_load.
	ClaimCandidate(ctx context.Context, specialization domain.Category) (*domain.Specialist, error)
	// AcquireWorkload increments unconditionally; used when a human
	// accepts a ticket, which may exceed max_load.
	AcquireWorkload(ctx context.Context, id int64) error
	// ReleaseWorkload decrements, floored at zero.
	ReleaseWorkload(ctx context.Context, id int64) error
}

type specialistRepository struct {
	pool *pgxpool.Pool
}

// NewSpecialistRepository instantiates the repository.
func NewSpecialistRepository(pool *pgxpool.Pool) SpecialistRepository {
	return &specialistRepository{pool: pool}
}

func (r *specialistRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.pool)
}

const specialistColumns = `id, name, specialization, availability, workload, max_load, created_at, updated_at`

func (r *specialistRepository) GetByID(ctx context.Context, id int64) (*domain.Specialist, error) {
	query := fmt.Sprintf(`SELECT %s FROM specialists WHERE id=$1`, specialistColumns)
	var spec domain.Specialist
	if err := scanSpecialist(r.q(ctx).QueryRow(ctx, query, id), &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (r *specialistRepository) List(ctx context.Context, filter SpecialistFilter) ([]domain.Specialist, error) {
	query := fmt.Sprintf(`SELECT %s FROM specialists`, specialistColumns)
	args := []any{}
	clauses := []string{}

	if filter.Specialization != nil {
		args = append(args, *filter.Specialization)
		clauses = append(clauses, fmt.Sprintf("specialization=$%d", len(args)))
	}
	if filter.Availability != nil {
		args = append(args, *filter.Availability)
		clauses = append(clauses, fmt.Sprintf("availability=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Specialist
	for rows.Next() {
		var spec domain.Specialist
		if err := scanSpecialist(rows, &spec); err != nil {
			return nil, err
		}
		result = append(result, spec)
	}
	return result, rows.Err()
}

func (r *specialistRepository) SetAvailability(ctx context.Context, id int64, availability domain.Availability) error {
	const query = `UPDATE specialists SET availability=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.q(ctx).Exec(ctx, query, availability, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *specialistRepository) ClaimCandidate(ctx context.Context, specialization domain.Category) (*domain.Specialist, error) {
	// Candidate selection and the workload increment happen in one
	// statement. FOR UPDATE SKIP LOCKED keeps concurrent claims off the
	// same row, and the workload < max_load predicate is re-evaluated
	// under the row lock.
	query := fmt.Sprintf(`
        UPDATE specialists SET workload = workload + 1, updated_at = NOW()
        WHERE id = (
            SELECT id FROM specialists
            WHERE specialization = $1
              AND availability = $2
              AND workload < max_load
            ORDER BY workload ASC, id ASC
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING %s`, specialistColumns)

	var spec domain.Specialist
	err := scanSpecialist(r.q(ctx).QueryRow(ctx, query, specialization, domain.AvailabilityAvailable), &spec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

func (r *specialistRepository) AcquireWorkload(ctx context.Context, id int64) error {
	const query = `UPDATE specialists SET workload = workload + 1, updated_at=NOW() WHERE id=$1`
	cmd, err := r.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *specialistRepository) ReleaseWorkload(ctx context.Context, id int64) error {
	const query = `UPDATE specialists SET workload = GREATEST(workload - 1, 0), updated_at=NOW() WHERE id=$1`
	cmd, err := r.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanSpecialist(row pgx.Row, spec *domain.Specialist) error {
	return row.Scan(
		&spec.ID,
		&spec.Name,
		&spec.Specialization,
		&spec.Availability,
		&spec.Workload,
		&spec.MaxLoad,
		&spec.CreatedAt,
		&spec.UpdatedAt,
	)
}
