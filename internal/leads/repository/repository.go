package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgForeignKeyViolation = "23503"

const leadColumns = `id, name, email, phone, interest, status, source, campaign_id, assigned_to,
	score, priority, qualification, notes, message,
	life_details, real_estate_details, securities_details, custom_details, platform_data,
	is_archived, status_changed_at, created_at, updated_at`

const (
	insertLeadQuery = `
		INSERT INTO leads (
			name, email, phone, interest, status, source, campaign_id, assigned_to,
			score, priority, qualification, notes, message,
			life_details, real_estate_details, securities_details, custom_details, platform_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + leadColumns

	selectLeadQuery = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	updateStatusQuery = `
		UPDATE leads SET status = $1, status_changed_at = now(), updated_at = now()
		WHERE id = $2
		RETURNING ` + leadColumns

	lockLeadQuery = `SELECT id FROM leads WHERE id = $1 FOR UPDATE`

	assignLeadQuery = `
		UPDATE leads SET assigned_to = $1, status = $2, status_changed_at = now(), updated_at = now()
		WHERE id = $3
		RETURNING ` + leadColumns

	archiveInactiveQuery = `
		UPDATE leads SET is_archived = true, status = $1, updated_at = now()
		WHERE is_archived = false AND status_changed_at < $2
		RETURNING id`
)

// Repository persists leads in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new lead repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ LeadStore = (*Repository)(nil)

// Create inserts one lead inside its own transaction.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	status := params.Status
	if status == "" {
		status = domain.StatusNew
	}
	if !status.IsKnown() {
		return domain.Lead{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	priority := params.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lead, err := scanLead(tx.QueryRow(ctx, insertLeadQuery,
		params.Name, params.Email, params.Phone, params.Interest, string(status), params.Source,
		params.CampaignID, params.AssignedTo, params.Score, string(priority), params.Qualification,
		params.Notes, params.Message,
		params.LifeDetails, params.RealEstateDetails, params.SecuritiesDetails, params.CustomDetails, params.PlatformData,
	))
	if err != nil {
		return domain.Lead{}, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// GetByID returns one lead, archived or not.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, selectLeadQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// UpdateStatus sets the status only and restarts the inactivity clock.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error) {
	if !status.IsKnown() {
		return domain.Lead{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	lead, err := scanLead(r.pool.QueryRow(ctx, updateStatusQuery, string(status), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// Update applies an allowlisted partial update.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error) {
	query, args, err := buildUpdateQuery(id, params)
	if err != nil {
		return domain.Lead{}, err
	}

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, mapWriteError(err)
	}
	return lead, nil
}

// AssignAdvisor loads the lead under a row lock, sets the advisor and the
// Assigned status, and commits. Concurrent callers serialize; the last one wins.
func (r *Repository) AssignAdvisor(ctx context.Context, id uuid.UUID, advisorID uuid.UUID) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, lockLeadQuery, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, err
	}

	lead, err := scanLead(tx.QueryRow(ctx, assignLeadQuery, advisorID, string(domain.StatusAssigned), id))
	if err != nil {
		return domain.Lead{}, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// List returns leads newest first.
func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	query, args := buildListQuery(params)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

// ArchiveInactive archives every live lead whose status has not changed since
// cutoff and moves it to Lost. Returns the affected ids.
func (r *Repository) ArchiveInactive(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, archiveInactiveQuery, string(domain.StatusLost), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type updateField struct {
	column string
	value  interface{}
}

func updateFields(p UpdateLeadParams) []updateField {
	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{p.Name != nil, "name", derefString(p.Name)},
		{p.Email != nil, "email", derefString(p.Email)},
		{p.Phone != nil, "phone", derefString(p.Phone)},
		{p.Interest != nil, "interest", derefString(p.Interest)},
		{p.Status != nil, "status", derefStatus(p.Status)},
		{p.Source != nil, "source", derefString(p.Source)},
		{p.CampaignIDSet, "campaign_id", p.CampaignID},
		{p.AssignedToSet, "assigned_to", p.AssignedTo},
		{p.Score != nil, "score", derefInt(p.Score)},
		{p.Priority != nil, "priority", derefPriority(p.Priority)},
		{p.QualificationSet, "qualification", p.Qualification},
		{p.Notes != nil, "notes", derefString(p.Notes)},
		{p.Message != nil, "message", derefString(p.Message)},
		{p.LifeDetails != nil, "life_details", p.LifeDetails},
		{p.RealEstateDetails != nil, "real_estate_details", p.RealEstateDetails},
		{p.SecuritiesDetails != nil, "securities_details", p.SecuritiesDetails},
		{p.CustomDetails != nil, "custom_details", p.CustomDetails},
		{p.IsArchived != nil, "is_archived", derefBool(p.IsArchived)},
	}

	out := make([]updateField, 0, len(fields))
	for _, f := range fields {
		if f.enabled {
			out = append(out, updateField{column: f.column, value: f.value})
		}
	}
	return out
}

func buildUpdateQuery(id uuid.UUID, params UpdateLeadParams) (string, []interface{}, error) {
	fields := updateFields(params)
	if len(fields) == 0 {
		return "", nil, ErrNoFields
	}

	setClauses := make([]string, 0, len(fields)+2)
	args := make([]interface{}, 0, len(fields)+1)
	for i, f := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", f.column, i+1))
		args = append(args, f.value)
	}
	if params.Status != nil {
		setClauses = append(setClauses, "status_changed_at = now()")
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), leadColumns)
	return query, args, nil
}

func buildListQuery(params ListParams) (string, []interface{}) {
	whereClauses := []string{}
	args := []interface{}{}

	if !params.IncludeArchived {
		whereClauses = append(whereClauses, "is_archived = false")
	}
	if params.AdvisorID != nil {
		args = append(args, *params.AdvisorID)
		whereClauses = append(whereClauses, fmt.Sprintf("(assigned_to = $%d OR assigned_to IS NULL)", len(args)))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	return query, args
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead     domain.Lead
		status   string
		priority string
	)
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Interest, &status, &lead.Source,
		&lead.CampaignID, &lead.AssignedTo, &lead.Score, &priority, &lead.Qualification,
		&lead.Notes, &lead.Message,
		&lead.LifeDetails, &lead.RealEstateDetails, &lead.SecuritiesDetails, &lead.CustomDetails, &lead.PlatformData,
		&lead.IsArchived, &lead.StatusChangedAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)
	lead.Priority = domain.Priority(priority)
	return lead, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrUnknownAdvisor
	}
	return err
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefBool(v *bool) bool {
	if v == nil {
		return false
	}
	return *v
}

func derefStatus(s *domain.Status) string {
	if s == nil {
		return ""
	}
	return string(*s)
}

func derefPriority(p *domain.Priority) string {
	if p == nil {
		return ""
	}
	return string(*p)
}
