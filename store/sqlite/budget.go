package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/generic"
)

// =============================================================================
// ENTERPRISES AND AGENCIES
// =============================================================================

// SaveEnterprise upserts an enterprise.
func (s *Store) SaveEnterprise(ctx context.Context, e budget.Enterprise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO enterprises (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		e.ID, e.Name)
	if err != nil {
		return fmt.Errorf("failed to save enterprise: %w", err)
	}
	return nil
}

// ListEnterprises returns all enterprises ordered by name.
func (s *Store) ListEnterprises(ctx context.Context) ([]budget.Enterprise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM enterprises ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list enterprises: %w", err)
	}
	defer rows.Close()

	var out []budget.Enterprise
	for rows.Next() {
		var e budget.Enterprise
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("failed to scan enterprise: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) enterpriseExists(ctx context.Context, id budget.EnterpriseID) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM enterprises WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("failed to check enterprise: %w", err)
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: "enterprise", ID: string(id)}
	}
	return nil
}

// SaveAgency upserts a branch agency.
func (s *Store) SaveAgency(ctx context.Context, enterpriseID budget.EnterpriseID, id budget.AgencyID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agencies (id, enterprise_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, id, enterpriseID, name)
	if err != nil {
		return fmt.Errorf("failed to save agency: %w", err)
	}
	return nil
}

// SaveAgencyBudget upserts the allocation of an agency (or of the head
// office when AgencyID is empty) for a fiscal year.
func (s *Store) SaveAgencyBudget(ctx context.Context, b budget.AgencyBudget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agency_budgets (enterprise_id, agency_id, fiscal_year, allocated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(enterprise_id, agency_id, fiscal_year) DO UPDATE SET allocated = excluded.allocated
	`, b.EnterpriseID, b.AgencyID, b.FiscalYear, b.Allocated.Value.String())
	if err != nil {
		return fmt.Errorf("failed to save agency budget: %w", err)
	}
	return nil
}

// AgencyBudgets returns every allocation of the year with agency names.
func (s *Store) AgencyBudgets(ctx context.Context, enterpriseID budget.EnterpriseID, fiscalYear int) ([]budget.AgencyBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.agency_id, b.enterprise_id, b.fiscal_year, COALESCE(a.name, ''), b.allocated
		FROM agency_budgets b
		LEFT JOIN agencies a ON a.id = b.agency_id
		WHERE b.enterprise_id = ? AND b.fiscal_year = ?
		ORDER BY b.agency_id
	`, enterpriseID, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query agency budgets: %w", err)
	}
	defer rows.Close()

	var out []budget.AgencyBudget
	for rows.Next() {
		var b budget.AgencyBudget
		var allocated string
		if err := rows.Scan(&b.AgencyID, &b.EnterpriseID, &b.FiscalYear, &b.Name, &allocated); err != nil {
			return nil, fmt.Errorf("failed to scan agency budget: %w", err)
		}
		if b.Allocated, err = parseMoney(allocated); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// PLANS
// =============================================================================

// SavePlan upserts a plan. A second live plan for the same enterprise and
// year violates idx_plans_live.
func (s *Store) SavePlan(ctx context.Context, p budget.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := generic.ValidateFiscalYear(p.FiscalYear); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, enterprise_id, fiscal_year, name, allocated_total, vigilance_threshold, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			allocated_total = excluded.allocated_total,
			vigilance_threshold = excluded.vigilance_threshold,
			archived_at = excluded.archived_at
	`, p.ID, p.EnterpriseID, p.FiscalYear, p.Name, p.AllocatedTotal.Value.String(),
		nullDecimal(p.VigilanceThreshold), nullTime(p.ArchivedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: enterprise %s already has a live plan for %d", generic.ErrInvalidInput, p.EnterpriseID, p.FiscalYear)
		}
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

const planColumns = `id, enterprise_id, fiscal_year, name, allocated_total, vigilance_threshold, archived_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*budget.Plan, error) {
	var (
		p                   budget.Plan
		allocated           string
		threshold, archived sql.NullString
	)
	if err := row.Scan(&p.ID, &p.EnterpriseID, &p.FiscalYear, &p.Name, &allocated, &threshold, &archived); err != nil {
		return nil, err
	}
	var err error
	if p.AllocatedTotal, err = parseMoney(allocated); err != nil {
		return nil, err
	}
	if p.VigilanceThreshold, err = parseOptionalDecimal(threshold); err != nil {
		return nil, err
	}
	if archived.Valid {
		t := parseTime(archived.String)
		p.ArchivedAt = &t
	}
	return &p, nil
}

// Plan returns the live plan of the year, or nil when none exists.
// Returns a NotFoundError if the enterprise does not exist.
func (s *Store) Plan(ctx context.Context, enterpriseID budget.EnterpriseID, fiscalYear int) (*budget.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.enterpriseExists(ctx, enterpriseID); err != nil {
		return nil, err
	}

	p, err := scanPlan(s.db.QueryRowContext(ctx,
		"SELECT "+planColumns+" FROM plans WHERE enterprise_id = ? AND fiscal_year = ? AND archived_at IS NULL",
		enterpriseID, fiscalYear))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// GetPlan returns a plan by id, archived or not.
func (s *Store) GetPlan(ctx context.Context, id budget.PlanID) (*budget.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanPlan(s.db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "plan", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// ArchivePlan soft-deletes a plan and detaches its training needs in one
// transaction. The needs become one-off spend of the same year.
func (s *Store) ArchivePlan(ctx context.Context, id budget.PlanID, at time.Time) (budget.ArchiveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return budget.ArchiveResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPlan(tx.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return budget.ArchiveResult{}, &generic.NotFoundError{Kind: "plan", ID: string(id)}
	}
	if err != nil {
		return budget.ArchiveResult{}, fmt.Errorf("failed to get plan: %w", err)
	}

	needs, err := queryNeeds(ctx, tx, "WHERE plan_id = ?", id)
	if err != nil {
		return budget.ArchiveResult{}, err
	}

	res, err := budget.ArchivePlan(*p, needs, at)
	if err != nil {
		return budget.ArchiveResult{}, err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE plans SET archived_at = ? WHERE id = ?", nullTime(res.Plan.ArchivedAt), id); err != nil {
		return budget.ArchiveResult{}, fmt.Errorf("failed to archive plan: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE training_needs SET plan_id = NULL, one_off = TRUE WHERE plan_id = ?", id); err != nil {
		return budget.ArchiveResult{}, fmt.Errorf("failed to detach training needs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return budget.ArchiveResult{}, fmt.Errorf("failed to commit archive: %w", err)
	}
	return res, nil
}

// =============================================================================
// TRAINING NEEDS
// =============================================================================

// SaveTrainingNeed upserts a training need.
func (s *Store) SaveTrainingNeed(ctx context.Context, n budget.TrainingNeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_needs (id, enterprise_id, fiscal_year, title, plan_id, one_off, product_id, agency_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			plan_id = excluded.plan_id,
			one_off = excluded.one_off,
			product_id = excluded.product_id,
			agency_id = excluded.agency_id
	`, n.ID, n.EnterpriseID, n.FiscalYear, n.Title, nullString(string(n.PlanID)), n.OneOff,
		nullString(string(n.ProductID)), nullString(string(n.AgencyID)))
	if err != nil {
		return fmt.Errorf("failed to save training need: %w", err)
	}
	return nil
}

// TrainingNeeds returns plan-linked and one-off needs of the year.
func (s *Store) TrainingNeeds(ctx context.Context, enterpriseID budget.EnterpriseID, fiscalYear int) ([]budget.TrainingNeed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryNeeds(ctx, s.db, "WHERE enterprise_id = ? AND fiscal_year = ?", enterpriseID, fiscalYear)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryNeeds(ctx context.Context, db querier, where string, args ...any) ([]budget.TrainingNeed, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, enterprise_id, fiscal_year, title, plan_id, one_off, product_id, agency_id
		FROM training_needs `+where+`
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query training needs: %w", err)
	}
	defer rows.Close()

	var needs []budget.TrainingNeed
	for rows.Next() {
		var n budget.TrainingNeed
		var planID, productID, agencyID sql.NullString
		if err := rows.Scan(&n.ID, &n.EnterpriseID, &n.FiscalYear, &n.Title, &planID, &n.OneOff, &productID, &agencyID); err != nil {
			return nil, fmt.Errorf("failed to scan training need: %w", err)
		}
		n.PlanID = budget.PlanID(planID.String)
		n.ProductID = budget.ProductID(productID.String)
		n.AgencyID = budget.AgencyID(agencyID.String)
		needs = append(needs, n)
	}
	return needs, rows.Err()
}

// =============================================================================
// PRODUCTS AND TARIFFS (budget.TariffSource)
// =============================================================================

// SaveProduct upserts a catalog product.
func (s *Store) SaveProduct(ctx context.Context, id budget.ProductID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		id, name)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// SaveTariff upserts a tariff. A second default tariff for the same product
// violates idx_tariffs_default.
func (s *Store) SaveTariff(ctx context.Context, t budget.Tariff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tariffs (id, product_id, label, price, is_default) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET label = excluded.label, price = excluded.price, is_default = excluded.is_default
	`, t.ID, t.ProductID, t.Label, t.Price.Value.String(), t.IsDefault)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: product %s already has a default tariff", generic.ErrInvalidInput, t.ProductID)
		}
		return fmt.Errorf("failed to save tariff: %w", err)
	}
	return nil
}

// DefaultTariffs resolves the default tariff of every product in one query.
// Products without a default tariff are absent from the result.
func (s *Store) DefaultTariffs(ctx context.Context, productIDs []budget.ProductID) (budget.Prices, error) {
	if len(productIDs) == 0 {
		return budget.Prices{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = string(id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, label, price, is_default
		FROM tariffs
		WHERE is_default AND product_id IN (`+placeholders(len(args))+`)
		ORDER BY product_id, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query default tariffs: %w", err)
	}
	defer rows.Close()

	var tariffs []budget.Tariff
	for rows.Next() {
		var t budget.Tariff
		var price string
		if err := rows.Scan(&t.ID, &t.ProductID, &t.Label, &price, &t.IsDefault); err != nil {
			return nil, fmt.Errorf("failed to scan tariff: %w", err)
		}
		if t.Price, err = parseMoney(price); err != nil {
			return nil, err
		}
		tariffs = append(tariffs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return budget.SelectDefaultTariffs(tariffs), nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
