package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const jobColumns = `id, mode, status, success, keywords, image_name, provider,
	confidence_score, processing_time_seconds, raw_report, warnings, error, remediation,
	class_name, precise_part_name, category, manufacturer, material_composition,
	analysis_confidence, confidence_raw, technical_data_sheet, compatible_vehicles,
	estimated_price, suppliers, diagnostics, confidence_breakdown, keyword_results,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	j, err := prepareNew(job)
	if err != nil {
		return nil, err
	}
	r, err := toRow(j)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		         $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		r.args()...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, j.ID)
		}
		return nil, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Job, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// Update locks the row, applies the patch in Go, and writes every mutable column back
// within one transaction, so concurrent updates of the same id serialise on the row lock.
func (s *PostgresStore) Update(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update job: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	j, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock job: %w", err)
	}

	if err := patch.Apply(j, models.Now()); err != nil {
		return nil, err
	}
	r, err := toRow(j)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET
			status = $3, success = $4, keywords = $5, image_name = $6, provider = $7,
			confidence_score = $8, processing_time_seconds = $9, raw_report = $10,
			warnings = $11, error = $12, remediation = $13,
			class_name = $14, precise_part_name = $15, category = $16, manufacturer = $17,
			material_composition = $18, analysis_confidence = $19, confidence_raw = $20,
			technical_data_sheet = $21, compatible_vehicles = $22, estimated_price = $23,
			suppliers = $24, diagnostics = $25, confidence_breakdown = $26,
			keyword_results = $27, updated_at = $29
		 WHERE id = $1 AND mode = $2 AND created_at = $28`,
		r.args()...)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	// The locked row no longer matches its identity columns, so nothing was written.
	if tag.RowsAffected() != 1 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*models.Job, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", argIdx))
		args = append(args, *filter.Success)
		argIdx++
	}
	if filter.Mode != "" {
		conditions = append(conditions, fmt.Sprintf("mode = $%d", argIdx))
		args = append(args, filter.Mode)
		argIdx++
	}

	query := fmt.Sprintf(
		`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		jobColumns, strings.Join(conditions, " AND "), argIdx)
	args = append(args, filter.EffectiveLimit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.JobStats, error) {
	var st models.JobStats
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			AVG(confidence_score)::float8,
			AVG(processing_time_seconds)::float8
		 FROM jobs`,
	).Scan(&st.Total, &st.Successful, &st.Failed, &st.Pending, &st.Processing, &st.Completed,
		&st.AvgConfidence, &st.AvgProcessingTime)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	st.AvgConfidence = models.RoundStat(st.AvgConfidence)
	st.AvgProcessingTime = models.RoundStat(st.AvgProcessingTime)
	return &st, nil
}

// --- row mapping ---

// jobRow is the flattened column layout of the jobs table. Identity columns are NULL
// when the job has no part analysis; structured fields are JSONB.
type jobRow struct {
	ID                    string
	Mode                  string
	Status                string
	Success               bool
	Keywords              []byte
	ImageName             string
	Provider              string
	ConfidenceScore       *int
	ProcessingTimeSeconds *float64
	RawReport             string
	Warnings              []byte
	Error                 string
	Remediation           string

	ClassName           *string
	PrecisePartName     *string
	Category            *string
	Manufacturer        *string
	MaterialComposition *string
	AnalysisConfidence  *int
	ConfidenceRaw       *string
	TechnicalDataSheet  []byte
	CompatibleVehicles  []byte
	EstimatedPrice      []byte
	Suppliers           []byte
	Diagnostics         []byte
	ConfidenceBreakdown []byte
	KeywordResults      []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *jobRow) args() []any {
	return []any{
		r.ID, r.Mode, r.Status, r.Success, r.Keywords, r.ImageName, r.Provider,
		r.ConfidenceScore, r.ProcessingTimeSeconds, r.RawReport, r.Warnings, r.Error, r.Remediation,
		r.ClassName, r.PrecisePartName, r.Category, r.Manufacturer, r.MaterialComposition,
		r.AnalysisConfidence, r.ConfidenceRaw, r.TechnicalDataSheet, r.CompatibleVehicles,
		r.EstimatedPrice, r.Suppliers, r.Diagnostics, r.ConfidenceBreakdown, r.KeywordResults,
		r.CreatedAt, r.UpdatedAt,
	}
}

func (r *jobRow) dest() []any {
	return []any{
		&r.ID, &r.Mode, &r.Status, &r.Success, &r.Keywords, &r.ImageName, &r.Provider,
		&r.ConfidenceScore, &r.ProcessingTimeSeconds, &r.RawReport, &r.Warnings, &r.Error, &r.Remediation,
		&r.ClassName, &r.PrecisePartName, &r.Category, &r.Manufacturer, &r.MaterialComposition,
		&r.AnalysisConfidence, &r.ConfidenceRaw, &r.TechnicalDataSheet, &r.CompatibleVehicles,
		&r.EstimatedPrice, &r.Suppliers, &r.Diagnostics, &r.ConfidenceBreakdown, &r.KeywordResults,
		&r.CreatedAt, &r.UpdatedAt,
	}
}

func toRow(j *models.Job) (*jobRow, error) {
	r := &jobRow{
		ID:                    j.ID,
		Mode:                  j.Mode,
		Status:                j.Status,
		Success:               j.Success,
		ImageName:             j.ImageName,
		Provider:              j.Provider,
		ConfidenceScore:       j.ConfidenceScore,
		ProcessingTimeSeconds: j.ProcessingTimeSeconds,
		RawReport:             j.RawReport,
		Error:                 j.Error,
		Remediation:           j.Remediation,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
	}

	enc := &jsonEncoder{}
	r.Keywords = enc.encode(j.Keywords)
	r.Warnings = enc.encode(j.Warnings)

	if j.Result != nil && j.Result.PartAnalysis != nil {
		a := j.Result.PartAnalysis
		r.ClassName = &a.ClassName
		r.PrecisePartName = &a.PrecisePartName
		r.Category = &a.Category
		r.Manufacturer = &a.Manufacturer
		r.MaterialComposition = &a.MaterialComposition
		r.AnalysisConfidence = &a.ConfidenceScore
		if a.ConfidenceRaw != "" {
			r.ConfidenceRaw = &a.ConfidenceRaw
		}
		r.TechnicalDataSheet = enc.encode(a.TechnicalDataSheet)
		r.CompatibleVehicles = enc.encode(a.CompatibleVehicles)
		r.EstimatedPrice = enc.encode(a.EstimatedPrice)
		r.Suppliers = enc.encode(a.Suppliers)
		r.Diagnostics = enc.encode(a.Diagnostics)
		r.ConfidenceBreakdown = enc.encode(a.ConfidenceBreakdown)
	}
	if j.Result != nil && j.Result.KeywordResults != nil {
		r.KeywordResults = enc.encode(j.Result.KeywordResults)
	}
	if enc.err != nil {
		return nil, fmt.Errorf("encode job %s: %w", j.ID, enc.err)
	}
	return r, nil
}

func (r *jobRow) job() (*models.Job, error) {
	j := &models.Job{
		ID:                    r.ID,
		Mode:                  r.Mode,
		Status:                r.Status,
		Success:               r.Success,
		ImageName:             r.ImageName,
		Provider:              r.Provider,
		ConfidenceScore:       r.ConfidenceScore,
		ProcessingTimeSeconds: r.ProcessingTimeSeconds,
		RawReport:             r.RawReport,
		Error:                 r.Error,
		Remediation:           r.Remediation,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}

	dec := &jsonDecoder{}
	dec.decode(r.Keywords, &j.Keywords)
	dec.decode(r.Warnings, &j.Warnings)

	if r.ClassName != nil || r.KeywordResults != nil {
		j.Result = &models.JobResult{}
	}
	if r.ClassName != nil {
		a := &models.PartAnalysis{
			ClassName:           *r.ClassName,
			PrecisePartName:     deref(r.PrecisePartName),
			Category:            deref(r.Category),
			Manufacturer:        deref(r.Manufacturer),
			MaterialComposition: deref(r.MaterialComposition),
			ConfidenceRaw:       deref(r.ConfidenceRaw),
		}
		if r.AnalysisConfidence != nil {
			a.ConfidenceScore = *r.AnalysisConfidence
		}
		dec.decode(r.TechnicalDataSheet, &a.TechnicalDataSheet)
		dec.decode(r.CompatibleVehicles, &a.CompatibleVehicles)
		dec.decode(r.EstimatedPrice, &a.EstimatedPrice)
		dec.decode(r.Suppliers, &a.Suppliers)
		dec.decode(r.Diagnostics, &a.Diagnostics)
		dec.decode(r.ConfidenceBreakdown, &a.ConfidenceBreakdown)
		j.Result.PartAnalysis = a
	}
	if r.KeywordResults != nil {
		var kr models.KeywordResults
		dec.decode(r.KeywordResults, &kr)
		j.Result.KeywordResults = &kr
	}
	if dec.err != nil {
		return nil, fmt.Errorf("decode job %s: %w", r.ID, dec.err)
	}
	j.Normalize()
	return j, nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var r jobRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.job()
}

// jsonEncoder and jsonDecoder keep the first error so mapping code stays linear.
type jsonEncoder struct{ err error }

func (e *jsonEncoder) encode(v any) []byte {
	if e.err != nil {
		return nil
	}
	b, err := json.Marshal(v)
	e.err = err
	return b
}

type jsonDecoder struct{ err error }

func (d *jsonDecoder) decode(b []byte, v any) {
	if d.err != nil || len(b) == 0 {
		return
	}
	d.err = json.Unmarshal(b, v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
