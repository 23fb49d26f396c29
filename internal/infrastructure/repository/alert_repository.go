package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/alert"
	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/database"
)

// AlertRepository implements fraud alert storage over PostgreSQL.
// Alerts are keyed on transaction_id so re-applying a decision upserts
// rather than duplicating.
type AlertRepository struct {
	db *database.Pool
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.Pool) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	id, transaction_id, user_id, alert_type, severity, fraud_score, reason,
	rules_fired, ml_features, action,
	reviewed, reviewed_by, review_notes, reviewed_at, confirmed_fraud,
	detected_at, created_at`

// Save inserts an alert, or replaces the scoring fields of the existing
// alert for the same transaction.
func (r *AlertRepository) Save(ctx context.Context, a *alert.Alert) error {
	rulesJSON, err := json.Marshal(a.RulesFired)
	if err != nil {
		return fmt.Errorf("encoding rules fired: %w", err)
	}

	var featuresJSON []byte
	if a.MLFeatures != nil {
		featuresJSON, err = json.Marshal(a.MLFeatures)
		if err != nil {
			return fmt.Errorf("encoding ml features: %w", err)
		}
	}

	query := `
		INSERT INTO fraud_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (transaction_id) DO UPDATE SET
			alert_type = EXCLUDED.alert_type,
			severity = EXCLUDED.severity,
			fraud_score = EXCLUDED.fraud_score,
			reason = EXCLUDED.reason,
			rules_fired = EXCLUDED.rules_fired,
			ml_features = EXCLUDED.ml_features,
			action = EXCLUDED.action,
			detected_at = EXCLUDED.detected_at
	`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.TransactionID, a.UserID,
		a.AlertType.String(), a.Severity.String(), a.FraudScore.Float64(), a.Reason,
		rulesJSON, featuresJSON, a.Action.String(),
		a.Reviewed, nullable(a.ReviewedBy), nullable(a.ReviewNotes), a.ReviewedAt, a.ConfirmedFraud,
		a.DetectedAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving fraud alert: %w", err)
	}
	return nil
}

// Update persists review fields on an existing alert.
func (r *AlertRepository) Update(ctx context.Context, a *alert.Alert) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE fraud_alerts
		SET reviewed = $2, reviewed_by = $3, review_notes = $4,
		    reviewed_at = $5, confirmed_fraud = $6
		WHERE id = $1
	`, a.ID, a.Reviewed, nullable(a.ReviewedBy), nullable(a.ReviewNotes), a.ReviewedAt, a.ConfirmedFraud)
	if err != nil {
		return fmt.Errorf("updating fraud alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrAlertNotFound
	}
	return nil
}

// FindByID retrieves an alert by id.
func (r *AlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM fraud_alerts WHERE id = $1`

	a, err := scanAlert(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrAlertNotFound
		}
		return nil, fmt.Errorf("querying fraud alert: %w", err)
	}
	return a, nil
}

// FindByUserID returns all alerts for a user, most recent first.
func (r *AlertRepository) FindByUserID(ctx context.Context, userID string) ([]*alert.Alert, error) {
	query := `SELECT` + alertColumns + `
		FROM fraud_alerts WHERE user_id = $1 ORDER BY detected_at DESC`
	return r.queryMany(ctx, query, userID)
}

// FindUnreviewed returns all alerts pending human review.
func (r *AlertRepository) FindUnreviewed(ctx context.Context) ([]*alert.Alert, error) {
	query := `SELECT` + alertColumns + `
		FROM fraud_alerts WHERE reviewed = FALSE ORDER BY detected_at DESC`
	return r.queryMany(ctx, query)
}

func (r *AlertRepository) queryMany(ctx context.Context, query string, args ...any) ([]*alert.Alert, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fraud alerts: %w", err)
	}
	defer rows.Close()

	var result []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fraud alert: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var a alert.Alert
	var alertType, severity, action string
	var fraudScore float64
	var rulesJSON, featuresJSON []byte
	var reviewedBy, reviewNotes *string

	err := row.Scan(
		&a.ID, &a.TransactionID, &a.UserID,
		&alertType, &severity, &fraudScore, &a.Reason,
		&rulesJSON, &featuresJSON, &action,
		&a.Reviewed, &reviewedBy, &reviewNotes, &a.ReviewedAt, &a.ConfirmedFraud,
		&a.DetectedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.AlertType = alert.ParseType(alertType)
	a.Severity = alert.ParseSeverity(severity)
	a.Action = alert.ParseAction(action)
	a.FraudScore = values.NewScore(fraudScore)
	a.ReviewedBy = deref(reviewedBy)
	a.ReviewNotes = deref(reviewNotes)

	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &a.RulesFired); err != nil {
			a.RulesFired = []string{}
		}
	}
	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &a.MLFeatures); err != nil {
			a.MLFeatures = nil
		}
	}

	return &a, nil
}
