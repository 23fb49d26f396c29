package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/database"
)

// BehaviorRepository implements behavior profile storage over
// PostgreSQL. The frequency-ordered sets are JSONB columns.
type BehaviorRepository struct {
	db *database.Pool
}

// NewBehaviorRepository creates a new behavior repository
func NewBehaviorRepository(db *database.Pool) *BehaviorRepository {
	return &BehaviorRepository{db: db}
}

// FindByUserID retrieves a user's behavior profile.
func (r *BehaviorRepository) FindByUserID(ctx context.Context, userID string) (*behavior.Profile, error) {
	query := `
		SELECT user_id,
			avg_transaction_amount, max_transaction_amount,
			min_transaction_amount, std_dev_transaction_amount,
			transactions_per_day, transactions_per_week, transactions_per_month,
			preferred_hours, preferred_days, frequent_cities, frequent_countries,
			known_devices, known_ip_addresses, frequent_merchants, frequent_categories,
			consistency_score, diversity_score, velocity_pattern,
			failed_attempts, chargebacks, disputed_transactions, data_points_count,
			last_updated, created_at
		FROM user_behaviors WHERE user_id = $1
	`

	var p behavior.Profile
	var consistency, diversity, velocity float64
	var hoursJSON, daysJSON, citiesJSON, countriesJSON []byte
	var devicesJSON, ipsJSON, merchantsJSON, categoriesJSON []byte

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.AvgTransactionAmount, &p.MaxTransactionAmount,
		&p.MinTransactionAmount, &p.StdDevTransactionAmount,
		&p.TransactionsPerDay, &p.TransactionsPerWeek, &p.TransactionsPerMonth,
		&hoursJSON, &daysJSON, &citiesJSON, &countriesJSON,
		&devicesJSON, &ipsJSON, &merchantsJSON, &categoriesJSON,
		&consistency, &diversity, &velocity,
		&p.FailedAttempts, &p.Chargebacks, &p.DisputedTransactions, &p.DataPointsCount,
		&p.LastUpdated, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrBehaviorNotFound
		}
		return nil, fmt.Errorf("querying behavior profile: %w", err)
	}

	p.ConsistencyScore = values.NewScore(consistency)
	p.DiversityScore = values.NewScore(diversity)
	p.VelocityPattern = values.NewScore(velocity)

	for _, field := range []struct {
		data []byte
		dst  any
	}{
		{hoursJSON, &p.PreferredHours},
		{daysJSON, &p.PreferredDays},
		{citiesJSON, &p.FrequentCities},
		{countriesJSON, &p.FrequentCountries},
		{devicesJSON, &p.KnownDevices},
		{ipsJSON, &p.KnownIPAddresses},
		{merchantsJSON, &p.FrequentMerchants},
		{categoriesJSON, &p.FrequentCategories},
	} {
		if len(field.data) == 0 {
			continue
		}
		if err := json.Unmarshal(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("decoding behavior field: %w", err)
		}
	}

	return &p, nil
}

// Save rewrites the behavior profile wholesale.
func (r *BehaviorRepository) Save(ctx context.Context, p *behavior.Profile) error {
	encoded := make([][]byte, 8)
	for i, v := range []any{
		p.PreferredHours, p.PreferredDays, p.FrequentCities, p.FrequentCountries,
		p.KnownDevices, p.KnownIPAddresses, p.FrequentMerchants, p.FrequentCategories,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding behavior field: %w", err)
		}
		encoded[i] = data
	}

	query := `
		INSERT INTO user_behaviors (
			user_id,
			avg_transaction_amount, max_transaction_amount,
			min_transaction_amount, std_dev_transaction_amount,
			transactions_per_day, transactions_per_week, transactions_per_month,
			preferred_hours, preferred_days, frequent_cities, frequent_countries,
			known_devices, known_ip_addresses, frequent_merchants, frequent_categories,
			consistency_score, diversity_score, velocity_pattern,
			failed_attempts, chargebacks, disputed_transactions, data_points_count,
			last_updated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (user_id) DO UPDATE SET
			avg_transaction_amount = EXCLUDED.avg_transaction_amount,
			max_transaction_amount = EXCLUDED.max_transaction_amount,
			min_transaction_amount = EXCLUDED.min_transaction_amount,
			std_dev_transaction_amount = EXCLUDED.std_dev_transaction_amount,
			transactions_per_day = EXCLUDED.transactions_per_day,
			transactions_per_week = EXCLUDED.transactions_per_week,
			transactions_per_month = EXCLUDED.transactions_per_month,
			preferred_hours = EXCLUDED.preferred_hours,
			preferred_days = EXCLUDED.preferred_days,
			frequent_cities = EXCLUDED.frequent_cities,
			frequent_countries = EXCLUDED.frequent_countries,
			known_devices = EXCLUDED.known_devices,
			known_ip_addresses = EXCLUDED.known_ip_addresses,
			frequent_merchants = EXCLUDED.frequent_merchants,
			frequent_categories = EXCLUDED.frequent_categories,
			consistency_score = EXCLUDED.consistency_score,
			diversity_score = EXCLUDED.diversity_score,
			velocity_pattern = EXCLUDED.velocity_pattern,
			failed_attempts = EXCLUDED.failed_attempts,
			chargebacks = EXCLUDED.chargebacks,
			disputed_transactions = EXCLUDED.disputed_transactions,
			data_points_count = EXCLUDED.data_points_count,
			last_updated = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		p.UserID,
		p.AvgTransactionAmount, p.MaxTransactionAmount,
		p.MinTransactionAmount, p.StdDevTransactionAmount,
		p.TransactionsPerDay, p.TransactionsPerWeek, p.TransactionsPerMonth,
		encoded[0], encoded[1], encoded[2], encoded[3],
		encoded[4], encoded[5], encoded[6], encoded[7],
		p.ConsistencyScore.Float64(), p.DiversityScore.Float64(), p.VelocityPattern.Float64(),
		p.FailedAttempts, p.Chargebacks, p.DisputedTransactions, p.DataPointsCount,
		p.LastUpdated, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving behavior profile: %w", err)
	}
	return nil
}
