package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/database"
)

// TransactionRepository implements transaction storage over PostgreSQL.
type TransactionRepository struct {
	db *database.Pool
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, transaction_id, user_id, amount, currency, transaction_type,
	transaction_time,
	merchant_id, merchant_name, merchant_category,
	ip_address, country, city, latitude, longitude,
	device_id, device_type, device_fingerprint, user_agent,
	qr_code_id, qr_code_data,
	status, fraud_status, fraud_score, fraud_reason,
	time_since_last_transaction, transactions_in_last_hour,
	transactions_in_last_day, avg_transaction_amount,
	unusual_amount, unusual_time, unusual_location, unusual_device,
	velocity_score,
	created_at, updated_at`

// Save inserts or updates a transaction.
func (r *TransactionRepository) Save(ctx context.Context, t *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34, $35, $36)
		ON CONFLICT (transaction_id) DO UPDATE SET
			status = EXCLUDED.status,
			fraud_status = EXCLUDED.fraud_status,
			fraud_score = EXCLUDED.fraud_score,
			fraud_reason = EXCLUDED.fraud_reason,
			time_since_last_transaction = EXCLUDED.time_since_last_transaction,
			transactions_in_last_hour = EXCLUDED.transactions_in_last_hour,
			transactions_in_last_day = EXCLUDED.transactions_in_last_day,
			avg_transaction_amount = EXCLUDED.avg_transaction_amount,
			unusual_amount = EXCLUDED.unusual_amount,
			unusual_time = EXCLUDED.unusual_time,
			unusual_location = EXCLUDED.unusual_location,
			unusual_device = EXCLUDED.unusual_device,
			velocity_score = EXCLUDED.velocity_score,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		t.ID, t.TransactionID, t.UserID,
		t.Amount.Amount().String(), t.Amount.Currency(), t.Type.String(),
		t.TransactionTime,
		nullable(t.MerchantID), nullable(t.MerchantName), nullable(t.MerchantCategory),
		nullable(t.IPAddress), nullable(t.Country), nullable(t.City), t.Latitude, t.Longitude,
		nullable(t.DeviceID), nullable(t.DeviceType), nullable(t.DeviceFingerprint), nullable(t.UserAgent),
		nullable(t.QRCodeID), nullable(t.QRCodeData),
		t.Status.String(), t.FraudStatus.String(), t.FraudScore.Float64(), nullable(t.FraudReason),
		t.TimeSinceLastTransaction, t.TransactionsInLastHour,
		t.TransactionsInLastDay, t.AvgTransactionAmount,
		t.UnusualAmount, t.UnusualTime, t.UnusualLocation, t.UnusualDevice,
		t.VelocityScore,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving transaction: %w", err)
	}
	return nil
}

// FindByTransactionID retrieves a transaction by its opaque id.
func (r *TransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`

	row := r.db.QueryRow(ctx, query, transactionID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("querying transaction: %w", err)
	}
	return t, nil
}

// FindByUserIDOrderByTimeDesc returns the user's transactions, most
// recent first. A limit of 0 means no limit.
func (r *TransactionRepository) FindByUserIDOrderByTimeDesc(ctx context.Context, userID string, limit int) ([]*transaction.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions WHERE user_id = $1
		ORDER BY transaction_time DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var result []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// CountTransactionsSince counts the user's transactions at or after the
// given instant.
func (r *TransactionRepository) CountTransactionsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND transaction_time >= $2
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return count, nil
}

// FindDistinctDevicesByUserID returns the distinct non-null device ids
// the user has transacted with.
func (r *TransactionRepository) FindDistinctDevicesByUserID(ctx context.Context, userID string) ([]string, error) {
	return r.distinctColumn(ctx, "device_id", userID)
}

// FindDistinctCountriesByUserID returns the distinct non-null countries
// the user has transacted from.
func (r *TransactionRepository) FindDistinctCountriesByUserID(ctx context.Context, userID string) ([]string, error) {
	return r.distinctColumn(ctx, "country", userID)
}

func (r *TransactionRepository) distinctColumn(ctx context.Context, column, userID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM transactions
		WHERE user_id = $1 AND %s IS NOT NULL
		ORDER BY %s`, column, column, column)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying distinct %s: %w", column, err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// CountFraudulentTransactions counts the user's transactions scored FRAUD.
func (r *TransactionRepository) CountFraudulentTransactions(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND fraud_status = 'FRAUD'
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting fraudulent transactions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var amount, currency, txType, status, fraudStatus string
	var fraudScore float64
	var merchantID, merchantName, merchantCategory *string
	var ipAddress, country, city *string
	var deviceID, deviceType, deviceFingerprint, userAgent *string
	var qrCodeID, qrCodeData, fraudReason *string

	err := row.Scan(
		&t.ID, &t.TransactionID, &t.UserID, &amount, &currency, &txType,
		&t.TransactionTime,
		&merchantID, &merchantName, &merchantCategory,
		&ipAddress, &country, &city, &t.Latitude, &t.Longitude,
		&deviceID, &deviceType, &deviceFingerprint, &userAgent,
		&qrCodeID, &qrCodeData,
		&status, &fraudStatus, &fraudScore, &fraudReason,
		&t.TimeSinceLastTransaction, &t.TransactionsInLastHour,
		&t.TransactionsInLastDay, &t.AvgTransactionAmount,
		&t.UnusualAmount, &t.UnusualTime, &t.UnusualLocation, &t.UnusualDevice,
		&t.VelocityScore,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	money, err := values.NewMoneyFromString(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount: %w", err)
	}
	t.Amount = money

	parsedType, err := transaction.ParseType(txType)
	if err != nil {
		return nil, err
	}
	t.Type = parsedType
	t.Status = transaction.ParseStatus(status)
	t.FraudStatus = transaction.ParseFraudStatus(fraudStatus)
	t.FraudScore = values.NewScore(fraudScore)

	t.MerchantID = deref(merchantID)
	t.MerchantName = deref(merchantName)
	t.MerchantCategory = deref(merchantCategory)
	t.IPAddress = deref(ipAddress)
	t.Country = deref(country)
	t.City = deref(city)
	t.DeviceID = deref(deviceID)
	t.DeviceType = deref(deviceType)
	t.DeviceFingerprint = deref(deviceFingerprint)
	t.UserAgent = deref(userAgent)
	t.QRCodeID = deref(qrCodeID)
	t.QRCodeData = deref(qrCodeData)
	t.FraudReason = deref(fraudReason)

	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
