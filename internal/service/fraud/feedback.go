package fraud

import (
	"context"
	"time"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/alert"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/user"
	"github.com/davidleathers/payment-fraud-backend/internal/service/mlscoring"
)

// applyFeedback applies the decision's side effects in order: the
// transaction write, the alert, the trust adjustment, and the account
// lock. The effects are independent; a failed alert does not roll back
// the transaction write, and re-applying the same decision converges
// (alerts upsert on transaction id, the lock is idempotent).
func (s *Service) applyFeedback(ctx context.Context, t *transaction.Transaction, u *user.User, d *Decision, mode Mode) {
	score := d.FraudScore.Float64()

	// Re-applying an identical decision must not move the trust score
	// or counters again.
	alreadyApplied := t.IsTerminal() &&
		t.FraudScore == d.FraudScore &&
		t.FraudReason == d.PrimaryReason

	// 1. Transaction fraud fields and terminal status
	lockAccount := applyDecisionBands(t, score, mode)
	if d.DetectionMethod == MethodError {
		t.FraudStatus = transaction.FraudStatusUnknown
	}
	t.FraudScore = d.FraudScore
	t.FraudReason = d.PrimaryReason
	t.UnusualAmount = d.Flags.UnusualAmount
	t.UnusualTime = d.Flags.UnusualTime
	t.UnusualLocation = d.Flags.UnusualLocation
	t.UnusualDevice = d.Flags.UnusualDevice
	t.UpdatedAt = time.Now()

	if err := s.transactions.Save(ctx, t); err != nil {
		// Persistence failure after a decision: the response still
		// carries the computed decision; reconciliation is operational.
		s.logger.ErrorContext(ctx, "failed to persist decision",
			"transaction_id", t.TransactionID, "error", err)
	}

	// 2. Alert when the score reaches the alerting threshold
	if score >= ThresholdSuspicious {
		s.createAlert(ctx, t, d)
	}

	// 3. Trust adjustment, atomic per user
	if !alreadyApplied {
		s.adjustTrust(ctx, t.UserID, score, mode)
	}

	// 4. Account lock on post-transaction critical fraud
	if lockAccount {
		if err := s.users.LockAccount(ctx, t.UserID); err != nil {
			s.logger.ErrorContext(ctx, "failed to lock account",
				"user_id", t.UserID, "error", err)
		} else {
			u.Lock()
			s.logger.WarnContext(ctx, "account locked for critical fraud",
				"user_id", t.UserID, "transaction_id", t.TransactionID)
			if s.metrics != nil {
				s.metrics.AccountsLocked.Add(ctx, 1)
			}
		}
	}
}

func (s *Service) createAlert(ctx context.Context, t *transaction.Transaction, d *Decision) {
	a := alert.New(t.TransactionID, t.UserID, alert.ParseType(string(d.DetectionMethod)), d.FraudScore, d.PrimaryReason)
	a.RulesFired = d.TriggeredRules

	if d.DetectionMethod == MethodHybrid || d.DetectionMethod == MethodML {
		a.MLFeatures = mlscoring.ExtractFeatures(t, nil)
	}

	if err := s.alerts.Save(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "failed to create fraud alert",
			"transaction_id", t.TransactionID, "error", err)
		return
	}

	s.logger.InfoContext(ctx, "fraud alert created",
		"transaction_id", t.TransactionID,
		"severity", a.Severity.String(),
		"action", a.Action.String())
	if s.metrics != nil {
		s.metrics.RecordAlert(ctx, a.Severity.String())
	}
}

// adjustTrust moves the user's trust score per the decision band. The
// transaction counter only advances on the pre-transaction path so a
// QR re-verification does not double-count.
func (s *Service) adjustTrust(ctx context.Context, userID string, score float64, mode Mode) {
	var delta float64
	incrementFraud := false

	switch {
	case score >= ThresholdHigh:
		delta = TrustPenaltyFraud
		incrementFraud = true
	case score >= ThresholdSuspicious:
		delta = TrustPenaltySuspicious
	default:
		delta = TrustRewardClean
	}

	incrementTotal := mode == ModePreTransaction
	if err := s.users.ApplyTrustDelta(ctx, userID, delta, incrementFraud, incrementTotal); err != nil {
		s.logger.ErrorContext(ctx, "failed to adjust trust score",
			"user_id", userID, "error", err)
	}
}
