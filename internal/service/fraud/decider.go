package fraud

import (
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
)

// Combine produces the final fraud score from the model and rule
// scores, weighted per the detection method contract.
func Combine(modelScore, ruleScore float64) values.Score {
	return values.NewScore(ModelWeight*modelScore + RuleWeight*ruleScore)
}

// riskLevelFor bands a fraud score into a coarse risk level.
func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return RiskCritical
	case score >= ThresholdHigh:
		return RiskHigh
	case score >= ThresholdSuspicious:
		return RiskMedium
	default:
		return RiskLow
	}
}

// fraudStatusFor maps a fraud score to the transaction's fraud status.
func fraudStatusFor(score float64) transaction.FraudStatus {
	switch {
	case score >= ThresholdHigh:
		return transaction.FraudStatusFraud
	case score >= ThresholdSuspicious:
		return transaction.FraudStatusSuspicious
	default:
		return transaction.FraudStatusSafe
	}
}

// recommendationFor maps a fraud score to the handling recommendation.
func recommendationFor(score float64) Recommendation {
	switch {
	case score >= ThresholdHigh:
		return RecommendDecline
	case score >= ThresholdSuspicious:
		return RecommendReview
	default:
		return RecommendApprove
	}
}

// preTransactionStatus bands the terminal status before commitment.
// The pre-transaction path never blocks.
func preTransactionStatus(score float64) transaction.Status {
	switch {
	case score >= ThresholdHigh:
		return transaction.StatusDeclined
	case score >= ThresholdSuspicious:
		return transaction.StatusReview
	default:
		return transaction.StatusApproved
	}
}

// applyDecisionBands sets the transaction status and fraud status for
// the given mode. It returns whether the account must be locked, which
// only post-transaction critical fraud demands.
func applyDecisionBands(t *transaction.Transaction, score float64, mode Mode) (lockAccount bool) {
	switch mode {
	case ModePreTransaction:
		t.Status = preTransactionStatus(score)
		t.FraudStatus = fraudStatusFor(score)
	case ModePostTransaction:
		switch {
		case score >= ThresholdCritical:
			t.Status = transaction.StatusBlocked
			t.FraudStatus = transaction.FraudStatusFraud
			lockAccount = true
		case score >= ThresholdHigh:
			t.Status = transaction.StatusHold
			t.FraudStatus = transaction.FraudStatusFraud
		case score >= ThresholdSuspicious:
			t.FraudStatus = transaction.FraudStatusSuspicious
		default:
			t.FraudStatus = transaction.FraudStatusSafe
		}
	}
	return lockAccount
}

// errorDecision is the safe default when the pipeline fails anywhere.
func errorDecision() *Decision {
	return &Decision{
		FraudScore:      values.NewScore(0.5),
		MLScore:         0.5,
		RuleScore:       0.5,
		BehaviorScore:   0.5,
		IsFraud:         false,
		RiskLevel:       RiskMedium,
		FraudStatus:     transaction.FraudStatusUnknown,
		Recommendation:  RecommendReview,
		PrimaryReason:   ReasonError,
		AllReasons:      []string{ReasonError},
		TriggeredRules:  []string{},
		DetectionMethod: MethodError,
	}
}

// statusMessage is the human message keyed by terminal status.
func statusMessage(t *transaction.Transaction, d *Decision) string {
	switch t.Status {
	case transaction.StatusApproved:
		return "Transaction approved successfully"
	case transaction.StatusDeclined:
		return "Transaction declined - " + d.PrimaryReason
	case transaction.StatusReview:
		return "Transaction flagged for manual review - " + d.PrimaryReason
	case transaction.StatusHold:
		return "Transaction on hold pending verification"
	case transaction.StatusBlocked:
		return "Transaction blocked - Fraud detected"
	default:
		return "Transaction status: " + t.Status.String()
	}
}
