package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/payment-fraud-backend/internal/domain/alert"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/behavior"
	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/user"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
	"github.com/davidleathers/payment-fraud-backend/internal/metrics"
	"github.com/davidleathers/payment-fraud-backend/internal/service/mlscoring"
	"github.com/davidleathers/payment-fraud-backend/internal/service/rules"
)

// Trainer is the optional training surface of a model scorer.
type Trainer interface {
	Fit(ctx context.Context, samples []mlscoring.TrainingSample) error
}

// Deps carries the service's collaborators. Metrics and Velocity are
// optional.
type Deps struct {
	Users        UserStore
	Transactions TransactionStore
	Alerts       AlertStore
	Profiles     ProfileProvider
	Scheduler    UpdateScheduler
	Velocity     VelocityReader

	RuleEngine *rules.Engine
	Scorer     mlscoring.Scorer

	Metrics *metrics.Registry
	Logger  *slog.Logger

	ModelTimeout time.Duration
}

// Service coordinates the fraud scoring pipeline: enrichment, parallel
// rule and model scoring, the combined decision, and its side effects.
type Service struct {
	users        UserStore
	transactions TransactionStore
	alerts       AlertStore
	profiles     ProfileProvider
	scheduler    UpdateScheduler
	velocity     VelocityReader

	ruleEngine *rules.Engine
	scorer     mlscoring.Scorer

	metrics *metrics.Registry
	logger  *slog.Logger

	modelTimeout time.Duration
	now          func() time.Time
}

// NewService creates the fraud detection service.
func NewService(deps Deps) *Service {
	timeout := deps.ModelTimeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}

	return &Service{
		users:        deps.Users,
		transactions: deps.Transactions,
		alerts:       deps.Alerts,
		profiles:     deps.Profiles,
		scheduler:    deps.Scheduler,
		velocity:     deps.Velocity,
		ruleEngine:   deps.RuleEngine,
		scorer:       deps.Scorer,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		modelTimeout: timeout,
		now:          time.Now,
	}
}

// ProcessTransaction scores an incoming payment and applies the
// decision's side effects before returning.
func (s *Service) ProcessTransaction(ctx context.Context, req Request) (*Result, error) {
	u, err := s.users.FindByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if u.AccountLocked {
		return s.lockedResult(req), nil
	}

	t, err := buildTransaction(req)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_TRANSACTION", err.Error()).WithCause(err)
	}

	profile := s.loadProfile(ctx, req.UserID)

	var decision *Decision
	if err := s.enrich(ctx, t, profile); err != nil {
		s.logger.ErrorContext(ctx, "enrichment failed",
			"transaction_id", t.TransactionID, "error", err)
		decision = errorDecision()
	}

	if err := s.transactions.Save(ctx, t); err != nil {
		return nil, domainerrors.NewInternalError("failed to persist transaction").WithCause(err)
	}

	if s.velocity != nil {
		if err := s.velocity.Record(ctx, t.UserID, t.TransactionTime); err != nil {
			s.logger.DebugContext(ctx, "velocity record failed", "error", err)
		}
	}

	if decision == nil {
		decision = s.detectFraud(ctx, t, u, profile)
	}
	s.applyFeedback(ctx, t, u, decision, ModePreTransaction)
	s.scheduler.Schedule(t.UserID)

	s.recordMetrics(ctx, t, decision)

	return &Result{
		Transaction: t,
		Decision:    decision,
		Message:     statusMessage(t, decision),
		Approved:    t.Status == transaction.StatusApproved,
	}, nil
}

// ProcessQRTransaction validates QR fields and scores the payment as a
// QR transaction.
func (s *Service) ProcessQRTransaction(ctx context.Context, req Request) (*Result, error) {
	if req.QRCodeID == "" || req.QRCodeData == "" {
		return nil, domainerrors.NewValidationError("INVALID_QR_CODE", "QR code id and data are required")
	}

	req.Type = transaction.TypeQRCode
	return s.ProcessTransaction(ctx, req)
}

// VerifyQRTransaction re-scores the user's most recent transaction with
// the given QR code in post-transaction mode, which can additionally
// hold or block.
func (s *Service) VerifyQRTransaction(ctx context.Context, qrCodeID, userID string) (*Result, error) {
	u, err := s.users.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.transactions.FindByUserIDOrderByTimeDesc(ctx, userID, 0)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to load transactions").WithCause(err)
	}

	var t *transaction.Transaction
	for _, candidate := range history {
		if candidate.QRCodeID == qrCodeID {
			t = candidate
			break
		}
	}
	if t == nil {
		return nil, domainerrors.ErrTransactionNotFound
	}

	profile := s.loadProfile(ctx, userID)

	decision := s.detectFraud(ctx, t, u, profile)
	s.applyFeedback(ctx, t, u, decision, ModePostTransaction)
	s.scheduler.Schedule(userID)

	s.recordMetrics(ctx, t, decision)

	return &Result{
		Transaction: t,
		Decision:    decision,
		Message:     statusMessage(t, decision),
		Approved:    t.Status == transaction.StatusApproved,
	}, nil
}

// GetUserFraudStatistics summarizes a user's fraud exposure.
func (s *Service) GetUserFraudStatistics(ctx context.Context, userID string) (*Statistics, error) {
	u, err := s.users.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	alerts, err := s.alerts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to load alerts").WithCause(err)
	}

	fraudCount, err := s.transactions.CountFraudulentTransactions(ctx, userID)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to count fraudulent transactions").WithCause(err)
	}

	return &Statistics{
		UserID:                 userID,
		TrustScore:             u.TrustScore.Float64(),
		TotalFraudAlerts:       len(alerts),
		FraudulentTransactions: fraudCount,
		AccountLocked:          u.AccountLocked,
	}, nil
}

// GetTransaction returns a transaction by its opaque id.
func (s *Service) GetTransaction(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	return s.transactions.FindByTransactionID(ctx, transactionID)
}

// GetUserTransactions returns the user's transactions, most recent
// first.
func (s *Service) GetUserTransactions(ctx context.Context, userID string) ([]*transaction.Transaction, error) {
	return s.transactions.FindByUserIDOrderByTimeDesc(ctx, userID, 0)
}

// GetUserAlerts returns all alerts for the user.
func (s *Service) GetUserAlerts(ctx context.Context, userID string) ([]*alert.Alert, error) {
	return s.alerts.FindByUserID(ctx, userID)
}

// GetUnreviewedAlerts returns alerts pending human review.
func (s *Service) GetUnreviewedAlerts(ctx context.Context) ([]*alert.Alert, error) {
	return s.alerts.FindUnreviewed(ctx)
}

// ReviewAlert records a reviewer's verdict. Each review feeds one
// training sample, labelled with the verdict, back into the model when
// the scorer supports it.
func (s *Service) ReviewAlert(ctx context.Context, alertID uuid.UUID, reviewer, notes string, confirmedFraud bool) (*alert.Alert, error) {
	a, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	a.MarkReviewed(reviewer, notes, confirmedFraud)
	if err := s.alerts.Update(ctx, a); err != nil {
		return nil, domainerrors.NewInternalError("failed to update alert").WithCause(err)
	}

	if trainer, ok := s.scorer.(Trainer); ok {
		if t, err := s.transactions.FindByTransactionID(ctx, a.TransactionID); err == nil {
			sample := mlscoring.TrainingSample{
				Transaction: t,
				Profile:     s.loadProfile(ctx, a.UserID),
				Fraud:       confirmedFraud,
			}
			if err := trainer.Fit(ctx, []mlscoring.TrainingSample{sample}); err != nil {
				s.logger.WarnContext(ctx, "training from review failed",
					"alert_id", alertID, "error", err)
			}
		}
	}

	return a, nil
}

// RegisterUser creates a user, or returns the existing user when the
// email is already registered.
func (s *Service) RegisterUser(ctx context.Context, name, email, phone, password string) (*user.User, error) {
	if existing, err := s.users.FindByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !domainerrors.IsNotFound(err) {
		return nil, domainerrors.NewInternalError("failed to look up user").WithCause(err)
	}

	u, err := user.NewUser(name, email, phone, password)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_USER", err.Error()).WithCause(err)
	}

	if err := s.users.Save(ctx, u); err != nil {
		return nil, domainerrors.NewInternalError("failed to save user").WithCause(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.UserID)
	return u, nil
}

// detectFraud runs rule and model scoring concurrently and combines
// them. Any internal failure collapses to the error decision; callers
// always get a usable decision.
func (s *Service) detectFraud(ctx context.Context, t *transaction.Transaction, u *user.User, profile *behavior.Profile) (decision *Decision) {
	started := s.now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "fraud pipeline panicked",
				"transaction_id", t.TransactionID, "panic", r)
			decision = errorDecision()
		}
		if decision != nil {
			decision.ProcessingTime = s.now().Sub(started)
		}
	}()

	knownDevices, err := s.transactions.FindDistinctDevicesByUserID(ctx, t.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "device history unavailable",
			"transaction_id", t.TransactionID, "error", err)
		if s.metrics != nil {
			s.metrics.PipelineFailures.Add(ctx, 1)
		}
		return errorDecision()
	}

	// Model scoring runs concurrently under a soft budget; rules run
	// inline.
	type modelOutcome struct {
		score float64
		err   error
	}
	modelCh := make(chan modelOutcome, 1)
	modelCtx, cancelModel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancelModel()

	go func() {
		score, err := s.scorer.Score(modelCtx, t, profile)
		modelCh <- modelOutcome{score: score, err: err}
	}()

	ruleResult := s.ruleEngine.Evaluate(rules.Input{
		Transaction:    t,
		User:           u,
		Profile:        profile,
		CountsLastHour: t.TransactionsInLastHour,
		CountsLastDay:  t.TransactionsInLastDay,
		KnownDevices:   knownDevices,
	})

	method := MethodHybrid
	modelScore := mlscoring.NeutralScore

	select {
	case outcome := <-modelCh:
		if outcome.err != nil {
			s.logger.WarnContext(ctx, "model scoring failed, using neutral score",
				"transaction_id", t.TransactionID, "error", outcome.err)
		}
		modelScore = outcome.score
	case <-modelCtx.Done():
		s.logger.WarnContext(ctx, "model scoring exceeded budget, degrading to rules",
			"transaction_id", t.TransactionID, "timeout", s.modelTimeout)
		if s.metrics != nil {
			s.metrics.ModelScoreTimeouts.Add(ctx, 1)
		}
		method = MethodRule
	}

	var combined values.Score
	if method == MethodRule {
		combined = ruleResult.RuleScore
	} else {
		combined = Combine(modelScore, ruleResult.RuleScore.Float64())
	}

	score := combined.Float64()
	decision = &Decision{
		FraudScore:       combined,
		MLScore:          modelScore,
		RuleScore:        ruleResult.RuleScore.Float64(),
		BehaviorScore:    behaviorScore(profile),
		IsFraud:          score >= ThresholdHigh,
		RiskLevel:        riskLevelFor(score),
		FraudStatus:      fraudStatusFor(score),
		Recommendation:   recommendationFor(score),
		AllReasons:       ruleResult.Reasons,
		TriggeredRules:   ruleResult.TriggeredRules,
		Flags:            ruleResult.Flags,
		AmountDeviation:  s.ruleEngine.BehaviorDeviation(t, profile),
		UserTrustScore:   u.TrustScore.Float64(),
		UserFraudHistory: u.FraudCount,
		DetectionMethod:  method,
	}

	switch {
	case len(ruleResult.Reasons) > 0:
		decision.PrimaryReason = ruleResult.Reasons[0]
	case modelScore >= ThresholdHigh:
		decision.PrimaryReason = ReasonMLSuspicious
		decision.AllReasons = append(decision.AllReasons, ReasonMLSuspicious)
	default:
		decision.PrimaryReason = ReasonNormal
	}

	s.logger.InfoContext(ctx, "fraud detection completed",
		"transaction_id", t.TransactionID,
		"fraud_score", score,
		"rule_score", decision.RuleScore,
		"ml_score", decision.MLScore,
		"method", string(method))

	return decision
}

// enrich populates the behavioral context fields from one history read.
// Partial enrichment is reported but does not abort the pipeline.
func (s *Service) enrich(ctx context.Context, t *transaction.Transaction, profile *behavior.Profile) error {
	history, err := s.transactions.FindByUserIDOrderByTimeDesc(ctx, t.UserID, 0)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if len(history) > 0 {
		seconds := int64(t.TransactionTime.Sub(history[0].TransactionTime).Seconds())
		t.TimeSinceLastTransaction = &seconds

		var sum float64
		var accepted int
		for _, prev := range history {
			if prev.IsAccepted() {
				sum += prev.Amount.Float64()
				accepted++
			}
		}
		avg := t.Amount.Float64()
		if accepted > 0 {
			avg = sum / float64(accepted)
		}
		t.AvgTransactionAmount = &avg
	}

	t.TransactionsInLastHour = s.countSince(ctx, t.UserID, history, t.TransactionTime.Add(-time.Hour))
	t.TransactionsInLastDay = s.countSince(ctx, t.UserID, history, t.TransactionTime.Add(-24*time.Hour))

	if profile != nil {
		t.VelocityScore = profile.VelocityPattern.Float64()
	}

	return nil
}

// countSince prefers the Redis velocity tracker and falls back to the
// already-loaded history.
func (s *Service) countSince(ctx context.Context, userID string, history []*transaction.Transaction, since time.Time) int {
	if s.velocity != nil {
		if count, err := s.velocity.CountSince(ctx, userID, since); err == nil {
			return count
		}
	}

	count := 0
	for _, t := range history {
		if t.TransactionTime.After(since) {
			count++
		}
	}
	return count
}

func (s *Service) loadProfile(ctx context.Context, userID string) *behavior.Profile {
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "behavior profile unavailable",
			"user_id", userID, "error", err)
		return nil
	}
	return profile
}

// lockedResult short-circuits a locked account: declined, unscored,
// not persisted.
func (s *Service) lockedResult(req Request) *Result {
	t, err := buildTransaction(req)
	if err != nil {
		t = &transaction.Transaction{UserID: req.UserID, Amount: req.Amount, Type: req.Type}
	}
	t.Status = transaction.StatusDeclined
	t.FraudStatus = transaction.FraudStatusFraud
	t.FraudScore = values.NewScore(1.0)
	t.FraudReason = ReasonLocked

	decision := &Decision{
		FraudScore:      values.NewScore(1.0),
		IsFraud:         true,
		RiskLevel:       RiskCritical,
		FraudStatus:     transaction.FraudStatusFraud,
		Recommendation:  RecommendDecline,
		PrimaryReason:   ReasonLocked,
		AllReasons:      []string{ReasonLocked},
		TriggeredRules:  []string{},
		DetectionMethod: MethodRule,
	}

	return &Result{
		Transaction: t,
		Decision:    decision,
		Message:     "Transaction declined - " + ReasonLocked,
		Approved:    false,
	}
}

// behaviorScore folds consistency and recent failures into one
// informational scalar.
func behaviorScore(p *behavior.Profile) float64 {
	if p == nil {
		return 0.5
	}
	penalty := math.Min(float64(p.FailedAttempts)*0.1, 0.5)
	return math.Max(0, p.ConsistencyScore.Float64()-penalty)
}

func (s *Service) recordMetrics(ctx context.Context, t *transaction.Transaction, d *Decision) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordScoring(ctx,
		float64(d.ProcessingTime.Milliseconds()),
		d.FraudScore.Float64(),
		t.Status.String(),
		string(d.DetectionMethod))
	if d.DetectionMethod == MethodError {
		s.metrics.PipelineFailures.Add(ctx, 1)
	}
}

func buildTransaction(req Request) (*transaction.Transaction, error) {
	t, err := transaction.New(req.UserID, req.Amount, req.Type)
	if err != nil {
		return nil, err
	}

	t.MerchantID = req.MerchantID
	t.MerchantName = req.MerchantName
	t.MerchantCategory = req.MerchantCategory
	t.IPAddress = req.IPAddress
	t.Country = req.Country
	t.City = req.City
	t.Latitude = req.Latitude
	t.Longitude = req.Longitude
	t.DeviceID = req.DeviceID
	t.DeviceType = req.DeviceType
	t.DeviceFingerprint = req.DeviceFingerprint
	t.UserAgent = req.UserAgent
	t.QRCodeID = req.QRCodeID
	t.QRCodeData = req.QRCodeData

	return t, nil
}
