package pricing

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// PriceCalculator is the engine surface the service drives
type PriceCalculator interface {
	Calculate(ctx context.Context, req pricing.PriceRequest) (*pricing.PriceResult, error)
	ConfirmReservations(ctx context.Context, reservations []*pricing.Reservation, orderRef string) error
	ReleaseReservations(ctx context.Context, reservations []*pricing.Reservation) error
}

// PricingService adapts quote/commit DTOs onto the price calculator
type PricingService struct {
	calculator PriceCalculator
	logger     *zap.Logger
}

// NewPricingService creates a new PricingService
func NewPricingService(calculator PriceCalculator, logger *zap.Logger) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{calculator: calculator, logger: logger}
}

// Quote computes a non-binding price. Usage-limited rules are checked but
// nothing is consumed; the same quote can be repeated indefinitely.
func (s *PricingService) Quote(ctx context.Context, tenantID uuid.UUID, req QuoteRequest) (*PriceResponse, error) {
	result, err := s.calculator.Calculate(ctx, s.toPriceRequest(tenantID, req, pricing.ModePreview))
	if err != nil {
		return nil, err
	}
	s.logSkipped(tenantID, result)
	return toPriceResponse(result), nil
}

// Commit prices a line for a finalizing order. Usage-limited rule
// applications are atomically reserved during calculation and confirmed
// against the order reference; if confirmation fails the reservations are
// released so no usage is leaked.
func (s *PricingService) Commit(ctx context.Context, tenantID uuid.UUID, req CommitRequest) (*PriceResponse, error) {
	result, err := s.calculator.Calculate(ctx, s.toPriceRequest(tenantID, req.QuoteRequest, pricing.ModeCommit))
	if err != nil {
		return nil, err
	}
	s.logSkipped(tenantID, result)

	if len(result.Reservations) > 0 {
		if err := s.calculator.ConfirmReservations(ctx, result.Reservations, req.OrderRef); err != nil {
			if relErr := s.calculator.ReleaseReservations(ctx, result.Reservations); relErr != nil {
				s.logger.Error("failed to release reservations after confirm failure",
					zap.String("tenant_id", tenantID.String()),
					zap.String("order_ref", req.OrderRef),
					zap.Error(relErr))
			}
			return nil, err
		}
	}

	return toPriceResponse(result), nil
}

func (s *PricingService) toPriceRequest(tenantID uuid.UUID, req QuoteRequest, mode pricing.CalculationMode) pricing.PriceRequest {
	pr := pricing.PriceRequest{
		TenantID:       tenantID,
		ProductID:      req.ProductID,
		VariantID:      req.VariantID,
		CustomerID:     req.CustomerID,
		Quantity:       req.Quantity,
		Date:           req.Date,
		TargetCurrency: valueobject.Currency(req.Currency),
		Mode:           mode,
	}
	if req.OrderAmount != nil && req.OrderAmount.Currency != "" {
		m := valueobject.MustMoney(req.OrderAmount.MinorUnits, valueobject.Currency(req.OrderAmount.Currency))
		pr.OrderAmount = &m
	}
	return pr
}

func (s *PricingService) logSkipped(tenantID uuid.UUID, result *pricing.PriceResult) {
	for _, skip := range result.SkippedRules {
		s.logger.Warn("pricing rule skipped: condition evaluation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("rule_id", skip.RuleID.String()),
			zap.String("rule_name", skip.Name),
			zap.Error(skip.Err))
	}
}
