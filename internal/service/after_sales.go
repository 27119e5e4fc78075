package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/utils"
)

const minCaseDescription = 10

type afterSalesService struct {
	*core
}

func NewAfterSalesService(deps Deps) AfterSalesService {
	return &afterSalesService{core: newCore(deps)}
}

func (s *afterSalesService) Open(ctx context.Context, actor domain.Identity, req domain.OpenCaseRequest) (*domain.AfterSalesCase, error) {
	logger.EnterMethod("afterSalesService.Open", "orderID", req.OrderID, "type", req.Type)

	if !req.Type.Valid() {
		err := domain.Validationf("unknown after-sales type %d", req.Type)
		logger.ExitMethodWithError("afterSalesService.Open", err)
		return nil, err
	}

	var created *domain.AfterSalesCase
	_, err := s.withOrder(ctx, req.OrderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := ownerOnly(actor, o); err != nil {
			return err
		}
		if err := requireStatus(o, domain.OrderStatusInUse, domain.OrderStatusAwaitingReturn,
			domain.OrderStatusAwaitingSettlement, domain.OrderStatusCompleted, domain.OrderStatusRefunded); err != nil {
			return err
		}
		if o.PaidAmountCents <= 0 {
			return fmt.Errorf("%w: order %s was never paid", domain.ErrInvalidOrderState, o.OrderNo)
		}

		description := strings.TrimSpace(req.Description)
		if utf8.RuneCountInString(description) < minCaseDescription {
			return domain.Validationf("description must be at least %d characters", minCaseDescription)
		}

		active, err := repos.AfterSales.HasActiveForOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("%w: order %s", domain.ErrDuplicateActiveCase, o.OrderNo)
		}

		if req.Type == domain.AfterSalesRefund {
			if req.RequestedAmountCents <= 0 || req.RequestedAmountCents > o.RefundableCents() {
				return domain.Validationf("requested refund must be between 0.01 and %s", utils.FormatCents(o.RefundableCents()))
			}
		}

		now := s.now()
		c := &domain.AfterSalesCase{
			CaseNo:               newCaseNo(now),
			OrderID:              o.ID,
			OrderNo:              o.OrderNo,
			UserID:               o.UserID,
			Type:                 req.Type,
			Reason:               strings.TrimSpace(req.Reason),
			Description:          description,
			RequestedAmountCents: req.RequestedAmountCents,
			Evidence:             req.Evidence,
			Status:               domain.AfterSalesPending,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := repos.AfterSales.Create(ctx, c); err != nil {
			return err
		}
		created = c
		return s.journal(ctx, repos, fx, o, domain.OrderEventAfterSales, actor, "opened case "+c.CaseNo)
	})
	if err != nil {
		logger.ExitMethodWithError("afterSalesService.Open", err, "orderID", req.OrderID)
		return nil, err
	}

	logger.ExitMethod("afterSalesService.Open", "caseNo", created.CaseNo)
	return created, nil
}

// Audit decides a pending case. Approving a refund case moves money back to
// the customer in the same transaction.
func (s *afterSalesService) Audit(ctx context.Context, actor domain.Identity, caseID int64, req domain.AuditRequest) (*domain.AfterSalesCase, error) {
	logger.EnterMethod("afterSalesService.Audit", "caseID", caseID, "decision", req.Decision)

	if err := staffOnly(actor); err != nil {
		logger.ExitMethodWithError("afterSalesService.Audit", err)
		return nil, err
	}
	if req.Decision != domain.AuditApprove && req.Decision != domain.AuditReject {
		err := domain.Validationf("decision must be approve or reject")
		logger.ExitMethodWithError("afterSalesService.Audit", err)
		return nil, err
	}

	peek, err := s.deps.Store.Repos().AfterSales.GetByID(ctx, caseID)
	if err != nil {
		logger.ExitMethodWithError("afterSalesService.Audit", err, "caseID", caseID)
		return nil, err
	}

	// Orders are always locked before cases.
	var audited *domain.AfterSalesCase
	_, err = s.withOrder(ctx, peek.OrderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		c, err := repos.AfterSales.GetByIDForUpdate(ctx, caseID)
		if err != nil {
			return err
		}
		if c.Status != domain.AfterSalesPending {
			return fmt.Errorf("%w: case %s is not pending", domain.ErrInvalidCaseState, c.CaseNo)
		}

		now := s.now()
		auditorID := actor.UserID
		c.AuditorID = &auditorID
		c.AuditorName = actor.Name
		c.AuditTime = &now
		c.AuditRemark = strings.TrimSpace(req.Remark)
		c.UpdatedAt = now

		switch {
		case req.Decision == domain.AuditReject:
			c.Status = domain.AfterSalesRejected
		case c.Type == domain.AfterSalesRefund:
			if err := s.approveRefund(ctx, repos, fx, o, c, req.ApprovedAmountCents, actor); err != nil {
				return err
			}
		default:
			c.Status = domain.AfterSalesCompleted
		}

		if err := repos.AfterSales.Update(ctx, c); err != nil {
			return err
		}
		audited = c
		return s.journal(ctx, repos, fx, o, domain.OrderEventAfterSales, actor,
			fmt.Sprintf("case %s %sd", c.CaseNo, req.Decision))
	})
	if err != nil {
		logger.ExitMethodWithError("afterSalesService.Audit", err, "caseID", caseID)
		return nil, err
	}

	logger.ExitMethod("afterSalesService.Audit", "caseNo", audited.CaseNo, "status", audited.Status)
	return audited, nil
}

func (s *afterSalesService) approveRefund(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, c *domain.AfterSalesCase, amount int64, actor domain.Identity) error {
	if amount <= 0 || amount > o.RefundableCents() {
		return domain.Validationf("approved refund %s must be between 0.01 and %s",
			utils.FormatCents(amount), utils.FormatCents(o.RefundableCents()))
	}
	c.Status = domain.AfterSalesApproved
	c.ApprovedAmountCents = amount

	applied, err := s.refund(ctx, repos, fx, o, amount, "AS-REFUND-"+c.CaseNo, domain.ChannelAfterSales, actor, "after-sales "+c.CaseNo)
	if err != nil {
		return err
	}
	if applied {
		expected := o.Status
		switch o.Status {
		case domain.OrderStatusAwaitingSettlement, domain.OrderStatusCompleted, domain.OrderStatusRefunded:
			if err := moveOrder(o, domain.OrderStatusRefunded); err != nil {
				return err
			}
		}
		if err := saveOrder(ctx, repos, o, expected, fx); err != nil {
			return err
		}
		// Complete no longer applies, so the vehicle goes back to the fleet here.
		if expected == domain.OrderStatusAwaitingSettlement {
			if err := s.returnToFleet(ctx, repos, fx, o, actor, "back in fleet after refund "+c.CaseNo); err != nil {
				return err
			}
		}
		if err := s.journal(ctx, repos, fx, o, domain.OrderEventRefund, actor,
			fmt.Sprintf("refunded %s for case %s", utils.FormatCents(amount), c.CaseNo)); err != nil {
			return err
		}
	}

	c.Status = domain.AfterSalesCompleted
	return nil
}

func (s *afterSalesService) Get(ctx context.Context, actor domain.Identity, caseID int64) (*domain.AfterSalesCase, error) {
	c, err := s.deps.Store.Repos().AfterSales.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && (actor.UserID == 0 || actor.UserID != c.UserID) {
		return nil, fmt.Errorf("%w: case %d belongs to another customer", domain.ErrForbidden, caseID)
	}
	return c, nil
}

func (s *afterSalesService) ListMine(ctx context.Context, actor domain.Identity) ([]domain.AfterSalesCase, error) {
	if actor.UserID == 0 {
		return nil, fmt.Errorf("%w: sign in to list cases", domain.ErrForbidden)
	}
	return s.deps.Store.Repos().AfterSales.ListByUser(ctx, actor.UserID)
}

func (s *afterSalesService) ListByStatus(ctx context.Context, actor domain.Identity, status *domain.AfterSalesStatus, page, pageSize int32) ([]domain.AfterSalesCase, int32, error) {
	if err := staffOnly(actor); err != nil {
		return nil, 0, err
	}
	return s.deps.Store.Repos().AfterSales.ListByStatus(ctx, status, page, pageSize)
}
