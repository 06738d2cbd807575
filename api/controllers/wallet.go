package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-wallet/api/middleware"
	"github.com/angelmondragon/packfinderz-wallet/api/responses"
	"github.com/angelmondragon/packfinderz-wallet/api/validators"
	"github.com/angelmondragon/packfinderz-wallet/internal/wallet"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-wallet/pkg/errors"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/pagination"
)

const (
	maxSearchLength = 100
	maxUnlockLimit  = 100000
)

type releaseRequest struct {
	VendorID  string          `json:"vendorId" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"rupees"`
	Method    string          `json:"method" validate:"required,oneof=UPI BANK MANUAL"`
	Reference *string         `json:"reference" validate:"omitempty,max=128"`
	Note      *string         `json:"note" validate:"omitempty,max=500"`
}

type failedRequest struct {
	VendorID  string          `json:"vendorId" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"rupees"`
	Method    string          `json:"method" validate:"required,oneof=UPI BANK MANUAL"`
	Reference *string         `json:"reference" validate:"omitempty,max=128"`
	Reason    string          `json:"reason" validate:"required,max=500"`
}

type adjustmentRequest struct {
	VendorID  string          `json:"vendorId" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"rupees"`
	Direction string          `json:"direction" validate:"required,oneof=CREDIT DEBIT"`
	Bucket    string          `json:"bucket" validate:"required,oneof=HOLD AVAILABLE"`
	MaturesAt *time.Time      `json:"maturesAt"`
	Note      string          `json:"note" validate:"required,max=500"`
}

// WalletVendorList returns vendors with their current balances.
func WalletVendorList(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListVendors(r.Context(), wallet.VendorListQuery{
			Search: validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength),
			Page:   page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVendorListView(list))
	}
}

// WalletVendorDetail returns one vendor's balances and filtered history.
func WalletVendorDetail(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txnType, err := validators.ParseQueryOptional(r, "type", enums.ParseWalletTransactionType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryOptional(r, "status", enums.ParseWalletTransactionStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetVendorWallet(r.Context(), wallet.VendorWalletQuery{
			VendorID: vendorID,
			Search:   validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength),
			Type:     txnType,
			Status:   status,
			Page:     page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVendorWalletView(result))
	}
}

func WalletReconcile(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Reconcile(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reconcileView{
			VendorID:   report.VendorID,
			Projection: newBalancesView(report.Projection),
			Ledger:     newBalancesView(report.Ledger),
			Drift:      newBalancesView(report.Drift),
			Consistent: report.Consistent,
		})
	}
}

// WalletUnlock runs one unlock batch on demand. A partial batch still reports
// what was promoted alongside the error.
func WalletUnlock(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxUnlockLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Unlock(r.Context(), limit)
		if err != nil {
			incomplete := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlock batch incomplete")
			if result != nil {
				incomplete = incomplete.WithDetails(newUnlockView(result))
			}
			responses.WriteError(r.Context(), logg, w, incomplete)
			return
		}
		responses.WriteSuccess(w, newUnlockView(result))
	}
}

func WalletPayoutRelease(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := idempotencyKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req releaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, amount, err := parseVendorAmount(req.VendorID, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Release(r.Context(), wallet.ReleaseInput{
			VendorID:       vendorID,
			AmountPaise:    amount,
			Method:         enums.PayoutMethod(req.Method),
			Reference:      trimmed(req.Reference),
			Note:           trimmed(req.Note),
			IdempotencyKey: key,
			Actor:          middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMutation(w, result.Transaction, result.Balances, result.Created)
	}
}

func WalletPayoutFailed(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := idempotencyKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req failedRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, amount, err := parseVendorAmount(req.VendorID, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Fail(r.Context(), wallet.FailInput{
			VendorID:       vendorID,
			AmountPaise:    amount,
			Method:         enums.PayoutMethod(req.Method),
			Reference:      trimmed(req.Reference),
			Reason:         strings.TrimSpace(req.Reason),
			IdempotencyKey: key,
			Actor:          middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMutation(w, result.Transaction, result.Balances, result.Created)
	}
}

func WalletAdjustment(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := idempotencyKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, amount, err := parseVendorAmount(req.VendorID, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Adjust(r.Context(), wallet.AdjustmentInput{
			VendorID:       vendorID,
			Direction:      enums.WalletDirection(req.Direction),
			Bucket:         enums.WalletTransactionStatus(req.Bucket),
			AmountPaise:    amount,
			MaturesAt:      req.MaturesAt,
			Note:           strings.TrimSpace(req.Note),
			IdempotencyKey: key,
			Actor:          middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeMutation(w, result.Transaction, result.Balances, result.Created)
	}
}

func writeMutation(w http.ResponseWriter, txn models.WalletTransaction, balances wallet.Balances, created bool) {
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	responses.WriteSuccessStatus(w, status, mutationView{
		Transaction: newTransactionView(txn),
		Balances:    newBalancesView(balances),
		Created:     created,
	})
}

func idempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	}
	if len(key) > middleware.MaxIdempotencyKeyLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long")
	}
	return key, nil
}

func parseVendorAmount(rawVendorID string, amount decimal.Decimal) (uuid.UUID, int64, error) {
	vendorID, err := uuid.Parse(rawVendorID)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendorId").WithDetails(map[string]any{"field": "vendorId"})
	}
	paise, err := validators.RupeesToPaise("amount", amount)
	if err != nil {
		return uuid.Nil, 0, err
	}
	return vendorID, paise, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	if out == "" {
		return nil
	}
	return &out
}
