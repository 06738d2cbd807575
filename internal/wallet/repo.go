package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
)

// IdempotencyIndex is the storage-level guard on (vendor_id, idempotency_key).
const IdempotencyIndex = "ux_wallet_transactions_vendor_idempotency"

// Repository manages persistence for vendors, accounts and ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	UpsertVendor(ctx context.Context, vendor *models.Vendor) error

	EnsureAccount(ctx context.Context, vendorID uuid.UUID) error
	LockAccount(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error)
	GetAccount(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error)
	UpdateAccount(ctx context.Context, account *models.WalletAccount) error

	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error)
	FindByIdempotencyKey(ctx context.Context, vendorID uuid.UUID, key string) (*models.WalletTransaction, error)
	FindHoldCreditForOrder(ctx context.Context, vendorID uuid.UUID, subOrderID, orderCode *string) (*models.WalletTransaction, error)
	SumLinkedHoldDebits(ctx context.Context, creditID uuid.UUID) (int64, error)
	ListLinkedHoldDebits(ctx context.Context, creditID uuid.UUID) ([]models.WalletTransaction, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, from, to enums.WalletTransactionStatus) (int64, error)

	ListMaturedHoldCredits(ctx context.Context, now time.Time, limit int) ([]models.WalletTransaction, error)
	FindOpenReservation(ctx context.Context, vendorID uuid.UUID, amount int64, reference *string) (*models.WalletTransaction, error)
	FindPayoutLeg(ctx context.Context, primaryID uuid.UUID) (*models.WalletTransaction, error)

	ListVendorsWithBalances(ctx context.Context, search string, limit, offset int) ([]VendorBalanceRow, int64, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.WalletTransaction, int64, error)
	BucketSums(ctx context.Context, vendorID uuid.UUID) (Balances, error)
}

// VendorBalanceRow is one vendor joined with its projection.
type VendorBalanceRow struct {
	VendorID       uuid.UUID `gorm:"column:vendor_id"`
	Name           string    `gorm:"column:name"`
	HoldPaise      int64     `gorm:"column:hold_paise"`
	AvailablePaise int64     `gorm:"column:available_paise"`
	PaidPaise      int64     `gorm:"column:paid_paise"`
}

// TransactionFilter narrows a vendor's ledger history.
type TransactionFilter struct {
	VendorID uuid.UUID
	Search   string
	Type     *enums.WalletTransactionType
	Status   *enums.WalletTransactionStatus
	Limit    int
	Offset   int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).Where("id = ?", vendorID).First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) UpsertVendor(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(vendor).Error
}

func (r *repository) EnsureAccount(ctx context.Context, vendorID uuid.UUID) error {
	account := models.WalletAccount{VendorID: vendorID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
}

func (r *repository) LockAccount(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error) {
	var account models.WalletAccount
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ?", vendorID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetAccount(ctx context.Context, vendorID uuid.UUID) (*models.WalletAccount, error) {
	var account models.WalletAccount
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccount writes the buckets back only if nobody bumped the version
// since the row was read; account.Version is advanced on success.
func (r *repository) UpdateAccount(ctx context.Context, account *models.WalletAccount) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Where("vendor_id = ? AND version = ?", account.VendorID, account.Version).
		Updates(map[string]any{
			"hold_paise":      account.HoldPaise,
			"available_paise": account.AvailablePaise,
			"paid_paise":      account.PaidPaise,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}
	account.Version++
	account.UpdatedAt = now
	return nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, vendorID uuid.UUID, key string) (*models.WalletTransaction, error) {
	return r.first(r.db.WithContext(ctx).
		Where("vendor_id = ? AND idempotency_key = ?", vendorID, key))
}

func (r *repository) FindHoldCreditForOrder(ctx context.Context, vendorID uuid.UUID, subOrderID, orderCode *string) (*models.WalletTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("vendor_id = ? AND type = ? AND direction = ?", vendorID, enums.WalletTxnDeliveredHoldCredit, enums.WalletDirectionCredit)
	switch {
	case subOrderID != nil && *subOrderID != "":
		q = q.Where("sub_order_id = ?", *subOrderID)
	case orderCode != nil && *orderCode != "":
		q = q.Where("order_code = ?", *orderCode)
	default:
		return nil, nil
	}
	return r.first(q.Order("created_at ASC").Order("id ASC"))
}

func (r *repository) SumLinkedHoldDebits(ctx context.Context, creditID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(amount_paise), 0)").
		Where("related_transaction_id = ? AND direction = ? AND status = ?", creditID, enums.WalletDirectionDebit, enums.WalletStatusHold).
		Scan(&total).Error
	return total, err
}

func (r *repository) ListLinkedHoldDebits(ctx context.Context, creditID uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("related_transaction_id = ? AND direction = ? AND status = ?", creditID, enums.WalletDirectionDebit, enums.WalletStatusHold).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatus moves rows along one status edge and reports how many moved.
// Rows no longer in from are left alone.
func (r *repository) UpdateStatus(ctx context.Context, ids []uuid.UUID, from, to enums.WalletTransactionStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListMaturedHoldCredits(ctx context.Context, now time.Time, limit int) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND direction = ?", enums.WalletStatusHold, enums.WalletDirectionCredit).
		Where("matures_at IS NOT NULL AND matures_at <= ?", now).
		Order("matures_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindOpenReservation(ctx context.Context, vendorID uuid.UUID, amount int64, reference *string) (*models.WalletTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("vendor_id = ? AND type = ? AND direction = ? AND status = ?",
			vendorID, enums.WalletTxnPayoutReleased, enums.WalletDirectionDebit, enums.WalletStatusAvailable).
		Where("amount_paise = ?", amount)
	if reference != nil && *reference != "" {
		q = q.Where("reference = ?", *reference)
	}
	return r.first(q.Order("effective_at DESC").Order("created_at DESC").Order("id DESC"))
}

func (r *repository) FindPayoutLeg(ctx context.Context, primaryID uuid.UUID) (*models.WalletTransaction, error) {
	return r.first(r.db.WithContext(ctx).
		Where("related_transaction_id = ? AND type = ? AND direction = ?",
			primaryID, enums.WalletTxnPayoutReleased, enums.WalletDirectionCredit))
}

func (r *repository) ListVendorsWithBalances(ctx context.Context, search string, limit, offset int) ([]VendorBalanceRow, int64, error) {
	base := r.db.WithContext(ctx).Table("vendors AS v")
	if term := likeTerm(search); term != "" {
		base = base.Where("LOWER(v.name) LIKE ?", term)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []VendorBalanceRow
	err := base.Session(&gorm.Session{}).
		Select("v.id AS vendor_id, v.name AS name, " +
			"COALESCE(a.hold_paise, 0) AS hold_paise, " +
			"COALESCE(a.available_paise, 0) AS available_paise, " +
			"COALESCE(a.paid_paise, 0) AS paid_paise").
		Joins("LEFT JOIN wallet_accounts AS a ON a.vendor_id = v.id").
		Order("v.name ASC").
		Order("v.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.WalletTransaction, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("vendor_id = ?", filter.VendorID)
	if term := likeTerm(filter.Search); term != "" {
		base = base.Where(
			"LOWER(COALESCE(order_code, '')) LIKE ? OR LOWER(COALESCE(sub_order_id, '')) LIKE ? OR "+
				"LOWER(COALESCE(reference, '')) LIKE ? OR LOWER(COALESCE(note, '')) LIKE ?",
			term, term, term, term)
	}
	if filter.Type != nil {
		base = base.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.WalletTransaction
	err := base.Session(&gorm.Session{}).
		Order("effective_at DESC").
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

type bucketSum struct {
	Status    enums.WalletTransactionStatus `gorm:"column:status"`
	Direction enums.WalletDirection         `gorm:"column:direction"`
	Total     int64                         `gorm:"column:total"`
}

// BucketSums recomputes the projection from ledger rows alone.
func (r *repository) BucketSums(ctx context.Context, vendorID uuid.UUID) (Balances, error) {
	var sums []bucketSum
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("status, direction, COALESCE(SUM(amount_paise), 0) AS total").
		Where("vendor_id = ? AND status IN ?", vendorID, []enums.WalletTransactionStatus{
			enums.WalletStatusHold, enums.WalletStatusAvailable, enums.WalletStatusPaid,
		}).
		Group("status, direction").
		Scan(&sums).Error
	if err != nil {
		return Balances{}, err
	}
	var out Balances
	for _, s := range sums {
		signed := s.Direction.Sign() * s.Total
		switch s.Status {
		case enums.WalletStatusHold:
			out.HoldPaise += signed
		case enums.WalletStatusAvailable:
			out.AvailablePaise += signed
		case enums.WalletStatusPaid:
			out.PaidPaise += signed
		}
	}
	return out, nil
}

func (r *repository) first(q *gorm.DB) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := q.First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func likeTerm(search string) string {
	trimmed := strings.ToLower(strings.TrimSpace(search))
	if trimmed == "" {
		return ""
	}
	return "%" + trimmed + "%"
}
