package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ReservationModel 冻结台账的表结构定义，仅用于迁移，
// 运行时读写走 DTM 屏障提供的 *sql.Tx。
type ReservationModel struct {
	gorm.Model
	OrderID     int64  `gorm:"column:order_id;uniqueIndex;not null;comment:订单ID"`
	Currency    string `gorm:"column:currency;type:varchar(10);not null;comment:冻结币种"`
	Amount      string `gorm:"column:amount;type:decimal(32,18);not null;comment:冻结金额"`
	Fee         string `gorm:"column:fee;type:decimal(32,18);comment:预估手续费"`
	FeeCurrency string `gorm:"column:fee_currency;type:varchar(10);comment:手续费币种"`
	Status      string `gorm:"column:status;type:varchar(20);index;not null;default:'reserved';comment:reserved/released"`
}

// TableName 指定表名
func (ReservationModel) TableName() string {
	return "fund_reservations"
}

// FundReservationStore 资金冻结台账，配合 DTM 子事务屏障在
// Saga 正向/补偿分支的本地事务内读写（*sql.Tx 由屏障提供）。
type FundReservationStore struct{}

// NewFundReservationStore 创建台账存取器
func NewFundReservationStore() *FundReservationStore {
	return &FundReservationStore{}
}

// Reservation 一笔冻结记录
type Reservation struct {
	OrderID     int64
	Currency    string
	Amount      string
	Fee         string
	FeeCurrency string
	Status      string
}

// Reserve 登记冻结记录，order_id 唯一，重复提交保持幂等
func (s *FundReservationStore) Reserve(tx *sql.Tx, r Reservation) error {
	_, err := tx.Exec(
		`INSERT INTO fund_reservations (order_id, currency, amount, fee, fee_currency, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 'reserved', NOW(), NOW())
		 ON DUPLICATE KEY UPDATE updated_at = NOW()`,
		r.OrderID, r.Currency, r.Amount, r.Fee, r.FeeCurrency,
	)
	if err != nil {
		return fmt.Errorf("failed to reserve funds for order %d: %w", r.OrderID, err)
	}
	return nil
}

// Release 解除冻结并返回原始记录。
// 记录不存在（空补偿）或已解除时返回 released=false，不算错误。
func (s *FundReservationStore) Release(tx *sql.Tx, orderID int64) (Reservation, bool, error) {
	var r Reservation
	row := tx.QueryRow(
		`SELECT order_id, currency, amount, fee, fee_currency, status
		 FROM fund_reservations WHERE order_id = ? FOR UPDATE`, orderID)
	if err := row.Scan(&r.OrderID, &r.Currency, &r.Amount, &r.Fee, &r.FeeCurrency, &r.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, false, nil
		}
		return Reservation{}, false, fmt.Errorf("failed to load reservation for order %d: %w", orderID, err)
	}
	if r.Status != "reserved" {
		return r, false, nil
	}

	if _, err := tx.Exec(
		`UPDATE fund_reservations SET status = 'released', updated_at = NOW() WHERE order_id = ?`, orderID,
	); err != nil {
		return r, false, fmt.Errorf("failed to release reservation for order %d: %w", orderID, err)
	}
	return r, true, nil
}
