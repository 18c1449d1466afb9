package domain

import (
	"time"

	"gorm.io/gorm"
)

// PeriodType 结算周期类型
type PeriodType string

const (
	PeriodTypeWeekly  PeriodType = "WEEKLY"
	PeriodTypeMonthly PeriodType = "MONTHLY"
)

// Valid 是否为合法周期类型
func (t PeriodType) Valid() bool {
	return t == PeriodTypeWeekly || t == PeriodTypeMonthly
}

// PeriodStatus 结算周期状态
type PeriodStatus string

const (
	PeriodStatusPreparing  PeriodStatus = "PREPARING"
	PeriodStatusProcessing PeriodStatus = "PROCESSING"
	PeriodStatusCompleted  PeriodStatus = "COMPLETED"
)

// SettlementPeriod 结算周期
// 一个结算周期覆盖一个订单聚合窗口，对应一次结算计算
type SettlementPeriod struct {
	gorm.Model
	PeriodType     PeriodType   `gorm:"column:period_type;type:varchar(10);not null" json:"period_type"`
	StartDate      time.Time    `gorm:"column:start_date;index;not null" json:"start_date"`
	EndDate        time.Time    `gorm:"column:end_date;not null" json:"end_date"`
	SettlementDate time.Time    `gorm:"column:settlement_date;not null" json:"settlement_date"`
	Status         PeriodStatus `gorm:"column:status;type:varchar(20);index;not null;default:PREPARING" json:"status"`
}

// TableName 表名
func (SettlementPeriod) TableName() string {
	return "settlement_periods"
}

// Validate 校验周期字段
func (p *SettlementPeriod) Validate() error {
	if !p.PeriodType.Valid() {
		return ErrInvalidPeriodType
	}
	if p.EndDate.Before(p.StartDate) {
		return ErrInvalidPeriodRange
	}
	return nil
}
