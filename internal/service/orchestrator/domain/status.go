// internal/service/orchestrator/domain/status.go
package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status 是总线上订单生命周期事件的状态标签（封闭集合）。
// 字符串只在边界解析一次，内部一律使用枚举。
type Status uint8

const (
	statusInvalid Status = iota
	StatusOrderCreated
	StatusProductDeducted
	StatusProductDeductFailed
	StatusProductDeductedFailed // product-service 发出的历史拼写
	StatusProductAdded
	StatusProductAddFailed
	StatusPaymentApproved
	StatusPaymentRejected
)

var statusNames = map[Status]string{
	StatusOrderCreated:          "ORDER_CREATED",
	StatusProductDeducted:       "PRODUCT_DEDUCTED",
	StatusProductDeductFailed:   "PRODUCT_DEDUCT_FAILED",
	StatusProductDeductedFailed: "PRODUCT_DEDUCTED_FAILED",
	StatusProductAdded:          "PRODUCT_ADDED",
	StatusProductAddFailed:      "PRODUCT_ADD_FAILED",
	StatusPaymentApproved:       "PAYMENT_APPROVED",
	StatusPaymentRejected:       "PAYMENT_REJECTED",
}

var statusByName = func() map[string]Status {
	m := make(map[string]Status, len(statusNames))
	for s, name := range statusNames {
		m[name] = s
	}
	return m
}()

// ErrUnknownStatus 表示状态标签不在封闭集合内。
var ErrUnknownStatus = errors.New("unknown event status")

// ParseStatus 将线上的字符串标签转换为枚举。
func ParseStatus(s string) (Status, error) {
	if st, ok := statusByName[s]; ok {
		return st, nil
	}
	return statusInvalid, errors.Wrapf(ErrUnknownStatus, "%q", s)
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsOutcome 报告该状态是否是编排器会发布的终态结果。
func (s Status) IsOutcome() bool {
	switch s {
	case StatusProductDeductFailed, StatusPaymentApproved, StatusPaymentRejected:
		return true
	default:
		return false
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "cannot marshal %s", s)
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
