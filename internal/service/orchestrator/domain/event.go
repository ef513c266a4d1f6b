// internal/service/orchestrator/domain/event.go
package domain

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

var ErrMalformedEvent = errors.New("malformed saga event")

// SagaEvent 是总线上的通信单元：{status, payload}。
// Payload 保留收到的原始字节，发布结果事件时原样带回，保证快照按值不变。
type SagaEvent struct {
	Status   Status
	Payload  json.RawMessage
	Snapshot *OrderSnapshot
}

type wireEvent struct {
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEvent 解析一条总线消息。所有错误都包装 ErrMalformedEvent。
func DecodeEvent(raw []byte) (*SagaEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}

	status, err := ParseStatus(w.Status)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}

	payload := bytes.TrimSpace(w.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, errors.Wrapf(ErrMalformedEvent, "%s event without payload", status)
	}

	var snapshot OrderSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	if err := snapshot.Validate(); err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}

	return &SagaEvent{Status: status, Payload: payload, Snapshot: &snapshot}, nil
}

// OutcomeEvent 基于触发事件构造一个结果事件，payload 不做任何修改
func (e *SagaEvent) OutcomeEvent(status Status) *SagaEvent {
	return &SagaEvent{Status: status, Payload: e.Payload, Snapshot: e.Snapshot}
}

// Encode 序列化为线上格式
func (e *SagaEvent) Encode() ([]byte, error) {
	if !e.Status.IsValid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "cannot encode %s", e.Status)
	}
	return json.Marshal(wireEvent{Status: e.Status.String(), Payload: e.Payload})
}
