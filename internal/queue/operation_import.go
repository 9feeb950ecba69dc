// Package queue applies operation writes that arrive over RabbitMQ instead of HTTP.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"tankcontrol/internal/handlers/business"
	"tankcontrol/internal/models"
	"tankcontrol/pkg/config"
)

// 队列动作
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// OperationMessage is one queued write. OperationID is required for update and delete.
type OperationMessage struct {
	Action      string               `json:"action"`
	OperationID uint                 `json:"operation_id,omitempty"`
	Operation   models.TankOperation `json:"operation"`
	UserID      string               `json:"user_id"`
	Reason      string               `json:"reason"`
}

// OperationImporter routes queued messages through the report lifecycle.
type OperationImporter struct {
	lifecycle *business.ReportLifecycle
}

func NewOperationImporter(lifecycle *business.ReportLifecycle) *OperationImporter {
	return &OperationImporter{lifecycle: lifecycle}
}

// Handle applies one message body. Messages that can never succeed (bad JSON,
// validation failures, closed days, unknown records) come back wrapped in
// config.ErrDropMessage so the consumer acks them.
func (i *OperationImporter) Handle(ctx context.Context, body []byte) error {
	var msg OperationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", config.ErrDropMessage, err)
	}

	fields := log.Fields{
		"action":       msg.Action,
		"operation_id": msg.OperationID,
		"tank_id":      msg.Operation.TankID,
		"user_id":      msg.UserID,
	}
	err := i.apply(ctx, msg)
	switch {
	case err == nil:
		log.WithFields(fields).Info("> queued operation applied")
		return nil
	case errors.Is(err, business.ErrReportClosed):
		log.WithFields(fields).WithError(err).Warn("> queued operation targets a closed day")
		return fmt.Errorf("%w: %w", config.ErrDropMessage, err)
	case errors.Is(err, business.ErrValidation), errors.Is(err, business.ErrNotFound):
		log.WithFields(fields).WithError(err).Warn("> queued operation rejected")
		return fmt.Errorf("%w: %w", config.ErrDropMessage, err)
	default:
		// ErrConflict and infrastructure errors are retried
		return err
	}
}

func (i *OperationImporter) apply(ctx context.Context, msg OperationMessage) error {
	actor := business.Actor{UserID: msg.UserID, Reason: msg.Reason}
	switch msg.Action {
	case ActionCreate:
		_, err := i.lifecycle.CreateOperation(ctx, actor, msg.Operation)
		return err
	case ActionUpdate:
		if msg.OperationID == 0 {
			return fmt.Errorf("%w: operation_id is required for update", business.ErrValidation)
		}
		_, err := i.lifecycle.UpdateOperation(ctx, actor, msg.OperationID, msg.Operation)
		return err
	case ActionDelete:
		if msg.OperationID == 0 {
			return fmt.Errorf("%w: operation_id is required for delete", business.ErrValidation)
		}
		return i.lifecycle.DeleteOperation(ctx, actor, msg.OperationID)
	default:
		return fmt.Errorf("%w: unknown action %q", business.ErrValidation, msg.Action)
	}
}
