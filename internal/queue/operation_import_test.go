package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tankcontrol/internal/audit"
	"tankcontrol/internal/handlers/business"
	"tankcontrol/internal/lock"
	"tankcontrol/internal/models"
	"tankcontrol/internal/repository"
	"tankcontrol/pkg/config"
)

func setup(t *testing.T) (*OperationImporter, *business.ReportLifecycle, *audit.Recorder, uint) {
	t.Helper()
	ctx := context.Background()
	recorder := &audit.Recorder{}
	life := business.NewReportLifecycle(repository.NewMemoryStore(), lock.NewKeyedMutex(), recorder,
		business.LifecycleOptions{Location: time.UTC})

	actor := business.Actor{UserID: "setup"}
	tank := &models.Tank{Code: "TQ-Q", MaxHeightMm: 1000, IsActive: true}
	require.NoError(t, life.CreateTank(ctx, actor, tank))
	_, err := life.ReplaceCalibration(ctx, actor, tank.ID, []models.CalibrationRow{
		{HeightMm: 0, VolumeM3: 0},
		{HeightMm: 1000, VolumeM3: 10},
	})
	require.NoError(t, err)
	return NewOperationImporter(life), life, recorder, tank.ID
}

func message(t *testing.T, msg OperationMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func operation(tankID uint, from, to float64) models.TankOperation {
	end := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	return models.TankOperation{
		TankID:         tankID,
		Type:           models.OperationProduction,
		StartTime:      end.Add(-2 * time.Hour),
		EndTime:        end,
		InitialLevelMm: from,
		FinalLevelMm:   to,
	}
}

func TestOperationImporter(t *testing.T) {
	ctx := context.Background()
	importer, life, recorder, tankID := setup(t)

	t.Run("Create Applies Through Lifecycle", func(t *testing.T) {
		err := importer.Handle(ctx, message(t, OperationMessage{
			Action: ActionCreate, Operation: operation(tankID, 100, 400), UserID: "scada", Reason: "import",
		}))
		require.NoError(t, err)

		report, err := life.FindReportContaining(ctx, tankID, time.Date(2024, 5, 2, 11, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Equal(t, 1, report.OperationCount)
		assert.Equal(t, 3.0, report.CalculatedWellProductionM3)

		entries := recorder.Entries()
		last := entries[len(entries)-1]
		assert.Equal(t, "scada", last.UserID)
		assert.Equal(t, "import", last.Reason)
	})

	t.Run("Bad Payloads Are Dropped", func(t *testing.T) {
		err := importer.Handle(ctx, []byte("{not json"))
		assert.ErrorIs(t, err, config.ErrDropMessage)

		err = importer.Handle(ctx, message(t, OperationMessage{Action: "upsert"}))
		assert.ErrorIs(t, err, config.ErrDropMessage)

		err = importer.Handle(ctx, message(t, OperationMessage{Action: ActionDelete}))
		assert.ErrorIs(t, err, config.ErrDropMessage)

		err = importer.Handle(ctx, message(t, OperationMessage{Action: ActionCreate, Operation: operation(tankID, 100, 4000)}))
		assert.ErrorIs(t, err, config.ErrDropMessage)

		err = importer.Handle(ctx, message(t, OperationMessage{Action: ActionDelete, OperationID: 9999}))
		assert.ErrorIs(t, err, config.ErrDropMessage)
	})

	t.Run("Out Of Range Factors Are Dropped", func(t *testing.T) {
		op := operation(tankID, 400, 300)
		op.Type = models.OperationTransfer
		fcv := 1e308
		op.Fcv = &fcv

		assert.NotPanics(t, func() {
			err := importer.Handle(ctx, message(t, OperationMessage{Action: ActionCreate, Operation: op}))
			assert.ErrorIs(t, err, config.ErrDropMessage)
			assert.ErrorIs(t, err, business.ErrValidation)
		})
	})

	t.Run("Closed Day Is Dropped Not Retried", func(t *testing.T) {
		report, err := life.FindReportContaining(ctx, tankID, time.Date(2024, 5, 2, 11, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		_, _, err = life.CloseReport(ctx, business.Actor{UserID: "supervisor"}, report.ID, false)
		require.NoError(t, err)

		err = importer.Handle(ctx, message(t, OperationMessage{Action: ActionCreate, Operation: operation(tankID, 400, 500)}))
		assert.ErrorIs(t, err, config.ErrDropMessage)
		assert.ErrorIs(t, err, business.ErrReportClosed)
	})
}
