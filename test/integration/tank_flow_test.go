package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Tank struct {
	ID       uint   `json:"id"`
	Code     string `json:"code"`
	IsActive bool   `json:"is_active"`
}

type TankOperation struct {
	ID                uint    `json:"id"`
	VolumeM3          float64 `json:"volume_m3"`
	VolumeCorrectedM3 float64 `json:"volume_corrected_m3"`
	Ctl               float64 `json:"ctl"`
}

type DailyReport struct {
	ID                         uint    `json:"id"`
	Status                     string  `json:"status"`
	CalculatedWellProductionM3 float64 `json:"calculated_well_production_m3"`
	OperationCount             int     `json:"operation_count"`
	ClosingLevelMm             float64 `json:"closing_level_mm"`
}

type LedgerRow struct {
	Date           time.Time `json:"A_Data"`
	InitialLevelMm float64   `json:"F_Altura_inicial_mm"`
	FinalLevelMm   float64   `json:"G_Altura_final_mm"`
	GrossDiffM3    float64   `json:"J_Diferenca_bruta_m3"`
	OpeningStockM3 float64   `json:"N_Estoque_anterior_m3"`
	ClosingStockM3 float64   `json:"O_Estoque_m3"`
	FcvSource      string    `json:"AA_Fonte_FCV"`
	Fcv            float64   `json:"AB_FCV"`
}

func production(tankID uint, day int, from, to float64) map[string]interface{} {
	end := time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC)
	return map[string]interface{}{
		"tank_id":          tankID,
		"type":             "production",
		"start_time":       end.Add(-time.Hour),
		"end_time":         end,
		"initial_level_mm": from,
		"final_level_mm":   to,
	}
}

func TestTankBulletinFlow(t *testing.T) {
	var tank Tank

	t.Run("Create Tank", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, "/tanks", map[string]interface{}{
			"code": "TQ-FLOW", "name": "Tanque de teste", "max_height_mm": 1000,
		}, &tank)
		require.Equal(t, http.StatusCreated, status)
		assert.NotZero(t, tank.ID)
		assert.True(t, tank.IsActive)

		var dup map[string]string
		status = doJSON(t, http.MethodPost, "/tanks", map[string]interface{}{"code": "TQ-FLOW"}, &dup)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("Replace Calibration", func(t *testing.T) {
		var resp struct {
			Count int `json:"count"`
		}
		status := doJSON(t, http.MethodPut, fmt.Sprintf("/tanks/%d/calibration", tank.ID), map[string]interface{}{
			"rows": []map[string]float64{
				{"height_mm": 0, "volume_m3": 0},
				{"height_mm": 1000, "volume_m3": 10},
			},
		}, &resp)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("Record Operations", func(t *testing.T) {
		var op TankOperation
		status := doJSON(t, http.MethodPost, "/tank-operations", production(tank.ID, 10, 100, 300), &op)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, 2.0, op.VolumeM3)
		assert.Equal(t, 2.0, op.VolumeCorrectedM3)
		assert.Equal(t, 1.0, op.Ctl)

		status = doJSON(t, http.MethodPost, "/tank-operations", production(tank.ID, 11, 300, 500), &op)
		require.Equal(t, http.StatusCreated, status)

		var failure map[string]string
		bad := production(tank.ID, 11, 300, 1500)
		status = doJSON(t, http.MethodPost, "/tank-operations", bad, &failure)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	var day10 DailyReport
	t.Run("Find Report Containing", func(t *testing.T) {
		status := doJSON(t, http.MethodGet,
			fmt.Sprintf("/daily-reports/containing?tank_id=%d&timestamp=2024-03-10T09:30:00Z", tank.ID), nil, &day10)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "draft", day10.Status)
		assert.Equal(t, 1, day10.OperationCount)
		assert.Equal(t, 2.0, day10.CalculatedWellProductionM3)
		assert.Equal(t, 300.0, day10.ClosingLevelMm)
	})

	t.Run("List Reports", func(t *testing.T) {
		var resp struct {
			Data       []DailyReport          `json:"data"`
			Pagination map[string]interface{} `json:"pagination"`
		}
		status := doJSON(t, http.MethodGet, fmt.Sprintf("/daily-reports/tank/%d?page_size=1", tank.ID), nil, &resp)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, resp.Data, 1)
		assert.Equal(t, float64(2), resp.Pagination["total_count"])
		assert.Equal(t, true, resp.Pagination["has_next"])
	})

	t.Run("Ledger Carries Forward", func(t *testing.T) {
		var resp struct {
			Data       []LedgerRow `json:"data"`
			TotalCount int         `json:"total_count"`
		}
		status := doJSON(t, http.MethodGet, fmt.Sprintf("/ledger/%d", tank.ID), nil, &resp)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, 2, resp.TotalCount)
		assert.Equal(t, 2.0, resp.Data[0].GrossDiffM3)
		assert.Equal(t, resp.Data[0].FinalLevelMm, resp.Data[1].InitialLevelMm)
		assert.Equal(t, resp.Data[0].ClosingStockM3, resp.Data[1].OpeningStockM3)
	})

	t.Run("Manual FCV On Ledger", func(t *testing.T) {
		var row LedgerRow
		status := doJSON(t, http.MethodPut, fmt.Sprintf("/ledger/%d/2024-03-11", tank.ID),
			map[string]interface{}{"AB_FCV_Manual": 0.99}, &row)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "manual", row.FcvSource)
		assert.Equal(t, 0.99, row.Fcv)

		var failure map[string]string
		status = doJSON(t, http.MethodPut, fmt.Sprintf("/ledger/%d/2024-03-11", tank.ID),
			map[string]interface{}{"AB_FCV_Manual": -1}, &failure)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("Close Report", func(t *testing.T) {
		var resp struct {
			Report DailyReport  `json:"report"`
			Next   *DailyReport `json:"next"`
		}
		status := doJSON(t, http.MethodPost, fmt.Sprintf("/daily-reports/%d/close", day10.ID), nil, &resp)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "closed", resp.Report.Status)
		assert.Nil(t, resp.Next)
	})

	t.Run("Closed Day Rejects Writes", func(t *testing.T) {
		var failure map[string]string
		status := doJSON(t, http.MethodPost, "/tank-operations", production(tank.ID, 10, 300, 350), &failure)
		assert.Equal(t, http.StatusConflict, status)

		status = doJSON(t, http.MethodPut, fmt.Sprintf("/ledger/%d/2024-03-10", tank.ID),
			map[string]interface{}{"AG_Observacoes": "late note"}, &failure)
		assert.Equal(t, http.StatusConflict, status)

		status = doJSON(t, http.MethodPost, fmt.Sprintf("/daily-reports/%d/close", day10.ID), nil, &failure)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("Bad Identifiers", func(t *testing.T) {
		var failure map[string]string
		assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, "/tanks/abc", nil, &failure))
		assert.Equal(t, "Invalid ID format", failure["error"])
		assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, "/daily-reports/99999", nil, &failure))
	})
}
