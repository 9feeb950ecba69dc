package models

import "time"

// FcvSourceKind is the persisted tag of a ledger row's FCV source.
type FcvSourceKind string

const (
	FcvSourceManual   FcvSourceKind = "manual"
	FcvSourceComputed FcvSourceKind = "computed"
)

// LedgerInputs are the raw cells of a ledger row. A nil pointer is a blank cell
// and is resolved from the previous row (or a default) by the calculator.
type LedgerInputs struct {
	InitialLevelMm      *float64 `json:"F_Altura_inicial_mm,omitempty"`
	FinalLevelMm        *float64 `json:"G_Altura_final_mm,omitempty"`
	DrainedM3           float64  `json:"L_Volume_drenado_m3"`
	TransferredM3       float64  `json:"M_Volume_transferido_m3"`
	InitialStockM3      *float64 `json:"N_Estoque_inicial_m3,omitempty"` // only read on the first row
	TotalBswPct         *float64 `json:"Q_BSW_total_pct,omitempty"`
	EmulsionBswPct      *float64 `json:"R_BSW_emulsao_pct,omitempty"`
	FluidTempC          *float64 `json:"W_Temperatura_fluido_c,omitempty"`
	DensityObservedGcm3 *float64 `json:"X_Densidade_observada,omitempty"`
	FcvManual           *float64 `json:"AB_FCV_Manual,omitempty"`
	Fe                  *float64 `json:"AC_FE,omitempty"`
	Comments            *string  `gorm:"type:text" json:"AG_Observacoes,omitempty"`
}

// LedgerRow is the legacy consolidated spreadsheet view of one production day.
// Rows of a tank are ordered by PeriodEnd and every computed cell depends on
// the previous row, so edits are recomputed forward from the edited row.
type LedgerRow struct {
	ID       uint  `gorm:"primarykey" json:"id"`
	TankID   uint  `gorm:"not null;uniqueIndex:idx_ledger_tank_date;index:idx_ledger_tank_period" json:"tank_id"`
	ReportID *uint `json:"report_id,omitempty"`

	Date        time.Time `gorm:"column:a_data;type:date;not null;uniqueIndex:idx_ledger_tank_date" json:"A_Data"`
	TankCode    string    `gorm:"column:b_tanque;size:32" json:"B_Tanque"`
	PeriodStart time.Time `gorm:"column:c_data_inicio_periodo" json:"C_Data_inicio_periodo"`
	PeriodEnd   time.Time `gorm:"column:d_data_fim_periodo;index:idx_ledger_tank_period" json:"D_Data_fim_periodo"`

	Inputs LedgerInputs `gorm:"embedded;embeddedPrefix:in_" json:"inputs"`

	PeriodHours               float64       `gorm:"column:e_horas_periodo" json:"E_Horas_periodo"`
	InitialLevelMm            float64       `gorm:"column:f_altura_inicial_mm" json:"F_Altura_inicial_mm"`
	FinalLevelMm              float64       `gorm:"column:g_altura_final_mm" json:"G_Altura_final_mm"`
	InitialVolumeM3           float64       `gorm:"column:h_volume_inicial_m3" json:"H_Volume_inicial_m3"`
	FinalVolumeM3             float64       `gorm:"column:i_volume_final_m3" json:"I_Volume_final_m3"`
	GrossDiffM3               float64       `gorm:"column:j_diferenca_bruta_m3" json:"J_Diferenca_bruta_m3"`
	Volume24hM3               float64       `gorm:"column:k_volume_24h_m3" json:"K_Volume_24h_m3"`
	DrainedM3                 float64       `gorm:"column:l_volume_drenado_m3" json:"L_Volume_drenado_m3"`
	TransferredM3             float64       `gorm:"column:m_volume_transferido_m3" json:"M_Volume_transferido_m3"`
	OpeningStockM3            float64       `gorm:"column:n_estoque_anterior_m3" json:"N_Estoque_anterior_m3"`
	ClosingStockM3            float64       `gorm:"column:o_estoque_m3" json:"O_Estoque_m3"`
	WellProductionM3          float64       `gorm:"column:p_producao_poco_m3" json:"P_Producao_poco_m3"`
	TotalBswPct               float64       `gorm:"column:q_bsw_total_pct" json:"Q_BSW_total_pct"`
	EmulsionBswPct            float64       `gorm:"column:r_bsw_emulsao_pct" json:"R_BSW_emulsao_pct"`
	WaterVolumeM3             float64       `gorm:"column:s_volume_agua_m3" json:"S_Volume_agua_m3"`
	UncorrectedOilM3          float64       `gorm:"column:t_volume_oleo_bruto_m3" json:"T_Volume_oleo_bruto_m3"`
	EmulsionWaterM3           float64       `gorm:"column:u_volume_agua_emulsao_m3" json:"U_Volume_agua_emulsao_m3"`
	TransferredOilM3          float64       `gorm:"column:v_volume_oleo_transferido_m3" json:"V_Volume_oleo_transferido_m3"`
	FluidTempC                float64       `gorm:"column:w_temperatura_fluido_c" json:"W_Temperatura_fluido_c"`
	DensityObservedGcm3       *float64      `gorm:"column:x_densidade_observada" json:"X_Densidade_observada"`
	FactorY                   float64       `gorm:"column:y_fator_temperatura" json:"Y_Fator_temperatura"`
	Density20Gcm3             *float64      `gorm:"column:z_densidade_20c" json:"Z_Densidade_20c"`
	FcvSource                 FcvSourceKind `gorm:"column:aa_fonte_fcv;size:16" json:"AA_Fonte_FCV"`
	Fcv                       float64       `gorm:"column:ab_fcv" json:"AB_FCV"`
	Fe                        float64       `gorm:"column:ac_fe" json:"AC_FE"`
	CorrectedOilM3            float64       `gorm:"column:ad_volume_oleo_corrigido_m3" json:"AD_Volume_oleo_corrigido_m3"`
	TransferredOilCorrectedM3 float64       `gorm:"column:ae_volume_oleo_transf_corrigido_m3" json:"AE_Volume_oleo_transf_corrigido_m3"`
	AccumulatedCorrectedOilM3 float64       `gorm:"column:af_oleo_corrigido_acumulado_m3" json:"AF_Oleo_corrigido_acumulado_m3"`
	Comments                  string        `gorm:"column:ag_observacoes;type:text" json:"AG_Observacoes"`
	Reference                 string        `gorm:"column:ah_referencia;size:64" json:"AH_Referencia"`
	NeedsReview               bool          `json:"needs_review"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (LedgerRow) TableName() string {
	return "ledger_rows"
}
