package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"twod-ledger-backend/internal/models"
)

func TestValidateNumber(t *testing.T) {
	for _, n := range []string{"00", "05", "50", "99"} {
		assert.NoError(t, models.ValidateNumber(n), n)
	}
	for _, n := range []string{"", "5", "100", "a1", "1a", " 1", "-1", "٠١"} {
		assert.Error(t, models.ValidateNumber(n), n)
	}
}

func TestValidateHandle(t *testing.T) {
	assert.NoError(t, models.ValidateHandle("admin"))
	assert.NoError(t, models.ValidateHandle("ko_aung.99"))

	assert.Error(t, models.ValidateHandle("ab"))
	assert.Error(t, models.ValidateHandle("Mg Mg"))
	assert.Error(t, models.ValidateHandle("user:1"))
	assert.Error(t, models.ValidateHandle("star*"))
}

func TestGenerateBatchIDOrdered(t *testing.T) {
	first := models.GenerateBatchID()
	second := models.GenerateBatchID()

	assert.NotEqual(t, first, second)
	assert.Less(t, first, second)
}

func TestParseSession(t *testing.T) {
	s, err := models.ParseSession("morning")
	assert.NoError(t, err)
	assert.Equal(t, models.SessionMorning, s)

	s, err = models.ParseSession(" EVENING ")
	assert.NoError(t, err)
	assert.Equal(t, models.SessionEvening, s)

	_, err = models.ParseSession("noon")
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0 Ks", models.FormatAmount(0))
	assert.Equal(t, "800 Ks", models.FormatAmount(800))
	assert.Equal(t, "8,800 Ks", models.FormatAmount(8800))
	assert.Equal(t, "1,000,000 Ks", models.FormatAmount(1000000))
	assert.Equal(t, "-1,500 Ks", models.FormatAmount(-1500))
}

func TestSettlementReportTotalPaid(t *testing.T) {
	r := &models.SettlementReport{Winners: []models.Payout{{Amount: 8000}, {Amount: 1600}}}
	assert.Equal(t, int64(9600), r.TotalPaid())
}
