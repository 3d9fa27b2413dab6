package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"raillink/entity"
)

func TestMoney_Validate(t *testing.T) {
	valid := []string{"0", "19.99", "20.5", "9999999999.99"}
	for _, amount := range valid {
		assert.NoError(t, entity.Money{Amount: amount, Currency: "PLN"}.Validate(), amount)
	}

	invalid := []string{"", "ten", "NaN", "Inf", "1e20", "1E2", "0.001", "10000000000", "-0.01"}
	for _, amount := range invalid {
		assert.ErrorIs(t, entity.Money{Amount: amount, Currency: "PLN"}.Validate(), entity.ErrValidation, amount)
	}

	assert.ErrorIs(t, entity.Money{Amount: "1.00", Currency: "ZL"}.Validate(), entity.ErrValidation)
}
