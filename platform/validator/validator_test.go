package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"omitempty,phone"`
	Lines []line `json:"lines" validate:"dive"`
}

type line struct {
	Quantity float64 `json:"quantity" validate:"gte=0"`
}

func TestPhoneTag(t *testing.T) {
	val := New()

	assert.NoError(t, val.Struct(contactRequest{Name: "Acme", Phone: "+31612345678"}))
	assert.Error(t, val.Struct(contactRequest{Name: "Acme", Phone: "12"}))
}

func TestFieldErrorsUsesJSONNames(t *testing.T) {
	val := New()

	err := val.Struct(contactRequest{Phone: "12", Lines: []line{{Quantity: -1}}})
	require.Error(t, err)

	fields := FieldErrors(err)
	assert.Equal(t, "required", fields["name"])
	assert.Equal(t, "phone", fields["phone"])
	assert.Equal(t, "gte", fields["lines[0].quantity"])
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, FieldErrors(assert.AnError))
}
