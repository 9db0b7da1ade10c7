package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPriceCommandJSON(t *testing.T) {
	out, err := runCLI(t, "price", "--line", "Installation:1:10000", "--line", "Cable:2.5:1000", "-o", "json")
	require.NoError(t, err)

	var got priceOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(12500), got.Subtotal)
	assert.Equal(t, int64(2625), got.Tax)
	assert.Equal(t, int64(15125), got.Total)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, int64(2500), got.Lines[1].LineTotalCents)
}

func TestPriceCommandYAMLWithDiscount(t *testing.T) {
	out, err := runCLI(t, "price", "--line", "Installation:1:10000", "--line", "Cable:2.5:1000", "--discount", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "discountAmountCents: 1250")
	assert.Contains(t, out, "totalCents: 13875")
}

func TestPriceCommandRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "price", "--line", "nope")
	assert.Error(t, err)

	_, err = runCLI(t, "price", "--line", "Item:1:100", "--tax", "150")
	assert.Error(t, err)

	_, err = runCLI(t, "price", "--line", "Item:1:100", "-o", "xml")
	assert.Error(t, err)
}

func TestParseLineKeepsColonsInDescription(t *testing.T) {
	line, err := parseLine("Werk: dag 1:8:4500")
	require.NoError(t, err)
	assert.Equal(t, "Werk: dag 1", line.Description)
	assert.Equal(t, 8.0, line.Quantity)
	assert.Equal(t, int64(4500), line.UnitPriceCents)
}

func TestReopenValidatesArgumentsBeforeConnecting(t *testing.T) {
	_, err := runCLI(t, "reopen", "not-a-uuid", "--reason", "x", "--actor", "7d1f4c1e-7a43-4a0d-9f43-1a2b3c4d5e6f")
	assert.ErrorContains(t, err, "invalid quote id")

	_, err = runCLI(t, "reopen", "7d1f4c1e-7a43-4a0d-9f43-1a2b3c4d5e6f", "--actor", "7d1f4c1e-7a43-4a0d-9f43-1a2b3c4d5e6f")
	assert.ErrorContains(t, err, "--reason is required")
}
