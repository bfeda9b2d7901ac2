package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger/internal/domain"
)

func TestRunLuhn(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run("luhn", []string{"011001020251206000100001003551"}, &out))
	assert.Contains(t, out.String(), "check=7")
	assert.Contains(t, out.String(), "con_check=0110010202512060001000010035517")
}

func TestRunLuhn_Errores(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run("luhn", nil, &out), errUsage)
	assert.ErrorIs(t, run("luhn", []string{"12a4"}, &out), domain.ErrInvalidInput)
}
