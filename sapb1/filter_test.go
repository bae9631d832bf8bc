// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sapb1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOp(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "=", false},
		{"=", "=", false},
		{"<>", "<>", false},
		{"!=", "!=", false},
		{">=", ">=", false},
		{"like", "LIKE", false},
		{" not   like ", "NOT LIKE", false},
		{"IN", "", true},
		{"= 1; DROP TABLE ORDR --", "", true},
		{"BETWEEN", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeOp(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterWhere(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		where, params, err := Filter(nil).where()
		require.NoError(t, err)
		assert.Empty(t, where)
		assert.Empty(t, params)
	})

	t.Run("sorted fields with default and explicit ops", func(t *testing.T) {
		where, params, err := Filter{
			"DocStatus": {Value: "O"},
			"CardCode":  {Value: "C2%", Op: "like"},
			"DocTotal":  {Value: json.Number("100.5"), Op: ">"},
		}.where()
		require.NoError(t, err)
		assert.Equal(t, "CardCode LIKE @w1 AND DocStatus = @w2 AND DocTotal > @w3", where)
		assert.Equal(t, map[string]interface{}{
			"w1": "C2%",
			"w2": "O",
			"w3": 100.5,
		}, params)
	})

	t.Run("null values", func(t *testing.T) {
		where, params, err := Filter{
			"Fax":    {Value: nil},
			"Notes1": {Value: nil, Op: "<>"},
		}.where()
		require.NoError(t, err)
		assert.Equal(t, "Fax IS NULL AND Notes1 IS NOT NULL", where)
		assert.Empty(t, params)
	})

	t.Run("null with ordering operator", func(t *testing.T) {
		_, _, err := Filter{"DocTotal": {Value: nil, Op: ">"}}.where()
		require.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("integer json number", func(t *testing.T) {
		_, params, err := Filter{"DocEntry": {Value: json.Number("42")}}.where()
		require.NoError(t, err)
		assert.Equal(t, int64(42), params["w1"])
	})

	t.Run("udf field", func(t *testing.T) {
		where, _, err := Filter{"U_FEOrderId": {Value: "1001"}}.where()
		require.NoError(t, err)
		assert.Equal(t, "U_FEOrderId = @w1", where)
	})

	t.Run("invalid field", func(t *testing.T) {
		_, _, err := Filter{"CardCode; DROP TABLE OCRD": {Value: "x"}}.where()
		require.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("invalid operator", func(t *testing.T) {
		_, _, err := Filter{"CardCode": {Value: "x", Op: "IN"}}.where()
		require.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("object value", func(t *testing.T) {
		_, _, err := Filter{"CardCode": {Value: map[string]interface{}{"a": 1}}}.where()
		require.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("time value", func(t *testing.T) {
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		_, params, err := Filter{"DocDate": {Value: at, Op: ">="}}.where()
		require.NoError(t, err)
		assert.Equal(t, at, params["w1"])
	})
}

func TestFilterUnmarshal(t *testing.T) {
	var f Filter
	require.NoError(t, json.Unmarshal([]byte(`{"CardCode":{"value":"C1"},"DocTotal":{"value":10,"op":">"}}`), &f))
	assert.Equal(t, "C1", f["CardCode"].Value)
	assert.Equal(t, "", f["CardCode"].Op)
	assert.Equal(t, ">", f["DocTotal"].Op)
}

func TestSelectList(t *testing.T) {
	cols, err := selectList(nil)
	require.NoError(t, err)
	assert.Equal(t, "*", cols)

	cols, err = selectList([]string{"DocEntry", "DocNum", "U_FEOrderId"})
	require.NoError(t, err)
	assert.Equal(t, "DocEntry, DocNum, U_FEOrderId", cols)

	_, err = selectList([]string{"DocEntry", "1; SELECT"})
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestBuildSelect(t *testing.T) {
	stmt, params, err := buildSelect("dbo.ORDR", 5, []string{"DocEntry", "DocTotal"}, Filter{
		"CardCode": {Value: "C20000"},
		"DocDate":  {Value: "2024-01-01", Op: ">="},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP 5 DocEntry, DocTotal FROM dbo.ORDR WHERE CardCode = @w1 AND DocDate >= @w2", stmt)
	assert.Equal(t, map[string]interface{}{"w1": "C20000", "w2": "2024-01-01"}, params)

	stmt, _, err = buildSelect("dbo.OADM", 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM dbo.OADM", stmt)
}
