package sensor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	require.Equal(t, float32(20), DefaultTable.Average())
	v, err := DefaultTable.For(2).Read()
	require.NoError(t, err)
	require.Equal(t, float32(30), v)

	v, err = DefaultTable.For(6).Read()
	require.ErrorIs(t, err, ErrNoReading)
	require.Equal(t, Invalid, v)
	require.False(t, Valid(v))
	require.True(t, Valid(MinTemperature))
}

func TestThermal(t *testing.T) {
	dir := t.TempDir()
	testCases := []struct {
		name    string
		content string
		expect  float32
		ok      bool
	}{
		{"normal", "42500\n", 42.5, true},
		{"negative", "-1000", -1, true},
		{"garbage", "hot", Invalid, false},
		{"too cold", "-300000", Invalid, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))
			v, err := (&Thermal{Path: path}).Read()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
			require.Equal(t, tc.expect, v)
		})
	}

	_, err := (&Thermal{Path: filepath.Join(dir, "missing")}).Read()
	require.Error(t, err)
}
