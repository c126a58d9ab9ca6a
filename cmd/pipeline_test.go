package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineAddFlags(t *testing.T) {
	cmd := &cobra.Command{}
	pipelineAddCmd.Flags().VisitAll(func(f *pflag.Flag) {
		cmd.Flags().AddFlag(f)
	})

	tests := []struct {
		name     string
		flag     string
		value    string
		expected interface{}
	}{
		{
			name:     "source table flag",
			flag:     "source-table",
			value:    "RAW.EVENTS.ORDERS",
			expected: "RAW.EVENTS.ORDERS",
		},
		{
			name:     "transform flag",
			flag:     "transform",
			value:    "SELECT order_id FROM raw.orders",
			expected: "SELECT order_id FROM raw.orders",
		},
		{
			name:     "database flag",
			flag:     "database",
			value:    "ANALYTICS",
			expected: "ANALYTICS",
		},
		{
			name:     "lag flag",
			flag:     "lag",
			value:    "30",
			expected: 30,
		},
		{
			name:     "warehouse flag",
			flag:     "warehouse",
			value:    "PIPELINE_WH",
			expected: "PIPELINE_WH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cmd.Flags().Set(tt.flag, tt.value)
			require.NoError(t, err)

			switch tt.flag {
			case "lag":
				val, err := cmd.Flags().GetInt(tt.flag)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, val)
			default:
				val, err := cmd.Flags().GetString(tt.flag)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, val)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single line",
			input:    "SQL compilation error",
			expected: "SQL compilation error",
		},
		{
			name:     "multiline keeps first",
			input:    "SQL compilation error\nObject 'RAW.ORDERS' does not exist",
			expected: "SQL compilation error",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, firstLine(tt.input))
		})
	}
}
