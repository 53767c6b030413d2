package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	// Test cases
	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{name: "Test1 OK", args: []string{
			"-a", "127.0.0.1:8081", "-g", "127.0.0.1:9090", "-d", "db", "-s", "secret",
			"-t", "1", "-r", "3", "-b", "bucket", "-e", "http://endpoint", "-p", "razorpay", "-l", "warn",
		}, expectErr: false,
			expected: &Config{
				HTTPAddr:                     "127.0.0.1:8081",
				GRPCAddr:                     "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				S3Bucket:                     "bucket",
				S3BaseEndpoint:               "http://endpoint",
				GatewayProvider:              "razorpay",
				LogLevel:                     "warn",
			}},
		{name: "Unknown flags are ignored", args: []string{"-c", "cfg.json", "-x", "1", "-a", ":1"},
			expected: &Config{HTTPAddr: ":1"}},
		{name: "Bad duration", args: []string{"-t", "soon"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			err := parseFlags(config, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_KeepsSubMinuteDurationsWhenAbsent(t *testing.T) {
	config := &Config{AccessTokenValidityDuration: 30 * time.Second}
	require.NoError(t, parseFlags(config, []string{"-a", ":1"}))
	assert.Equal(t, 30*time.Second, config.AccessTokenValidityDuration)
}
