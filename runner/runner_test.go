package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTerminal(t *testing.T, tty bool) {
	t.Helper()
	prev := isTerminal
	isTerminal = func() bool { return tty }
	t.Cleanup(func() { isTerminal = prev })
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MAPMINER_RUNNER_URL", "MAPMINER_API_TOKEN", "MAPMINER_EVENT_SOURCE", "MAPMINER_OUTPUT_DIR",
		"REDIS_URL", "RABBITMQ_URL", "LOG_LEVEL", "DISABLE_TELEMETRY",
		"MY_AWS_ACCESS_KEY", "MY_AWS_SECRET_KEY", "MY_AWS_REGION",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseConfigModes(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		tty         bool
		expected    int
		expectedErr error
	}{
		{name: "Terminal defaults to watch", tty: true, expected: RunModeWatch},
		{name: "Pipe defaults to headless", tty: false, expected: RunModeHeadless},
		{name: "Headless flag", args: []string{"-headless"}, tty: true, expected: RunModeHeadless},
		{name: "Stop", args: []string{"-stop"}, tty: true, expected: RunModeStop},
		{name: "Status", args: []string{"-status"}, expected: RunModeStatus},
		{name: "Simulate", args: []string{"-simulate"}, expected: RunModeSimulate},
		{name: "Exclusive modes", args: []string{"-stop", "-status"}, expectedErr: ErrInvalidRunMode},
		{name: "Unknown source", args: []string{"-events", "kafka"}, expectedErr: ErrInvalidSource},
		{name: "Redis without endpoint", args: []string{"-events", "redis"}, expectedErr: ErrMissingEndpoint},
		{name: "AMQP without endpoint", args: []string{"-events", "amqp"}, expectedErr: ErrMissingEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			withTerminal(t, tt.tty)

			args := append([]string{"-profile", filepath.Join(t.TempDir(), "none.toml")}, tt.args...)
			cfg, err := ParseConfig(args)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.RunMode)
		})
	}
}

func TestParseConfigLayering(t *testing.T) {
	clearEnv(t)
	withTerminal(t, false)

	profile := writeFile(t, "config.toml", strings.Join([]string{
		"[runner]",
		`url = "http://profile:5001"`,
		`api_token = "from-profile"`,
		`command_timeout = "3s"`,
		"[redis]",
		`addr = "localhost:6379"`,
		"[output]",
		`dir = "/tmp/profile-out"`,
		"xlsx = true",
	}, "\n"))

	job := writeFile(t, "job.yaml", "search_term: Autohaus\ncities: [Berlin, Hamburg]\nentries_per_city: 30\n")

	t.Setenv("MAPMINER_API_TOKEN", "from-env")
	t.Setenv("MAPMINER_EVENT_SOURCE", "REDIS")

	cfg, err := ParseConfig([]string{
		"-profile", profile,
		"-job", job,
		"-runner-url", "http://flag:5001",
		"-entries", "40",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://flag:5001", cfg.RunnerURL)
	assert.Equal(t, "from-env", cfg.APIToken)
	assert.Equal(t, SourceRedis, cfg.EventSource)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, "/tmp/profile-out", cfg.OutputDir)
	assert.True(t, cfg.XLSX)

	assert.Equal(t, "Autohaus", cfg.Job.SearchTerm)
	assert.Equal(t, []string{"Berlin", "Hamburg"}, cfg.Job.CityList())
	assert.Equal(t, 40, cfg.Job.EntriesPerCity)
	assert.Equal(t, 10, cfg.Job.MaxWorkers)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
	}{
		{
			name: "Malformed profile",
			args: func(t *testing.T) []string {
				return []string{"-profile", writeFile(t, "bad.toml", "[runner\n")}
			},
		},
		{
			name: "Bad profile duration",
			args: func(t *testing.T) []string {
				return []string{"-profile", writeFile(t, "bad.toml", "[runner]\ncommand_timeout = \"soon\"\n")}
			},
		},
		{
			name: "Missing job file",
			args: func(t *testing.T) []string {
				return []string{"-profile", filepath.Join(t.TempDir(), "none.toml"), "-job", filepath.Join(t.TempDir(), "none.yaml")}
			},
		},
		{
			name: "Unknown flag",
			args: func(t *testing.T) []string {
				return []string{"-profile", filepath.Join(t.TempDir(), "none.toml"), "-no-such-flag"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			withTerminal(t, false)

			_, err := ParseConfig(tt.args(t))
			assert.Error(t, err)
		})
	}
}

func TestParseConfigAwsEnvFallback(t *testing.T) {
	clearEnv(t)
	withTerminal(t, false)

	t.Setenv("MY_AWS_REGION", "eu-central-1")
	t.Setenv("MY_AWS_ACCESS_KEY", "AKIA")
	t.Setenv("DISABLE_TELEMETRY", "1")

	cfg, err := ParseConfig([]string{"-profile", filepath.Join(t.TempDir(), "none.toml")})
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", cfg.AwsRegion)
	assert.Equal(t, "AKIA", cfg.AwsAccessKey)
	assert.True(t, cfg.DisableTelemetry)
}

func TestBanner(t *testing.T) {
	out := banner([]string{"mapminer", strings.Repeat("x", 30)}, 20)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, "╭"+strings.Repeat("─", 18)+"╮", lines[0])
	assert.Equal(t, "│ mapminer         │", lines[1])
	assert.Equal(t, "│ "+strings.Repeat("x", 16)+" │", lines[2])
	assert.Equal(t, "│ "+strings.Repeat("x", 14)+"   │", lines[3])
}

func TestWrapTextWideRunes(t *testing.T) {
	assert.Equal(t, []string{"日本", "語"}, wrapText("日本語", 4))
	assert.Nil(t, wrapText("", 4))
}
