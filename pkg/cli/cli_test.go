package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v2"

	"github.com/quantumdatasynergy/contact-api/pkg/api"
	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/mail"
	"github.com/quantumdatasynergy/contact-api/pkg/ratelimit"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
	"github.com/quantumdatasynergy/contact-api/pkg/version"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var envNames = []string{
	config.PathEnv, "CONTACT_API_ENV_FILE", "DEBUG",
	"MAIL_USER", "GMAIL_USER", "MAIL_PASSWORD", "GMAIL_APP_PASSWORD",
	"MAIL_PROVIDER", "SMTP_HOST", "SMTP_PORT", "MAIL_SENDER_ADDRESS", "RESEND_API_KEY",
	"ADMIN_EMAIL", "PORT", "FRONTEND_URL", "ALLOWED_ORIGIN", "REDIS_URL",
	"APP_ENV", "NODE_ENV",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, n := range envNames {
		t.Setenv(n, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGetEnvString(t *testing.T) {
	t.Setenv("CONTACT_API_TEST_ENV", "custom-value")
	assert.Equal(t, "custom-value", getEnvString("CONTACT_API_TEST_ENV", "default"))
	assert.Equal(t, "fallback", getEnvString("CONTACT_API_UNKNOWN_ENV", "fallback"))

	t.Setenv("CONTACT_API_BLANK_ENV", "")
	assert.Equal(t, ".env", getEnvString("CONTACT_API_BLANK_ENV", ".env"), "empty counts as unset")
	t.Setenv("CONTACT_API_BLANK_ENV", "   ")
	assert.Equal(t, ".env", getEnvString("CONTACT_API_BLANK_ENV", ".env"))
}

func TestGetEnvBool(t *testing.T) {
	for _, val := range []string{"true", "TRUE", "1", "yes", "Yes"} {
		t.Run(val, func(t *testing.T) {
			t.Setenv("TEST_BOOL", val)
			assert.True(t, getEnvBool("TEST_BOOL", false))
		})
	}
	for _, val := range []string{"false", "FALSE", "0", "no", "No"} {
		t.Run(val, func(t *testing.T) {
			t.Setenv("TEST_BOOL", val)
			assert.False(t, getEnvBool("TEST_BOOL", true))
		})
	}

	t.Setenv("TEST_BOOL_INVALID", "sometimes")
	assert.True(t, getEnvBool("TEST_BOOL_INVALID", true), "invalid values fall back")
	assert.False(t, getEnvBool("TEST_BOOL_MISSING", false))
	t.Setenv("TEST_BOOL_EMPTY", "")
	assert.True(t, getEnvBool("TEST_BOOL_EMPTY", true))
}

func TestFlagEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEBUG", "true")
	t.Setenv(config.PathEnv, "/etc/contact-api/config.yaml")

	root := NewRootCommand()
	debug, err := root.PersistentFlags().GetBool("debug")
	require.NoError(t, err)
	assert.True(t, debug)

	path, err := root.PersistentFlags().GetString("config")
	require.NoError(t, err)
	assert.Equal(t, "/etc/contact-api/config.yaml", path)

	envFile, err := root.PersistentFlags().GetString("env-file")
	require.NoError(t, err)
	assert.Equal(t, ".env", envFile)
}

func TestVersionCommand(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := runCommand(t, "version")
		require.NoError(t, err)
		var info version.BuildInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Equal(t, version.ServiceName, info.Service)
		assert.Equal(t, version.Version, info.Version)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := runCommand(t, "version", "-o", "yaml")
		require.NoError(t, err)
		var info map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &info))
		assert.Equal(t, version.ServiceName, info["service"])
	})

	t.Run("text", func(t *testing.T) {
		out, err := runCommand(t, "version", "-o", "text")
		require.NoError(t, err)
		assert.Contains(t, out, version.ServiceName+" "+version.Version)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := runCommand(t, "version", "-o", "xml")
		require.Error(t, err)
	})
}

func TestVerifyMailCommand(t *testing.T) {
	t.Run("log provider has nothing to check", func(t *testing.T) {
		clearEnv(t)
		path := writeConfig(t, "mail:\n  provider: log\n")
		out, err := runCommand(t, "verify-mail", "--config", path, "--env-file", "")
		require.NoError(t, err)
		assert.Contains(t, out, "has no connection check")
	})

	t.Run("unreachable SMTP server fails", func(t *testing.T) {
		clearEnv(t)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		require.NoError(t, ln.Close())

		path := writeConfig(t, "mail:\n  provider: smtp\n  host: 127.0.0.1\n  port: "+strconv.Itoa(port)+"\n")
		_, err = runCommand(t, "verify-mail", "--config", path, "--env-file", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not ready")
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		clearEnv(t)
		_, err := runCommand(t, "verify-mail", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--env-file", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loading configuration")
	})
}

func TestExecute(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 0, Execute(context.Background(), []string{"version"}, &stderr))
	assert.Equal(t, 1, Execute(context.Background(), []string{"no-such-command"}, &stderr))
	assert.Contains(t, stderr.String(), "Error:")
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ADMIN_EMAIL=owner@quantumdatasynergy.com\nPORT=4010\n"), 0o600))
	// godotenv does not override variables that are already set, even empty ones.
	require.NoError(t, os.Unsetenv("ADMIN_EMAIL"))
	require.NoError(t, os.Unsetenv("PORT"))
	t.Cleanup(func() {
		_ = os.Unsetenv("ADMIN_EMAIL")
		_ = os.Unsetenv("PORT")
	})

	opts := &Options{EnvFile: envFile, ConfigPath: writeConfig(t, "mail:\n  provider: log\n")}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "owner@quantumdatasynergy.com", cfg.AdminRecipient())
	assert.Equal(t, 4010, cfg.Server.Port)
}

func TestBuildApp(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mail.Provider = config.ProviderLog
	cfg.Notification.AdminEmail = "owner@quantumdatasynergy.com"

	a, err := buildApp(context.Background(), cfg, true, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/newsletter", bytes.NewBufferString(`{"email":"new@sub.com"}`))
	req.Header.Set("Content-Type", "application/json")
	a.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Log-only mail for quantumdatasynergy.com")

	t.Run("unknown provider", func(t *testing.T) {
		bad := cfg
		bad.Mail.Provider = "pigeon"
		_, err := buildApp(context.Background(), bad, true, zaptest.NewLogger(t))
		require.Error(t, err)
	})
}

func TestNewStore(t *testing.T) {
	log := system.NewTestLogger()

	t.Run("memory without redis", func(t *testing.T) {
		store, closeFn := newStore(context.Background(), config.Redis{}, log)
		defer closeFn()
		assert.IsType(t, &ratelimit.MemoryStore{}, store)
	})

	t.Run("redis when reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, closeFn := newStore(context.Background(), config.Redis{URL: "redis://" + mr.Addr(), KeyPrefix: "t:"}, log)
		defer closeFn()
		require.IsType(t, &ratelimit.RedisStore{}, store)

		_, _, err := store.Increment(context.Background(), "contact:x", time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("t:contact:x"))
	})

	t.Run("memory when redis is down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		store, closeFn := newStore(context.Background(), config.Redis{URL: "redis://" + addr}, log)
		defer closeFn()
		assert.IsType(t, &ratelimit.MemoryStore{}, store)
	})
}

type verifyingSender struct {
	mail.LogSender
	err error
}

func (v *verifyingSender) Verify(context.Context) error { return v.err }

func TestVerifyTransport(t *testing.T) {
	log := system.NewTestLogger()
	cfg := config.Defaults()

	for name, verifyErr := range map[string]error{"ready": nil, "unreachable": errors.New("dial tcp: refused")} {
		t.Run(name, func(t *testing.T) {
			status := &api.TransportStatus{}
			verifyTransport(context.Background(), &verifyingSender{LogSender: *mail.NewLogSender(log), err: verifyErr}, status, log)

			health := api.NewHealthController(cfg, "log", status)
			server, err := api.NewServer(zaptest.NewLogger(t), cfg, true)
			require.NoError(t, err)
			defer server.Close()
			require.NoError(t, server.RegisterAll([]api.APIController{health}))

			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			assert.Contains(t, w.Body.String(), `"status":"`+name+`"`)
		})
	}
}
