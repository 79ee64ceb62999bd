package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/server"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-cli-tests"

// execute runs a fresh command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
}

func TestToken_PrintsValidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRATION_HOURS", "")
	t.Setenv("JWT_ISSUER", "")

	out, err := execute(t, "token", "--tenant", "acme", "--user", "u-1")
	require.NoError(t, err)

	cfg, err := config.NewJWTConfig()
	require.NoError(t, err)
	principal, err := server.NewJWTService(cfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "acme", principal.TenantID)
	assert.Equal(t, "u-1", principal.UserID)
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "--tenant", "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestToken_RequiresTenant(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	_, err := execute(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant")
}

func TestOptimize_RequiresJobDescription(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "optimize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --jd or --jd-url must be provided")
}

func TestOptimize_JDFlagsAreExclusive(t *testing.T) {
	clearEnv(t)
	jd := writeFile(t, "jd.txt", "Go engineer")

	_, err := execute(t, "optimize", "--jd", jd, "--jd-url", "https://example.com/job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jd-url")
}

func TestOptimize_MissingAPIKey(t *testing.T) {
	clearEnv(t)
	jd := writeFile(t, "jd.txt", "Go engineer")

	_, err := execute(t, "optimize", "--jd", jd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY environment variable or --api-key flag is required")
}

func TestOptimize_InvalidResumeFile(t *testing.T) {
	clearEnv(t)
	jd := writeFile(t, "jd.txt", "Go engineer")
	resume := writeFile(t, "resume.json", `[{"type": "experience"`)

	_, err := execute(t, "optimize", "--jd", jd, "--resume", resume, "--api-key", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse resume sections")
}

func TestOptimize_InvalidConfig(t *testing.T) {
	clearEnv(t)
	cfgPath := writeFile(t, "config.json", `{"pipeline": {"score_threshold": 2}}`)
	jd := writeFile(t, "jd.txt", "Go engineer")

	_, err := execute(t, "optimize", "--config", cfgPath, "--jd", jd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score_threshold")
}

func TestIndex_RequiresDatabase(t *testing.T) {
	clearEnv(t)
	resume := writeFile(t, "backend.txt", "Built Go services")

	_, err := execute(t, "index", resume, "--api-key", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL environment variable or --db-url flag is required")
}

func TestIndex_ResumeIDNeedsSingleFile(t *testing.T) {
	clearEnv(t)
	a := writeFile(t, "a.txt", "one")
	b := writeFile(t, "b.txt", "two")

	_, err := execute(t, "index", a, b, "--resume-id", "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single file")
}

func TestIndex_RequiresFiles(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "index")
	require.Error(t, err)
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestServe_RequiresJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "serve", "--api-key", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadSettings_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		args       []string
		env        map[string]string
		wantAPIKey string
		wantDBURL  string
		wantThresh float64
	}{
		{
			name:       "defaults with env",
			env:        map[string]string{"GEMINI_API_KEY": "env-key", "DATABASE_URL": "postgres://env"},
			wantAPIKey: "env-key",
			wantDBURL:  "postgres://env",
			wantThresh: types.DefaultScoreThreshold,
		},
		{
			name:       "file beats env",
			file:       `{"api_key": "file-key", "pipeline": {"score_threshold": 0.9}}`,
			env:        map[string]string{"GEMINI_API_KEY": "env-key", "DATABASE_URL": "postgres://env"},
			wantAPIKey: "file-key",
			wantDBURL:  "postgres://env",
			wantThresh: 0.9,
		},
		{
			name:       "flag beats file",
			file:       `{"api_key": "file-key", "database_url": "postgres://file"}`,
			args:       []string{"--api-key", "flag-key"},
			wantAPIKey: "flag-key",
			wantDBURL:  "postgres://file",
			wantThresh: types.DefaultScoreThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			opts := &rootOptions{}
			var got *config.Config
			cmd := &cobra.Command{
				Use: "test",
				RunE: func(cmd *cobra.Command, _ []string) error {
					var err error
					got, err = opts.loadSettings(cmd)
					return err
				},
			}
			opts.bindFlags(cmd)

			args := tt.args
			if tt.file != "" {
				args = append(args, "--config", writeFile(t, "config.json", tt.file))
			}
			cmd.SetArgs(args)
			require.NoError(t, cmd.Execute())

			assert.Equal(t, tt.wantAPIKey, got.APIKey)
			assert.Equal(t, tt.wantDBURL, got.DatabaseURL)
			assert.Equal(t, tt.wantThresh, got.Pipeline.ScoreThreshold)
		})
	}
}

func TestLoadResumeSections(t *testing.T) {
	t.Run("json array", func(t *testing.T) {
		path := writeFile(t, "resume.json", `[
			{"type": "experience", "content": "Built Go services"},
			{"type": "skills", "content": "Go, SQL"}
		]`)
		sections, err := loadResumeSections(path)
		require.NoError(t, err)
		require.Len(t, sections, 2)
		assert.Equal(t, "experience", sections[0].Type)
		assert.Equal(t, "Go, SQL", sections[1].Content)
	})

	t.Run("plain text", func(t *testing.T) {
		path := writeFile(t, "resume.txt", "\n- Built Go services\n- Ran Postgres\n")
		sections, err := loadResumeSections(path)
		require.NoError(t, err)
		require.Len(t, sections, 1)
		assert.Equal(t, types.SectionExperience, sections[0].Type)
		assert.Equal(t, "- Built Go services\n- Ran Postgres", sections[0].Content)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "resume.txt", "  \n")
		_, err := loadResumeSections(path)
		assert.ErrorContains(t, err, "is empty")
	})

	t.Run("section without content", func(t *testing.T) {
		path := writeFile(t, "resume.json", `[{"type": "projects", "content": " "}]`)
		_, err := loadResumeSections(path)
		assert.ErrorContains(t, err, "has no content")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadResumeSections(filepath.Join(t.TempDir(), "nope.txt"))
		assert.ErrorContains(t, err, "failed to read resume")
	})
}

func TestResumeIDFromPath(t *testing.T) {
	assert.Equal(t, "backend", resumeIDFromPath("/tmp/resumes/backend.json"))
	assert.Equal(t, "cv.v2", resumeIDFromPath("cv.v2.txt"))
	assert.Equal(t, "plain", resumeIDFromPath("plain"))
}

func TestWriteResult(t *testing.T) {
	result := &types.FinalResult{
		SessionID:         "s-1",
		ATSScore:          0.82,
		OptimizedSections: map[string][]string{"experience": {"Built Go services"}},
	}

	t.Run("stdout", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResult(&buf, "", result))
		assert.Contains(t, buf.String(), `"session_id": "s-1"`)
		assert.Contains(t, buf.String(), `"ats_score": 0.82`)
	})

	t.Run("file", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "out", "result.json")
		require.NoError(t, writeResult(&buf, path, result))
		assert.Empty(t, buf.String())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"Built Go services"`)
	})
}
