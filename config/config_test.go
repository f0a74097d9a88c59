package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/keepbackup/failure"
	"github.com/hazyhaar/keepbackup/notes"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{
		File:    write(t, dir, "empty.yaml", ""),
		EnvFile: write(t, dir, ".env", ""),
		Environ: []string{},
	})
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.Browser.SettleDelay)
	assert.Equal(t, DefaultKeepURL, cfg.Live.URL)
	assert.Equal(t, 1, cfg.Fixture.MinNotes)
	assert.Empty(t, cfg.Browser.ProfileDir)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	file := write(t, dir, "keepbackup.yaml", `
output_dir: /srv/keep
log_level: DEBUG
browser:
  bin: /usr/bin/chromium
  navigation_timeout: 45s
  settle_delay: 250ms
fixture:
  path: testdata/page.html
  min_notes: 3
`)
	cfg, err := Load(Options{File: file, EnvFile: write(t, dir, ".env", ""), Environ: []string{}})
	require.NoError(t, err)

	assert.Equal(t, "/srv/keep", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.SettleDelay)
	assert.Equal(t, "testdata/page.html", cfg.Fixture.Path)
	assert.Equal(t, 3, cfg.Fixture.MinNotes)
	assert.Equal(t, notes.NoteSelector, cfg.Fixture.Selector)
}

func TestLoad_EnvFileUnderProcessEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := write(t, dir, ".env", `
# browser profile
KEEP_BROWSER_PROFILE_DIR="/profiles/from-file"
KEEP_BROWSER_BIN='/opt/chrome'

KEEP_LOG_LEVEL=info
`)
	cfg, err := Load(Options{
		File:    write(t, dir, "c.yaml", ""),
		EnvFile: envFile,
		Environ: []string{"KEEP_LOG_LEVEL=error", "UNRELATED=1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/profiles/from-file", cfg.Browser.ProfileDir)
	assert.Equal(t, "/opt/chrome", cfg.Browser.Bin)
	assert.Equal(t, "error", cfg.LogLevel, "process env wins over .env")
}

func TestLoad_DoesNotMutateProcessEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEEP_TEST_SENTINEL", "")
	os.Unsetenv("KEEP_TEST_SENTINEL")

	_, err := Load(Options{
		File:    write(t, dir, "c.yaml", ""),
		EnvFile: write(t, dir, ".env", "KEEP_TEST_SENTINEL=set\n"),
		Environ: []string{},
	})
	require.NoError(t, err)

	_, ok := os.LookupEnv("KEEP_TEST_SENTINEL")
	assert.False(t, ok)
}

func TestLoad_EmptyProfileMeansEphemeral(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{
		File:    write(t, dir, "c.yaml", ""),
		EnvFile: write(t, dir, ".env", ""),
		Environ: []string{"KEEP_BROWSER_PROFILE_DIR=   "},
	})
	require.NoError(t, err)
	assert.Empty(t, cfg.Browser.ProfileDir)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	dir := t.TempDir()
	cfg, err := Load(Options{
		File:    write(t, dir, "c.yaml", ""),
		EnvFile: write(t, dir, ".env", ""),
		Environ: []string{"KEEP_BROWSER_PROFILE_DIR=~/keep-profile"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "keep-profile"), cfg.Browser.ProfileDir)
}

func TestLoad_EnvFileLenientAndLiteral(t *testing.T) {
	dir := t.TempDir()
	envFile := write(t, dir, ".env", `# comment
JUSTAWORD
   
export KEEP_BROWSER_BIN=/opt/chrome
KEEP_OUTPUT_DIR="$HOME/keep"
KEEP_URL='https://keep.example/#notes'
KEEP BROWSER = spaced
`)
	cfg, err := Load(Options{
		File:    write(t, dir, "c.yaml", ""),
		EnvFile: envFile,
		Environ: []string{"HOME=/root"},
	})
	require.NoError(t, err)

	assert.Equal(t, "$HOME/keep", cfg.OutputDir, "values are not expanded")
	assert.Equal(t, "/opt/chrome", cfg.Browser.Bin)
	assert.Equal(t, "https://keep.example/#notes", cfg.Live.URL)

	vals, err := readEnvFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, "spaced", vals["KEEP BROWSER"])
	assert.NotContains(t, vals, "JUSTAWORD")
	assert.Len(t, vals, 4)
}

func TestReadEnvFile_QuoteStripping(t *testing.T) {
	dir := t.TempDir()
	vals, err := readEnvFile(write(t, dir, ".env", `A="double"
B='single'
C='"mixed"'
D=it's
E=  padded  
F=
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"A": "double",
		"B": "single",
		"C": `"mixed"`,
		"D": "it's",
		"E": "padded",
		"F": "",
	}, vals)
}

func TestLoad_AutoDownload(t *testing.T) {
	dir := t.TempDir()
	base := Options{File: write(t, dir, "c.yaml", ""), EnvFile: write(t, dir, ".env", "")}

	base.Environ = []string{"KEEP_BROWSER_AUTO_DOWNLOAD=true"}
	cfg, err := Load(base)
	require.NoError(t, err)
	assert.True(t, cfg.Browser.AutoDownload)
	assert.NoError(t, cfg.ValidateLive())

	base.Environ = []string{"KEEP_BROWSER_AUTO_DOWNLOAD=maybe"}
	cfg, err = Load(base)
	require.NoError(t, err, "browser settings do not fail the shared load")
	assert.NoError(t, cfg.Validate())

	for _, err := range []error{cfg.ValidateLive(), cfg.ValidateFixture()} {
		require.Error(t, err)
		assert.ErrorContains(t, err, EnvAutoDownload)
		assert.Equal(t, failure.KindValidation, failure.KindOf(err))
	}
}

func TestLoad_MissingExplicitFiles(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(Options{
		File:    filepath.Join(dir, "nope.yaml"),
		EnvFile: write(t, dir, ".env", ""),
		Environ: []string{"KEEP_OUTPUT_DIR=/srv/out"},
	})
	assert.ErrorContains(t, err, "config file not found: ")
	assert.Equal(t, failure.KindNotFound, failure.KindOf(err))
	assert.Equal(t, "/srv/out", cfg.OutputDir, "other sources still apply")

	cfg, err = Load(Options{
		File:    write(t, dir, "c.yaml", "output_dir: /from/yaml\n"),
		EnvFile: filepath.Join(dir, "nope.env"),
		Environ: []string{},
	})
	assert.ErrorContains(t, err, "env file not found: ")
	assert.Equal(t, "/from/yaml", cfg.OutputDir)
}

func TestLoad_UnreadableEnvFileIsIO(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(Options{
		File:    write(t, dir, "c.yaml", ""),
		EnvFile: dir,
		Environ: []string{},
	})
	require.Error(t, err)
	assert.Equal(t, failure.KindIO, failure.KindOf(err))
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad level": "log_level: loud\n",
		"bad yaml":  "browser: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(Options{
				File:    write(t, dir, "c.yaml", body),
				EnvFile: write(t, dir, ".env", ""),
				Environ: []string{},
			})
			require.Error(t, err)
			assert.Equal(t, failure.KindValidation, failure.KindOf(err))
		})
	}
}

func TestValidateModes(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]struct {
		body       string
		liveErr    bool
		fixtureErr bool
	}{
		"negative settle": {body: "browser:\n  settle_delay: -1s\n", liveErr: true, fixtureErr: true},
		"zero timeout":    {body: "browser:\n  navigation_timeout: 0s\n", liveErr: true, fixtureErr: true},
		"bad url":         {body: "live:\n  url: not a url\n", liveErr: true},
		"negative min":    {body: "fixture:\n  min_notes: -1\n", fixtureErr: true},
		"no selector":     {body: "fixture:\n  selector: \"\"\n", fixtureErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(Options{
				File:    write(t, dir, "c.yaml", tc.body),
				EnvFile: write(t, dir, ".env", ""),
				Environ: []string{},
			})
			require.NoError(t, err, "mode settings are not checked by Load")

			assert.Equal(t, tc.liveErr, cfg.ValidateLive() != nil, "live")
			assert.Equal(t, tc.fixtureErr, cfg.ValidateFixture() != nil, "fixture")
		})
	}
}
