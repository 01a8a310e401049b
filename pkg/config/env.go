package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/redactor"
	"go.uber.org/zap"
)

// Environment variable names.
const (
	EnvR2AccountID       = "R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "R2_SECRET_ACCESS_KEY"
	EnvR2Bucket          = "R2_BUCKET_NAME"
	EnvR2Endpoint        = "R2_ENDPOINT"
	EnvEmail             = "UBOX_EMAIL"
	EnvPassword          = "UBOX_PASSWORD"
	EnvRecordingDuration = "RECORDING_DURATION"
	EnvOrientation       = "SCREEN_ORIENTATION"
	EnvUseFS             = "USE_FS"
	EnvGitHubToken       = "GITHUB_TOKEN"
	EnvAPISecret         = "API_SECRET"
)

// Defaults for optional variables.
const (
	DefaultRecordingDurationMs = 30000
	DefaultOrientation         = "LANDSCAPE"
	DefaultSplitAPKDir         = "split-apks"
	placeholderMarker          = "your_"
)

var descriptions = map[string]string{
	EnvR2AccountID:       "Cloudflare R2 Account ID",
	EnvR2AccessKeyID:     "R2 Access Key ID",
	EnvR2SecretAccessKey: "R2 Secret Access Key",
	EnvR2Bucket:          "R2 Bucket Name",
	EnvR2Endpoint:        "R2 Endpoint URL",
	EnvEmail:             "UBox Email",
	EnvPassword:          "UBox Password",
	EnvGitHubToken:       "GitHub token with workflow scope",
}

// R2 holds the object storage credentials.
type R2 struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey redactor.String
	Bucket          string
	Endpoint        string
}

// Env is the settings read from environment variables.
type Env struct {
	R2                R2
	Email             string
	Password          redactor.String
	RecordingDuration time.Duration
	Orientation       string
	UseFS             bool

	GitHubToken redactor.String
	APISecret   redactor.String

	raw        map[string]string
	durationOK bool
}

// LoadDotEnv loads path into the process environment. Variables already set
// are kept and a missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// FromEnv reads settings through lookup, os.LookupEnv when nil. Optional
// variables fall back to their defaults.
func FromEnv(lookup func(string) (string, bool)) *Env {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	e := &Env{
		R2: R2{
			AccountID:       get(EnvR2AccountID),
			AccessKeyID:     get(EnvR2AccessKeyID),
			SecretAccessKey: redactor.String(get(EnvR2SecretAccessKey)),
			Bucket:          get(EnvR2Bucket),
			Endpoint:        get(EnvR2Endpoint),
		},
		Email:       get(EnvEmail),
		Password:    redactor.String(get(EnvPassword)),
		Orientation: strings.ToUpper(get(EnvOrientation)),
		GitHubToken: redactor.String(get(EnvGitHubToken)),
		APISecret:   redactor.String(get(EnvAPISecret)),
		raw:         map[string]string{},
	}
	for key := range descriptions {
		e.raw[key] = get(key)
	}

	e.UseFS, _ = strconv.ParseBool(get(EnvUseFS))

	if e.Orientation == "" {
		e.Orientation = DefaultOrientation
	}

	raw := get(EnvRecordingDuration)
	e.raw[EnvRecordingDuration] = raw
	ms := DefaultRecordingDurationMs
	e.durationOK = true
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		e.durationOK = err == nil && parsed > 0
		ms = parsed
	}
	e.RecordingDuration = time.Duration(ms) * time.Millisecond
	return e
}

// CheckOptions selects which checks Validate runs.
type CheckOptions struct {
	// LocalStorage drops the R2 requirements.
	LocalStorage bool
	// SplitAPKDir must hold at least one .apk unless SkipAPKCheck is set.
	SplitAPKDir  string
	SkipAPKCheck bool
}

// Validate reports every missing or placeholder variable in one
// configuration error.
func (e *Env) Validate(opts CheckOptions) error {
	var errs core.Errors

	required := []string{EnvEmail, EnvPassword}
	if !opts.LocalStorage {
		required = append([]string{EnvR2AccountID, EnvR2AccessKeyID, EnvR2SecretAccessKey, EnvR2Bucket, EnvR2Endpoint}, required...)
	}
	e.checkRequired(&errs, required...)

	errs.ErrIf(!e.durationOK, "%s must be a positive number, got: %s", EnvRecordingDuration, e.raw[EnvRecordingDuration])
	errs.ErrIf(e.Orientation != "LANDSCAPE" && e.Orientation != "PORTRAIT",
		"%s must be LANDSCAPE or PORTRAIT, got: %s", EnvOrientation, e.Orientation)

	if !opts.SkipAPKCheck {
		errs.AddErr(checkSplitAPKs(opts.SplitAPKDir))
	}
	return configurationError(errs)
}

// ValidateRelay checks the variables needed to dispatch workflows.
func (e *Env) ValidateRelay() error {
	var errs core.Errors
	e.checkRequired(&errs, EnvGitHubToken)
	return configurationError(errs)
}

func (e *Env) checkRequired(errs *core.Errors, keys ...string) {
	for _, key := range keys {
		v := e.raw[key]
		if !errs.ErrIf(v == "", "Missing required variable: %s (%s)", key, descriptions[key]) {
			errs.ErrIf(strings.Contains(v, placeholderMarker), "%s appears to be unconfigured (contains %q)", key, placeholderMarker)
		}
	}
}

func checkSplitAPKs(dir string) error {
	if dir == "" {
		dir = DefaultSplitAPKDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return core.ErrConfiguration.WithMessagef("Split APKs directory not found at %s. Please run setup.sh to extract the XAPK", dir)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".apk") {
			return nil
		}
	}
	return core.ErrConfiguration.WithMessagef("No APK files found in %s. Please run setup.sh to extract the XAPK", dir)
}

func configurationError(errs core.Errors) error {
	err := errs.ErrOrNil()
	if err == nil {
		return nil
	}
	return core.ErrConfiguration.WithMessage("environment validation failed").WithCause(err)
}

// Fields describes the configuration for logs with secrets masked.
func (e *Env) Fields() []zap.Field {
	return []zap.Field{
		zap.String("r2Endpoint", redactor.Truncate(e.R2.Endpoint, 50)),
		zap.String("r2Bucket", e.R2.Bucket),
		zap.Stringer("r2SecretAccessKey", e.R2.SecretAccessKey),
		zap.String("email", e.Email),
		zap.Stringer("password", e.Password),
		zap.Duration("recordingDuration", e.RecordingDuration),
		zap.String("orientation", e.Orientation),
		zap.Bool("useFS", e.UseFS),
	}
}
