package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// ErrNotPointer is returned by SetConfigFromEnvVars for non-pointer targets.
var ErrNotPointer = errors.New("config target must be a non-nil pointer to a struct")

// GetenvOrDefault returns the trimmed value of key, or defaultValue when it is
// unset or blank.
func GetenvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	return value
}

// GetenvBoolOrDefault parses key as a bool, falling back to defaultValue.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}

	return value
}

// GetenvIntOrDefault parses key as a base-10 int64, falling back to defaultValue.
func GetenvIntOrDefault(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// SetConfigFromEnvVars fills the fields of the struct pointed to by s from the
// environment variables named in their `env` tags. Supported field kinds are
// string, bool and signed integers; unset variables leave the zero value.
//
// Example:
//
//	type Config struct {
//		LogLevel string `env:"LOG_LEVEL"`
//	}
//
//	cfg := &Config{}
//	if err := ledger.SetConfigFromEnvVars(cfg); err != nil {
//		return err
//	}
func SetConfigFromEnvVars(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrNotPointer
	}

	elem := v.Elem()
	t := elem.Type()

	for i := 0; i < t.NumField(); i++ {
		key, ok := t.Field(i).Tag.Lookup("env")
		if !ok || key == "" {
			continue
		}

		field := elem.Field(i)
		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(GetenvOrDefault(key, field.String()))
		case reflect.Bool:
			field.SetBool(GetenvBoolOrDefault(key, field.Bool()))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n := GetenvIntOrDefault(key, field.Int())
			if field.OverflowInt(n) {
				return fmt.Errorf("env %s: value %d overflows %s", key, n, field.Type())
			}

			field.SetInt(n)
		default:
			return fmt.Errorf("env %s: unsupported field kind %s", key, field.Kind())
		}
	}

	return nil
}

// LocalEnvConfig records the outcome of InitLocalEnvConfig.
type LocalEnvConfig struct {
	Initialized bool
}

var (
	localEnvConfig     *LocalEnvConfig
	localEnvConfigOnce sync.Once
)

// InitLocalEnvConfig loads a .env file from the working directory when
// ENV_NAME is "local", then writes the version and environment banner to w.
// It runs once per process; later calls return the first result.
func InitLocalEnvConfig(w io.Writer) *LocalEnvConfig {
	localEnvConfigOnce.Do(func() {
		envName := GetenvOrDefault("ENV_NAME", "local")

		if w != nil {
			fmt.Fprintf(w, "VERSION: %s\n\n", GetenvOrDefault("VERSION", "NO-VERSION"))
			fmt.Fprintf(w, "ENVIRONMENT NAME: %s\n\n", envName)
		}

		if envName != "local" {
			localEnvConfig = &LocalEnvConfig{}
			return
		}

		if err := godotenv.Load(); err != nil {
			if w != nil {
				fmt.Fprintln(w, "Skipping .env file, using the current environment.")
			}

			localEnvConfig = &LocalEnvConfig{}

			return
		}

		localEnvConfig = &LocalEnvConfig{Initialized: true}
	})

	return localEnvConfig
}
