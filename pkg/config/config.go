// Package config loads configuration structs from YAML files and environment
// variables using struct tags:
//
//	env:"NAME"        environment variable to read
//	yaml:"name"       key in the YAML file
//	default:"value"   value used when nothing else set the field
//	required:"true"   field must end up non-zero (ignored when a default exists)
//
// Nested structs are walked recursively. Supported kinds are string, int,
// int64, float32, float64, bool, time.Duration and []string (comma separated).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator lets config structs run their own checks once loading is done
type Validator interface {
	Validate() error
}

// setValue parses raw according to the field's type and stores it
func setValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %q to int: %w", raw, err)
		}
		field.SetInt(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %q to float: %w", raw, err)
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to bool: %w", raw, err)
		}
		field.SetBool(v)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				slice = reflect.Append(slice, reflect.ValueOf(p).Convert(field.Type().Elem()))
			}
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// walk calls fn for every settable leaf field, descending into nested structs
func walk(val reflect.Value, fn func(field reflect.Value, meta reflect.StructField) error) error {
	var result error
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		meta := typ.Field(i)
		if !meta.IsExported() {
			continue
		}
		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := walk(field, fn); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if err := fn(field, meta); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func applyDefaults(val reflect.Value) error {
	return walk(val, func(field reflect.Value, meta reflect.StructField) error {
		def, ok := meta.Tag.Lookup("default")
		if !ok || def == "" || !field.IsZero() {
			return nil
		}
		if err := setValue(field, def); err != nil {
			return fmt.Errorf("default for %s: %w", meta.Name, err)
		}
		return nil
	})
}

func applyEnv(val reflect.Value) error {
	return walk(val, func(field reflect.Value, meta reflect.StructField) error {
		name := meta.Tag.Get("env")
		if name == "" {
			return nil
		}
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			return nil
		}
		if err := setValue(field, raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
		return nil
	})
}

func checkRequired(val reflect.Value) error {
	return walk(val, func(field reflect.Value, meta reflect.StructField) error {
		if !isTrue(meta.Tag.Get("required")) || !field.IsZero() {
			return nil
		}
		return fmt.Errorf("required field env:%s / yaml:%s is missing", meta.Tag.Get("env"), meta.Tag.Get("yaml"))
	})
}

func isTrue(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1"
}

// fill layers defaults, then the YAML document (if any), then the environment.
// YAML only overrides the keys it contains, so an explicit false or 0 in the
// file survives a non-zero default.
func fill[T any](dest *T, doc []byte) error {
	val := reflect.ValueOf(dest).Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("config destination must be a struct, got %s", val.Kind())
	}

	if err := applyDefaults(val); err != nil {
		return err
	}
	if doc != nil {
		if err := yaml.Unmarshal(doc, dest); err != nil {
			return fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}
	if err := applyEnv(val); err != nil {
		return err
	}
	if err := checkRequired(val); err != nil {
		var zero T
		*dest = zero
		return err
	}

	if v, ok := any(*dest).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// GetConfigFromEnvVars loads configuration from defaults and environment variables only.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	return fill(dest, nil)
}

// GetConfig loads defaults, then a YAML file, then environment variables.
// ${VAR} references inside the file are expanded from the environment before
// parsing. An empty path means environment only; when allowFileErrors is set
// a missing or malformed file falls back to environment only.
func GetConfig[T any](dest *T, path string, allowFileErrors bool) error {
	if path == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	doc := []byte(os.ExpandEnv(string(data)))
	var probe T
	if err := yaml.Unmarshal(doc, &probe); err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return fill(dest, doc)
}
