package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ShayCichocki/steptest/pkg/models"
)

// The functions below play the production code the workspace steps drive.
// Each takes the injector it was handed so tests can swap its dependencies.

// CreateFile creates path, truncating any existing content.
func CreateFile(out io.Writer, path string) error {
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return echo(out, "create", path)
}

// WriteAPIResult writes the result of the remote API call to path.
func WriteAPIResult(sc models.Injector, out io.Writer, path string) error {
	if _, err := sc.Override("overrideValue", sc.ReturnValue, true); err != nil {
		return err
	}

	res, err := sc.Override("fakeApiCall", callAPI, "value to pass")
	if err != nil {
		return fmt.Errorf("call api: %w", err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprint(res)), 0644); err != nil {
		return fmt.Errorf("write api result: %w", err)
	}
	return echo(out, "api", path)
}

// WriteContent overwrites path with fixed content.
func WriteContent(out io.Writer, path string) error {
	if err := os.WriteFile(path, []byte("This package sucks"), 0644); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return echo(out, "content", path)
}

func callAPI(args ...any) (any, error) {
	data, err := json.Marshal(map[string]any{"result": "actual api call", "params": args})
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func echo(out io.Writer, stage, path string) error {
	if out == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "File content after %s: %q\n", stage, data)
	return nil
}
