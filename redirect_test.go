package utilz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRedirect(t *testing.T) {
	ctx := context.Background()
	printer := Apply("printer", func(_ context.Context, msg string) (int, error) {
		return fmt.Println(msg)
	})

	t.Run("Rejects Empty Path", func(t *testing.T) {
		_, err := NewRedirect("redirect", printer, "")
		if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), "file_path must be a string") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Captures Stdout", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "out.txt")
		redirect, _ := NewRedirect("redirect", printer, path)

		if _, err := redirect.Process(ctx, "Hello, World!"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}
		if string(data) != "Hello, World!\n" {
			t.Errorf("unexpected file content %q", data)
		}
	})

	t.Run("Truncates By Default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")
		redirect, _ := NewRedirect("redirect", printer, path)

		_, _ = redirect.Process(ctx, "first")
		_, _ = redirect.Process(ctx, "second")
		data, _ := os.ReadFile(path)
		if string(data) != "second\n" {
			t.Errorf("unexpected file content %q", data)
		}
	})

	t.Run("Appends When Asked", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")
		redirect, _ := NewRedirect("redirect", printer, path)
		redirect.SetAppend(true)

		_, _ = redirect.Process(ctx, "first")
		_, _ = redirect.Process(ctx, "second")
		data, _ := os.ReadFile(path)
		if string(data) != "first\nsecond\n" {
			t.Errorf("unexpected file content %q", data)
		}
	})

	t.Run("Restores Stdout", func(t *testing.T) {
		original := os.Stdout
		redirect, _ := NewRedirect("redirect", printer, filepath.Join(t.TempDir(), "out.txt"))
		_, _ = redirect.Process(ctx, "x")
		if os.Stdout != original {
			t.Error("stdout was not restored")
		}
	})

	t.Run("Nested Redirects", func(t *testing.T) {
		dir := t.TempDir()
		innerPath, outerPath := filepath.Join(dir, "inner.txt"), filepath.Join(dir, "outer.txt")
		inner, _ := NewRedirect("inner", printer, innerPath)
		outer, _ := NewRedirect("outer", Apply("outer-fn", func(ctx context.Context, msg string) (int, error) {
			fmt.Println("before")
			if _, err := inner.Process(ctx, msg); err != nil {
				return 0, err
			}
			return fmt.Println("after")
		}), outerPath)

		done := make(chan error, 1)
		go func() {
			_, err := outer.Process(ctx, "nested")
			done <- err
		}()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("nested redirect deadlocked")
		}

		innerData, _ := os.ReadFile(innerPath)
		if string(innerData) != "nested\n" {
			t.Errorf("unexpected inner content %q", innerData)
		}
		outerData, _ := os.ReadFile(outerPath)
		if string(outerData) != "before\nafter\n" {
			t.Errorf("unexpected outer content %q", outerData)
		}
	})

	t.Run("Open Failure", func(t *testing.T) {
		dir := t.TempDir()
		// A directory cannot be opened for writing.
		redirect, _ := NewRedirect("redirect", printer, dir)
		_, err := redirect.Process(ctx, "x")
		if err == nil || !strings.Contains(err.Error(), "Failed to redirect output") {
			t.Errorf("unexpected error %v", err)
		}
	})
}
