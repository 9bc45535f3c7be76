// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"strings"
	"testing"
)

// nullDevice is a placeholder Device for registry tests. Embedding the
// interface satisfies it without implementing any methods.
type nullDevice struct{ Device }

func TestRegisterAndNew(t *testing.T) {
	Register("test-registry", func(config any) (Device, error) {
		return nullDevice{}, nil
	})
	t.Cleanup(func() { Unregister("test-registry") })

	if !IsRegistered("test-registry") {
		t.Fatalf("IsRegistered(%q) = false, want true", "test-registry")
	}

	d, err := New("test-registry", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d == nil {
		t.Fatalf("New() returned nil device")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("does-not-exist", nil)
	if err == nil {
		t.Fatalf("New() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("New() error = %q, want it to name the backend", err)
	}
}

func TestRegisterNilFactoryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Register(nil) did not panic")
		}
	}()
	Register("test-nil-factory", nil)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	factory := func(config any) (Device, error) { return nullDevice{}, nil }
	Register("test-duplicate", factory)
	t.Cleanup(func() { Unregister("test-duplicate") })

	defer func() {
		if recover() == nil {
			t.Errorf("duplicate Register did not panic")
		}
	}()
	Register("test-duplicate", factory)
}

func TestBackendsSorted(t *testing.T) {
	factory := func(config any) (Device, error) { return nullDevice{}, nil }
	Register("test-zz", factory)
	Register("test-aa", factory)
	t.Cleanup(func() {
		Unregister("test-zz")
		Unregister("test-aa")
	})

	names := Backends()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Backends() = %v, want sorted", names)
		}
	}
}
