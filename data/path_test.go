package data

import (
	"errors"
	"slices"
	"strings"
	"testing"

	serrors "github.com/mwantia/secstore/data/errors"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "/certs/dev.pem", want: "/certs/dev.pem"},
		{raw: "certs/dev.pem", want: "/certs/dev.pem"},
		{raw: "/certs/", want: "/certs"},
		{raw: "/", want: "/"},
		{raw: "/a/./b", want: "/a/b"},
		{raw: "/a/b/../c", want: "/a/c"},
		{raw: "/a/..", want: "/"},
		{raw: "", wantErr: true},
		{raw: "//", wantErr: true},
		{raw: "/a//b", wantErr: true},
		{raw: "/a//", wantErr: true},
		{raw: "/..", wantErr: true},
		{raw: "/a/../../b", wantErr: true},
		{raw: "/a\x00b", wantErr: true},
		{raw: "/" + strings.Repeat("x", MaxPathLength), wantErr: true},
	}

	for _, tt := range tests {
		got, err := ValidatePath(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, serrors.ErrBadPath) {
				t.Errorf("ValidatePath(%q): expected ErrBadPath, got %q, %v", tt.raw, got, err)
			}
			continue
		}

		if err != nil {
			t.Errorf("ValidatePath(%q): unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidatePath(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestValidatePath_MaxLength(t *testing.T) {
	raw := "/" + strings.Repeat("x", MaxPathLength-1)
	if _, err := ValidatePath(raw); err != nil {
		t.Fatalf("Path of exactly %d bytes rejected: %v", MaxPathLength, err)
	}
}

func TestIsAncestorOf(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"/", "/certs", true},
		{"/", "/", true},
		{"/certs", "/certs", true},
		{"/certs", "/certs/dev.pem", true},
		{"/certs", "/certs2", false},
		{"/certs/dev.pem", "/certs", false},
	}

	for _, tt := range tests {
		if got := IsAncestorOf(tt.a, tt.b); got != tt.want {
			t.Errorf("IsAncestorOf(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestJoinChild(t *testing.T) {
	if got, err := JoinChild("/", "certs"); err != nil || got != "/certs" {
		t.Errorf("JoinChild(/, certs) = %q, %v", got, err)
	}
	if got, err := JoinChild("/certs", "ca.pem"); err != nil || got != "/certs/ca.pem" {
		t.Errorf("JoinChild(/certs, ca.pem) = %q, %v", got, err)
	}

	for _, name := range []string{"", ".", "..", "a/b"} {
		if _, err := JoinChild("/certs", name); !errors.Is(err, serrors.ErrBadPath) {
			t.Errorf("JoinChild(/certs, %q): expected ErrBadPath, got %v", name, err)
		}
	}
}

func TestPathHelpers(t *testing.T) {
	if got := ParentPath("/a/b/c"); got != "/a/b" {
		t.Errorf("ParentPath = %q", got)
	}
	if got := ParentPath("/a"); got != "/" {
		t.Errorf("ParentPath of top-level = %q", got)
	}
	if got := BaseName("/a/b/c"); got != "c" {
		t.Errorf("BaseName = %q", got)
	}
	if got := Ancestors("/a/b/c"); !slices.Equal(got, []string{"/a", "/a/b"}) {
		t.Errorf("Ancestors = %v", got)
	}
	if got := RelativePath("/a/b/c", "/a"); got != "b/c" {
		t.Errorf("RelativePath = %q", got)
	}
	if got := Rebase("/certs/dev.pem", "/certs", "/backup/certs"); got != "/backup/certs/dev.pem" {
		t.Errorf("Rebase = %q", got)
	}
	if got := Rebase("/certs", "/certs", "/backup"); got != "/backup" {
		t.Errorf("Rebase of the prefix itself = %q", got)
	}
	if got := Rebase("/certs/dev.pem", "/", "/backup"); got != "/backup/certs/dev.pem" {
		t.Errorf("Rebase from root = %q", got)
	}
}

func TestChildNames(t *testing.T) {
	keys := []string{"/certs/ca.pem", "/certs/dev.pem", "/certs/sub/a", "/certs/sub/b", "/certsx"}
	got := ChildNames("/certs", keys)
	if !slices.Equal(got, []string{"ca.pem", "dev.pem", "sub"}) {
		t.Errorf("ChildNames = %v", got)
	}

	got = ChildNames("/", keys)
	if !slices.Equal(got, []string{"certs", "certsx"}) {
		t.Errorf("ChildNames(root) = %v", got)
	}
}
