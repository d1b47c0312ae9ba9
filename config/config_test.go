package config

import (
	"strings"
	"testing"
)

func TestStoreBasics(t *testing.T) {
	s, err := parse(strings.NewReader("Hello=World"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := s.Get("Hello", ""); got != "World" {
		t.Errorf("Get(Hello) = %q, want World", got)
	}
}

func TestStoreComments(t *testing.T) {
	s, err := parse(strings.NewReader(
		"#This=is a comment line\n" +
			"Hello=World\n" +
			"#TEST=VALUE\n",
	))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := s.Get("This", "NotFound"); got != "NotFound" {
		t.Errorf("Get(This) = %q, want NotFound", got)
	}
	if got := s.Get("Hello", ""); got != "World" {
		t.Errorf("Get(Hello) = %q, want World", got)
	}
	if got := s.Get("TEST", "42"); got != "42" {
		t.Errorf("Get(TEST) = %q, want 42", got)
	}
}

func TestStoreConvert(t *testing.T) {
	s, err := parse(strings.NewReader("INT=42\nFLOAT=420.5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := GetAs[int8](s, "INT", 0); got != 42 {
		t.Errorf("GetAs[int8](INT) = %d, want 42", got)
	}
	if got := GetAs[uint64](s, "INT", 0); got != 42 {
		t.Errorf("GetAs[uint64](INT) = %d, want 42", got)
	}
	if got := GetAs[float32](s, "FLOAT", 0); got != 420.5 {
		t.Errorf("GetAs[float32](FLOAT) = %v, want 420.5", got)
	}
	if got := GetAs[float64](s, "FLOAT", 0); got != 420.5 {
		t.Errorf("GetAs[float64](FLOAT) = %v, want 420.5", got)
	}
}

func TestStoreMalformedLineIsFatal(t *testing.T) {
	for _, content := range []string{"HelloWorld", "=HelloWorld"} {
		if _, err := parse(strings.NewReader(content)); err == nil {
			t.Errorf("parse(%q) = nil error, want error", content)
		}
	}
}

func TestStoreAdvanced(t *testing.T) {
	s, err := parse(strings.NewReader(
		"# This is a comment\n" +
			"        VariableA=123\n" +
			"      X=hello world \n" +
			"    TrickyVar==\n" +
			"            # # Another comment # #\n" +
			"\n" +
			"           \n" +
			"Y=42.5\n" +
			"W=\n",
	))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := GetAs[int](s, "VariableA", 0); got != 123 {
		t.Errorf("GetAs[int](VariableA) = %d, want 123", got)
	}
	if got := GetAs[uint](s, "VariableA", 0); got != 123 {
		t.Errorf("GetAs[uint](VariableA) = %d, want 123", got)
	}
	if got := s.Get("X", ""); got != "hello world " {
		t.Errorf("Get(X) = %q, want %q", got, "hello world ")
	}
	if got := s.Get("TrickyVar", ""); got != "=" {
		t.Errorf("Get(TrickyVar) = %q, want =", got)
	}
	if got := GetAs[float32](s, "Y", 0); got != 42.5 {
		t.Errorf("GetAs[float32](Y) = %v, want 42.5", got)
	}
	if got := GetAs[float32](s, "Z", 42.5); got != 42.5 {
		t.Errorf("GetAs[float32](Z) = %v, want default 42.5", got)
	}
	if got := s.Get("W", "Error"); got != "" {
		t.Errorf("Get(W) = %q, want empty string (present key beats default)", got)
	}
}
