package validation

import (
	"strings"
	"testing"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("id", "")
	v.Required("name", "  ")
	v.Required("ok", "value")

	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors()))
	}
	if v.Errors()[0].Field != "id" {
		t.Errorf("first field = %q", v.Errors()[0].Field)
	}
}

func TestValidatorMinOneOfCustom(t *testing.T) {
	v := New().
		Min("retries", -1, 0).
		OneOf("format", "xml", []string{"json", "console"}).
		OneOf("empty", "", []string{"a"}).
		Custom(false, "schedule", "bad")

	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %v", v.Errors())
	}
}

func TestValidatorValidate(t *testing.T) {
	if New().Validate() != nil {
		t.Fatal("expected nil for no errors")
	}

	v := New().Required("id", "").Min("workers", 0, 1)
	err := v.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Message, "id: is required") || !strings.Contains(err.Message, "workers: must be at least 1") {
		t.Errorf("message = %q", err.Message)
	}
	if _, ok := err.Details["fields"]; !ok {
		t.Error("expected fields detail")
	}
}

type entry struct {
	Step string `yaml:"step" validate:"required"`
}

type job struct {
	ID       string  `yaml:"id" validate:"required"`
	Schedule string  `yaml:"schedule" validate:"omitempty,cron5"`
	Zone     string  `yaml:"timezone" validate:"omitempty,timezone"`
	Retries  int     `yaml:"retries" validate:"gte=0"`
	Pipeline []entry `yaml:"pipeline" validate:"dive"`
}

func TestStructValidateValid(t *testing.T) {
	j := job{ID: "daily", Schedule: "0 9 * * *", Zone: "Europe/Berlin", Pipeline: []entry{{Step: "echo"}}}
	if err := Validate(j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	tests := []struct {
		name  string
		job   job
		field string
	}{
		{"missing id", job{}, "id: is required"},
		{"six field cron", job{ID: "x", Schedule: "0 0 9 * * *"}, "schedule: must be a cron expression with exactly 5 fields"},
		{"four field cron", job{ID: "x", Schedule: "0 9 * *"}, "schedule:"},
		{"bad zone", job{ID: "x", Zone: "Mars/Olympus"}, "timezone:"},
		{"negative retries", job{ID: "x", Retries: -1}, "retries:"},
		{"nested step", job{ID: "x", Pipeline: []entry{{}}}, "pipeline[0].step: is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.job)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.field)
			}
		})
	}
}

func TestIsFiveFieldCron(t *testing.T) {
	tests := map[string]bool{
		"*/5 * * * *":   true,
		"0 9 * * 1-5":   true,
		"0 9 * *":       false,
		"0 0 9 * * *":   false,
		"@daily":        false,
		"  0 9 * * *  ": true,
	}
	for expr, want := range tests {
		if got := IsFiveFieldCron(expr); got != want {
			t.Errorf("IsFiveFieldCron(%q) = %v, want %v", expr, got, want)
		}
	}
}

func TestVar(t *testing.T) {
	tests := []struct {
		value   string
		tag     string
		wantErr bool
	}{
		{"0 9 * * 1-5", "cron5", false},
		{"@daily", "cron5", true},
		{"Europe/Berlin", "timezone", false},
		{"Mars/Olympus", "timezone", true},
	}
	for _, tc := range tests {
		err := Var(tc.value, tc.tag)
		if (err != nil) != tc.wantErr {
			t.Errorf("Var(%q, %q) error = %v, wantErr %v", tc.value, tc.tag, err, tc.wantErr)
		}
	}
}
