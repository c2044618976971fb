package validator

import (
	"errors"
	"testing"
)

func TestValidateStruct(t *testing.T) {
	type TestStruct struct {
		Email string            `json:"email" validate:"email"`
		State string            `json:"state" validate:"required,oneof=accepted rejected evaluating"`
		Title map[string]string `json:"title" validate:"required,min=3,max=10"`
		IDs   []int64           `json:"ids" validate:"required"`
	}

	valid := TestStruct{
		Email: "admin@example.org",
		State: "accepted",
		Title: map[string]string{"en": "Parks", "ca": ""},
		IDs:   []int64{1},
	}

	tests := []struct {
		name   string
		mutate func(*TestStruct)
		field  string
	}{
		{name: "valid struct", mutate: func(*TestStruct) {}},
		{name: "invalid email", mutate: func(s *TestStruct) { s.Email = "nope" }, field: "email"},
		{name: "empty email is allowed", mutate: func(s *TestStruct) { s.Email = "" }},
		{name: "missing state", mutate: func(s *TestStruct) { s.State = "" }, field: "state"},
		{name: "unknown state", mutate: func(s *TestStruct) { s.State = "withdrawn" }, field: "state"},
		{name: "blank translations", mutate: func(s *TestStruct) { s.Title = map[string]string{"en": " "} }, field: "title"},
		{name: "title too short", mutate: func(s *TestStruct) { s.Title = map[string]string{"en": "ab"} }, field: "title"},
		{name: "title too long", mutate: func(s *TestStruct) { s.Title = map[string]string{"en": "a very long title"} }, field: "title"},
		{name: "empty ids", mutate: func(s *TestStruct) { s.IDs = nil }, field: "ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			input.Title = map[string]string{}
			for k, v := range valid.Title {
				input.Title[k] = v
			}
			tt.mutate(&input)

			err := ValidateStruct(&input)
			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}

			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("Expected FieldError, got %v", err)
			}
			if fieldErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, fieldErr.Field)
			}
		})
	}
}

func TestMaxCountsCharactersNotBytes(t *testing.T) {
	type S struct {
		Title string `validate:"max=5"`
	}
	if err := ValidateStruct(S{Title: "ñañañ"}); err != nil {
		t.Errorf("Expected five characters to pass, got %v", err)
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"test@example.com", false},
		{"user.name+tag@example.co.uk", false},
		{"", true},
		{"invalid", true},
		{"@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  "); got != "helloworld" {
		t.Errorf("SanitizeString() = %q, want %q", got, "helloworld")
	}
}
