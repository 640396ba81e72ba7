package status

import "testing"

func TestIsValid(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{Active, true},
		{Disabled, true},
		{"ACTIVE", false},
		{"pending", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.status); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"", Active, true},
		{" Disabled ", Disabled, true},
		{"ACTIVE", Active, true},
		{"archived", "archived", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Parse(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIsActive(t *testing.T) {
	if !IsActive("") || !IsActive("Active") {
		t.Error("IsActive should accept empty and Active")
	}
	if IsActive("disabled") || IsActive("bogus") {
		t.Error("IsActive should reject disabled and unknown values")
	}
}
