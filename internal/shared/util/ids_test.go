package util

import "testing"

func TestHashUserKey(t *testing.T) {
	id := "user_2abc"
	got := HashUserKey(id)
	if got != HashUserKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestRandomIDIsUnique(t *testing.T) {
	a, b := RandomID(), RandomID()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex characters, got %d", len(a))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "  q3/summary.pdf ", want: "q3_summary.pdf"},
		{in: `dir\file.pdf`, want: "dir_file.pdf"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestIsPDFName(t *testing.T) {
	if !IsPDFName("Annual Report.PDF") {
		t.Fatalf("expected .PDF to be accepted")
	}
	if IsPDFName("notes.docx") {
		t.Fatalf("expected .docx to be rejected")
	}
}
