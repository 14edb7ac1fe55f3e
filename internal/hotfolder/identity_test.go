package hotfolder

import "testing"

func TestDeriveIdentity(t *testing.T) {
	tests := []struct {
		stem  string
		paper string
		page  int
	}{
		{"exam42_p3", "exam42", 3},
		{"exam42_p03", "exam42", 3},
		{"exam_part_p12", "exam_part", 12},
		{"deed_p2_p7", "deed_p2", 7},
		{"receipt", "receipt", 1},
		{"receipt_p", "receipt_p", 1},
		{"receipt_pX", "receipt_pX", 1},
		{"receipt_p2b", "receipt_p2b", 1},
		{"receipt_p-1", "receipt_p-1", 1},
		{"exam42_p3__0123456789ab", "exam42", 3},
		{"receipt__0123456789ab", "receipt", 1},
		{"receipt__0123456789AB", "receipt__0123456789AB", 1},
		{"_p4", "", 4},
		{"x_p0", "x", 0},
		{"x_p99999999999999999999999", "x_p99999999999999999999999", 1},
	}
	for _, tc := range tests {
		paper, page := DeriveIdentity(tc.stem)
		if paper != tc.paper || page != tc.page {
			t.Fatalf("DeriveIdentity(%q) = (%q, %d), want (%q, %d)", tc.stem, paper, page, tc.paper, tc.page)
		}
	}
}

func TestDeriveIdentityNormalizesUnicode(t *testing.T) {
	composed, _ := DeriveIdentity("Résumé_p2")
	decomposed, page := DeriveIdentity("Re\u0301sume\u0301_p2")
	if composed != decomposed {
		t.Fatalf("NFC and NFD names derived different papers: %q vs %q", composed, decomposed)
	}
	if page != 2 {
		t.Fatalf("page = %d", page)
	}
}

func TestTaggedName(t *testing.T) {
	const sum = "0123456789abcdef0123456789abcdef"
	tests := []struct {
		name    string
		want    string
		changed bool
	}{
		{"exam_p1.png", "exam_p1__0123456789ab.png", true},
		{"exam_p1__0123456789ab.png", "exam_p1__0123456789ab.png", false},
		{"exam_p1__ffffffffffff.PNG", "exam_p1__0123456789ab.PNG", true},
		{"noext", "noext__0123456789ab", true},
	}
	for _, tc := range tests {
		got, changed := taggedName(tc.name, sum)
		if got != tc.want || changed != tc.changed {
			t.Fatalf("taggedName(%q) = (%q, %v), want (%q, %v)", tc.name, got, changed, tc.want, tc.changed)
		}
	}
}
