package content

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"plain", "Salmon Bites", "Salmon Bites"},
		{"entities", "Tuna &amp; Pumpkin &#8211; Easy", "Tuna & Pumpkin – Easy"},
		{"tags", "<p>Mix <strong>well</strong>.</p>\n", "Mix well."},
		{"paragraphs", "<p>First.</p><p>Second.</p>", "First. Second."},
		{"list", "<ul><li>oats</li><li>egg</li></ul>", "oats egg"},
		{"whitespace", "  lots \n of\tspace ", "lots of space"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.html); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
