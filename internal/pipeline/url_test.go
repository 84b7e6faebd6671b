package pipeline

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://UConn.edu/Admissions/", "https://uconn.edu/Admissions"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"https://example.com:443/a", "https://example.com/a"},
		{"https://example.com/a#section", "https://example.com/a"},
		{"https://example.com/", "https://example.com/"},
		{"  https://example.com/a  ", "https://example.com/a"},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeURLRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "ftp://example.com/x", "notaurl", "https://"} {
		if _, err := NormalizeURL(in); err == nil {
			t.Errorf("NormalizeURL(%q) expected error", in)
		}
	}
}
