package secrets

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("UNIAPI_TEST_KEY", "sk-secret")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no reference", "plain-value", "plain-value"},
		{"single reference", "${UNIAPI_TEST_KEY}", "sk-secret"},
		{"embedded reference", "prefix-${UNIAPI_TEST_KEY}-suffix", "prefix-sk-secret-suffix"},
		{"unset reference", "${UNIAPI_TEST_UNSET}", ""},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.in
			ExpandEnv(&s)
			if s != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, s, tt.want)
			}
		})
	}
}
