package tokenizer

import "testing"

func TestEncodeDecode(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("failed to create tokenizer: %v", err)
	}

	tests := []struct {
		name string
		text string
	}{
		{"simple sentence", "Hello, world!"},
		{"empty string", ""},
		{"unicode", "naïve café résumé"},
		{"long text", "The quick brown fox jumps over the lazy dog. " +
			"Pack my box with five dozen liquor jugs."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := svc.Encode(tt.text)
			decoded := svc.Decode(tokens)
			if decoded != tt.text {
				t.Errorf("round trip mismatch: got %q, want %q", decoded, tt.text)
			}
		})
	}
}

func TestCount(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("failed to create tokenizer: %v", err)
	}

	if got := svc.Count(""); got != 0 {
		t.Errorf("expected 0 tokens for empty string, got %d", got)
	}

	text := "Hello, world!"
	if got, want := svc.Count(text), len(svc.Encode(text)); got != want {
		t.Errorf("Count disagrees with Encode: got %d, want %d", got, want)
	}
}

func TestTruncate(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("failed to create tokenizer: %v", err)
	}

	tokens := []int{1, 2, 3, 4, 5}

	t.Run("no limit", func(t *testing.T) {
		if got := svc.Truncate(tokens, 0); len(got) != 5 {
			t.Errorf("expected all 5 tokens, got %d", len(got))
		}
	})

	t.Run("under limit", func(t *testing.T) {
		if got := svc.Truncate(tokens, 10); len(got) != 5 {
			t.Errorf("expected all 5 tokens, got %d", len(got))
		}
	})

	t.Run("over limit", func(t *testing.T) {
		got := svc.Truncate(tokens, 3)
		if len(got) != 3 {
			t.Fatalf("expected 3 tokens, got %d", len(got))
		}
		if got[2] != 3 {
			t.Errorf("expected prefix to be kept, got %v", got)
		}
	})
}
