package provider

import (
	"errors"
	"testing"
)

func TestNewFactorySelection(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"gemini", "*provider.Gemini"},
		{"deepseek", "*provider.ChatCompat"},
		{"openai", "*provider.ChatCompat"},
		{"DeepSeek", "*provider.ChatCompat"},
		{"  gemini  ", "*provider.Gemini"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			gen, err := New(Config{Provider: tt.provider, APIKey: "k"})
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.provider, err)
			}
			switch tt.wantType {
			case "*provider.Gemini":
				if _, ok := gen.(*Gemini); !ok {
					t.Errorf("New(%q) = %T, want *Gemini", tt.provider, gen)
				}
			case "*provider.ChatCompat":
				if _, ok := gen.(*ChatCompat); !ok {
					t.Errorf("New(%q) = %T, want *ChatCompat", tt.provider, gen)
				}
			}
		})
	}
}

func TestNewUnsupportedProvider(t *testing.T) {
	for _, provider := range []string{"", "claude", "mistral"} {
		_, err := New(Config{Provider: provider})
		if !errors.Is(err, ErrUnsupportedProvider) {
			t.Errorf("New(%q) error = %v, want ErrUnsupportedProvider", provider, err)
		}
	}
}

func TestCompatBaseURLDefaults(t *testing.T) {
	deepseek := NewChatCompat(Config{APIKey: "k"}, deepSeekBaseURL)
	if deepseek.baseURL != deepSeekBaseURL {
		t.Errorf("baseURL = %q, want the deepseek default", deepseek.baseURL)
	}

	openai := NewChatCompat(Config{APIKey: "k"}, openAIBaseURL)
	if openai.baseURL != openAIBaseURL {
		t.Errorf("baseURL = %q, want the openai default", openai.baseURL)
	}

	custom := NewChatCompat(Config{APIKey: "k", BaseURL: "http://localhost:9999/"}, openAIBaseURL)
	if custom.baseURL != "http://localhost:9999" {
		t.Errorf("baseURL = %q, want the trimmed override", custom.baseURL)
	}
}
