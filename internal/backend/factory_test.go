package backend

import (
	"context"
	"testing"
)

func TestNewBackendProviders(t *testing.T) {
	ctx := context.Background()

	// 1. OpenAI
	client, err := New(ctx, Options{Provider: ProviderOpenAI, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("Failed to create openai backend: %v", err)
	}
	if client.Name() != "openai" {
		t.Errorf("Expected openai, got %s", client.Name())
	}

	// 2. DeepSeek with model override
	client, err = New(ctx, Options{Provider: ProviderDeepSeek, APIKey: "sk-test", Model: "deepseek-coder"})
	if err != nil {
		t.Fatalf("Failed to create deepseek backend: %v", err)
	}
	oc, ok := client.(*OpenAIClient)
	if !ok {
		t.Fatalf("Expected *OpenAIClient, got %T", client)
	}
	if oc.GetModel() != "deepseek-coder" {
		t.Errorf("Expected model override, got %s", oc.GetModel())
	}

	// 3. Anthropic
	client, err = New(ctx, Options{Provider: ProviderAnthropic, APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("Failed to create anthropic backend: %v", err)
	}
	if _, ok := client.(*AnthropicClient); !ok {
		t.Errorf("Expected *AnthropicClient, got %T", client)
	}

	// 4. Unknown provider
	_, err = New(ctx, Options{Provider: "mystery", APIKey: "x"})
	if err == nil {
		t.Error("Expected error for unknown provider")
	}

	// 5. Missing API key
	_, err = New(ctx, Options{Provider: ProviderOpenAI})
	if err == nil {
		t.Error("Expected error for missing API key")
	}
}
