package main

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/signalhq/signal/internal/config"
	"github.com/signalhq/signal/pkg/logging"
)

func TestBuildLLMClientRequiresBackend(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "auto"}
	_, _, err := buildLLMClient(context.Background(), cfg, aws.Config{}, logging.New("error", "test"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion backend configured")
}

func TestBuildLLMClientBedrockOnly(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "auto", BedrockModelID: "anthropic.claude-3-5-haiku-20241022-v1:0"}
	client, model, err := buildLLMClient(context.Background(), cfg, aws.Config{Region: "us-east-1"}, logging.New("error", "test"))
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, cfg.BedrockModelID, model)
}

func TestBuildLLMClientExplicitBedrockUnconfigured(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "bedrock"}
	_, _, err := buildLLMClient(context.Background(), cfg, aws.Config{}, logging.New("error", "test"))
	assert.Error(t, err)
}

func TestBuildOutreachMailerDisabled(t *testing.T) {
	cfg := &appconfig.Config{EmailProvider: ""}
	assert.Nil(t, buildOutreachMailer(cfg, aws.Config{}, logging.New("error", "test")))
}

func TestBuildOutreachMailerStub(t *testing.T) {
	cfg := &appconfig.Config{EmailProvider: "stub"}
	assert.NotNil(t, buildOutreachMailer(cfg, aws.Config{}, logging.New("error", "test")))
}

func TestBuildOutreachMailerSendGridNeedsKey(t *testing.T) {
	cfg := &appconfig.Config{EmailProvider: "sendgrid"}
	assert.Nil(t, buildOutreachMailer(cfg, aws.Config{}, logging.New("error", "test")))
}

func TestStripeReturnURL(t *testing.T) {
	cfg := &appconfig.Config{PublicBaseURL: "https://signal.example"}
	assert.Equal(t, "https://signal.example/dashboard/billing?success=true", stripeReturnURL(cfg, "", "success=true"))
	assert.Equal(t, "https://custom.example/done", stripeReturnURL(cfg, "https://custom.example/done", "success=true"))
}
