package kafka

import (
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

func TestNewSaramaConfig_Security(t *testing.T) {
	tests := []struct {
		name          string
		cfg           ClientConfig
		wantSASL      bool
		wantTLS       bool
		wantMechanism sarama.SASLMechanism
		wantErr       bool
	}{
		{
			name: "plaintext",
			cfg:  ClientConfig{SecurityProtocol: "PLAINTEXT"},
		},
		{
			name:    "ssl",
			cfg:     ClientConfig{SecurityProtocol: "SSL"},
			wantTLS: true,
		},
		{
			name:          "sasl plain",
			cfg:           ClientConfig{SecurityProtocol: "SASL_PLAINTEXT", SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypePlaintext,
		},
		{
			name:          "sasl ssl scram 256",
			cfg:           ClientConfig{SecurityProtocol: "SASL_SSL", SASLMechanism: "SCRAM-SHA-256", SASLUsername: "u", SASLPassword: "p"},
			wantSASL:      true,
			wantTLS:       true,
			wantMechanism: sarama.SASLTypeSCRAMSHA256,
		},
		{
			name:          "scram 512",
			cfg:           ClientConfig{SecurityProtocol: "SASL_PLAINTEXT", SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"},
			wantSASL:      true,
			wantMechanism: sarama.SASLTypeSCRAMSHA512,
		},
		{
			name:          "msk iam",
			cfg:           ClientConfig{SecurityProtocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM", AWSRegion: "eu-west-1"},
			wantSASL:      true,
			wantTLS:       true,
			wantMechanism: sarama.SASLTypeOAuth,
		},
		{
			name:    "msk iam without region",
			cfg:     ClientConfig{SecurityProtocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM"},
			wantErr: true,
		},
		{
			name:    "unknown mechanism",
			cfg:     ClientConfig{SecurityProtocol: "SASL_SSL", SASLMechanism: "GSSAPI"},
			wantErr: true,
		},
		{
			name:    "unknown protocol",
			cfg:     ClientConfig{SecurityProtocol: "QUIC"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := newSaramaConfig(tt.cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSaramaConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.Net.SASL.Enable != tt.wantSASL {
				t.Errorf("SASL.Enable = %v, want %v", cfg.Net.SASL.Enable, tt.wantSASL)
			}
			if cfg.Net.TLS.Enable != tt.wantTLS {
				t.Errorf("TLS.Enable = %v, want %v", cfg.Net.TLS.Enable, tt.wantTLS)
			}
			if tt.wantSASL && cfg.Net.SASL.Mechanism != tt.wantMechanism {
				t.Errorf("SASL.Mechanism = %v, want %v", cfg.Net.SASL.Mechanism, tt.wantMechanism)
			}
			if tt.wantMechanism == sarama.SASLTypeOAuth && cfg.Net.SASL.TokenProvider == nil {
				t.Error("expected a token provider")
			}
		})
	}
}

func TestNewSaramaConfig_ClientID(t *testing.T) {
	cfg, err := newSaramaConfig(ClientConfig{ClientID: "geobin-test"}, zap.NewNop())
	if err != nil {
		t.Fatalf("newSaramaConfig() error = %v", err)
	}
	if cfg.ClientID != "geobin-test" {
		t.Errorf("ClientID = %s", cfg.ClientID)
	}
}

func TestXDGSCRAMClient_Begin(t *testing.T) {
	cfg, err := newSaramaConfig(ClientConfig{
		SecurityProtocol: "SASL_PLAINTEXT",
		SASLMechanism:    "SCRAM-SHA-512",
		SASLUsername:     "alice",
		SASLPassword:     "secret",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("newSaramaConfig() error = %v", err)
	}

	client := cfg.Net.SASL.SCRAMClientGeneratorFunc()
	if err := client.Begin("alice", "secret", ""); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	first, err := client.Step("")
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !strings.HasPrefix(first, "n,,n=alice,r=") {
		t.Errorf("client-first message = %q", first)
	}
	if client.Done() {
		t.Error("conversation should not be done after the first step")
	}
}
