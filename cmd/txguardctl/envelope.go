package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/txguard/internal/config"
	pkgcrypto "github.com/and161185/txguard/internal/crypto"
	"github.com/and161185/txguard/internal/envelope"
	"github.com/and161185/txguard/internal/nonce"
)

// responseBody is the success body the server writes: the payload in data and
// the envelope metadata in _security.
type responseBody struct {
	Data     json.RawMessage    `json:"data"`
	Security *envelope.Security `json:"_security"`
}

func envelopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envelope",
		Short: "Signed response envelopes",
	}
	cmd.AddCommand(envelopeVerifyCmd())
	return cmd
}

func envelopeVerifyCmd() *cobra.Command {
	var (
		file       string
		hmacKey    string
		window     time.Duration
		ignoreTime bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a saved API response or bare envelope",
		Long: "Reads a JSON response body (data + _security) or a bare envelope\n" +
			"from --file (\"-\" for stdin) and checks its HMAC signature and freshness.\n" +
			"The key comes from --hmac-key, TXGUARD_HMAC_KEY or TXGUARD_ENCRYPTION_KEY.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := signingKey(hmacKey, os.Getenv)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			env, err := decodeEnvelope(raw)
			if err != nil {
				return err
			}
			signer, err := pkgcrypto.NewSigner(key)
			if err != nil {
				return err
			}

			opts := []envelope.Option{envelope.WithResponseWindow(window)}
			if ignoreTime {
				ts := time.UnixMilli(env.Timestamp)
				opts = append(opts, envelope.WithClock(func() time.Time { return ts }))
			}
			svc := envelope.New(signer, nonce.NewGuard(nonce.DefaultTTL), opts...)
			if err := svc.Verify(env); err != nil {
				return fmt.Errorf("envelope %s rejected: %w", env.TransactionID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s %s\n",
				env.TransactionID, time.UnixMilli(env.Timestamp).UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "input file, - for stdin")
	cmd.Flags().StringVar(&hmacKey, "hmac-key", "", "HMAC signing key")
	cmd.Flags().DurationVar(&window, "window", envelope.DefaultResponseWindow, "accepted clock distance")
	cmd.Flags().BoolVar(&ignoreTime, "ignore-time", false, "skip the freshness check")
	return cmd
}

var errNoKey = errors.New("no signing key: set --hmac-key, TXGUARD_HMAC_KEY or TXGUARD_ENCRYPTION_KEY")

// signingKey resolves the key the same way the server does.
func signingKey(flagKey string, getenv func(string) string) ([]byte, error) {
	c := config.Config{HMACKey: flagKey, EncryptionKey: getenv(config.EnvPrefix + "ENCRYPTION_KEY")}
	if c.HMACKey == "" {
		c.HMACKey = getenv(config.EnvPrefix + "HMAC_KEY")
	}
	if c.HMACKey == "" && c.EncryptionKey == "" {
		return nil, errNoKey
	}
	return c.SigningKey()
}

func readInput(stdin io.Reader, p string) ([]byte, error) {
	if p == "-" || p == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func decodeEnvelope(raw []byte) (envelope.Envelope, error) {
	var body responseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return envelope.Envelope{}, fmt.Errorf("decode: %w", err)
	}
	if body.Security != nil {
		s := body.Security
		return envelope.Envelope{
			Data:          body.Data,
			TransactionID: s.TransactionID,
			Timestamp:     s.Timestamp,
			Nonce:         s.Nonce,
			Signature:     s.Signature,
			Algorithm:     s.Algorithm,
		}, nil
	}
	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope.Envelope{}, fmt.Errorf("decode: %w", err)
	}
	if env.Signature == "" {
		return envelope.Envelope{}, errors.New("decode: no envelope found")
	}
	return env, nil
}
