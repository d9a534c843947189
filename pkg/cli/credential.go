package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	verrors "github.com/dshills/vizier/pkg/errors"
	"github.com/dshills/vizier/pkg/storage"
)

const maxCredentialSize = 1 << 20 // 1MB limit for all credential inputs

// isOnlyWhitespace checks if a byte slice contains only Unicode whitespace characters
// without allocating strings. Returns true if empty or whitespace-only.
func isOnlyWhitespace(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 is treated as non-whitespace
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

// NewCredentialCommand creates the credential management command
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage engine and storage credentials",
		Long: `Manage credentials for the delegated engine and the s3 dataset backend.
Credentials are stored in your system's native credential store (Keychain on macOS,
Credential Manager on Windows, Secret Service on Linux) and never in plain text files.

Well-known keys:
  engine.token  bearer token sent to engine.url
  s3            access key pair of the s3 dataset backend (use set-s3)`,
	}

	cmd.AddCommand(newCredentialSetCommand())
	cmd.AddCommand(newCredentialSetS3Command())
	cmd.AddCommand(newCredentialDeleteCommand())
	cmd.AddCommand(newCredentialListCommand())

	return cmd
}

// readSecret obtains a secret from stdin, the --value flag or an
// interactive prompt without echo, in that order of precedence.
func readSecret(cmd *cobra.Command, label, value string, useStdin bool) (string, error) {
	if useStdin {
		// Limit stdin reading to prevent memory exhaustion
		inputBytes, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxCredentialSize+1))

		// Ensure buffer is zeroed on all exit paths
		defer func() {
			for i := range inputBytes {
				inputBytes[i] = 0
			}
		}()

		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		if len(inputBytes) > maxCredentialSize {
			return "", fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
		}

		// Trim only trailing newline characters (preserve intentional spaces)
		trimmed := bytes.TrimRight(inputBytes, "\r\n")
		if len(trimmed) == 0 {
			return "", fmt.Errorf("credential value cannot be empty")
		}
		if isOnlyWhitespace(trimmed) {
			return "", fmt.Errorf("credential cannot contain only whitespace characters")
		}
		return string(trimmed), nil
	}

	if value != "" {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: Using --value flag exposes credential in shell history.")
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Consider using interactive prompt (omit --value) or --stdin for better security.")

		if len(value) > maxCredentialSize {
			return "", fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
		}
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("credential cannot contain only whitespace characters")
		}
		return value, nil
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enter value for '%s': ", label)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(cmd.OutOrStdout()) // New line after hidden input

	// Zero password bytes on all exit paths
	defer func() {
		for i := range passwordBytes {
			passwordBytes[i] = 0
		}
	}()

	if err != nil {
		return "", fmt.Errorf("failed to read credential value: %w", err)
	}
	if len(passwordBytes) > maxCredentialSize {
		return "", fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
	}
	if len(passwordBytes) == 0 {
		return "", fmt.Errorf("credential value cannot be empty")
	}
	if isOnlyWhitespace(passwordBytes) {
		return "", fmt.Errorf("credential cannot contain only whitespace characters")
	}
	return string(passwordBytes), nil
}

func newCredentialSetCommand() *cobra.Command {
	var (
		value    string
		useStdin bool
	)

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a credential",
		Long: `Store a credential in the system keyring, replacing any previous value.

Examples:
  # Interactive prompt (recommended for local use)
  vizier credential set engine.token

  # From stdin (recommended for automation/CI/CD)
  printf '%s' "$TOKEN" | vizier credential set engine.token --stdin

Note:
  - All input methods have a 1MB maximum credential size limit
  - --stdin reads until EOF; only trailing CR/LF characters are removed
  - Whitespace-only credentials are rejected`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if key == storage.CredentialS3 {
				return fmt.Errorf("use 'vizier credential set-s3' for the %q credential", key)
			}

			secret, err := readSecret(cmd, key, value, useStdin)
			if err != nil {
				return err
			}
			if err := storage.NewKeyringCredentialStore().Set(key, secret); err != nil {
				return fmt.Errorf("failed to store credential: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' stored\n", key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&value, "value", "v", "", "Credential value (optional - will prompt securely if omitted)")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read credential value from stdin")
	cmd.MarkFlagsMutuallyExclusive("stdin", "value")

	return cmd
}

func newCredentialSetS3Command() *cobra.Command {
	var (
		accessKeyID  string
		sessionToken string
		value        string
		useStdin     bool
	)

	cmd := &cobra.Command{
		Use:   "set-s3",
		Short: "Store the access key pair of the s3 dataset backend",
		Long: `Store the access key pair of the s3 dataset backend. The secret access key is
read like any other credential value.

Examples:
  printf '%s' "$AWS_SECRET_ACCESS_KEY" | vizier credential set-s3 --access-key-id AKIA... --stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd, "secret access key", value, useStdin)
			if err != nil {
				return err
			}
			cred := storage.S3Credential{
				AccessKeyID:     accessKeyID,
				SecretAccessKey: secret,
				SessionToken:    sessionToken,
			}
			if err := storage.NewKeyringCredentialStore().SetStructured(storage.CredentialS3, cred); err != nil {
				return fmt.Errorf("failed to store credential: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' stored\n", storage.CredentialS3)
			return nil
		},
	}

	cmd.Flags().StringVar(&accessKeyID, "access-key-id", "", "Access key id (required)")
	cmd.Flags().StringVar(&sessionToken, "session-token", "", "Session token for temporary credentials")
	cmd.Flags().StringVarP(&value, "value", "v", "", "Secret access key (optional - will prompt securely if omitted)")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the secret access key from stdin")
	_ = cmd.MarkFlagRequired("access-key-id")
	cmd.MarkFlagsMutuallyExclusive("stdin", "value")

	return cmd
}

func newCredentialDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := storage.NewKeyringCredentialStore().Delete(args[0])
			if errors.Is(err, verrors.ErrNotFound) {
				return fmt.Errorf("credential not found: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to delete credential: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' deleted\n", args[0])
			return nil
		},
	}
}

func newCredentialListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials",
		Long:  `List the keys of stored credentials. Values are never displayed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := storage.NewKeyringCredentialStore().List()
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}
			if len(keys) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No credentials configured.")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nAdd a credential with: vizier credential set <key>")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CREDENTIAL KEY\tSTATUS")
			for _, k := range keys {
				_, _ = fmt.Fprintf(w, "%s\t(set)\n", k)
			}
			return w.Flush()
		},
	}
}
