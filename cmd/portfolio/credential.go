package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/credential"
)

var credentialShow bool

// credentialNames maps CLI names to keyring keys.
var credentialNames = map[string]string{
	"openai": credential.KeyOpenAI,
	"remote": credential.KeyRemote,
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage API keys in the system keyring",
	Long: `Store, inspect and remove API keys in the system keyring.
Names: openai (insight provider), remote (project store).
Environment variables take precedence over stored keys.`,
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Store a key (reads stdin when value is omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCredentialSet,
}

var credentialGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a stored key (masked unless --show)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialGet,
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialDelete,
}

func init() {
	credentialGetCmd.Flags().BoolVar(&credentialShow, "show", false, "Print the full key")

	credentialCmd.AddCommand(credentialSetCmd)
	credentialCmd.AddCommand(credentialGetCmd)
	credentialCmd.AddCommand(credentialDeleteCmd)
}

func credentialKey(name string) (string, error) {
	key, ok := credentialNames[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown credential %q (want openai or remote)", name)
	}
	return key, nil
}

func runCredentialSet(cmd *cobra.Command, args []string) error {
	key, err := credentialKey(args[0])
	if err != nil {
		return err
	}

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read value: %w", err)
		}
		value = line
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("credential value must not be empty")
	}
	if key == credential.KeyOpenAI && !credential.LooksLikeOpenAIKey(value) {
		return errors.New("value does not look like an OpenAI API key (expected sk-...)")
	}

	if err := newCredentialStore().Set(key, value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s credential.\n", args[0])
	return nil
}

func runCredentialGet(cmd *cobra.Command, args []string) error {
	key, err := credentialKey(args[0])
	if err != nil {
		return err
	}

	value, err := newCredentialStore().Get(key)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return fmt.Errorf("no %s credential stored", args[0])
		}
		return err
	}

	if !credentialShow {
		value = maskSecret(value)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runCredentialDelete(cmd *cobra.Command, args []string) error {
	key, err := credentialKey(args[0])
	if err != nil {
		return err
	}

	if err := newCredentialStore().Delete(key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s credential.\n", args[0])
	return nil
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
