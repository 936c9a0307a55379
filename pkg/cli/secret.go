package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/gamedash/pkg/crypto"
)

// EncryptSecretCmd prints the "enc:" form of a secret for use in .env or the
// environment. The plaintext is read from stdin so it stays out of shell history.
type EncryptSecretCmd struct {
	Key string `env:"CREDENTIALS_KEY" help:"Key the server will decrypt with (defaults to $CREDENTIALS_KEY)"`
}

// Run executes the encrypt-secret command
func (cmd *EncryptSecretCmd) Run(ctx *Context) error {
	if cmd.Key == "" {
		return errors.New("CREDENTIALS_KEY is required")
	}
	cipher, err := crypto.NewSecretCipher(cmd.Key)
	if err != nil {
		return err
	}

	plaintext, err := bufio.NewReader(ctx.Stdin).ReadString('\n')
	if err != nil && plaintext == "" {
		return fmt.Errorf("failed to read secret from stdin: %w", err)
	}
	plaintext = strings.TrimRight(plaintext, "\r\n")
	if plaintext == "" {
		return errors.New("secret must not be empty")
	}

	encrypted, err := cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Stdout, encrypted)
	return err
}
