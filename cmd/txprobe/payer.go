package main

import (
	"fmt"
	"log/slog"

	"ledgerclient/cmd/internal/passphrase"
	"ledgerclient/config"
	"ledgerclient/crypto"
	"ledgerclient/keys"
	"ledgerclient/ledger"
)

// loadPayer imports the configured payer key into store and binds it to the
// payer account.
func loadPayer(cfg config.Config, store *keys.Store, logger *slog.Logger) (ledger.AccountID, error) {
	account, err := cfg.PayerAccount()
	if err != nil {
		return ledger.AccountID{}, err
	}

	var priv *crypto.PrivateKey
	switch {
	case cfg.Payer.Keystore != "":
		source := passphrase.NewSource(cfg.Payer.PassphraseEnv)
		secret, err := source.Get()
		if err != nil {
			return ledger.AccountID{}, err
		}
		priv, err = crypto.LoadFromKeystore(cfg.Payer.Keystore, secret)
		if err != nil {
			return ledger.AccountID{}, fmt.Errorf("unlock payer keystore: %w", err)
		}
		logger.Info("payer keystore unlocked",
			slog.String("keystore", cfg.Payer.Keystore),
			slog.String("passphrase_env", source.EnvVar()))
	default:
		priv, err = crypto.LoadKeyFile(cfg.Payer.KeyFile, cfg.PayerKeyType())
		if err != nil {
			return ledger.AccountID{}, fmt.Errorf("read payer key file: %w", err)
		}
	}

	leaf, err := store.Add(priv)
	if err != nil {
		return ledger.AccountID{}, err
	}
	if err := store.Bind(account.Ref(), leaf); err != nil {
		return ledger.AccountID{}, err
	}
	return account, nil
}
