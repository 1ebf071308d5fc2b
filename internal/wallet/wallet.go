// internal/wallet/wallet.go
package wallet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrUnknownWallet is returned for names missing from a Keyring.
var ErrUnknownWallet = errors.New("unknown wallet")

// Wallet is an ed25519 keypair acting on the protocol.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet creates a wallet from a base58 encoded 64 byte private key.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return fromKey(solana.PrivateKey(privateKeyBytes)), nil
}

// Generate creates a wallet with a fresh random key.
func Generate(name string) *Wallet {
	w := fromKey(solana.NewWallet().PrivateKey)
	w.Name = name
	return w
}

// LoadKeyFile reads a solana-keygen JSON key file.
func LoadKeyFile(path string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load key file %s: %w", path, err)
	}
	return fromKey(key), nil
}

func fromKey(key solana.PrivateKey) *Wallet {
	return &Wallet{PrivateKey: key, PublicKey: key.PublicKey()}
}

// Address returns the wallet's public key.
func (w *Wallet) Address() solana.PublicKey {
	return w.PublicKey
}

// Key returns the private key used to sign protocol requests.
func (w *Wallet) Key() solana.PrivateKey {
	return w.PrivateKey
}

// SignTransaction signs tx with the wallet key.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	return err
}

// Export returns the base58 private key.
func (w *Wallet) Export() string {
	return base58.Encode(w.PrivateKey)
}

// String returns the public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

// Keyring holds named wallets.
type Keyring struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{wallets: make(map[string]*Wallet)}
}

// Add stores w under name.
func (k *Keyring) Add(name string, w *Wallet) {
	k.mu.Lock()
	defer k.mu.Unlock()
	w.Name = name
	k.wallets[name] = w
}

// Get returns the wallet stored under name.
func (k *Keyring) Get(name string) (*Wallet, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	w, ok := k.wallets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, name)
	}
	return w, nil
}

// GetOrGenerate returns the wallet stored under name, creating one if absent.
func (k *Keyring) GetOrGenerate(name string) *Wallet {
	k.mu.Lock()
	defer k.mu.Unlock()
	if w, ok := k.wallets[name]; ok {
		return w
	}
	w := Generate(name)
	k.wallets[name] = w
	return w
}

// Names returns wallet names in sorted order.
func (k *Keyring) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.wallets))
	for name := range k.wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the name of the wallet owning addr.
func (k *Keyring) Lookup(addr solana.PublicKey) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for name, w := range k.wallets {
		if w.PublicKey.Equals(addr) {
			return name, true
		}
	}
	return "", false
}

// LoadWallets reads a CSV file with columns [Name, PrivateKeyBase58].
// Malformed rows are skipped.
func LoadWallets(path string) (*Keyring, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or missing data")
	}

	ring := NewKeyring()
	for _, record := range records[1:] {
		if len(record) != 2 {
			continue
		}
		w, err := NewWallet(record[1])
		if err != nil {
			continue
		}
		ring.Add(record[0], w)
	}
	return ring, nil
}
