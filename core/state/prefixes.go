package state

import (
	"sync"

	"github.com/lulo-labs/lulo-sc/native/derive"
)

var (
	configPrefix           = []byte("receivable/config/")
	contractPrefix         = []byte("receivable/contract/")
	contractSequencePrefix = []byte("receivable/contract-seq/")
	contractIndexKeyBytes  = []byte("receivable/contract-index")
	approverPrefix         = []byte("receivable/approver/")
	vaultPrefix            = []byte("receivable/vault/")
	vaultIndexKeyBytes     = []byte("receivable/vault-index")
	tokenMintPrefix        = []byte("token/mint/")
	tokenAccountPrefix     = []byte("token/account/")
	noncePrefix            = []byte("account/nonce/")
	currencyPrefix         = []byte("currency/symbol/")
	currencyIndexKeyBytes  = []byte("currency/index")
)

var (
	stateAddrOnce sync.Once
	stateAddr     [20]byte
	stateAddrErr  error
)

// ConfigAddress returns the derived address holding the protocol
// configuration.
func ConfigAddress() ([20]byte, error) {
	stateAddrOnce.Do(func() {
		stateAddr, _, stateAddrErr = derive.Find(derive.StateSeeds()...)
	})
	return stateAddr, stateAddrErr
}

func prefixed(prefix []byte, id []byte) []byte {
	buf := make([]byte, len(prefix)+len(id))
	copy(buf, prefix)
	copy(buf[len(prefix):], id)
	return buf
}

func configKey() ([]byte, error) {
	addr, err := ConfigAddress()
	if err != nil {
		return nil, err
	}
	return prefixed(configPrefix, addr[:]), nil
}

func contractKey(id [32]byte) []byte { return prefixed(contractPrefix, id[:]) }

func contractSequenceKey(creator [20]byte) []byte {
	return prefixed(contractSequencePrefix, creator[:])
}

func approverKey(addr [20]byte) []byte { return prefixed(approverPrefix, addr[:]) }

func vaultKey(currency [20]byte) []byte { return prefixed(vaultPrefix, currency[:]) }

func tokenMintKey(addr [20]byte) []byte { return prefixed(tokenMintPrefix, addr[:]) }

func tokenAccountKey(addr [20]byte) []byte { return prefixed(tokenAccountPrefix, addr[:]) }

func nonceKey(addr [20]byte) []byte { return prefixed(noncePrefix, addr[:]) }

func currencyKey(symbol string) []byte { return prefixed(currencyPrefix, []byte(symbol)) }
