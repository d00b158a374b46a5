package state

import "strings"

// NormalizeSymbol returns the canonical upper-case form of a currency symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// CurrencyPut registers the mint address of a currency symbol.
func (m *Manager) CurrencyPut(symbol string, mint [20]byte) error {
	symbol = NormalizeSymbol(symbol)
	if err := m.KVPut(currencyKey(symbol), mint); err != nil {
		return err
	}
	return m.KVAppend(currencyIndexKeyBytes, []byte(symbol))
}

// CurrencyGet resolves a currency symbol to its mint address.
func (m *Manager) CurrencyGet(symbol string) ([20]byte, bool, error) {
	var mint [20]byte
	ok, err := m.KVGet(currencyKey(NormalizeSymbol(symbol)), &mint)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return mint, true, nil
}

// Currencies lists the registered symbols in registration order.
func (m *Manager) Currencies() ([]string, error) {
	var raw [][]byte
	if err := m.KVGetList(currencyIndexKeyBytes, &raw); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, symbol := range raw {
		out = append(out, string(symbol))
	}
	return out, nil
}
