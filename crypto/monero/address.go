package monero

import (
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Network selects which Monero address prefix byte to encode with,
// mirroring the three deployment profiles config.Profile carries for the
// Bitcoin side of a swap.
type Network byte

const (
	Mainnet Network = 18
	Testnet Network = 53
	Stagenet Network = 24
)

// Address is a base58-encoded standard Monero public address: a network
// prefix byte, a 32-byte public spend key, a 32-byte public view key, and a
// 4-byte Keccak-256 checksum over the preceding bytes.
type Address string

// NewAddress derives the standard address for a public spend/view keypair.
func NewAddress(net Network, spend, view *PublicKey) Address {
	spendBytes := spend.Bytes()
	viewBytes := view.Bytes()

	payload := make([]byte, 0, 1+32+32)
	payload = append(payload, byte(net))
	payload = append(payload, spendBytes[:]...)
	payload = append(payload, viewBytes[:]...)

	checksum := keccak256(payload)
	payload = append(payload, checksum[:4]...)

	return Address(base58Encode(payload))
}

// PublicSpendKey and PublicViewKey recover the two public keys an address
// was built from, without validating the checksum against a known network.
func (a Address) PublicSpendKey() (*PublicKey, error) {
	raw, err := a.decode()
	if err != nil {
		return nil, err
	}
	return newPublicKeyFromBytes(raw[1:33])
}

func (a Address) PublicViewKey() (*PublicKey, error) {
	raw, err := a.decode()
	if err != nil {
		return nil, err
	}
	return newPublicKeyFromBytes(raw[33:65])
}

// Network returns the network prefix byte the address was encoded for.
func (a Address) Network() (Network, error) {
	raw, err := a.decode()
	if err != nil {
		return 0, err
	}
	return Network(raw[0]), nil
}

func (a Address) decode() ([]byte, error) {
	raw, err := base58Decode(string(a))
	if err != nil {
		return nil, fmt.Errorf("invalid monero address encoding: %w", err)
	}
	if len(raw) != 1+32+32+4 {
		return nil, fmt.Errorf("invalid monero address length %d", len(raw))
	}

	payload := raw[:65]
	want := keccak256(payload)
	for i := 0; i < 4; i++ {
		if raw[65+i] != want[i] {
			return nil, fmt.Errorf("invalid monero address checksum")
		}
	}

	return raw, nil
}

func keccak256(b []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
