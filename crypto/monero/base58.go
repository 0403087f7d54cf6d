package monero

import (
	"fmt"
	"math/big"
)

// Monero addresses are encoded with a block-based base58 variant (see
// monero-project/src/common/base58.cpp), distinct from Bitcoin's
// whole-buffer base58check: the input is split into 8-byte blocks, each
// block independently encoded to a fixed-width chunk of base58 digits, and
// the final partial block uses a shorter fixed width from encodedBlockSizes
// below rather than being padded out to 11 characters.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const fullBlockSize = 8
const fullEncodedBlockSize = 11

// encodedBlockSizes[i] is the encoded width of an i-byte partial block.
var encodedBlockSizes = [...]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

func base58Encode(data []byte) string {
	out := make([]byte, 0, (len(data)/fullBlockSize+1)*fullEncodedBlockSize)

	for len(data) >= fullBlockSize {
		out = append(out, encodeBlock(data[:fullBlockSize], fullEncodedBlockSize)...)
		data = data[fullBlockSize:]
	}

	if len(data) > 0 {
		out = append(out, encodeBlock(data, encodedBlockSizes[len(data)])...)
	}

	return string(out)
}

func encodeBlock(block []byte, encodedSize int) []byte {
	num := new(big.Int).SetBytes(block)
	base := big.NewInt(58)
	mod := new(big.Int)

	digits := make([]byte, encodedSize)
	for i := encodedSize - 1; i >= 0; i-- {
		num.DivMod(num, base, mod)
		digits[i] = base58Alphabet[mod.Int64()]
	}

	return digits
}

func base58Decode(s string) ([]byte, error) {
	rev := make(map[byte]int64, len(base58Alphabet))
	for i := 0; i < len(base58Alphabet); i++ {
		rev[base58Alphabet[i]] = int64(i)
	}

	blockSizeForEncoded := func(n int) (int, error) {
		for raw, enc := range encodedBlockSizes {
			if enc == n {
				return raw, nil
			}
		}
		return 0, fmt.Errorf("invalid monero base58 block length %d", n)
	}

	out := make([]byte, 0, len(s))
	for len(s) >= fullEncodedBlockSize {
		b, err := decodeBlock(s[:fullEncodedBlockSize], rev, fullBlockSize)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		s = s[fullEncodedBlockSize:]
	}

	if len(s) > 0 {
		rawSize, err := blockSizeForEncoded(len(s))
		if err != nil {
			return nil, err
		}
		b, err := decodeBlock(s, rev, rawSize)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}

	return out, nil
}

func decodeBlock(s string, rev map[byte]int64, rawSize int) ([]byte, error) {
	num := new(big.Int)
	base := big.NewInt(58)

	for i := 0; i < len(s); i++ {
		digit, ok := rev[s[i]]
		if !ok {
			return nil, fmt.Errorf("invalid monero base58 character %q", s[i])
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(digit))
	}

	raw := num.Bytes()
	if len(raw) > rawSize {
		return nil, fmt.Errorf("monero base58 block overflowed %d bytes", rawSize)
	}

	out := make([]byte, rawSize)
	copy(out[rawSize-len(raw):], raw)
	return out, nil
}
