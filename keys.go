package nostr

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

type SecretKey [32]byte

func (sk SecretKey) String() string { return "sk::" + sk.Hex() }
func (sk SecretKey) Hex() string    { return hex.EncodeToString(sk[:]) }
func (sk SecretKey) Public() PubKey { return GetPublicKey(sk) }

func Generate() SecretKey {
	var sk [32]byte
	if _, err := io.ReadFull(rand.Reader, sk[:]); err != nil {
		panic(fmt.Errorf("failed to read random bytes when generating private key"))
	}
	return sk
}

func SecretKeyFromHex(skh string) (SecretKey, error) {
	sk := SecretKey{}
	if len(skh) != 64 {
		return sk, fmt.Errorf("secret key should be 64-char hex, got %d chars", len(skh))
	}
	if _, err := hex.Decode(sk[:], []byte(skh)); err != nil {
		return sk, fmt.Errorf("secret key is not valid hex: %w", err)
	}
	return sk, nil
}

func MustSecretKeyFromHex(skh string) SecretKey {
	sk, err := SecretKeyFromHex(skh)
	if err != nil {
		panic(err)
	}
	return sk
}

func GetPublicKey(sk SecretKey) PubKey {
	_, pk := btcec.PrivKeyFromBytes(sk[:])
	return [32]byte(pk.SerializeCompressed()[1:])
}

func IsValidPublicKey(pk [32]byte) bool {
	_, err := schnorr.ParsePubKey(pk[:])
	return err == nil
}
