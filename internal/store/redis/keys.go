package redis

import "fmt"

const (
	// KeyPrefixIdentity is the prefix for per-relay identity keys
	KeyPrefixIdentity = "restreamer:identity:"
	// KeyIdentityOrder is the list of relay ids in ConfigModel order
	KeyIdentityOrder = "restreamer:identities:order"
)

// IdentityKey returns the Redis key for a relay identity by ID
func IdentityKey(id string) string {
	return KeyPrefixIdentity + id
}

// OrderKey returns the key of the ordered id list
func OrderKey() string {
	return KeyIdentityOrder
}

// ExtractIdentityID extracts the relay ID from a Redis key
func ExtractIdentityID(key string) (string, error) {
	if len(key) <= len(KeyPrefixIdentity) || key[:len(KeyPrefixIdentity)] != KeyPrefixIdentity {
		return "", fmt.Errorf("invalid identity key: %s", key)
	}
	return key[len(KeyPrefixIdentity):], nil
}
