package multisigcheck

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"gopkg.in/macaroon-bakery.v2/bakery"
)

const (
	// macaroonLocation is the location of all macaroons we bake.
	macaroonLocation = "msigcheckd"

	// rootKeyLen is the length of the macaroon root key.
	rootKeyLen = 32

	// rootKeyFilename is the name of the root key file in the network
	// directory.
	rootKeyFilename = "macaroons.key"
)

var defaultRootKeyID = []byte("0")

// assignedRootKeyStore is a bakery.RootKeyStore with a single root key.
type assignedRootKeyStore struct {
	key []byte
}

// A compile time check to ensure that assignedRootKeyStore implements the
// bakery.RootKeyStore interface.
var _ bakery.RootKeyStore = (*assignedRootKeyStore)(nil)

// Get returns the root key for the given id. There is only one.
func (s *assignedRootKeyStore) Get(_ context.Context, id []byte) ([]byte,
	error) {

	return s.key, nil
}

// RootKey returns the root key and its id.
func (s *assignedRootKeyStore) RootKey(_ context.Context) ([]byte, []byte,
	error) {

	return s.key, defaultRootKeyID, nil
}

// loadRootKey reads the macaroon root key from the file, creating a random
// one if the file doesn't exist yet.
func loadRootKey(path string) ([]byte, error) {
	if fileExists(path) {
		key, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if len(key) != rootKeyLen {
			return nil, fmt.Errorf("macaroon root key %s has "+
				"invalid length %d", path, len(key))
		}

		return key, nil
	}

	key := make([]byte, rootKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, err
	}

	chckLog.Infof("Created new macaroon root key in %s", path)

	return key, nil
}

// newBakery returns a bakery whose macaroons are all signed with the given
// root key.
func newBakery(rootKey []byte) *bakery.Bakery {
	return bakery.New(bakery.BakeryParams{
		RootKeyStore: &assignedRootKeyStore{
			key: rootKey,
		},
		Location: macaroonLocation,
	})
}

// bakeAdminMacaroon returns the serialized macaroon that grants all
// permissions.
func bakeAdminMacaroon(ctx context.Context, bkry *bakery.Bakery) ([]byte,
	error) {

	mac, err := bkry.Oven.NewMacaroon(
		ctx, bakery.LatestVersion, nil, GetAllPermissions()...,
	)
	if err != nil {
		return nil, err
	}

	return mac.M().MarshalBinary()
}
