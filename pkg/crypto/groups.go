// Package crypto is the cryptographic façade consumed by the handshake and
// router as an opaque primitive layer: signing, Diffie-Hellman, hashing,
// and authenticated symmetric encryption. None of it is protocol-aware.
package crypto

import "math/big"

// DHGroup is a finite-field Diffie-Hellman group: a safe prime modulus and
// a generator. Modeled on the RFC 3526 MODP groups.
type DHGroup struct {
	Name      string
	Generator *big.Int
	Modulus   *big.Int
}

var group2048Modulus, _ = new(big.Int).SetString(""+
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD"+
	"129024E088A67CC74020BBEA63B139B22514A08798E3404"+
	"DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C"+
	"245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406"+
	"B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE"+
	"45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD"+
	"24CF5F83655D23DCA3AD961C62F356208552BB9ED529077"+
	"096966D670C354E4ABC9804F1746C08CA18217C32905E46"+
	"2E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF"+
	"06F4C52C9DE2BCBF6955817183995497CEA956AE515D225"+
	"6A2F1CF16540EFFFFFFFFFFFFFFFF",
	16)

var group4096Modulus, _ = new(big.Int).SetString(""+
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD"+
	"129024E088A67CC74020BBEA63B139B22514A08798E3404"+
	"DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C"+
	"245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406"+
	"B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE"+
	"45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD"+
	"24CF5F83655D23DCA3AD961C62F356208552BB9ED529077"+
	"096966D670C354E4ABC9804F1746C08CA18217C32905E46"+
	"2E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF"+
	"06F4C52C9DE2BCBF6955817183995497CEA956AE515D225"+
	"6A2F1CF16540EFFFFFFFFFFFFFFFFC90FDAA22168C234C4"+
	"C6628B80DC1CD129024E088A67CC74020BBEA63B139B225"+
	"14A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437"+
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6"+
	"B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1F"+
	"E649286651ECE45B3DC2007CB8A163BF0598DA48361C55D"+
	"39A69163FA8FD24CF5F83655D23DCA3AD961C62F3562085"+
	"52BB9ED5290770969FFFFFFFFFFFFFFF",
	16)

// Group2048 is the default handshake group used between a client and the
// server (spec.md §4.3: "the server and client handshake uses the 2048-bit
// group").
var Group2048 = &DHGroup{Name: "group14_2048", Generator: big.NewInt(2), Modulus: group2048Modulus}

// Group4096 is the optional group for direct client-to-client pairwise
// handshakes (spec.md §4.3: "client-to-client MAY use the 4096-bit group").
var Group4096 = &DHGroup{Name: "group16_4096", Generator: big.NewInt(2), Modulus: group4096Modulus}

// GeneratePrivate returns a random exponent in [2, modulus-1], suitable as a
// Diffie-Hellman private value for the given group.
func (g *DHGroup) GeneratePrivate() (*big.Int, error) {
	upper := new(big.Int).Sub(g.Modulus, big.NewInt(3))
	n, err := randBigInt(upper)
	if err != nil {
		return nil, err
	}
	return n.Add(n, big.NewInt(2)), nil
}

// DHPublic computes g^priv mod p for the group.
func DHPublic(priv *big.Int, group *DHGroup) *big.Int {
	return new(big.Int).Exp(group.Generator, priv, group.Modulus)
}

// DHShared computes peerPub^priv mod p, the shared secret, for the group.
func DHShared(priv, peerPub *big.Int, group *DHGroup) *big.Int {
	return new(big.Int).Exp(peerPub, priv, group.Modulus)
}
