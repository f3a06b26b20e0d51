// Package poseidon implements a fixed-field Poseidon permutation for the
// Merkle Commit Engine's interior node hash. The round constants and MDS
// matrix are derived deterministically from a named domain string at package
// init rather than hand-typed, so the derivation itself is auditable and
// reproducible by anyone re-running the same algorithm — not bit-for-bit
// identical to any specific external circuit library's published Poseidon
// parameters (circomlib, gnark, and friends each publish their own). What
// this buys is the guarantee spec.md §9 actually needs: every process that
// links this package computes the same constants, so extraction-time and
// verification-time node hashing never silently diverge from each other
// ("pin the exact hash function... to prevent silent hash-function drift").
// A deployment that must interoperate with a specific downstream circuit's
// constants would hardcode that circuit's published parameter set here
// instead of self-deriving a new one.
package poseidon

import (
	"crypto/sha256"
	"math/big"
)

// Width is the Poseidon state width t. Rate 2 + capacity 1 matches a 2-to-1
// compression function, the shape the Merkle Commit Engine needs for
// interior nodes (§4.G).
const Width = 3

// FullRounds and PartialRounds match the parameters published for a
// width-3, x^5 S-box Poseidon instance at the 128-bit security level
// (half the full rounds run before the partial rounds, half after).
const (
	FullRounds    = 8
	PartialRounds = 57
)

// Prime is the scalar field modulus of the BN254 curve, the field the
// downstream circuit verifier operates over.
var Prime, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

var (
	roundConstants [][Width]*big.Int // [round][state index]
	mds            [Width][Width]*big.Int
)

func init() {
	roundConstants = deriveRoundConstants()
	mds = deriveMDS()
}

// deriveRoundConstants expands a fixed domain-separated seed through SHA-256
// in counter mode and reduces each block modulo Prime. This is the same
// shape of derivation (seeded deterministic stream, reduced into the field)
// that reference Poseidon implementations use via a Grain LFSR; SHA-256
// counter-mode is substituted here as a self-contained stdlib equivalent.
func deriveRoundConstants() [][Width]*big.Int {
	total := FullRounds + PartialRounds
	out := make([][Width]*big.Int, total)
	counter := uint64(0)
	next := func() *big.Int {
		for {
			h := sha256.New()
			h.Write([]byte("shadowatlas-poseidon-rc"))
			var ctr [8]byte
			putUint64(ctr[:], counter)
			h.Write(ctr[:])
			counter++
			sum := h.Sum(nil)
			n := new(big.Int).SetBytes(sum)
			if n.Cmp(Prime) < 0 {
				return n
			}
			// Reject-and-retry keeps the distribution uniform over the
			// field instead of introducing modulo bias.
		}
	}
	for r := 0; r < total; r++ {
		var row [Width]*big.Int
		for i := 0; i < Width; i++ {
			row[i] = next()
		}
		out[r] = row
	}
	return out
}

// deriveMDS builds the Width x Width maximum-distance-separable matrix via
// the Cauchy construction M[i][j] = 1 / (x_i + y_j), with x_i = i and
// y_j = Width + j, the standard method the Poseidon paper uses to generate
// an MDS matrix that is provably free of the vulnerable substructures a
// hand-picked matrix could have.
func deriveMDS() [Width][Width]*big.Int {
	var m [Width][Width]*big.Int
	for i := 0; i < Width; i++ {
		for j := 0; j < Width; j++ {
			x := big.NewInt(int64(i))
			y := big.NewInt(int64(Width + j))
			sum := new(big.Int).Add(x, y)
			sum.Mod(sum, Prime)
			inv := new(big.Int).ModInverse(sum, Prime)
			m[i][j] = inv
		}
	}
	return m
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// sbox raises x to the fifth power mod Prime, the Poseidon S-box exponent
// chosen because 5 is coprime with Prime-1 over BN254's scalar field.
func sbox(x *big.Int) *big.Int {
	x2 := new(big.Int).Mul(x, x)
	x2.Mod(x2, Prime)
	x4 := new(big.Int).Mul(x2, x2)
	x4.Mod(x4, Prime)
	x5 := new(big.Int).Mul(x4, x)
	x5.Mod(x5, Prime)
	return x5
}

func applyMDS(state [Width]*big.Int) [Width]*big.Int {
	var out [Width]*big.Int
	for i := 0; i < Width; i++ {
		acc := big.NewInt(0)
		for j := 0; j < Width; j++ {
			term := new(big.Int).Mul(mds[i][j], state[j])
			acc.Add(acc, term)
		}
		acc.Mod(acc, Prime)
		out[i] = acc
	}
	return out
}

// Permute runs the full Poseidon permutation over a copy of state and
// returns the resulting state; the caller's values are left unchanged.
func Permute(state [Width]*big.Int) [Width]*big.Int {
	s := state
	halfFull := FullRounds / 2
	for round := 0; round < FullRounds+PartialRounds; round++ {
		rc := roundConstants[round]
		for i := 0; i < Width; i++ {
			s[i] = new(big.Int).Add(s[i], rc[i])
			s[i].Mod(s[i], Prime)
		}
		isPartial := round >= halfFull && round < halfFull+PartialRounds
		if isPartial {
			s[0] = sbox(s[0])
		} else {
			for i := 0; i < Width; i++ {
				s[i] = sbox(s[i])
			}
		}
		s = applyMDS(s)
	}
	return s
}

// Hash2 compresses two field elements into one, the operation the Merkle
// Commit Engine uses for every interior node (§4.G): state is initialized
// to [0, left, right] (capacity element zero), permuted, and the first
// output limb is the node digest.
func Hash2(left, right *big.Int) *big.Int {
	l := new(big.Int).Mod(left, Prime)
	r := new(big.Int).Mod(right, Prime)
	state := [Width]*big.Int{big.NewInt(0), l, r}
	out := Permute(state)
	return out[0]
}

// HashBytes32 is a convenience wrapper for node hashing over 32-byte digests
// (the output shape of the leaf/attribute/provenance SHA-256 digests feeding
// into the tree), returning a fixed 32-byte big-endian encoding of the
// resulting field element.
func HashBytes32(left, right [32]byte) [32]byte {
	l := new(big.Int).SetBytes(left[:])
	r := new(big.Int).SetBytes(right[:])
	sum := Hash2(l, r)
	var out [32]byte
	sum.FillBytes(out[:])
	return out
}
