package auth

import "math"

// hashOld323 is libmysqlclient's hash_password(), used by the pre-4.1
// mysql_old_password plugin. Ported from native/passwd.go's
// hash_password, which the teacher already implements correctly; only
// ScrambleOld below — which the teacher left as an unfinished stub that
// always returned nil — is new.
func hashOld323(password []byte) (uint32, uint32) {
	var nr, add, nr2 uint32 = 1345345333, 7, 0x12345671
	for _, c := range password {
		if c == ' ' || c == '\t' {
			continue
		}
		tmp := uint32(c)
		nr ^= (((nr & 63) + add) * tmp) + (nr << 8)
		nr2 += (nr2 << 8) ^ nr
		add += tmp
	}
	return nr & 0x7FFFFFFF, nr2 & 0x7FFFFFFF
}

// rand323 is libmysqlclient's linear-congruential PRNG (randominit /
// my_rnd), seeded from the XOR of the password and scramble hashes.
type rand323 struct {
	seed1, seed2 uint32
}

const rand323Max = 0x3FFFFFFF

func newRand323(seed1, seed2 uint32) *rand323 {
	return &rand323{seed1: seed1 % rand323Max, seed2: seed2 % rand323Max}
}

func (r *rand323) next() float64 {
	r.seed1 = (r.seed1*3 + r.seed2) % rand323Max
	r.seed2 = (r.seed1 + r.seed2 + 33) % rand323Max
	return float64(r.seed1) / float64(rand323Max)
}

// ScrambleOld implements mysql_old_password's scramble_323 per §4.3: the
// pre-4.1 8-byte scramble derived from two linear-congruential-seeded
// pseudo-random sequences, one keyed off the password hash and one off
// the server's scramble hash, with a trailing XOR pass against an extra
// generated byte.
func ScrambleOld(password string, scramble []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	const scrambleLen323 = 8
	if len(scramble) > scrambleLen323 {
		scramble = scramble[:scrambleLen323]
	}

	hp1, hp2 := hashOld323([]byte(password))
	hm1, hm2 := hashOld323(scramble)

	r := newRand323(hp1^hm1, hp2^hm2)

	out := make([]byte, scrambleLen323)
	for i := range out {
		out[i] = byte(math.Floor(r.next()*31) + 64)
	}
	extra := byte(math.Floor(r.next() * 31))
	for i := range out {
		out[i] ^= extra
	}
	return out
}
