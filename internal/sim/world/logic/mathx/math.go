package mathx

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// HashTick mixes a seed, a tick and a string key. Used for per-structure
// draws that must replay identically after a snapshot resume.
func HashTick(seed int64, tick uint64, key string) uint64 {
	v := mix64(uint64(seed) ^ (tick * 0xc2b2ae3d27d4eb4f))
	for i := 0; i < len(key); i++ {
		v = mix64(v ^ uint64(key[i]))
	}
	return v
}

// Unit maps a hash onto [0, 1) using its top 53 bits.
func Unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}
