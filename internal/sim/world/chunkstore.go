package world

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"voxelfort.ai/internal/persistence/snapshot"
	"voxelfort.ai/internal/sim/world/logic/mathx"
)

const chunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*chunkSize + y*chunkSize*chunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Seed      int64
	Height    int
	BoundaryR int // blocks

	// Palette ids for generated blocks.
	Air    uint16
	Ground uint16
}

// ChunkStore is accessed only from the world loop goroutine.
type ChunkStore struct {
	gen    WorldGen
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) InBounds(x, y, z int) bool {
	if y < 0 || y >= s.gen.Height {
		return false
	}
	if s.gen.BoundaryR > 0 {
		if x < -s.gen.BoundaryR || x > s.gen.BoundaryR || z < -s.gen.BoundaryR || z > s.gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) GetBlock(x, y, z int) uint16 {
	if !s.InBounds(x, y, z) {
		return s.gen.Air
	}
	ch := s.getOrGenChunk(mathx.FloorDiv(x, chunkSize), mathx.FloorDiv(z, chunkSize))
	return ch.Get(mathx.Mod(x, chunkSize), y, mathx.Mod(z, chunkSize))
}

// SetBlock reports whether the position was inside the world.
func (s *ChunkStore) SetBlock(x, y, z int, b uint16) bool {
	if !s.InBounds(x, y, z) {
		return false
	}
	ch := s.getOrGenChunk(mathx.FloorDiv(x, chunkSize), mathx.FloorDiv(z, chunkSize))
	ch.Set(mathx.Mod(x, chunkSize), y, mathx.Mod(z, chunkSize), b)
	return true
}

func (s *ChunkStore) getOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: s.gen.Height,
		Blocks: make([]uint16, chunkSize*chunkSize*s.gen.Height),
	}
	s.generateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.chunks[k] = ch
	return ch
}

// generateChunk lays a flat ground layer at y=0 with sparse gaps.
func (s *ChunkStore) generateChunk(ch *Chunk) {
	for z := 0; z < chunkSize; z++ {
		for x := 0; x < chunkSize; x++ {
			wx := ch.CX*chunkSize + x
			wz := ch.CZ*chunkSize + z
			b := s.gen.Ground
			if mathx.Hash2(s.gen.Seed, wx, wz)%1000 < 20 {
				b = s.gen.Air
			}
			ch.Blocks[ch.index(x, 0, z)] = b
		}
	}
}

func (s *ChunkStore) exportChunks() []snapshot.ChunkV1 {
	keys := s.LoadedChunkKeys()
	out := make([]snapshot.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := s.chunks[k]
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		out = append(out, snapshot.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: ch.Height,
			Blocks: blocks,
		})
	}
	return out
}

func importChunks(gen WorldGen, chunks []snapshot.ChunkV1) (*ChunkStore, error) {
	store := NewChunkStore(gen)
	for _, ch := range chunks {
		if ch.Height != gen.Height {
			return nil, fmt.Errorf("snapshot chunk height mismatch: got %d want %d", ch.Height, gen.Height)
		}
		if want := chunkSize * chunkSize * gen.Height; len(ch.Blocks) != want {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), want)
		}
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		c := &Chunk{
			CX:     ch.CX,
			CZ:     ch.CZ,
			Height: ch.Height,
			Blocks: blocks,
		}
		_ = c.Digest()
		store.chunks[ChunkKey{CX: ch.CX, CZ: ch.CZ}] = c
	}
	return store, nil
}
