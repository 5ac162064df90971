package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"voxelfort.ai/internal/sim/integrity"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, w.cfg.Seed)
	digestWriteU64(h, &tmp, uint64(w.cfg.Height))

	for _, k := range w.chunks.LoadedChunkKeys() {
		ch := w.chunks.chunks[k]
		digestWriteI64(h, &tmp, int64(k.CX))
		digestWriteI64(h, &tmp, int64(k.CZ))
		d := ch.Digest()
		h.Write(d[:])
	}

	for _, id := range w.sortedStructureIDs() {
		s := w.structures[id]
		h.Write([]byte(id))
		h.Write([]byte{0, boolByte(s.Hostile)})
		for _, v := range [...]int{s.Min.X, s.Min.Y, s.Min.Z, s.Max.X, s.Max.Y, s.Max.Z} {
			digestWriteI64(h, &tmp, int64(v))
		}
		tr := s.tracker
		digestWriteI64(h, &tmp, int64(tr.Cursor()))
		bp := tr.Blueprint()
		for i := 0; i < bp.Len(); i++ {
			e := bp.At(i)
			digestWriteU64(h, &tmp, uint64(e.Expected))
			h.Write([]byte{boolByte(tr.Status(e.Pos) == integrity.Destroyed)})
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
