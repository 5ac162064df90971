package world

import (
	"context"
	"errors"
	"fmt"
)

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)

	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}

	errStr := ""
	if w.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else if snap, err := w.ExportSnapshot(snapTick); err != nil {
		errStr = "export snapshot: " + err.Error()
	} else {
		select {
		case w.snapshotSink <- snap:
		default:
			errStr = "snapshot sink backpressure"
		}
	}

	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- adminSnapshotResp{Tick: snapTick, Err: errStr}:
		default:
		}
	}
}

type hostileReq struct {
	StructureID string
	Hostile     bool
	Resp        chan error
}

// RequestHostile flags or clears adjacent hostiles for a structure from
// outside the world loop (combat integration, admin tools).
func (w *World) RequestHostile(ctx context.Context, structureID string, hostile bool) error {
	if w == nil || w.hostile == nil {
		return errors.New("hostile requests not available")
	}
	resp := make(chan error, 1)

	select {
	case w.hostile <- hostileReq{StructureID: structureID, Hostile: hostile, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stepWithRequests applies queued hostile requests as inputs of the next
// tick so they land in the tick log, then answers each request.
func (w *World) stepWithRequests(reqs []hostileReq) {
	changes := make([]HostileChange, 0, len(reqs))
	errs := make([]error, len(reqs))
	for i, r := range reqs {
		if _, ok := w.structures[r.StructureID]; !ok {
			errs[i] = fmt.Errorf("%w: %s", ErrUnknownStructure, r.StructureID)
			continue
		}
		changes = append(changes, HostileChange{StructureID: r.StructureID, Hostile: r.Hostile})
	}
	w.step(changes)

	for i, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- errs[i]:
		default:
		}
	}
}
