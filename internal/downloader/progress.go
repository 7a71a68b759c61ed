package downloader

import (
	"go-voxura-native/internal/events"
)

// progressTracker throttles progress events for one task. Updates are emitted
// once at least threshold bytes arrived since the previous event, and once
// more when the transfer completes.
type progressTracker struct {
	id        string
	emitter   events.Emitter
	threshold uint64
	total     uint64

	lastEmitted uint64
	emitted     bool
	done        bool
}

func (p *progressTracker) update(transferred uint64) {
	if transferred-p.lastEmitted < p.threshold {
		return
	}
	p.emit(transferred)
}

// finish emits the completion event unless the last update already carried it.
func (p *progressTracker) finish() {
	if p.done {
		return
	}
	p.done = true
	if p.emitted && p.lastEmitted == p.total {
		return
	}
	p.emit(p.total)
}

func (p *progressTracker) fail(err error) {
	if p.done {
		return
	}
	p.done = true
	events.Notify(p.emitter, events.DownloadUpdate, events.Progress{
		ID:       p.id,
		Total:    p.total,
		Progress: p.lastEmitted,
		Error:    err.Error(),
	})
}

func (p *progressTracker) emit(transferred uint64) {
	p.lastEmitted = transferred
	p.emitted = true
	events.Notify(p.emitter, events.DownloadUpdate, events.Progress{
		ID:       p.id,
		Total:    p.total,
		Progress: transferred,
	})
}
