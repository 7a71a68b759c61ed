package cmd

import (
	"fmt"
	"io"
	"sync"

	"go-voxura-native/internal/events"
	"go-voxura-native/internal/helpers"

	"github.com/gosuri/uilive"
)

// progressRenderer draws download_update events as one live line per task.
type progressRenderer struct {
	mu     sync.Mutex
	writer *uilive.Writer
	order  []string
	last   map[string]events.Progress
	bytes  bool
}

// newProgressRenderer starts a live writer on out. bytes selects byte
// formatting for totals (downloads) over plain step counts (extractions).
func newProgressRenderer(out io.Writer, bytes bool) *progressRenderer {
	w := uilive.New()
	w.Out = out
	w.Start()
	return &progressRenderer{writer: w, last: map[string]events.Progress{}, bytes: bytes}
}

func (p *progressRenderer) Emit(channel string, payload any) error {
	prog, ok := payload.(events.Progress)
	if !ok || channel != events.DownloadUpdate {
		return fmt.Errorf("unexpected %T event on %s", payload, channel)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, seen := p.last[prog.ID]; !seen {
		p.order = append(p.order, prog.ID)
	}
	p.last[prog.ID] = prog

	for i, id := range p.order {
		line := p.format(p.last[id])
		if i == 0 {
			fmt.Fprintln(p.writer, line)
		} else {
			fmt.Fprintln(p.writer.Newline(), line)
		}
	}
	return p.writer.Flush()
}

func (p *progressRenderer) format(prog events.Progress) string {
	if prog.Error != "" {
		return fmt.Sprintf("%s: failed: %s", prog.ID, prog.Error)
	}
	if !p.bytes {
		return fmt.Sprintf("%s: step %d/%d", prog.ID, prog.Progress, prog.Total)
	}
	pct := 100.0
	if prog.Total > 0 {
		pct = float64(prog.Progress) / float64(prog.Total) * 100
	}
	return fmt.Sprintf("%s: %s / %s (%.1f%%)", prog.ID, helpers.BytesToSize(prog.Progress), helpers.BytesToSize(prog.Total), pct)
}

// Stop flushes the final state and stops the live writer.
func (p *progressRenderer) Stop() {
	p.writer.Stop()
}
