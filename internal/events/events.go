// Package events delivers progress notifications to whatever listener the host attaches.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
)

// DownloadUpdate is the channel carrying per-task progress for downloads and extractions.
const DownloadUpdate = "download_update"

// Extraction tasks report a fixed two-step counter.
const (
	ExtractSteps   = 2
	ExtractStarted = 1
	ExtractDone    = 2
)

// Progress is the payload on DownloadUpdate. Error is set only on the final
// event of a task that failed.
type Progress struct {
	ID       string `json:"id"`
	Total    uint64 `json:"total"`
	Progress uint64 `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Emitter publishes a payload on a named channel.
type Emitter interface {
	Emit(channel string, payload any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(channel string, payload any) error

func (f EmitterFunc) Emit(channel string, payload any) error {
	return f(channel, payload)
}

// Notify emits without propagating failures; they are logged and dropped.
func Notify(e Emitter, channel string, payload any) {
	if e == nil {
		return
	}
	if err := e.Emit(channel, payload); err != nil {
		log.WithError(err).WithField("channel", channel).Warn("Failed to deliver event")
	}
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(string, any) error { return nil })

type envelope struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// JSONLines writes each event as one JSON object per line.
type JSONLines struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

func (j *JSONLines) Emit(channel string, payload any) error {
	data, err := json.Marshal(envelope{Channel: channel, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", channel, err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.w.Write(append(data, '\n'))
	return err
}

// Recorder keeps every Progress event it receives, in order.
type Recorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *Recorder) Emit(channel string, payload any) error {
	p, ok := payload.(Progress)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", payload, channel)
	}
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Progress, len(r.events))
	copy(out, r.events)
	return out
}

// ForID filters the recorded events down to one task.
func (r *Recorder) ForID(id string) []Progress {
	var out []Progress
	for _, p := range r.Events() {
		if p.ID == id {
			out = append(out, p)
		}
	}
	return out
}
