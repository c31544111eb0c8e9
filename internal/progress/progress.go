// Package progress defines the pipeline events shared by the batch
// orchestrator and the CLI renderers.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Action identifies a pipeline step.
type Action string

const (
	ActionConversion      Action = "bam_conversion"
	ActionDecontamination Action = "decontamination"
	ActionChecksum        Action = "checksum"
	ActionUpload          Action = "upload"
	ActionSubmission      Action = "submission"
)

// Status is an event's position in a step's lifecycle.
type Status string

const (
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Event is one state transition in a batch run. Sample is empty for events
// covering the whole batch.
type Event struct {
	Action Action `json:"action"`
	Status Status `json:"status"`
	Sample string `json:"sample,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Message is the JSON envelope written in json-messages mode.
type Message struct {
	Progress Event `json:"progress"`
}

// Emitter writes progress messages as indented JSON, one object per event.
// Safe for concurrent use.
type Emitter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes one event.
func (e *Emitter) Emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := json.MarshalIndent(Message{Progress: ev}, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.w, string(b))
	return err
}

// Result is the final submission report for a batch.
type Result struct {
	Status  string   `json:"status"`
	Batch   string   `json:"batch"`
	Samples []string `json:"samples"`
}

// ResultMessage is the JSON envelope for the final report.
type ResultMessage struct {
	Submission Result `json:"submission"`
}

// EmitResult writes the final submission report.
func (e *Emitter) EmitResult(r Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := json.MarshalIndent(ResultMessage{Submission: r}, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.w, string(b))
	return err
}
