// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"viz/internal/log"
)

// StartRecording begins writing the captured input to a WAV file at path.
// Returns an error if a recording is already in progress.
func (e *Engine) StartRecording(path string) error {
	if e.recording() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	e.outputPath = path
	e.outputFile = file

	e.wavEncoder = wav.NewEncoder(file, int(e.config.Audio.SampleRate),
		32, e.config.Audio.InputChannels, 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: e.config.Audio.InputChannels,
			SampleRate:  int(e.config.Audio.SampleRate),
		},
		Data: make([]int, e.config.Audio.FramesPerBuffer*e.config.Audio.InputChannels),
	}

	atomic.StoreInt32(&e.isRecording, 1)
	log.Infof("Audio: Recording to %s", path)

	return nil
}

// StopRecording finalizes the WAV file and clears the recording state.
// A no-op if nothing is being recorded.
func (e *Engine) StopRecording() error {
	if !e.recording() {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}
	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}
	log.Infof("Audio: Recording saved to %s", e.outputPath)

	return nil
}

// RecordingPath returns the path of the current (or last) recording.
func (e *Engine) RecordingPath() string {
	return e.outputPath
}

func (e *Engine) recording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

// writeRecording appends one capture buffer to the WAV file.
// Called from the capture callback; uses the pre-allocated sample buffer.
func (e *Engine) writeRecording(buffer []int32) {
	for i, sample := range buffer {
		e.sampleBuf.Data[i] = int(sample)
	}
	e.sampleBuf.Data = e.sampleBuf.Data[:len(buffer)]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		log.Errorf("Audio: Error writing to WAV file: %v", err)
	}
}
