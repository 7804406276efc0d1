// Package soxr adapts the SoX resampler to convert.RateConverter.
package soxr

import (
	"bytes"
	"fmt"

	"github.com/zaf/resample"
)

// Resampler streams interleaved F32 audio through libsoxr.
type Resampler struct {
	out       bytes.Buffer
	resampler *resample.Resampler
}

// New creates a high quality F32 resampler.
func New(fromRate, toRate, channels int) (*Resampler, error) {
	r := &Resampler{}
	resampler, err := resample.New(
		&r.out,
		float64(fromRate),
		float64(toRate),
		channels,
		resample.F32,
		resample.HighQ,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	r.resampler = resampler
	return r, nil
}

// Process resamples in and returns whatever output soxr produced for it.
func (r *Resampler) Process(in []byte) ([]byte, error) {
	r.out.Reset()
	if _, err := r.resampler.Write(in); err != nil {
		return nil, fmt.Errorf("failed to resample: %w", err)
	}
	return r.out.Bytes(), nil
}

// Flush drains the resampler delay line. The Resampler cannot be used
// afterwards.
func (r *Resampler) Flush() ([]byte, error) {
	r.out.Reset()
	if r.resampler == nil {
		return nil, nil
	}
	err := r.resampler.Close()
	r.resampler = nil
	if err != nil {
		return nil, fmt.Errorf("failed to close resampler: %w", err)
	}
	return r.out.Bytes(), nil
}

func (r *Resampler) Close() error {
	if r.resampler == nil {
		return nil
	}
	err := r.resampler.Close()
	r.resampler = nil
	return err
}
