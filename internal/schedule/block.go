/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"time"

	"github.com/friendsincode/queueplanner/internal/interval"
)

const blockLabelLayout = "Mon 2006-01-02 15:04 MST"

// Block is one schedulable stretch of a night.
type Block struct {
	interval.Interval
}

// NewBlock returns the block covering [start, end).
func NewBlock(start, end int64) Block {
	return Block{Interval: interval.New(start, end)}
}

// Label names the block after its start time.
func (b Block) Label() string {
	return time.UnixMilli(b.Start()).UTC().Format(blockLabelLayout)
}

func blocksOf(u *interval.Union) []Block {
	ivs := u.Intervals()
	out := make([]Block, len(ivs))
	for i, iv := range ivs {
		out[i] = Block{Interval: iv}
	}
	return out
}
