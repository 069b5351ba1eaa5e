// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"container/heap"

	"github.com/xcherryio/taskexpiry/persistence"
)

// This is the standard way of using heap in Golang
// See https://pkg.go.dev/container/heap for more details

func NewTriggerPriorityQueue(triggers []persistence.Trigger) TriggerPriorityQueue {
	hq := make(TriggerPriorityQueue, 0, len(triggers))
	for _, trigger := range triggers {
		t := trigger
		hq = append(hq, &t)
	}
	heap.Init(&hq)
	return hq
}

// A TriggerPriorityQueue implements heap.Interface, the earliest fire time first
type TriggerPriorityQueue []*persistence.Trigger

func (pq *TriggerPriorityQueue) Len() int { return len(*pq) }

func (pq *TriggerPriorityQueue) Less(i, j int) bool {
	a, b := (*pq)[i], (*pq)[j]
	if a.FireAt.Equal(b.FireAt) {
		return a.Sequence < b.Sequence
	}
	return a.FireAt.Before(b.FireAt)
}

func (pq *TriggerPriorityQueue) Swap(i, j int) {
	(*pq)[i], (*pq)[j] = (*pq)[j], (*pq)[i]
}

func (pq *TriggerPriorityQueue) Push(x any) {
	item, ok := x.(*persistence.Trigger)
	if !ok {
		panic("Pushed item is not a Trigger")
	}
	*pq = append(*pq, item)
}

func (pq *TriggerPriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	*pq = old[0 : n-1]
	return item
}
