// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"container/heap"
	"context"
	"math/rand"
	"time"

	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/persistence"
)

type triggerQueueImpl struct {
	store      persistence.TriggerStore
	logger     log.Logger
	rootCtx    context.Context
	cfg        config.TriggerQueueConfig
	timeSource clock.TimeSource

	processor TriggerProcessor

	// the timer for next preload (by interval duration)
	nextPreloadTimer TimerGate
	// the timer for next firing of the loaded triggers
	nextFiringTimer TimerGate

	// tracks the max trigger sequence that has been loaded
	// so that the triggered polling can start from the next sequence
	currMaxLoadedSequence int64
	// similarly, this tracks the max fire time that has been loaded
	// so that the triggered polling can skip the polling if the new triggers
	// to poll are beyond it -- because the next preload will poll it anyway.
	currMaxLoadedFireTime time.Time

	// the triggers from the current preload, sorted by fire time
	// It is using heap because there could be new triggers coming later
	// The trigger will be popped out when it is fired, and sent to the processor.
	remainingToFireHeap TriggerPriorityQueue

	// this tracks the fired triggers that are waiting to be completed by processor.
	// The key is the trigger sequence. When all triggers are completed and nothing is in remainingToFireHeap,
	// it will make the next preload when the nextPreloadTimer fires
	firedToCompleteSequences map[int64]struct{}

	// completionChan is the channel to receive processed triggers from processor.
	// The queue doesn't delete triggers, the processor does it during processing.
	completionChan chan TriggerCompletion

	// the channel to receive trigger of polling for newly registered triggers.
	// The queue will check if the new triggers are within the currMaxLoadedFireTime, and if so,
	// it will load the new triggers and add to the remainingToFireHeap
	triggeredPollingChan chan NotifyTriggersRequest
}

func NewTriggerQueueImpl(
	rootCtx context.Context, cfg config.TriggerQueueConfig, store persistence.TriggerStore,
	processor TriggerProcessor, timeSource clock.TimeSource, logger log.Logger,
) TriggerQueue {
	return &triggerQueueImpl{
		store:      store,
		logger:     logger,
		rootCtx:    rootCtx,
		cfg:        cfg,
		timeSource: timeSource,

		processor: processor,

		nextPreloadTimer: NewLocalTimerGate(timeSource, logger),
		nextFiringTimer:  NewLocalTimerGate(timeSource, logger),

		firedToCompleteSequences: make(map[int64]struct{}),
		completionChan:           make(chan TriggerCompletion, cfg.ProcessorBufferSize),
		triggeredPollingChan:     make(chan NotifyTriggersRequest, cfg.TriggerNotificationBufferSize),
	}
}

func (w *triggerQueueImpl) Stop(ctx context.Context) error {
	// close timer to prevent goroutine leakage
	w.nextPreloadTimer.Close()
	w.nextFiringTimer.Close()

	return nil
}

func (w *triggerQueueImpl) TriggerPollingTriggers(req NotifyTriggersRequest) {
	select {
	case w.triggeredPollingChan <- req:
	default:
		// the next preload will load them anyway
		w.logger.Warn("trigger notification buffer is full, dropping the notification")
	}
}

func (w *triggerQueueImpl) Start() error {
	w.processor.SetCompletionChan(w.completionChan)

	w.nextPreloadTimer.Update(w.timeSource.Now()) // fire immediately to make the first poll

	go func() {
		for {
			select {
			case <-w.nextPreloadTimer.FireChan():
				if w.shouldLoadNextBatch() {
					w.loadAndDispatchAndPrepareNext()
				}
			case <-w.nextFiringTimer.FireChan():
				w.sendFiredTriggersToProcessor()
			case completion, ok := <-w.completionChan:
				if ok {
					w.complete(completion)
					if w.shouldLoadNextBatch() {
						w.loadAndDispatchAndPrepareNext()
					}
				}
			case req, ok := <-w.triggeredPollingChan:
				if ok {
					// drain all the requests to poll in batch
					if w.drainAllNotifyRequests(&req) {
						w.triggeredPolling()
					}
				}
			case <-w.rootCtx.Done():
				w.logger.Info("trigger queue is being closed")
				return
			}
		}
	}()
	return nil
}

func (w *triggerQueueImpl) getNextPollTime(interval, jitter time.Duration) time.Time {
	var jitterD time.Duration
	if jitter > 0 {
		jitterD = time.Duration(rand.Int63n(int64(jitter)))
	}
	return w.timeSource.Now().Add(interval).Add(jitterD)
}

// preload the next page of triggers and dispatch them to processor
// and prepare the next preload(update the preloadTimer)
func (w *triggerQueueImpl) loadAndDispatchAndPrepareNext() {
	// as we are loading next page, we can drain all the pending requests
	// because the new triggers will be loaded anyway
	w.drainAllNotifyRequests(nil)

	maxWindowTime := w.getNextPollTime(w.cfg.MaxPreloadLookAhead, w.cfg.IntervalJitter)
	w.nextPreloadTimer.Update(maxWindowTime)

	resp, err := w.store.GetTriggersUpToTime(
		w.rootCtx, persistence.GetTriggersUpToTimeRequest{
			MaxFireTimeInclusive: maxWindowTime,
			PageSize:             w.cfg.MaxPreloadPageSize,
		})

	if err != nil {
		w.logger.Error("failed at loading triggers, will retry", tag.Error(err))
		// schedule an earlier next poll
		w.nextPreloadTimer.Update(w.getNextPollTime(0, w.cfg.IntervalJitter))
		return
	}

	if resp.FullPage {
		// the rest of the window is left to the next preload
		w.currMaxLoadedFireTime = resp.MaxFireTimeInclusive
	} else {
		w.currMaxLoadedFireTime = maxWindowTime
	}
	if resp.MaxSequenceInclusive > w.currMaxLoadedSequence {
		w.currMaxLoadedSequence = resp.MaxSequenceInclusive
	}

	if len(resp.Triggers) > 0 {
		w.logger.Debug("preloaded triggers", tag.Count(len(resp.Triggers)))
		w.remainingToFireHeap = NewTriggerPriorityQueue(resp.Triggers)

		trigger0 := w.remainingToFireHeap[0]
		w.nextFiringTimer.Update(trigger0.FireAt)
	}
}

// drainAllNotifyRequests reports whether any request falls in the loaded window
func (w *triggerQueueImpl) drainAllNotifyRequests(initReq *NotifyTriggersRequest) bool {
	inWindow := initReq != nil && w.isInLoadedWindow(*initReq)

	for len(w.triggeredPollingChan) > 0 {
		req, ok := <-w.triggeredPollingChan
		if ok && w.isInLoadedWindow(req) {
			inWindow = true
		}
	}
	return inWindow
}

func (w *triggerQueueImpl) shouldLoadNextBatch() bool {
	return !w.nextPreloadTimer.IsActive() && // this means the preload timer has fired
		len(w.remainingToFireHeap) == 0 && // this means all the triggers in the heap have been fired and sent to processor
		len(w.firedToCompleteSequences) == 0 // this means all the fired triggers have been completed
}

func (w *triggerQueueImpl) sendFiredTriggersToProcessor() {
	for len(w.remainingToFireHeap) > 0 {
		minTrigger := w.remainingToFireHeap[0]
		if minTrigger.FireAt.After(w.timeSource.Now()) {
			w.nextFiringTimer.Update(minTrigger.FireAt)
			return
		}
		heap.Pop(&w.remainingToFireHeap)
		w.firedToCompleteSequences[minTrigger.Sequence] = struct{}{}
		if !w.dispatch(*minTrigger) {
			return
		}
	}
}

// dispatch keeps receiving completions while the processor buffer is full,
// so that the processor never waits on the queue while the queue waits on it
func (w *triggerQueueImpl) dispatch(trigger persistence.Trigger) bool {
	for {
		select {
		case w.processor.GetTriggersToProcessChan() <- trigger:
			return true
		case completion := <-w.completionChan:
			w.complete(completion)
		case <-w.rootCtx.Done():
			return false
		}
	}
}

func (w *triggerQueueImpl) complete(completion TriggerCompletion) {
	delete(w.firedToCompleteSequences, completion.Trigger.Sequence)
	if !completion.Retry || completion.Trigger.FireAt.After(w.currMaxLoadedFireTime) {
		return
	}
	// the retry is due in the loaded window, the next preload would be too late
	trigger := completion.Trigger
	heap.Push(&w.remainingToFireHeap, &trigger)
	w.scheduleFiring(trigger.FireAt)
}

func (w *triggerQueueImpl) triggeredPolling() {
	resp, err := w.store.GetTriggersBySequence(
		w.rootCtx, persistence.GetTriggersBySequenceRequest{
			MinSequenceInclusive: w.currMaxLoadedSequence + 1,
			MaxFireTimeInclusive: w.currMaxLoadedFireTime,
			PageSize:             w.cfg.MaxPreloadPageSize,
		})

	if err != nil {
		w.logger.Error("failed at triggered polling triggers, will not retry. "+
			"The new triggers will be waiting for next preload", tag.Error(err))
		// Give up on error as this notification mechanism is an optimization.
		// The next preload will poll them anyway
		return
	}
	if len(resp.Triggers) == 0 {
		return
	}

	// update the max loaded sequence so that next time it won't load the same triggers
	// currMaxLoadedFireTime is not updated because the new triggers are within it
	w.currMaxLoadedSequence = resp.MaxSequenceInclusive

	earliest := resp.Triggers[0].FireAt
	for _, trigger := range resp.Triggers {
		t := trigger
		heap.Push(&w.remainingToFireHeap, &t)
		if t.FireAt.Before(earliest) {
			earliest = t.FireAt
		}
	}
	w.scheduleFiring(earliest)
}

func (w *triggerQueueImpl) scheduleFiring(fireAt time.Time) {
	if !w.nextFiringTimer.IsActive() || w.nextFiringTimer.FireAfter(fireAt) {
		// update the next firing timer if
		// 1. the nextFiringTimer is not active(meaning there wasn't any more triggers to fire)
		// 2. the new trigger is earlier than the current min
		w.nextFiringTimer.Update(fireAt)
	}
}

// isInLoadedWindow checks if any of the fire times is inside current preload time window
func (w *triggerQueueImpl) isInLoadedWindow(req NotifyTriggersRequest) bool {
	for _, fireAt := range req.FireAts {
		if !fireAt.After(w.currMaxLoadedFireTime) {
			return true
		}
	}
	return false
}
