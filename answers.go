/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "time"

// answerSubmit validates one submission from the player currently holding
// the turn. Rejections go only to the submitting connection and leave room
// state untouched.
func (e *Engine) answerSubmit(c *Client, req answerSubmitRequest) {
	room := e.registry.Get(normalizeCode(req.RoomCode))
	if room == nil || room.Phase != phasePlaying {
		return
	}

	currentID := room.currentPlayerID()
	if c.id != currentID {
		e.sendTo(c, "error:msg", errorMsg{Message: "Not your turn."})
		return
	}

	// Submissions landing faster than a human could read the prompt are
	// treated as scripted and refused outright.
	elapsed := time.Since(room.TurnStarted)
	if elapsed < e.cfg.minSubmit {
		e.sendTo(c, "answer:rejected", answerRejectedMsg{
			Reason:  rejectTooSoon,
			Min:     e.cfg.minSubmit.Milliseconds(),
			Elapsed: elapsed.Milliseconds(),
		})
		return
	}

	canonical := room.Topic.ToCanonical(req.Answer)
	if canonical == "" {
		e.sendTo(c, "answer:rejected", answerRejectedMsg{Reason: rejectInvalid})
		return
	}
	if room.isUsed(canonical) {
		e.sendTo(c, "answer:rejected", answerRejectedMsg{
			Reason:  rejectRepeated,
			Country: canonical,
		})
		return
	}

	room.addUsed(canonical)
	if p := room.playerByID(c.id); p != nil {
		p.Score++
	}

	e.stopTimer(room)
	e.emitRoom(room, "answer:accepted", answerAcceptedMsg{Value: canonical})
	e.broadcastRoom(room)

	if room.Mode == modeSolo {
		if len(room.usedAnswers()) >= room.Topic.Total() {
			e.soloOver(room, soloReasonCompleted)
		} else {
			e.startSoloTurn(room)
		}
		return
	}

	e.applyOutcome(room, room.resolveTurn(c.id, true))
}
