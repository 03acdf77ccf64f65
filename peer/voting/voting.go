// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package voting

import (
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/logger"
)

const (
	loggerCategory = "voting"
)

// Voting - elect the peer to synchronise from
type Voting interface {
	ElectedCandidate() (Candidate, error)
	NumVoteOfHash(string) int
	Reset()
	SetMinHeight(uint64)
	VoteBy(Candidate)
}

// Candidate - one peer's report of its chain tip
//
// each peer votes for the tip it has
type Candidate struct {
	PeerIP string
	PeerID string
	Height uint64
	Hash   string
}

type records map[string][]Candidate

type electionResult struct {
	highestNumVotes int
	winner          *Candidate
	draw            bool
}

// VotingData - votes of one synchronisation round
type VotingData struct {
	votes        records
	minHeight    uint64
	minimumVotes int
	result       electionResult
	log          *logger.L
}

// NewVoting - new voting object, a winner needs at least minimumVotes
func NewVoting(minimumVotes int) Voting {
	if minimumVotes < 1 {
		minimumVotes = 1
	}
	return &VotingData{
		votes:        make(records),
		minimumVotes: minimumVotes,
		log:          logger.New(loggerCategory),
	}
}

// SetMinHeight - set minimum height for vote
func (v *VotingData) SetMinHeight(height uint64) {
	v.log.Debugf("minimum height %d", height)
	v.minHeight = height
}

// NumVoteOfHash - number of votes for a tip hash
func (v *VotingData) NumVoteOfHash(hash string) int {
	return len(v.votes[hash])
}

// VoteBy - record a peer's tip
func (v *VotingData) VoteBy(candidate Candidate) {
	if candidate.Height < v.minHeight {
		v.log.Infof(
			"peer: %s  id: %s  height: %d below minimum height %d, discard",
			candidate.PeerIP,
			candidate.PeerID,
			candidate.Height,
			v.minHeight,
		)
		return
	}

	v.log.Debugf("peer: %s  id: %s  height: %d  hash: %s", candidate.PeerIP, candidate.PeerID, candidate.Height, candidate.Hash)
	v.votes[candidate.Hash] = append(v.votes[candidate.Hash], candidate)
}

// ElectedCandidate - candidate of the tip with most votes
//
// a draw is won by the higher tip, then by the smaller hash
func (v *VotingData) ElectedCandidate() (Candidate, error) {
	v.resetResult()

	if err := v.countVotes(); nil != err {
		v.log.Warnf("count votes with error: %s", err)
		return Candidate{}, err
	}

	if v.result.draw {
		v.log.Infof("election in draw with vote counts %d", v.result.highestNumVotes)
		return v.drawWinner(), nil
	}

	return *v.result.winner, nil
}

func (v *VotingData) countVotes() error {
	for _, voters := range v.votes {
		if v.result.highestNumVotes < len(voters) {
			v.result.highestNumVotes = len(voters)
			v.result.winner = &voters[0]
			v.result.draw = false
		} else if v.result.highestNumVotes == len(voters) {
			v.result.draw = true
		}
	}
	v.log.Debugf("vote draw: %t, most votes: %d", v.result.draw, v.result.highestNumVotes)

	if nil == v.result.winner {
		return fault.VotesWithEmptyWinner
	}
	if v.result.highestNumVotes < v.minimumVotes {
		return fault.VotesInsufficient
	}
	return nil
}

func (v *VotingData) drawWinner() Candidate {
	var elected *Candidate
	for _, voters := range v.votes {
		if len(voters) != v.result.highestNumVotes {
			continue
		}
		c := &voters[0]
		switch {
		case nil == elected:
			elected = c
		case c.Height > elected.Height:
			elected = c
		case c.Height == elected.Height && c.Hash < elected.Hash:
			elected = c
		}
	}
	v.log.Infof("elected hash: %s  height: %d", elected.Hash, elected.Height)
	return *elected
}

// Reset - reset voting
func (v *VotingData) Reset() {
	v.votes = make(records)
	v.minHeight = 0
	v.resetResult()
}

func (v *VotingData) resetResult() {
	v.result = electionResult{}
}
