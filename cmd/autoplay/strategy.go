package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/escape-room-game/game/engine"
)

// classes are handed out round-robin so teams cover every stat.
var classes = []string{"warrior", "rogue", "mage", "cleric"}

// Summary is the outcome of one automated game.
type Summary struct {
	Rooms     int
	Attempts  int
	Successes int
	Failures  int
	Finished  bool
}

// Bot seats a game master and a set of players, then plays every room: on
// each turn the active team tries the open action its strongest member is
// best suited for. The game master advances once a room is complete or no
// team has anything left to try.
type Bot struct {
	client      *Client
	logger      *zap.Logger
	players     int
	maxAttempts int
	delay       time.Duration

	gm string
}

func NewBot(client *Client, players, maxAttempts int, delay time.Duration, logger *zap.Logger) *Bot {
	return &Bot{
		client:      client,
		logger:      logger,
		players:     players,
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// Setup joins everyone, seats players across teams and starts the game.
func (b *Bot) Setup(ctx context.Context) error {
	gm, err := b.client.Join(ctx, "Autoplay GM", engine.RoleGM)
	if err != nil {
		return err
	}
	b.gm = gm.ID

	teams, err := b.client.Teams(ctx)
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		return fmt.Errorf("server has no teams")
	}

	ids := []string{gm.ID}
	for i := range b.players {
		name := fmt.Sprintf("Bot %d", i+1)
		p, err := b.client.Join(ctx, name, engine.RolePlayer)
		if err != nil {
			return err
		}
		if err := b.client.SelectCharacter(ctx, p.ID, name, classes[i%len(classes)]); err != nil {
			return err
		}
		if err := b.client.SelectTeam(ctx, p.ID, teams[i%len(teams)].ID); err != nil {
			return err
		}
		ids = append(ids, p.ID)
	}
	for _, id := range ids {
		if err := b.client.ToggleReady(ctx, id); err != nil {
			return err
		}
	}

	b.logger.Info("players seated", zap.Int("players", b.players), zap.Int("teams", len(teams)))
	return b.client.StartGame(ctx, b.gm)
}

// candidate is an action a team can still attempt.
type candidate struct {
	playerID string
	actionID string
	stat     int
}

// pick returns the open action with the highest member stat for teamID.
func pick(st *engine.State, available map[string]bool, actions []string, stats map[string]string, recorded engine.Ledger, teamID string) (candidate, bool) {
	team, ok := st.Teams[teamID]
	if !ok {
		return candidate{}, false
	}

	best := candidate{stat: -1}
	for _, actionID := range actions {
		if !available[actionID] {
			continue
		}
		if _, done := recorded[actionID]; done {
			continue
		}
		for _, member := range team.Members {
			p, ok := st.Players[member]
			if !ok {
				continue
			}
			v, ok := p.Stats[stats[actionID]]
			if ok && v > best.stat {
				best = candidate{playerID: p.ID, actionID: actionID, stat: v}
			}
		}
	}
	return best, best.stat >= 0
}

// Play runs the game to the end or until maxAttempts actions were tried.
func (b *Bot) Play(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	idle := 0

	for sum.Attempts < b.maxAttempts {
		st, err := b.client.State(ctx)
		if err != nil {
			return sum, err
		}
		if st.Game.Phase == engine.PhaseFinished {
			sum.Finished = true
			return sum, nil
		}

		room, err := b.client.CurrentRoom(ctx, b.gm)
		if err != nil {
			return sum, err
		}
		completion, err := b.client.Completion(ctx)
		if err != nil {
			return sum, err
		}

		// every team had a turn without anything to try
		if completion.RoomFullyCompleted || idle >= len(st.Game.TurnOrder) {
			tr, err := b.client.NextRoom(ctx, b.gm)
			if err != nil {
				return sum, err
			}
			sum.Rooms++
			idle = 0
			b.logger.Info(tr.Message, zap.String("room", room.ID), zap.Bool("completed", completion.RoomFullyCompleted))
			continue
		}

		actions := make([]string, 0, len(room.Actions))
		stats := make(map[string]string, len(room.Actions))
		for _, a := range room.Actions {
			actions = append(actions, a.ID)
			stats[a.ID] = a.Stat
		}

		teamID := st.ActiveTeam()
		c, ok := pick(st, room.Available, actions, stats, completion.CompletionStatus[teamID].Progress, teamID)
		if ok {
			idle = 0
			res, err := b.client.PerformAction(ctx, c.playerID, c.actionID)
			if err != nil {
				return sum, err
			}
			sum.Attempts++
			if res.Outcome.Result == engine.ResultFailure {
				sum.Failures++
			} else {
				sum.Successes++
			}
			b.logger.Debug("action attempted",
				zap.String("team", teamID),
				zap.String("action", c.actionID),
				zap.String("result", string(res.Outcome.Result)),
				zap.Float64("total", res.Total),
			)
		} else {
			idle++
		}

		if err := b.client.NextTurn(ctx, b.gm); err != nil {
			return sum, err
		}
		if b.delay > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(b.delay):
			}
		}
	}
	return sum, nil
}
