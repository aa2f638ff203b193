// Command autoplay plays a complete escape room game against a running
// server through its REST API. It seats a game master and a number of bot
// players, then walks every room until the game finishes. Useful as a smoke
// test of a deployment and as a source of realistic websocket traffic.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	cmd := &cli.Command{
		Name:  "autoplay",
		Usage: "Play a full escape room game against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:3000", Usage: "Game server URL", Sources: cli.EnvVars("API_URL")},
			&cli.IntFlag{Name: "players", Value: 3, Usage: "Number of bot players"},
			&cli.IntFlag{Name: "max-attempts", Value: 500, Usage: "Maximum actions before giving up"},
			&cli.DurationFlag{Name: "delay", Usage: "Delay between turns"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger, err := zap.NewProduction()
	if cmd.Bool("v") {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}
	defer logger.Sync()

	url := cmd.String("url")
	logger.Info("connecting to game server", zap.String("url", url))

	bot := NewBot(NewClient(url), max(1, cmd.Int("players")), cmd.Int("max-attempts"), cmd.Duration("delay"), logger)
	if err := bot.Setup(ctx); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	start := time.Now()
	sum, err := bot.Play(ctx)
	if err != nil {
		return err
	}

	logger.Info("game over",
		zap.Bool("finished", sum.Finished),
		zap.Int("rooms", sum.Rooms),
		zap.Int("attempts", sum.Attempts),
		zap.Int("successes", sum.Successes),
		zap.Int("failures", sum.Failures),
		zap.Duration("elapsed", time.Since(start)),
	)
	if !sum.Finished {
		return fmt.Errorf("gave up after %d attempts", sum.Attempts)
	}
	return nil
}
