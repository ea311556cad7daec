// Package play runs a game in the terminal against the configured provider.
package play

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/config"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/logging"
	"github.com/myrjola/whodunit/internal/mystery"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "game",
	Title: "Game",
}

var Command = &cobra.Command{
	Use:     "play",
	GroupID: "game",
	Short:   "Play a mystery in the terminal",
	Long: `Starts a new mystery with the provider configured in the environment.
Plain lines talk to the game master. Type /help for the commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			AddSource: false,
			Level:     slog.LevelWarn,
		})))
		cfg, err := config.Load(nil)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		provider, closeProvider, err := ai.Open(ctx, cfg.ProviderSettings(), logger)
		if err != nil {
			return errors.Wrap(err, "open provider")
		}
		defer func() {
			_ = closeProvider()
		}()
		store := game.NewStore(logger, game.StoreConfig{TokenLimit: cfg.MaxOutputTokens}) //nolint:exhaustruct // defaults
		return Run(ctx, game.NewService(logger, store, provider, nil), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

const help = `Commands:
  <anything>                 talk to the game master
  /ask <suspect> <question>  interrogate a suspect
  /search <room>             search a room
  /accuse <suspect>          name the killer and end the game
  /roster                    list suspects and rooms
  /quit                      give up
`

type action int

const (
	actionSay action = iota
	actionAsk
	actionSearch
	actionAccuse
	actionRoster
	actionHelp
	actionQuit
)

type command struct {
	action action
	target string
	text   string
}

// parse turns a line of player input into a command.
func parse(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{action: actionSay, text: line}, nil
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "/ask":
		suspect, question, _ := strings.Cut(rest, " ")
		if suspect == "" || strings.TrimSpace(question) == "" {
			return command{}, errors.New("usage: /ask <suspect> <question>")
		}
		return command{action: actionAsk, target: suspect, text: strings.TrimSpace(question)}, nil
	case "/search":
		if rest == "" {
			return command{}, errors.New("usage: /search <room>")
		}
		return command{action: actionSearch, target: rest}, nil
	case "/accuse":
		if rest == "" {
			return command{}, errors.New("usage: /accuse <suspect>")
		}
		return command{action: actionAccuse, target: rest}, nil
	case "/roster":
		return command{action: actionRoster}, nil
	case "/help":
		return command{action: actionHelp}, nil
	case "/quit":
		return command{action: actionQuit}, nil
	default:
		return command{}, errors.New("unknown command, type /help")
	}
}

// Run plays one game, reading player input from in until the player accuses someone, quits, or in is exhausted.
func Run(ctx context.Context, svc *game.Service, in io.Reader, out io.Writer) error {
	id := svc.NewSession(ctx)
	reply, err := svc.StartGame(ctx, id)
	if err != nil {
		return errors.Wrap(err, "start game")
	}
	_, _ = fmt.Fprintf(out, "%s\n\n%s", reply.Response, help)

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		cmd, parseErr := parse(scanner.Text())
		if parseErr != nil {
			_, _ = fmt.Fprintln(out, parseErr.Error())
			continue
		}
		done, stepErr := step(ctx, svc, id, cmd, out)
		if stepErr != nil {
			if !recoverable(stepErr) {
				return stepErr
			}
			_, _ = fmt.Fprintln(out, describe(stepErr))
			continue
		}
		if done {
			return nil
		}
	}
	if err = scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}

func step(ctx context.Context, svc *game.Service, id string, cmd command, out io.Writer) (bool, error) {
	switch cmd.action {
	case actionSay:
		reply, err := svc.GameTurn(ctx, id, cmd.text, "")
		if err != nil {
			return false, errors.Wrap(err, "game turn")
		}
		_, _ = fmt.Fprintf(out, "%s\n", reply.Response)
	case actionAsk:
		response, err := svc.Interrogate(ctx, id, cmd.target, cmd.text)
		if err != nil {
			return false, errors.Wrap(err, "interrogate")
		}
		suspect, _ := mystery.ParseSuspect(cmd.target)
		_, _ = fmt.Fprintf(out, "%s: %s\n", suspect, response)
	case actionSearch:
		room, ok := mystery.ParseRoom(cmd.target)
		if !ok {
			_, _ = fmt.Fprintf(out, "Unknown room %q. Type /roster to list the rooms.\n", cmd.target)
			return false, nil
		}
		reply, err := svc.GameTurn(ctx, id, mystery.SearchRoomInput(room), string(room))
		if err != nil {
			return false, errors.Wrap(err, "search")
		}
		_, _ = fmt.Fprintf(out, "[%s]\n%s\n", reply.Location.Label(), reply.Response)
	case actionAccuse:
		verdict, err := svc.Accuse(ctx, id, cmd.target)
		if err != nil {
			return false, errors.Wrap(err, "accuse")
		}
		outcome := "Wrong."
		if verdict.Correct {
			outcome = "Correct!"
		}
		_, _ = fmt.Fprintf(out, "You accused %s. %s The killer was %s with %s. Motive: %s.\n",
			verdict.Accused, outcome, verdict.Killer, verdict.Weapon, verdict.Motive)
		return true, nil
	case actionRoster:
		roster := svc.Roster()
		_, _ = fmt.Fprintf(out, "The victim is %s.\nSuspects:\n", roster.Victim)
		for _, s := range roster.Suspects {
			_, _ = fmt.Fprintf(out, "  %s, %s\n", s.Name, s.Description)
		}
		_, _ = fmt.Fprintln(out, "Rooms:")
		for _, r := range roster.Rooms {
			_, _ = fmt.Fprintf(out, "  %s (%s)\n", r.Slug, r.Label)
		}
	case actionHelp:
		_, _ = fmt.Fprint(out, help)
	case actionQuit:
		_, _ = fmt.Fprintln(out, "The case goes cold.")
		return true, nil
	}
	return false, nil
}

// recoverable reports whether the game can go on after err.
func recoverable(err error) bool {
	if _, ok := ai.AsGenerationFailure(err); ok {
		return true
	}
	return errors.Is(err, game.ErrInvalidInput) || errors.Is(err, game.ErrBusy)
}

func describe(err error) string {
	if f, ok := ai.AsGenerationFailure(err); ok && f.Retryable {
		return "The storyteller is lost for words. Try again."
	}
	if errors.Is(err, game.ErrInvalidInput) {
		return "That does not make sense here. Type /roster to list the suspects and rooms."
	}
	return "That did not work. Try something else."
}
